package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/scheduler-manager/catalog"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/financials"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

type QuoteView struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Status string                 `json:"status"`
	Totals financials.QuoteTotals `json:"totals"`
	Items  []OrderedItem          `json:"items"`
}

// EventScheduler is the full scheduler read of one event.
type EventScheduler struct {
	Event            db.Event                     `json:"event"`
	Instance         *db.SchedulerInstance        `json:"instance,omitempty"`
	Quotes           []QuoteView                  `json:"quotes"`
	ManualTasks      []db.SchedulerTask           `json:"manual_tasks"`
	Sections         []SectionView                `json:"sections"`
	CustomCategories []db.SchedulerCustomCategory `json:"custom_categories"`
	Catalog          *catalog.Structure           `json:"catalog,omitempty"`
	DraftCount       int64                        `json:"draft_count"`
	Financials       *financials.Summary          `json:"financials,omitempty"`
	Warnings         []Warning                    `json:"warnings,omitempty"`
}

// GetEventScheduler loads the event, its approved quotes with tasks in
// canonical order, manual tasks and the staged view, bounded by the detail
// timeout.
func (s *TaskService) GetEventScheduler(ctx context.Context, t tenant.Tenant, eventID string) (*EventScheduler, error) {
	return withTimeout(ctx, s.opts.DetailTimeout, "event scheduler detail", func(ctx context.Context) (*EventScheduler, error) {
		return s.loadEventScheduler(ctx, t, eventID)
	})
}

func (s *TaskService) loadEventScheduler(ctx context.Context, t tenant.Tenant, eventID string) (*EventScheduler, error) {
	ev, err := loadEvent(ctx, s.DB, t, eventID)
	if err != nil {
		return nil, err
	}
	out := &EventScheduler{
		Event:            *ev,
		Quotes:           []QuoteView{},
		ManualTasks:      []db.SchedulerTask{},
		Sections:         []SectionView{},
		CustomCategories: []db.SchedulerCustomCategory{},
	}
	if out.Instance, err = findInstance(ctx, s.DB, eventID); err != nil {
		return nil, err
	}

	var structure *catalog.Structure
	if s.Catalog != nil {
		structure, err = s.Catalog.GetCatalogStructure(ctx, t.StudioID)
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Op: "catalog", Message: err.Error()})
			s.Log.Warn("catalog structure unavailable", logger.String("studio_id", t.StudioID), logger.Error(err))
			structure = nil
		}
	}
	out.Catalog = structure

	var quotes []db.Quote
	if err := s.DB.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("sort_order") }).
		Preload("Items.CatalogItem").
		Preload("Items.SchedulerTask", "pending_deletion = ?", false).
		Where("event_id = ? AND studio_id = ? AND status = ?", eventID, t.StudioID, db.QuoteStatusApproved).
		Order("created_at").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("load event quotes: %w", err)
	}

	var allOrdered []OrderedItem
	for _, q := range quotes {
		qv := QuoteView{ID: q.ID, Name: q.Name, Status: q.Status}
		if s.Financials != nil {
			qv.Totals = s.Financials.ComputeTotals(q)
		}
		qv.Items = OrderQuoteItems(q.Items, structure)
		allOrdered = append(allOrdered, qv.Items...)
		out.Quotes = append(out.Quotes, qv)
	}

	if out.Instance != nil {
		if err := s.DB.WithContext(ctx).
			Where("scheduler_instance_id = ? AND quote_item_id IS NULL AND detached_quote_item_id IS NULL", out.Instance.ID).
			Order("category, sort_order, start_date").Find(&out.ManualTasks).Error; err != nil {
			return nil, fmt.Errorf("load manual tasks: %w", err)
		}
		if err := listCustomCategories(ctx, s.DB, out.Instance.ID, &out.CustomCategories); err != nil {
			return nil, fmt.Errorf("load custom categories: %w", err)
		}
		if out.DraftCount, err = s.GetDraftCount(ctx, t, eventID); err != nil {
			return nil, err
		}
	}
	out.Sections = BuildStagedView(structure, allOrdered, out.ManualTasks, out.CustomCategories)

	if s.Financials != nil && ev.PromiseID != nil {
		fin, err := s.Financials.GetFinancials(ctx, t.StudioID, *ev.PromiseID)
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Op: "financials", Message: err.Error()})
			s.Log.Warn("financials unavailable", logger.String("event_id", eventID), logger.Error(err))
		} else {
			out.Financials = fin
		}
	}
	return out, nil
}
