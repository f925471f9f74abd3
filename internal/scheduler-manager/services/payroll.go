package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/metrics"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

// ItemData overrides the quote item values used to price a payroll.
type ItemData struct {
	CrewMemberID *string
	Cost         *float64
	Quantity     *int
	Name         string
}

type PayrollOutcome struct {
	Payroll *db.Payroll `json:"payroll"`
	Created bool        `json:"created"`
}

// PayrollService creates and removes crew payroll as tasks are completed.
type PayrollService struct {
	DB      *gorm.DB
	Log     logger.Logger
	Metrics *metrics.Metrics
}

func NewPayrollService(gormDB *gorm.DB, log logger.Logger, m *metrics.Metrics) *PayrollService {
	if log == nil {
		log = logger.NewNop()
	}
	return &PayrollService{DB: gormDB, Log: log, Metrics: m}
}

// CreateFromCompletedTask records a pending payroll for the task's crew
// member. Calling it again for the same event, crew member and quote item
// returns the existing record.
func (s *PayrollService) CreateFromCompletedTask(ctx context.Context, t tenant.Tenant, eventID, taskID string, override *ItemData) (*PayrollOutcome, error) {
	out := &PayrollOutcome{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		task, err := loadTask(ctx, tx, inst.ID, taskID)
		if err != nil {
			return err
		}
		if task.QuoteItemID == nil {
			return apperr.Validation("task has no quote item")
		}
		item, err := loadEventQuoteItem(ctx, tx, t, eventID, *task.QuoteItemID)
		if err != nil {
			return err
		}

		crewID, cost, qty, name := task.AssignedToCrewMemberID, item.Cost, item.Quantity, item.Name
		if crewID == nil {
			crewID = item.AssignedToCrewMemberID
		}
		if override != nil {
			if override.CrewMemberID != nil {
				crewID = override.CrewMemberID
			}
			if override.Cost != nil {
				cost = *override.Cost
			}
			if override.Quantity != nil {
				qty = *override.Quantity
			}
			if override.Name != "" {
				name = override.Name
			}
		}
		if crewID == nil {
			return apperr.Validation("no personnel assigned")
		}
		if cost <= 0 {
			return apperr.Validation("no cost defined")
		}
		if qty <= 0 {
			qty = 1
		}

		var existing db.Payroll
		err = tx.Preload("Services").
			Where("event_id = ? AND crew_member_id = ? AND quote_item_id = ?", eventID, *crewID, item.ID).
			First(&existing).Error
		if err == nil {
			out.Payroll = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("look up payroll: %w", err)
		}

		actor, err := resolveActor(ctx, tx, t)
		if err != nil {
			return err
		}
		amount := cost * float64(qty)
		p := db.Payroll{
			StudioID:              t.StudioID,
			EventID:               eventID,
			CrewMemberID:          *crewID,
			QuoteItemID:           &item.ID,
			Concept:               name,
			TotalAmount:           amount,
			Status:                db.PayrollStatusPending,
			CreatedByStudioUserID: actor.ID,
			Services: []db.PayrollService{{
				QuoteItemID: &item.ID,
				Name:        name,
				UnitCost:    cost,
				Quantity:    qty,
				Amount:      amount,
			}},
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("create payroll: %w", err)
		}
		out.Payroll, out.Created = &p, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Created {
		s.Metrics.PayrollCreatedInc()
		s.Log.Info("payroll created",
			logger.String("event_id", eventID), logger.String("task_id", taskID),
			logger.String("payroll_id", out.Payroll.ID), logger.Float64("amount", out.Payroll.TotalAmount))
	}
	return out, nil
}

// DeleteFromUncompletedTask removes the pending payroll of the task's quote
// item. Missing records are not an error; processed ones are refused.
func (s *PayrollService) DeleteFromUncompletedTask(ctx context.Context, t tenant.Tenant, eventID, taskID string) (bool, error) {
	deleted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		task, err := loadTask(ctx, tx, inst.ID, taskID)
		if err != nil {
			return err
		}
		itemID := task.QuoteItemID
		if itemID == nil {
			itemID = task.DetachedQuoteItemID
		}
		if itemID == nil {
			return nil
		}
		var p db.Payroll
		err = tx.Where("event_id = ? AND quote_item_id = ?", eventID, *itemID).
			Order("created_at DESC").First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("look up payroll: %w", err)
		}
		if p.Status != db.PayrollStatusPending {
			return apperr.FinancialIntegrity("payroll %s is %s and cannot be removed", p.ID, p.Status)
		}
		if err := tx.Where("payroll_id = ?", p.ID).Delete(&db.PayrollService{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&p).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.Metrics.PayrollDeletedInc()
	}
	return deleted, nil
}

// resolveActor picks the studio user recorded as payroll creator: the
// authenticated user's studio profile, else one created from their public
// profile, else the oldest active studio user.
func resolveActor(ctx context.Context, tx *gorm.DB, t tenant.Tenant) (*db.StudioUser, error) {
	tx = tx.WithContext(ctx)
	var su db.StudioUser
	if t.ActorUserID != "" {
		err := tx.Where("studio_id = ? AND user_id = ?", t.StudioID, t.ActorUserID).First(&su).Error
		if err == nil {
			return &su, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		var u db.User
		err = tx.Where("id = ?", t.ActorUserID).First(&u).Error
		if err == nil {
			su = db.StudioUser{
				StudioID: t.StudioID,
				UserID:   &u.ID,
				FullName: u.FullName,
				Email:    u.Email,
				IsActive: true,
			}
			if err := tx.Create(&su).Error; err != nil {
				return nil, fmt.Errorf("create studio user for %s: %w", u.ID, err)
			}
			return &su, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	err := tx.Where("studio_id = ? AND is_active = ?", t.StudioID, true).Order("created_at").First(&su).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("no studio user available to register payroll")
	}
	if err != nil {
		return nil, err
	}
	return &su, nil
}
