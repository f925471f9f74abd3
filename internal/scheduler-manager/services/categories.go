package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

// CategoryService manages the event-scoped custom categories.
type CategoryService struct {
	DB         *gorm.DB
	Log        logger.Logger
	windowDays int
}

func NewCategoryService(gormDB *gorm.DB, log logger.Logger, windowDays int) *CategoryService {
	if log == nil {
		log = logger.NewNop()
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &CategoryService{DB: gormDB, Log: log, windowDays: windowDays}
}

type CategoryInput struct {
	SectionID string
	Stage     string
	Name      string
}

// Create appends a category after its (section, stage) siblings.
func (s *CategoryService) Create(ctx context.Context, t tenant.Tenant, eventID string, in CategoryInput) (*db.SchedulerCustomCategory, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}
	if in.SectionID == "" {
		return nil, apperr.Validation("section id is required")
	}
	stage, _ := db.ParseCategory(in.Stage)

	var cat db.SchedulerCustomCategory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvent(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		inst, _, err := ensureInstance(ctx, tx, ev, nil, s.windowDays)
		if err != nil {
			return err
		}
		var siblings int64
		if err := tx.Model(&db.SchedulerCustomCategory{}).
			Where("scheduler_instance_id = ? AND section_id = ? AND stage = ?", inst.ID, in.SectionID, stage).
			Count(&siblings).Error; err != nil {
			return err
		}
		cat = db.SchedulerCustomCategory{
			SchedulerInstanceID: inst.ID,
			SectionID:           in.SectionID,
			Stage:               stage,
			Name:                name,
			SortOrder:           int(siblings),
		}
		return tx.Create(&cat).Error
	})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *CategoryService) List(ctx context.Context, t tenant.Tenant, eventID string) ([]db.SchedulerCustomCategory, error) {
	if _, err := loadEvent(ctx, s.DB, t, eventID); err != nil {
		return nil, err
	}
	inst, err := findInstance(ctx, s.DB, eventID)
	if err != nil {
		return nil, err
	}
	cats := []db.SchedulerCustomCategory{}
	if inst == nil {
		return cats, nil
	}
	return cats, listCustomCategories(ctx, s.DB, inst.ID, &cats)
}

func listCustomCategories(ctx context.Context, tx *gorm.DB, instanceID string, out *[]db.SchedulerCustomCategory) error {
	return tx.WithContext(ctx).Where("scheduler_instance_id = ?", instanceID).
		Order("section_id, stage, sort_order, name").Find(out).Error
}

// Reorder assigns 0..n-1 by position in ids.
func (s *CategoryService) Reorder(ctx context.Context, t tenant.Tenant, eventID string, ids []string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&db.SchedulerCustomCategory{}).
			Where("scheduler_instance_id = ? AND id IN ?", inst.ID, ids).Count(&n).Error; err != nil {
			return err
		}
		if int(n) != len(ids) {
			return apperr.NotFound("one or more categories do not belong to this scheduler")
		}
		for i, id := range ids {
			if err := tx.Model(&db.SchedulerCustomCategory{}).Where("id = ?", id).
				Update("sort_order", i).Error; err != nil {
				return fmt.Errorf("reorder category %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *CategoryService) Rename(ctx context.Context, t tenant.Tenant, eventID, categoryID, name string) (*db.SchedulerCustomCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}
	var cat *db.SchedulerCustomCategory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		if cat, err = loadCustomCategory(ctx, tx, inst.ID, categoryID); err != nil {
			return err
		}
		cat.Name = name
		return tx.Model(cat).Update("name", name).Error
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// Delete removes the category and unlinks its tasks, which are kept.
func (s *CategoryService) Delete(ctx context.Context, t tenant.Tenant, eventID, categoryID string) (int64, error) {
	var unlinked int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		cat, err := loadCustomCategory(ctx, tx, inst.ID, categoryID)
		if err != nil {
			return err
		}
		res := tx.Model(&db.SchedulerTask{}).
			Where("scheduler_instance_id = ? AND scheduler_custom_category_id = ?", inst.ID, cat.ID).
			Update("scheduler_custom_category_id", nil)
		if res.Error != nil {
			return fmt.Errorf("unlink tasks from category: %w", res.Error)
		}
		unlinked = res.RowsAffected
		return tx.Delete(cat).Error
	})
	if err != nil {
		return 0, err
	}
	s.Log.Info("custom category deleted",
		logger.String("event_id", eventID), logger.String("category_id", categoryID), logger.Int64("unlinked_tasks", unlinked))
	return unlinked, nil
}

// DeletionImpact tells the caller what deleting a category touches.
// FinancialShield is set when processed payroll exists for those tasks.
type DeletionImpact struct {
	TaskCount       int64 `json:"task_count"`
	FinancialShield bool  `json:"financial_shield"`
}

func (s *CategoryService) GetDeletionImpact(ctx context.Context, t tenant.Tenant, eventID, categoryID string) (*DeletionImpact, error) {
	_, inst, err := requireInstance(ctx, s.DB, t, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := loadCustomCategory(ctx, s.DB, inst.ID, categoryID); err != nil {
		return nil, err
	}

	var itemIDs []string
	tasks := s.DB.WithContext(ctx).Model(&db.SchedulerTask{}).
		Where("scheduler_instance_id = ? AND scheduler_custom_category_id = ?", inst.ID, categoryID)
	impact := &DeletionImpact{}
	if err := tasks.Session(&gorm.Session{}).Count(&impact.TaskCount).Error; err != nil {
		return nil, err
	}
	if err := tasks.Session(&gorm.Session{}).Where("quote_item_id IS NOT NULL").Pluck("quote_item_id", &itemIDs).Error; err != nil {
		return nil, err
	}
	if len(itemIDs) > 0 {
		var processed int64
		if err := s.DB.WithContext(ctx).Model(&db.Payroll{}).
			Where("event_id = ? AND quote_item_id IN ? AND status <> ?", eventID, itemIDs, db.PayrollStatusPending).
			Count(&processed).Error; err != nil {
			return nil, err
		}
		impact.FinancialShield = processed > 0
	}
	return impact, nil
}

// CategoryRef says which table an opaque category id belongs to. Exactly one
// field is set.
type CategoryRef struct {
	SchedulerCustomCategoryID *string `json:"scheduler_custom_category_id,omitempty"`
	CatalogCategoryID         *string `json:"catalog_category_id,omitempty"`
}

// ResolveCategoryIDForManualTask probes the event's custom categories first;
// anything else is taken as a catalog category id.
func (s *CategoryService) ResolveCategoryIDForManualTask(ctx context.Context, t tenant.Tenant, eventID, categoryID string) (*CategoryRef, error) {
	if categoryID == "" {
		return nil, apperr.Validation("category id is required")
	}
	if _, err := loadEvent(ctx, s.DB, t, eventID); err != nil {
		return nil, err
	}
	inst, err := findInstance(ctx, s.DB, eventID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return &CategoryRef{CatalogCategoryID: strPtr(categoryID)}, nil
	}
	return resolveCategoryRef(ctx, s.DB, inst.ID, categoryID)
}

func resolveCategoryRef(ctx context.Context, tx *gorm.DB, instanceID, categoryID string) (*CategoryRef, error) {
	_, err := loadCustomCategory(ctx, tx, instanceID, categoryID)
	switch {
	case err == nil:
		return &CategoryRef{SchedulerCustomCategoryID: strPtr(categoryID)}, nil
	case errors.Is(err, apperr.ErrNotFound):
		return &CategoryRef{CatalogCategoryID: strPtr(categoryID)}, nil
	default:
		return nil, err
	}
}

func loadCustomCategory(ctx context.Context, tx *gorm.DB, instanceID, categoryID string) (*db.SchedulerCustomCategory, error) {
	var cat db.SchedulerCustomCategory
	err := tx.WithContext(ctx).Where("id = ? AND scheduler_instance_id = ?", categoryID, instanceID).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("category %s", categoryID)
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}
