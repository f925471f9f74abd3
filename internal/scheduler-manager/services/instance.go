package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
	"studio-scheduler-service/pkg/validation"
)

// GetOrCreateInstance returns the event's instance, creating it with rng (or
// the default window from the event date) when missing.
func (s *TaskService) GetOrCreateInstance(ctx context.Context, t tenant.Tenant, eventID string, rng *DateRange) (*db.SchedulerInstance, bool, error) {
	var (
		inst    *db.SchedulerInstance
		created bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvent(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		inst, created, err = ensureInstance(ctx, tx, ev, rng, s.opts.DefaultWindowDays)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.Log.Info("scheduler instance created",
			logger.String("studio_id", t.StudioID), logger.String("event_id", eventID), logger.String("instance_id", inst.ID))
	}
	return inst, created, nil
}

// UpdateWindow sets the instance window, refusing to leave any task outside it.
func (s *TaskService) UpdateWindow(ctx context.Context, t tenant.Tenant, eventID string, rng DateRange) (*db.SchedulerInstance, error) {
	rng = rng.normalized()
	if rng.From.IsZero() || rng.To.IsZero() {
		return nil, apperr.Validation("window from and to dates are required")
	}
	if rng.To.Before(rng.From) {
		return nil, apperr.Validation("window ends before it starts")
	}

	var inst *db.SchedulerInstance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvent(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		var created bool
		inst, created, err = ensureInstance(ctx, tx, ev, &rng, s.opts.DefaultWindowDays)
		if err != nil || created {
			return err
		}

		var outside int64
		if err := tx.Model(&db.SchedulerTask{}).
			Where("scheduler_instance_id = ?", inst.ID).
			Where("start_date < ? OR end_date > ?", rng.From, rng.To).
			Count(&outside).Error; err != nil {
			return fmt.Errorf("count tasks outside window: %w", err)
		}
		if outside > 0 {
			return apperr.Conflict("cannot shrink period: %d tasks exist outside the new range", outside)
		}
		inst.StartDate, inst.EndDate = rng.From, rng.To
		return tx.Model(inst).Updates(map[string]interface{}{"start_date": rng.From, "end_date": rng.To}).Error
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// InstanceStatus is the cheap probe used by list and card views.
type InstanceStatus struct {
	Exists     bool   `json:"exists"`
	InstanceID string `json:"instance_id,omitempty"`
	TaskCount  int64  `json:"task_count"`
	DraftCount int64  `json:"draft_count"`
}

func (s *TaskService) CheckStatus(ctx context.Context, t tenant.Tenant, eventID string) (*InstanceStatus, error) {
	if _, err := loadEvent(ctx, s.DB, t, eventID); err != nil {
		return nil, err
	}
	inst, err := findInstance(ctx, s.DB, eventID)
	if err != nil {
		return nil, err
	}
	st := &InstanceStatus{}
	if inst == nil {
		return st, nil
	}
	st.Exists, st.InstanceID = true, inst.ID
	q := s.DB.WithContext(ctx).Model(&db.SchedulerTask{}).Where("scheduler_instance_id = ?", inst.ID)
	if err := q.Session(&gorm.Session{}).Where("pending_deletion = ?", false).Count(&st.TaskCount).Error; err != nil {
		return nil, err
	}
	if err := q.Session(&gorm.Session{}).Where("sync_status = ?", db.SyncDraft).Count(&st.DraftCount).Error; err != nil {
		return nil, err
	}
	return st, nil
}

// StagedState is the UI staging metadata stored on the instance.
type StagedState struct {
	CustomCategoriesBySectionStage []byte
	ExplicitlyActivatedStageIDs    []byte
}

// SaveStagedState validates and stores the UI staging blobs. A nil blob is
// left untouched.
func (s *TaskService) SaveStagedState(ctx context.Context, t tenant.Tenant, eventID string, st StagedState) (*db.SchedulerInstance, error) {
	if st.CustomCategoriesBySectionStage != nil {
		if err := validation.CustomCategoriesBySectionStage.Validate(st.CustomCategoriesBySectionStage); err != nil {
			return nil, apperr.Validation("custom_categories_by_section_stage: %v", err)
		}
	}
	if st.ExplicitlyActivatedStageIDs != nil {
		if err := validation.ExplicitlyActivatedStageIDs.Validate(st.ExplicitlyActivatedStageIDs); err != nil {
			return nil, apperr.Validation("explicitly_activated_stage_ids: %v", err)
		}
	}

	var inst *db.SchedulerInstance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvent(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		if inst, _, err = ensureInstance(ctx, tx, ev, nil, s.opts.DefaultWindowDays); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if st.CustomCategoriesBySectionStage != nil {
			inst.CustomCategoriesBySectionStage = st.CustomCategoriesBySectionStage
			updates["custom_categories_by_section_stage"] = inst.CustomCategoriesBySectionStage
		}
		if st.ExplicitlyActivatedStageIDs != nil {
			inst.ExplicitlyActivatedStageIDs = st.ExplicitlyActivatedStageIDs
			updates["explicitly_activated_stage_ids"] = inst.ExplicitlyActivatedStageIDs
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(inst).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}
