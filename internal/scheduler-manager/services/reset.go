package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

type ResetResult struct {
	DeletedTasks      int       `json:"deleted_tasks"`
	DeletedCategories int64     `json:"deleted_categories"`
	Warnings          []Warning `json:"warnings,omitempty"`
}

type calendarRef struct {
	TaskID           string
	GoogleEventID    *string
	GoogleCalendarID *string
}

// ClearScheduler hard-deletes every task and custom category of the event and
// clears the staged UI state. The instance itself and its window stay.
// Calendar events of deleted tasks are cancelled in the background.
func (s *TaskService) ClearScheduler(ctx context.Context, t tenant.Tenant, eventID string) (*ResetResult, error) {
	res := &ResetResult{}
	var (
		inst *db.SchedulerInstance
		refs []calendarRef
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if _, inst, err = requireInstance(ctx, tx, t, eventID); err != nil {
			return err
		}
		var ids []string
		if err := tx.Model(&db.SchedulerTask{}).Where("scheduler_instance_id = ?", inst.ID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.SchedulerTask{}).
			Select("id AS task_id, google_event_id, google_calendar_id").
			Where("scheduler_instance_id = ? AND google_event_id IS NOT NULL", inst.ID).
			Scan(&refs).Error; err != nil {
			return err
		}
		if err := hardDeleteTasks(ctx, tx, ids); err != nil {
			return err
		}
		res.DeletedTasks = len(ids)

		cats := tx.Where("scheduler_instance_id = ?", inst.ID).Delete(&db.SchedulerCustomCategory{})
		if cats.Error != nil {
			return fmt.Errorf("delete custom categories: %w", cats.Error)
		}
		res.DeletedCategories = cats.RowsAffected
		return tx.Model(inst).Updates(map[string]interface{}{
			"custom_categories_by_section_stage": nil,
			"explicitly_activated_stage_ids":     nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	res.Warnings = appendWarning(res.Warnings, s.verifyCleared(ctx, inst.ID))
	for _, ref := range refs {
		s.deleteEventAsync(derefString(ref.GoogleCalendarID), *ref.GoogleEventID, ref.TaskID)
	}
	s.Log.Info("scheduler cleared",
		logger.String("event_id", eventID),
		logger.Int("deleted_tasks", res.DeletedTasks),
		logger.Int64("deleted_categories", res.DeletedCategories))
	return res, nil
}

// verifyCleared re-counts after commit and deletes leftovers directly.
func (s *TaskService) verifyCleared(ctx context.Context, instanceID string) *Warning {
	return nonFatal(s.Log, "reset.verify", func() error {
		var leftover []string
		if err := s.DB.WithContext(ctx).Model(&db.SchedulerTask{}).
			Where("scheduler_instance_id = ?", instanceID).Pluck("id", &leftover).Error; err != nil {
			return err
		}
		if len(leftover) == 0 {
			return nil
		}
		s.Log.Warn("tasks left after scheduler reset, deleting directly",
			logger.String("instance_id", instanceID), logger.Int("count", len(leftover)))
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return hardDeleteTasks(ctx, tx, leftover)
		})
	}, logger.String("instance_id", instanceID))
}
