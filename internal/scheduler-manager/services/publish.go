package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

type PublishResult struct {
	Published    int       `json:"published"`
	Synchronized int       `json:"synchronized"`
	Failed       int       `json:"failed"`
	Warnings     []Warning `json:"warnings,omitempty"`
}

// Publish moves every DRAFT task forward. Each task is handled on its own;
// a failing task is logged and left in DRAFT for the next attempt.
func (s *TaskService) Publish(ctx context.Context, t tenant.Tenant, eventID string, sendInvitations bool) (*PublishResult, error) {
	if _, err := loadEvent(ctx, s.DB, t, eventID); err != nil {
		return nil, err
	}
	res := &PublishResult{}
	inst, err := findInstance(ctx, s.DB, eventID)
	if err != nil || inst == nil {
		return res, err
	}
	var drafts []db.SchedulerTask
	if err := s.DB.WithContext(ctx).
		Where("scheduler_instance_id = ? AND sync_status = ?", inst.ID, db.SyncDraft).
		Order("sort_order, start_date").Find(&drafts).Error; err != nil {
		return nil, fmt.Errorf("load draft tasks: %w", err)
	}

	for i := range drafts {
		task := &drafts[i]
		synced, err := s.publishTask(ctx, t, task, sendInvitations)
		if err != nil {
			res.Failed++
			res.Warnings = append(res.Warnings, Warning{Op: "publish:" + task.ID, Message: err.Error()})
			s.Metrics.PublishFailed()
			s.Log.Warn("publish task failed",
				logger.String("event_id", eventID), logger.String("task_id", task.ID), logger.Error(err))
			continue
		}
		res.Published++
		if synced {
			res.Synchronized++
		}
	}
	s.Metrics.Published(res.Published)
	s.Metrics.Synchronized(res.Synchronized)
	s.Log.Info("scheduler published",
		logger.String("event_id", eventID),
		logger.Int("published", res.Published),
		logger.Int("synchronized", res.Synchronized),
		logger.Int("failed", res.Failed))
	return res, nil
}

// publishTask returns whether the task was synchronized to the calendar.
func (s *TaskService) publishTask(ctx context.Context, t tenant.Tenant, task *db.SchedulerTask, sendInvitations bool) (bool, error) {
	now := s.now()

	if task.PendingDeletion {
		if task.GoogleEventID != nil {
			if err := s.Calendar.DeleteEvent(ctx, derefString(task.GoogleCalendarID), *task.GoogleEventID); err != nil {
				return false, err
			}
		}
		return false, s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return hardDeleteTasks(ctx, tx, []string{task.ID})
		})
	}

	updates := map[string]interface{}{"published_at": now}
	synced := false
	switch {
	case sendInvitations && t.CalendarEnabled && task.AssignedToCrewMemberID != nil:
		if err := s.limiter.Wait(ctx); err != nil {
			return false, err
		}
		if err := s.Calendar.SyncTask(ctx, task.ID, t); err != nil {
			return false, err
		}
		updates["sync_status"] = db.SyncInvited
		updates["invitation_status"] = db.InvitationPending
		synced = true
	case task.AssignedToCrewMemberID == nil && task.GoogleEventID != nil:
		if err := s.Calendar.DeleteEvent(ctx, derefString(task.GoogleCalendarID), *task.GoogleEventID); err != nil {
			return false, err
		}
		updates["sync_status"] = db.SyncPublished
		updates["google_event_id"] = nil
		updates["google_calendar_id"] = nil
		updates["invitation_status"] = nil
	default:
		updates["sync_status"] = db.SyncPublished
	}

	return synced, s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.SchedulerTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
			return err
		}
		return recordActivity(ctx, tx, task.ID, db.ActivityPublished, "task published",
			map[string]interface{}{"sync_status": updates["sync_status"]})
	})
}

type CancelResult struct {
	Reverted int `json:"reverted"`
}

// CancelPendingChanges reverts every DRAFT task in one transaction. Tasks that
// were published before go back to PUBLISHED with the name, notes and dates
// they were published with (staged removals get their quote item link back);
// tasks that never were are deleted.
func (s *TaskService) CancelPendingChanges(ctx context.Context, t tenant.Tenant, eventID string) (*CancelResult, error) {
	res := &CancelResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadEvent(ctx, tx, t, eventID); err != nil {
			return err
		}
		inst, err := findInstance(ctx, tx, eventID)
		if err != nil || inst == nil {
			return err
		}
		var drafts []db.SchedulerTask
		if err := tx.Where("scheduler_instance_id = ? AND sync_status = ?", inst.ID, db.SyncDraft).
			Find(&drafts).Error; err != nil {
			return err
		}

		var remove []string
		for i := range drafts {
			task := &drafts[i]
			wasPublished := task.GoogleEventID != nil || task.PublishedAt != nil
			if !wasPublished {
				remove = append(remove, task.ID)
				continue
			}
			updates := map[string]interface{}{"sync_status": db.SyncPublished}
			if task.PendingDeletion {
				restore, err := canRestoreLink(tx, task)
				if err != nil {
					return err
				}
				if !restore {
					remove = append(remove, task.ID)
					continue
				}
				updates["pending_deletion"] = false
				updates["quote_item_id"] = task.DetachedQuoteItemID
				updates["detached_quote_item_id"] = nil
			}
			if err := restorePublishedValues(ctx, tx, task, updates); err != nil {
				return err
			}
			if err := tx.Model(&db.SchedulerTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("revert task %s: %w", task.ID, err)
			}
			if err := growWindow(ctx, tx, inst, task.StartDate, task.EndDate); err != nil {
				return err
			}
			res.Reverted++
		}
		if err := hardDeleteTasks(ctx, tx, remove); err != nil {
			return err
		}
		res.Reverted += len(remove)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.Reverted(res.Reverted)
	return res, nil
}

// publishedFields are the edits that send a published task back to DRAFT.
var publishedFields = []string{"name", "description", "notes", "start_date", "end_date"}

// restorePublishedValues adds to updates the values task had when it was last
// published, read from the activity written since. task is updated in place.
func restorePublishedValues(ctx context.Context, tx *gorm.DB, task *db.SchedulerTask, updates map[string]interface{}) error {
	var acts []db.TaskActivity
	if err := tx.WithContext(ctx).Where("task_id = ?", task.ID).
		Order("created_at DESC").Find(&acts).Error; err != nil {
		return fmt.Errorf("load activity for %s: %w", task.ID, err)
	}
	prev, err := publishedValues(acts)
	if err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}
	if len(prev) == 0 {
		return nil
	}
	for field, v := range prev {
		updates[field] = v
		switch field {
		case "name":
			task.Name = v.(string)
		case "description":
			task.Description = v.(string)
		case "notes":
			task.Notes = v.(string)
		case "start_date":
			task.StartDate = v.(time.Time)
		case "end_date":
			task.EndDate = v.(time.Time)
		}
	}
	task.DurationDays = DurationDays(task.StartDate, task.EndDate)
	updates["duration_days"] = task.DurationDays
	return nil
}

// publishedValues walks activity newest first up to the last publish. The
// oldest recorded previous value of each field wins.
func publishedValues(acts []db.TaskActivity) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for _, a := range acts {
		if a.Action == db.ActivityPublished {
			break
		}
		if a.Action != db.ActivityUpdated || len(a.Metadata) == 0 {
			continue
		}
		var meta struct {
			Previous map[string]interface{} `json:"previous"`
		}
		if err := json.Unmarshal(a.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("decode activity %s: %w", a.ID, err)
		}
		for _, field := range publishedFields {
			v, ok := meta.Previous[field]
			if !ok {
				continue
			}
			str, _ := v.(string)
			if field != "start_date" && field != "end_date" {
				out[field] = str
				continue
			}
			d, err := time.Parse(time.RFC3339Nano, str)
			if err != nil {
				return nil, fmt.Errorf("activity %s: %s: %w", a.ID, field, err)
			}
			out[field] = DateOnly(d)
		}
	}
	return out, nil
}

// canRestoreLink is false when the detached quote item got a new task meanwhile.
func canRestoreLink(tx *gorm.DB, task *db.SchedulerTask) (bool, error) {
	if task.DetachedQuoteItemID == nil {
		return true, nil
	}
	var n int64
	err := tx.Model(&db.SchedulerTask{}).Where("quote_item_id = ?", *task.DetachedQuoteItemID).Count(&n).Error
	return n == 0, err
}

func (s *TaskService) GetDraftCount(ctx context.Context, t tenant.Tenant, eventID string) (int64, error) {
	if _, err := loadEvent(ctx, s.DB, t, eventID); err != nil {
		return 0, err
	}
	inst, err := findInstance(ctx, s.DB, eventID)
	if err != nil || inst == nil {
		return 0, err
	}
	var n int64
	err = s.DB.WithContext(ctx).Model(&db.SchedulerTask{}).
		Where("scheduler_instance_id = ? AND sync_status = ?", inst.ID, db.SyncDraft).Count(&n).Error
	return n, err
}

// Draft change kinds.
const (
	ChangeNew      = "new"
	ChangeModified = "modified"
	ChangeDeleted  = "deleted"
)

// DraftChange is one row of the pending changes panel. Previous values are
// reconstructed from the activity log and may be incomplete.
type DraftChange struct {
	TaskID               string   `json:"task_id"`
	Name                 string   `json:"name"`
	Kind                 string   `json:"kind"`
	ChangedFields        []string `json:"changed_fields,omitempty"`
	AssigneeName         string   `json:"assignee_name,omitempty"`
	PreviousAssigneeName string   `json:"previous_assignee_name,omitempty"`
}

type DraftSummary struct {
	Count   int           `json:"count"`
	Changes []DraftChange `json:"changes"`
}

const draftSummaryActivityDepth = 10

// GetDraftSummary classifies every DRAFT task as new, modified or deleted.
func (s *TaskService) GetDraftSummary(ctx context.Context, t tenant.Tenant, eventID string) (*DraftSummary, error) {
	if _, err := loadEvent(ctx, s.DB, t, eventID); err != nil {
		return nil, err
	}
	out := &DraftSummary{Changes: []DraftChange{}}
	inst, err := findInstance(ctx, s.DB, eventID)
	if err != nil || inst == nil {
		return out, err
	}
	var drafts []db.SchedulerTask
	if err := s.DB.WithContext(ctx).
		Where("scheduler_instance_id = ? AND sync_status = ?", inst.ID, db.SyncDraft).
		Order("sort_order, start_date").Find(&drafts).Error; err != nil {
		return nil, err
	}
	for i := range drafts {
		task := &drafts[i]
		change := DraftChange{TaskID: task.ID, Name: task.Name, AssigneeName: crewName(ctx, s.DB, task.AssignedToCrewMemberID)}
		switch {
		case task.PendingDeletion:
			change.Kind = ChangeDeleted
		case task.PublishedAt == nil && task.GoogleEventID == nil:
			change.Kind = ChangeNew
		default:
			change.Kind = ChangeModified
		}

		var acts []db.TaskActivity
		if err := s.DB.WithContext(ctx).Where("task_id = ?", task.ID).
			Order("created_at DESC").Limit(draftSummaryActivityDepth).Find(&acts).Error; err != nil {
			s.Log.Warn("draft summary activity lookup failed", logger.String("task_id", task.ID), logger.Error(err))
		}
		change.ChangedFields, change.PreviousAssigneeName = summarizeActivity(acts)
		out.Changes = append(out.Changes, change)
	}
	out.Count = len(out.Changes)
	return out, nil
}

// summarizeActivity walks activity newest first, stopping at the last publish.
func summarizeActivity(acts []db.TaskActivity) ([]string, string) {
	seen := map[string]bool{}
	var prevAssignee string
	for _, a := range acts {
		if a.Action == db.ActivityPublished {
			break
		}
		var meta map[string]interface{}
		if len(a.Metadata) > 0 {
			_ = json.Unmarshal(a.Metadata, &meta)
		}
		switch a.Action {
		case db.ActivityUpdated:
			if fields, ok := meta["fields"].([]interface{}); ok {
				for _, f := range fields {
					if name, ok := f.(string); ok {
						seen[name] = true
					}
				}
			}
		case db.ActivityAssigned, db.ActivityUnassigned:
			if name, ok := meta["previous_assignee_name"].(string); ok && name != "" {
				prevAssignee = name
			}
			seen["assigned_to_crew_member_id"] = true
		}
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields, prevAssignee
}
