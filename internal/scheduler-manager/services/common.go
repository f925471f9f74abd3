package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

// Warning describes a side effect that failed without failing the operation.
type Warning struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

func (w Warning) String() string { return w.Op + ": " + w.Message }

// nonFatal runs fn and turns its error into a logged Warning.
func nonFatal(log logger.Logger, op string, fn func() error, fields ...logger.Field) *Warning {
	if err := fn(); err != nil {
		log.Warn(op+" failed", append(fields, logger.Error(err))...)
		return &Warning{Op: op, Message: err.Error()}
	}
	return nil
}

func appendWarning(ws []Warning, w *Warning) []Warning {
	if w == nil {
		return ws
	}
	return append(ws, *w)
}

// loadEvent returns the event only when it belongs to the tenant.
func loadEvent(ctx context.Context, tx *gorm.DB, t tenant.Tenant, eventID string) (*db.Event, error) {
	var ev db.Event
	err := tx.WithContext(ctx).Where("id = ? AND studio_id = ?", eventID, t.StudioID).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("event %s", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	return &ev, nil
}

// findInstance returns nil without error when the event has no instance yet.
func findInstance(ctx context.Context, tx *gorm.DB, eventID string) (*db.SchedulerInstance, error) {
	var inst db.SchedulerInstance
	err := tx.WithContext(ctx).Where("event_id = ?", eventID).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load scheduler instance for event %s: %w", eventID, err)
	}
	return &inst, nil
}

func requireInstance(ctx context.Context, tx *gorm.DB, t tenant.Tenant, eventID string) (*db.Event, *db.SchedulerInstance, error) {
	ev, err := loadEvent(ctx, tx, t, eventID)
	if err != nil {
		return nil, nil, err
	}
	inst, err := findInstance(ctx, tx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if inst == nil {
		return nil, nil, apperr.NotFound("scheduler for event %s", eventID)
	}
	return ev, inst, nil
}

// ensureInstance lazily creates the instance. With no explicit range the
// window starts at the event date and spans windowDays.
func ensureInstance(ctx context.Context, tx *gorm.DB, ev *db.Event, rng *DateRange, windowDays int) (*db.SchedulerInstance, bool, error) {
	inst, err := findInstance(ctx, tx, ev.ID)
	if err != nil || inst != nil {
		return inst, false, err
	}

	window := DateRange{From: DateOnly(ev.EventDate), To: AddDays(ev.EventDate, windowDays)}
	if rng != nil {
		window = rng.normalized()
	}
	if window.To.Before(window.From) {
		return nil, false, apperr.Validation("scheduler window ends before it starts")
	}
	inst = &db.SchedulerInstance{
		StudioID:  ev.StudioID,
		EventID:   ev.ID,
		EventDate: DateOnly(ev.EventDate),
		StartDate: window.From,
		EndDate:   window.To,
	}
	if err := tx.WithContext(ctx).Create(inst).Error; err != nil {
		return nil, false, fmt.Errorf("create scheduler instance: %w", err)
	}
	return inst, true, nil
}

// growWindow widens the instance window so it contains [start, end].
func growWindow(ctx context.Context, tx *gorm.DB, inst *db.SchedulerInstance, start, end time.Time) error {
	updates := map[string]interface{}{}
	if DateOnly(start).Before(inst.StartDate) {
		inst.StartDate = DateOnly(start)
		updates["start_date"] = inst.StartDate
	}
	if DateOnly(end).After(inst.EndDate) {
		inst.EndDate = DateOnly(end)
		updates["end_date"] = inst.EndDate
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(inst).Updates(updates).Error
}

// loadTask loads a task scoped to the instance.
func loadTask(ctx context.Context, tx *gorm.DB, instanceID, taskID string) (*db.SchedulerTask, error) {
	var task db.SchedulerTask
	err := tx.WithContext(ctx).Where("id = ? AND scheduler_instance_id = ?", taskID, instanceID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("task %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	return &task, nil
}

// loadEventQuoteItem checks that the line item belongs to an event quote of the tenant.
func loadEventQuoteItem(ctx context.Context, tx *gorm.DB, t tenant.Tenant, eventID, itemID string) (*db.QuoteItem, error) {
	var item db.QuoteItem
	err := tx.WithContext(ctx).
		Joins("JOIN quotes ON quotes.id = quote_items.quote_id").
		Where("quote_items.id = ? AND quotes.event_id = ? AND quotes.studio_id = ?", itemID, eventID, t.StudioID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("quote item %s", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("load quote item %s: %w", itemID, err)
	}
	return &item, nil
}

func loadCrewMember(ctx context.Context, tx *gorm.DB, t tenant.Tenant, crewID string) (*db.CrewMember, error) {
	var crew db.CrewMember
	err := tx.WithContext(ctx).Where("id = ? AND studio_id = ?", crewID, t.StudioID).First(&crew).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("crew member %s", crewID)
	}
	if err != nil {
		return nil, fmt.Errorf("load crew member %s: %w", crewID, err)
	}
	return &crew, nil
}

func crewName(ctx context.Context, tx *gorm.DB, crewID *string) string {
	if crewID == nil {
		return ""
	}
	var crew db.CrewMember
	if err := tx.WithContext(ctx).Select("name").Where("id = ?", *crewID).First(&crew).Error; err != nil {
		return ""
	}
	return crew.Name
}

func recordActivity(ctx context.Context, tx *gorm.DB, taskID, action, description string, metadata map[string]interface{}) error {
	entry := db.TaskActivity{TaskID: taskID, Action: action, Description: description}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		entry.Metadata = datatypes.JSON(raw)
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

func nextSortOrder(ctx context.Context, tx *gorm.DB, instanceID string, stage db.TaskCategory) (int, error) {
	var max struct{ Max *int }
	err := tx.WithContext(ctx).Model(&db.SchedulerTask{}).
		Select("MAX(sort_order) AS max").
		Where("scheduler_instance_id = ? AND category = ?", instanceID, stage).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max.Max == nil {
		return 0, nil
	}
	return *max.Max + 1, nil
}

// hardDeleteTasks removes task rows after clearing every reference to them.
func hardDeleteTasks(ctx context.Context, tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx = tx.WithContext(ctx)
	if err := tx.Model(&db.SchedulerTask{}).Where("depends_on_task_id IN ?", ids).
		Update("depends_on_task_id", nil).Error; err != nil {
		return fmt.Errorf("clear task dependencies: %w", err)
	}
	if err := tx.Model(&db.ServiceSale{}).Where("scheduler_task_id IN ?", ids).
		Update("scheduler_task_id", nil).Error; err != nil {
		return fmt.Errorf("clear service sale references: %w", err)
	}
	if err := tx.Where("task_id IN ?", ids).Delete(&db.TaskActivity{}).Error; err != nil {
		return fmt.Errorf("delete task activity: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&db.SchedulerTask{}).Error; err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return nil
}

// withTimeout races fn against d. Used for the heavy detail reads only.
func withTimeout[T any](ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%s timed out after %s: %w", op, d, ctx.Err())
	}
}

func strPtr(s string) *string { return &s }

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
