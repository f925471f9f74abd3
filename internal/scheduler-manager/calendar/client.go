// Package calendar is the scheduler's side of the external calendar
// integration. Commands travel to the calendar worker over Kafka.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"studio-scheduler-service/internal/models"
	"studio-scheduler-service/internal/scheduler-manager/db"
	smKafka "studio-scheduler-service/internal/scheduler-manager/kafka"
	"studio-scheduler-service/internal/scheduler-manager/metrics"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

// Client creates/updates and deletes the calendar event tied to a task.
type Client interface {
	SyncTask(ctx context.Context, taskID string, t tenant.Tenant) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

const writeTimeout = 10 * time.Second

// Dispatcher publishes calendar commands for the calendar worker.
type Dispatcher struct {
	DB      *gorm.DB
	Writer  smKafka.MessageWriter
	Log     logger.Logger
	Metrics *metrics.Metrics
	now     func() time.Time
}

func NewDispatcher(gormDB *gorm.DB, writer smKafka.MessageWriter, log logger.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{DB: gormDB, Writer: writer, Log: log, Metrics: m, now: time.Now}
}

// SyncTask loads the task and its crew member and publishes a sync command.
func (d *Dispatcher) SyncTask(ctx context.Context, taskID string, t tenant.Tenant) error {
	var task db.SchedulerTask
	if err := d.DB.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("task %s not found for calendar sync", taskID)
		}
		return fmt.Errorf("load task %s: %w", taskID, err)
	}
	if task.AssignedToCrewMemberID == nil {
		return fmt.Errorf("task %s has no crew member to invite", taskID)
	}
	var crew db.CrewMember
	if err := d.DB.WithContext(ctx).First(&crew, "id = ? AND studio_id = ?", *task.AssignedToCrewMemberID, t.StudioID).Error; err != nil {
		return fmt.Errorf("load crew member %s: %w", *task.AssignedToCrewMemberID, err)
	}
	if crew.Email == "" {
		return fmt.Errorf("crew member %s has no email", crew.ID)
	}

	start, end := task.StartDate, task.EndDate
	cmd := models.CalendarCommand{
		Type:        models.CommandSyncTask,
		StudioSlug:  t.Slug,
		TaskID:      task.ID,
		Title:       task.Name,
		Description: task.Description,
		StartDate:   &start,
		EndDate:     &end,
		Attendee:    &models.CalendarAttendee{Name: crew.Name, Email: crew.Email},
	}
	if task.GoogleEventID != nil {
		cmd.GoogleEventID = *task.GoogleEventID
	}
	if task.GoogleCalendarID != nil {
		cmd.GoogleCalendarID = *task.GoogleCalendarID
	}
	return d.send(ctx, cmd)
}

// DeleteEvent publishes a delete command for an existing calendar event.
func (d *Dispatcher) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if eventID == "" {
		return errors.New("calendar event id is empty")
	}
	return d.send(ctx, models.CalendarCommand{
		Type:             models.CommandDeleteEvent,
		GoogleEventID:    eventID,
		GoogleCalendarID: calendarID,
	})
}

func (d *Dispatcher) send(ctx context.Context, cmd models.CalendarCommand) error {
	cmd.CommandID = uuid.NewString()
	cmd.IssuedAt = d.now().UTC()
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal calendar command: %w", err)
	}

	key := cmd.TaskID
	if key == "" {
		key = cmd.GoogleEventID
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := d.Writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		d.Metrics.CalendarCommand(cmd.Type, "error")
		return fmt.Errorf("dispatch %s command: %w", cmd.Type, err)
	}
	d.Metrics.CalendarCommand(cmd.Type, "ok")
	d.Log.Debug("calendar command dispatched",
		logger.String("command_id", cmd.CommandID),
		logger.String("type", cmd.Type),
		logger.String("task_id", cmd.TaskID))
	return nil
}

// Noop is used when no calendar transport is configured.
type Noop struct{}

func (Noop) SyncTask(context.Context, string, tenant.Tenant) error { return nil }
func (Noop) DeleteEvent(context.Context, string, string) error     { return nil }
