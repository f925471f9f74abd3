package executors

import (
	"context"
	"fmt"

	"studio-scheduler-service/internal/models"
	"studio-scheduler-service/pkg/logger"
)

const logCalendarID = "log"

// LogExecutor records commands without a calendar backend. Synced tasks get
// a stable synthetic event id so results round-trip in development.
type LogExecutor struct {
	Log logger.Logger
}

func NewLogExecutor(log logger.Logger) *LogExecutor {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogExecutor{Log: log}
}

func (e *LogExecutor) Execute(ctx context.Context, cmd models.CalendarCommand) (Outcome, error) {
	switch cmd.Type {
	case models.CommandSyncTask:
		if cmd.TaskID == "" {
			return Outcome{}, fmt.Errorf("sync command %s has no task id", cmd.CommandID)
		}
		eventID := cmd.GoogleEventID
		if eventID == "" {
			eventID = "log-" + cmd.TaskID
		}
		fields := []logger.Field{
			logger.String("command_id", cmd.CommandID), logger.String("task_id", cmd.TaskID),
			logger.String("title", cmd.Title), logger.String("studio", cmd.StudioSlug),
		}
		if cmd.Attendee != nil {
			fields = append(fields, logger.String("attendee", cmd.Attendee.Email))
		}
		e.Log.Info("calendar event upserted", fields...)
		return Outcome{GoogleEventID: eventID, GoogleCalendarID: logCalendarID}, nil
	case models.CommandDeleteEvent:
		e.Log.Info("calendar event deleted",
			logger.String("command_id", cmd.CommandID), logger.String("google_event_id", cmd.GoogleEventID))
		return Outcome{GoogleEventID: cmd.GoogleEventID, GoogleCalendarID: cmd.GoogleCalendarID}, nil
	}
	return Outcome{}, fmt.Errorf("unsupported command type %q", cmd.Type)
}
