package models

import "time"

// Calendar command types exchanged between the scheduler manager and the
// calendar worker.
const (
	CommandSyncTask    = "sync_task"
	CommandDeleteEvent = "delete_event"
)

// Calendar result statuses.
const (
	ResultCompleted = "COMPLETED"
	ResultFailed    = "FAILED"
)

// CalendarAttendee is the crew member invited to a task event.
type CalendarAttendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CalendarCommand asks the worker to create/update or delete one calendar event.
type CalendarCommand struct {
	CommandID        string            `json:"command_id"`
	Type             string            `json:"type"`
	StudioSlug       string            `json:"studio_slug"`
	TaskID           string            `json:"task_id,omitempty"`
	Title            string            `json:"title,omitempty"`
	Description      string            `json:"description,omitempty"`
	StartDate        *time.Time        `json:"start_date,omitempty"`
	EndDate          *time.Time        `json:"end_date,omitempty"`
	Attendee         *CalendarAttendee `json:"attendee,omitempty"`
	GoogleEventID    string            `json:"google_event_id,omitempty"`
	GoogleCalendarID string            `json:"google_calendar_id,omitempty"`
	IssuedAt         time.Time         `json:"issued_at"`
}

// CalendarResult is the worker's answer to a CalendarCommand.
type CalendarResult struct {
	CommandID        string `json:"command_id"`
	Type             string `json:"type"`
	TaskID           string `json:"task_id,omitempty"`
	Status           string `json:"status"`
	GoogleEventID    string `json:"google_event_id,omitempty"`
	GoogleCalendarID string `json:"google_calendar_id,omitempty"`
	Error            string `json:"error,omitempty"`
}
