package events

import "time"

// DraftDigestPayload is published per event with pending scheduler changes.
type DraftDigestPayload struct {
	StudioID    string    `json:"studio_id"`
	EventID     string    `json:"event_id"`
	InstanceID  string    `json:"instance_id"`
	DraftCount  int64     `json:"draft_count"`
	GeneratedAt time.Time `json:"generated_at"`
}
