package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/pkg/logger"
)

func TestResultService_HandleResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 2))
	svc := NewResultService(f.DB, nil, logger.NewNop(), nil)

	t.Run("completed stores calendar ids", func(t *testing.T) {
		raw := `{"command_id":"c1","type":"sync_task","task_id":"` + task.ID + `","status":"COMPLETED","google_event_id":"g-1","google_calendar_id":"primary"}`
		require.NoError(t, svc.HandleResult(ctx, []byte(raw)))
		got := f.reload(t, task.ID)
		require.NotNil(t, got.GoogleEventID)
		assert.Equal(t, "g-1", *got.GoogleEventID)
		require.NotNil(t, got.GoogleCalendarID)
		assert.Equal(t, "primary", *got.GoogleCalendarID)
	})

	t.Run("failed marks invitation error", func(t *testing.T) {
		raw := `{"command_id":"c2","type":"sync_task","task_id":"` + task.ID + `","status":"FAILED","error":"quota"}`
		require.NoError(t, svc.HandleResult(ctx, []byte(raw)))
		got := f.reload(t, task.ID)
		require.NotNil(t, got.InvitationStatus)
		assert.Equal(t, db.InvitationError, *got.InvitationStatus)
		assert.Equal(t, "g-1", *got.GoogleEventID)
	})

	t.Run("delete results leave tasks alone", func(t *testing.T) {
		raw := `{"command_id":"c3","type":"delete_event","status":"FAILED","google_event_id":"g-1"}`
		assert.NoError(t, svc.HandleResult(ctx, []byte(raw)))
	})

	t.Run("unknown task is ignored", func(t *testing.T) {
		raw := `{"command_id":"c4","type":"sync_task","task_id":"missing","status":"COMPLETED","google_event_id":"g-9"}`
		assert.NoError(t, svc.HandleResult(ctx, []byte(raw)))
	})

	t.Run("invalid payload is rejected", func(t *testing.T) {
		assert.Error(t, svc.HandleResult(ctx, []byte(`{"type":"sync_task","status":"DONE"}`)))
		assert.Error(t, svc.HandleResult(ctx, []byte(`not json`)))
	})
}
