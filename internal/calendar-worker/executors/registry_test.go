package executors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-scheduler-service/internal/models"
	"studio-scheduler-service/pkg/logger"
)

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(ExecutorTypeLog, NewLogExecutor(logger.NewNop()))

	testCases := []struct {
		name         string
		executorType string
		expectError  bool
	}{
		{name: "LogExecutor", executorType: ExecutorTypeLog},
		{name: "UnknownExecutor", executorType: "unknown-type-for-testing", expectError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			executor, err := r.Get(tc.executorType)
			if tc.expectError {
				assert.Nil(t, executor)
				assert.EqualError(t, err, "no executor registered for type: "+tc.executorType)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &LogExecutor{}, executor)
		})
	}
	assert.Equal(t, []string{ExecutorTypeLog}, r.Types())
}

func TestLogExecutor(t *testing.T) {
	e := NewLogExecutor(nil)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	out, err := e.Execute(ctx, models.CalendarCommand{
		CommandID: "c1", Type: models.CommandSyncTask, TaskID: "t1", Title: "Shoot", StartDate: &start, EndDate: &start,
		Attendee: &models.CalendarAttendee{Name: "Ana", Email: "ana@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "log-t1", out.GoogleEventID)
	assert.Equal(t, "log", out.GoogleCalendarID)

	out, err = e.Execute(ctx, models.CalendarCommand{CommandID: "c2", Type: models.CommandSyncTask, TaskID: "t1", GoogleEventID: "g-7"})
	require.NoError(t, err)
	assert.Equal(t, "g-7", out.GoogleEventID)

	_, err = e.Execute(ctx, models.CalendarCommand{CommandID: "c3", Type: models.CommandSyncTask})
	assert.Error(t, err)
	_, err = e.Execute(ctx, models.CalendarCommand{CommandID: "c4", Type: "rename"})
	assert.ErrorContains(t, err, "unsupported command type")
}
