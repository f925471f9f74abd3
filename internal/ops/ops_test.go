package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/services"
	"studio-scheduler-service/pkg/logger"
)

type MockWriter struct{ mock.Mock }

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(msgs).Error(0)
}

func (m *MockWriter) Close() error { return nil }

func run(t *testing.T, dsn string, w *MockWriter, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot(&Flags{}, &App{Log: logger.NewNop(), CommandWriter: w, DigestWriter: w})
	root.Writer = &out
	err := root.Run(context.Background(), append([]string{"scheduler-ops", "--db-type", "sqlite", "--db-dsn", dsn}, args...))
	return out.String(), err
}

func seed(t *testing.T, dsn string) (db.Event, db.SchedulerTask) {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	defer func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	studio := db.Studio{Slug: "lumen", Name: "Lumen"}
	require.NoError(t, gormDB.Create(&studio).Error)
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := db.Event{StudioID: studio.ID, Name: "Wedding", EventDate: day}
	require.NoError(t, gormDB.Create(&ev).Error)
	inst := db.SchedulerInstance{StudioID: studio.ID, EventID: ev.ID, EventDate: day, StartDate: day, EndDate: day.AddDate(0, 0, 30)}
	require.NoError(t, gormDB.Create(&inst).Error)
	task := db.SchedulerTask{SchedulerInstanceID: inst.ID, Name: "Editing", StartDate: day, EndDate: day, DurationDays: 1,
		Category: db.CategoryPlanning, Status: db.TaskPending, SyncStatus: db.SyncDraft}
	require.NoError(t, gormDB.Create(&task).Error)
	return ev, task
}

func TestOpsCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ops.db")
	w := new(MockWriter)

	out, err := run(t, dsn, w, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated")

	ev, task := seed(t, dsn)

	out, err = run(t, dsn, w, "drafts", "--studio", "lumen", "--event", ev.ID, "--json")
	require.NoError(t, err)
	var sum services.DraftSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 1, sum.Count)
	require.Len(t, sum.Changes, 1)
	assert.Equal(t, task.ID, sum.Changes[0].TaskID)

	w.On("WriteMessages", mock.Anything).Return(nil).Once()
	out, err = run(t, dsn, w, "digest")
	require.NoError(t, err)
	assert.Contains(t, out, "published digest for 1 events")
	w.AssertExpectations(t)

	_, err = run(t, dsn, w, "reset", "--studio", "lumen", "--event", ev.ID)
	assert.ErrorContains(t, err, "--yes")

	out, err = run(t, dsn, w, "reset", "--studio", "lumen", "--event", ev.ID, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 tasks")

	out, err = run(t, dsn, w, "drafts", "--studio", "lumen", "--event", ev.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending changes")

	_, err = run(t, dsn, w, "drafts", "--studio", "missing", "--event", ev.ID)
	assert.Error(t, err)
}
