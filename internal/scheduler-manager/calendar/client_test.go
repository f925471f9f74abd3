package calendar

import (
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

	"studio-scheduler-service/internal/models"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

type MockWriter struct{ mock.Mock }

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}
func (m *MockWriter) Close() error { return nil }

func setup(t *testing.T) (*gorm.DB, tenant.Tenant) {
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cal.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(db.AllModels()...))
	return gormDB, tenant.Tenant{StudioID: "s1", Slug: "lumen", CalendarEnabled: true}
}

func TestDispatcher_SyncTask(t *testing.T) {
	gormDB, tn := setup(t)
	crew := db.CrewMember{StudioID: "s1", Name: "Ana", Email: "ana@example.com"}
	require.NoError(t, gormDB.Create(&crew).Error)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	task := db.SchedulerTask{Name: "Shoot", StartDate: day, EndDate: day, AssignedToCrewMemberID: &crew.ID}
	require.NoError(t, gormDB.Create(&task).Error)

	w := new(MockWriter)
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).([]kafka.Message)
	}).Return(nil).Once()

	d := NewDispatcher(gormDB, w, logger.NewNop(), nil)
	require.NoError(t, d.SyncTask(context.Background(), task.ID, tn))
	w.AssertExpectations(t)

	require.Len(t, sent, 1)
	var cmd models.CalendarCommand
	require.NoError(t, json.Unmarshal(sent[0].Value, &cmd))
	assert.Equal(t, models.CommandSyncTask, cmd.Type)
	assert.Equal(t, "lumen", cmd.StudioSlug)
	assert.Equal(t, "ana@example.com", cmd.Attendee.Email)
	assert.Equal(t, task.ID, string(sent[0].Key))
	assert.NotEmpty(t, cmd.CommandID)
}

func TestDispatcher_SyncTaskWithoutCrew(t *testing.T) {
	gormDB, tn := setup(t)
	task := db.SchedulerTask{Name: "Shoot"}
	require.NoError(t, gormDB.Create(&task).Error)

	d := NewDispatcher(gormDB, new(MockWriter), logger.NewNop(), nil)
	assert.ErrorContains(t, d.SyncTask(context.Background(), task.ID, tn), "no crew member")
}

func TestDispatcher_DeleteEventWriteFailure(t *testing.T) {
	gormDB, _ := setup(t)
	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	d := NewDispatcher(gormDB, w, logger.NewNop(), nil)
	assert.ErrorIs(t, d.DeleteEvent(context.Background(), "primary", "evt-1"), assert.AnError)
	assert.Error(t, d.DeleteEvent(context.Background(), "primary", ""))
}
