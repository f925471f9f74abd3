package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/events"
	"studio-scheduler-service/pkg/logger"
)

type MockWriter struct{ mock.Mock }

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *MockWriter) Close() error { return nil }

func TestDigestService_RunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := new(MockWriter)

	svc, err := NewDigestService(ctx, f.DB, w, "", logger.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDigestCron, svc.CronExpr)
	svc.now = func() time.Time { return day(time.March, 1) }

	n, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	w.AssertNumberOfCalls(t, "WriteMessages", 0)

	first := f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 2))
	f.itemTask(t, f.Items[1], day(time.January, 3), day(time.January, 3))
	require.NoError(t, f.DB.Model(&db.SchedulerTask{}).Where("id = ?", first.ID).Update("sync_status", db.SyncPublished).Error)

	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).([]kafka.Message)
	}).Return(nil).Once()

	n, err = svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sent, 1)
	assert.Equal(t, f.Event.ID, string(sent[0].Key))

	var payload events.DraftDigestPayload
	require.NoError(t, json.Unmarshal(sent[0].Value, &payload))
	assert.Equal(t, int64(1), payload.DraftCount)
	assert.Equal(t, f.Tenant.StudioID, payload.StudioID)
	assert.True(t, payload.GeneratedAt.Equal(day(time.March, 1)))
	w.AssertExpectations(t)
}

func TestDigestService_RunOnceWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 2))

	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(assert.AnError).Once()
	svc, err := NewDigestService(ctx, f.DB, w, "*/5 * * * *", logger.NewNop(), nil)
	require.NoError(t, err)

	_, err = svc.RunOnce(ctx)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDigestService_StartRejectsBadCron(t *testing.T) {
	f := newFixture(t)
	svc, err := NewDigestService(context.Background(), f.DB, new(MockWriter), "not a cron", logger.NewNop(), nil)
	require.NoError(t, err)
	assert.Error(t, svc.Start())
	svc.Stop()
}
