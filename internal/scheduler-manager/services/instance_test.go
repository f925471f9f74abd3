package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
)

func TestGetOrCreateInstance_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst, created, err := f.Tasks.GetOrCreateInstance(ctx, f.Tenant, f.Event.ID, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, day(time.January, 1), inst.StartDate)
	assert.Equal(t, day(time.January, 31), inst.EndDate)

	again, created, err := f.Tasks.GetOrCreateInstance(ctx, f.Tenant, f.Event.ID, &DateRange{From: day(time.March, 1), To: day(time.March, 2)})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, inst.ID, again.ID)

	var n int64
	require.NoError(t, f.DB.Model(&db.SchedulerInstance{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestGetOrCreateInstance_OtherTenant(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.Tasks.GetOrCreateInstance(context.Background(), tenant.Tenant{StudioID: "someone-else"}, f.Event.ID, nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateWindow_RejectsShrinkBelowTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.instance(t, day(time.January, 1), day(time.January, 31))
	_, err := f.Tasks.CreateManual(ctx, f.Tenant, f.Event.ID, ManualTaskInput{Stage: "PLANNING", Name: "Brief", DurationDays: 5})
	require.NoError(t, err)

	_, err = f.Tasks.UpdateWindow(ctx, f.Tenant, f.Event.ID, DateRange{From: day(time.January, 10), To: day(time.January, 20)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Contains(t, err.Error(), "cannot shrink period")

	var inst db.SchedulerInstance
	require.NoError(t, f.DB.First(&inst, "event_id = ?", f.Event.ID).Error)
	assert.Equal(t, day(time.January, 1), inst.StartDate.UTC())
	assert.Equal(t, day(time.January, 31), inst.EndDate.UTC())

	updated, err := f.Tasks.UpdateWindow(ctx, f.Tenant, f.Event.ID, DateRange{From: day(time.January, 1), To: day(time.January, 5)})
	require.NoError(t, err)
	assert.Equal(t, day(time.January, 5), updated.EndDate)
}

func TestUpdateWindow_CountsStagedRemovals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.instance(t, day(time.January, 1), day(time.January, 31))
	task := f.itemTask(t, f.Items[0], day(time.January, 1), day(time.January, 5))
	_, err := f.Tasks.Publish(ctx, f.Tenant, f.Event.ID, false)
	require.NoError(t, err)
	_, err = f.Tasks.DeleteTask(ctx, f.Tenant, f.Event.ID, task.ID)
	require.NoError(t, err)

	_, err = f.Tasks.UpdateWindow(ctx, f.Tenant, f.Event.ID, DateRange{From: day(time.January, 10), To: day(time.January, 20)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = f.Tasks.CancelPendingChanges(ctx, f.Tenant, f.Event.ID)
	require.NoError(t, err)
	got := f.reload(t, task.ID)
	assert.False(t, got.PendingDeletion)
	assert.Equal(t, db.SyncPublished, got.SyncStatus)

	var inst db.SchedulerInstance
	require.NoError(t, f.DB.First(&inst, "event_id = ?", f.Event.ID).Error)
	assert.False(t, got.StartDate.Before(inst.StartDate))
	assert.False(t, got.EndDate.After(inst.EndDate))
}

func TestUpdateWindow_CreatesWhenMissing(t *testing.T) {
	f := newFixture(t)
	inst, err := f.Tasks.UpdateWindow(context.Background(), f.Tenant, f.Event.ID, DateRange{From: day(time.May, 1), To: day(time.May, 10)})
	require.NoError(t, err)
	assert.Equal(t, day(time.May, 1), inst.StartDate)

	_, err = f.Tasks.UpdateWindow(context.Background(), f.Tenant, f.Event.ID, DateRange{From: day(time.May, 10), To: day(time.May, 1)})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCheckStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.Tasks.CheckStatus(ctx, f.Tenant, f.Event.ID)
	require.NoError(t, err)
	assert.False(t, st.Exists)

	f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 3))
	st, err = f.Tasks.CheckStatus(ctx, f.Tenant, f.Event.ID)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, int64(1), st.TaskCount)
	assert.Equal(t, int64(1), st.DraftCount)
}

func TestSaveStagedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.Tasks.SaveStagedState(ctx, f.Tenant, f.Event.ID, StagedState{
		ExplicitlyActivatedStageIDs: []byte(`["a","a"]`),
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	inst, err := f.Tasks.SaveStagedState(ctx, f.Tenant, f.Event.ID, StagedState{
		CustomCategoriesBySectionStage: []byte(`{"sec:PRODUCTION":[{"id":"x","name":"Drone"}]}`),
		ExplicitlyActivatedStageIDs:    []byte(`["sec:PRODUCTION"]`),
	})
	require.NoError(t, err)

	var stored db.SchedulerInstance
	require.NoError(t, f.DB.First(&stored, "id = ?", inst.ID).Error)
	assert.JSONEq(t, `["sec:PRODUCTION"]`, string(stored.ExplicitlyActivatedStageIDs))
}
