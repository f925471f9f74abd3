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
)

func countPayroll(t *testing.T, f *fixture) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.DB.Model(&db.Payroll{}).Count(&n).Error)
	return n
}

func TestCompletionDrivesPayroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 2))
	_, err := f.Tasks.AssignCrew(ctx, f.Tenant, f.Event.ID, task.ID, &f.Crew.ID)
	require.NoError(t, err)

	res, err := f.Tasks.UpdateTask(ctx, f.Tenant, f.Event.ID, task.ID, TaskPatch{IsCompleted: Some(true)})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.Payroll)
	assert.Equal(t, 1000.0, res.Payroll.TotalAmount)
	assert.Equal(t, db.PayrollStatusPending, res.Payroll.Status)
	require.Len(t, res.Payroll.Services, 1)
	assert.Equal(t, 2, res.Payroll.Services[0].Quantity)
	first := res.Payroll.ID

	again, err := f.Payroll.CreateFromCompletedTask(ctx, f.Tenant, f.Event.ID, task.ID, nil)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first, again.Payroll.ID)
	assert.Equal(t, int64(1), countPayroll(t, f))

	res, err = f.Tasks.UpdateTask(ctx, f.Tenant, f.Event.ID, task.ID, TaskPatch{IsCompleted: Some(false)})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Zero(t, countPayroll(t, f))

	var services int64
	require.NoError(t, f.DB.Model(&db.PayrollService{}).Count(&services).Error)
	assert.Zero(t, services)

	deleted, err := f.Payroll.DeleteFromUncompletedTask(ctx, f.Tenant, f.Event.ID, task.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteFromUncompletedTask_RefusesProcessedPayroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 2))
	_, err := f.Tasks.AssignCrew(ctx, f.Tenant, f.Event.ID, task.ID, &f.Crew.ID)
	require.NoError(t, err)
	out, err := f.Payroll.CreateFromCompletedTask(ctx, f.Tenant, f.Event.ID, task.ID, nil)
	require.NoError(t, err)
	require.NoError(t, f.DB.Model(out.Payroll).Update("status", db.PayrollStatusPaid).Error)

	_, err = f.Payroll.DeleteFromUncompletedTask(ctx, f.Tenant, f.Event.ID, task.ID)
	assert.True(t, errors.Is(err, apperr.ErrFinancialIntegrity))
	assert.Equal(t, int64(1), countPayroll(t, f))

	res, err := f.Tasks.UpdateTask(ctx, f.Tenant, f.Event.ID, task.ID, TaskPatch{IsCompleted: Some(true)})
	require.NoError(t, err)
	res, err = f.Tasks.UpdateTask(ctx, f.Tenant, f.Event.ID, task.ID, TaskPatch{IsCompleted: Some(false)})
	require.NoError(t, err)
	assert.Equal(t, db.TaskPending, res.Task.Status, "the task change stands")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "payroll.delete", res.Warnings[0].Op)
	assert.Equal(t, int64(1), countPayroll(t, f))
}

func TestCreateFromCompletedTask_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	noCrew := f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 2))
	_, err := f.Payroll.CreateFromCompletedTask(ctx, f.Tenant, f.Event.ID, noCrew.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "no personnel assigned")

	noCost := f.itemTask(t, f.Items[1], day(time.January, 2), day(time.January, 2))
	_, err = f.Tasks.AssignCrew(ctx, f.Tenant, f.Event.ID, noCost.ID, &f.Crew.ID)
	require.NoError(t, err)
	_, err = f.Payroll.CreateFromCompletedTask(ctx, f.Tenant, f.Event.ID, noCost.ID, nil)
	assert.Contains(t, err.Error(), "no cost defined")

	cost, qty := 80.0, 3
	out, err := f.Payroll.CreateFromCompletedTask(ctx, f.Tenant, f.Event.ID, noCost.ID, &ItemData{Cost: &cost, Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 240.0, out.Payroll.TotalAmount)

	res, err := f.Tasks.UpdateTask(ctx, f.Tenant, f.Event.ID, noCrew.ID, TaskPatch{IsCompleted: Some(true)})
	require.NoError(t, err)
	assert.Equal(t, db.TaskCompleted, res.Task.Status)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "payroll.create", res.Warnings[0].Op)
}

func TestCompletionSkipPayroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 2))
	_, err := f.Tasks.AssignCrew(ctx, f.Tenant, f.Event.ID, task.ID, &f.Crew.ID)
	require.NoError(t, err)

	_, err = f.Tasks.UpdateTask(ctx, f.Tenant, f.Event.ID, task.ID, TaskPatch{IsCompleted: Some(true), SkipPayroll: true})
	require.NoError(t, err)
	assert.Zero(t, countPayroll(t, f))
}

func TestResolveActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	oldest, err := resolveActor(ctx, f.DB, f.Tenant)
	require.NoError(t, err)
	assert.Equal(t, "Owner", oldest.FullName)

	user := db.User{FullName: "Carla", Email: "carla@example.com"}
	require.NoError(t, f.DB.Create(&user).Error)
	created, err := resolveActor(ctx, f.DB, f.Tenant.WithActor(user.ID))
	require.NoError(t, err)
	assert.Equal(t, "Carla", created.FullName)
	require.NotNil(t, created.UserID)

	reused, err := resolveActor(ctx, f.DB, f.Tenant.WithActor(user.ID))
	require.NoError(t, err)
	assert.Equal(t, created.ID, reused.ID)

	fallback, err := resolveActor(ctx, f.DB, f.Tenant.WithActor("ghost"))
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, fallback.ID)

	require.NoError(t, f.DB.Model(&db.StudioUser{}).Where("1 = 1").Update("is_active", false).Error)
	_, err = resolveActor(ctx, f.DB, f.Tenant)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
