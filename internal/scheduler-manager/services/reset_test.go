package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-scheduler-service/internal/scheduler-manager/db"
)

func TestClearScheduler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.instance(t, day(time.January, 1), day(time.January, 31))

	linked := f.itemTask(t, f.Items[0], day(time.January, 2), day(time.January, 2))
	manual, err := f.Tasks.CreateManual(ctx, f.Tenant, f.Event.ID, ManualTaskInput{Stage: "PLANNING", Name: "Brief", DurationDays: 1})
	require.NoError(t, err)
	require.NoError(t, f.DB.Model(&db.SchedulerTask{}).Where("id = ?", manual.ID).
		Updates(map[string]interface{}{"depends_on_task_id": linked.ID, "google_event_id": "g-9", "google_calendar_id": "cal"}).Error)
	sale := db.ServiceSale{StudioID: f.Tenant.StudioID, SchedulerTaskID: &linked.ID, Amount: 50}
	require.NoError(t, f.DB.Create(&sale).Error)
	_, err = f.Cats.Create(ctx, f.Tenant, f.Event.ID, CategoryInput{SectionID: "sec", Stage: "PLANNING", Name: "Extras"})
	require.NoError(t, err)
	_, err = f.Tasks.SaveStagedState(ctx, f.Tenant, f.Event.ID, StagedState{ExplicitlyActivatedStageIDs: []byte(`["sec:PLANNING"]`)})
	require.NoError(t, err)

	f.Calendar.On("DeleteEvent", "cal", "g-9").Return(nil).Once()

	res, err := f.Tasks.ClearScheduler(ctx, f.Tenant, f.Event.ID)
	require.NoError(t, err)
	f.Tasks.Wait()
	assert.Equal(t, 2, res.DeletedTasks)
	assert.Equal(t, int64(1), res.DeletedCategories)
	assert.Empty(t, res.Warnings)
	f.Calendar.AssertExpectations(t)

	var tasks, activities int64
	require.NoError(t, f.DB.Model(&db.SchedulerTask{}).Count(&tasks).Error)
	require.NoError(t, f.DB.Model(&db.TaskActivity{}).Count(&activities).Error)
	assert.Zero(t, tasks)
	assert.Zero(t, activities)

	var storedSale db.ServiceSale
	require.NoError(t, f.DB.First(&storedSale, "id = ?", sale.ID).Error)
	assert.Nil(t, storedSale.SchedulerTaskID)

	var inst db.SchedulerInstance
	require.NoError(t, f.DB.First(&inst, "event_id = ?", f.Event.ID).Error)
	assert.Equal(t, "null", string(inst.ExplicitlyActivatedStageIDs))

	created, err := f.Tasks.SyncQuoteTasks(ctx, f.Tenant, f.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}
