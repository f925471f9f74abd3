package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
)

func publishedTask() db.SchedulerTask {
	crew := "crew-1"
	return db.SchedulerTask{
		Name:                   "Shoot",
		Description:            "Ceremony",
		Notes:                  "bring drone",
		StartDate:              day(time.January, 1),
		EndDate:                day(time.January, 2),
		DurationDays:           2,
		Category:               db.CategoryProduction,
		Status:                 db.TaskPending,
		SyncStatus:             db.SyncPublished,
		AssignedToCrewMemberID: &crew,
	}
}

func TestResolveSyncStatus_RevertsOnVisibleChanges(t *testing.T) {
	other := "crew-2"
	tests := []struct {
		name  string
		patch TaskPatch
		want  db.SyncStatus
	}{
		{"name", TaskPatch{Name: Some("Shoot day")}, db.SyncDraft},
		{"description", TaskPatch{Description: Some("Reception")}, db.SyncDraft},
		{"notes", TaskPatch{Notes: Some("")}, db.SyncDraft},
		{"start date", TaskPatch{StartDate: Some(day(time.January, 2))}, db.SyncDraft},
		{"end date", TaskPatch{EndDate: Some(day(time.January, 3))}, db.SyncDraft},
		{"assignee only", TaskPatch{AssigneeID: Some(&other)}, db.SyncPublished},
		{"checklist only", TaskPatch{ChecklistItems: Some([]db.ChecklistItem{{ID: "1", Label: "x"}})}, db.SyncPublished},
		{"completion only", TaskPatch{IsCompleted: Some(true)}, db.SyncPublished},
		{"same name", TaskPatch{Name: Some("Shoot")}, db.SyncPublished},
	}
	for _, invited := range []bool{false, true} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				before := publishedTask()
				want := tt.want
				if invited {
					before.SyncStatus = db.SyncInvited
					if want == db.SyncPublished {
						want = db.SyncInvited
					}
				}
				after, _, err := ApplyPatch(before, tt.patch, day(time.February, 1))
				require.NoError(t, err)
				assert.Equal(t, want, ResolveSyncStatus(before, after))
			})
		}
	}
}

func TestResolveSyncStatus_DraftStaysDraft(t *testing.T) {
	before := publishedTask()
	before.SyncStatus = db.SyncDraft
	after, _, err := ApplyPatch(before, TaskPatch{Name: Some("Other")}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, db.SyncDraft, ResolveSyncStatus(before, after))
}

func TestApplyPatch_RecomputesDuration(t *testing.T) {
	after, cs, err := ApplyPatch(publishedTask(), TaskPatch{EndDate: Some(day(time.January, 10))}, time.Now())
	require.NoError(t, err)
	assert.True(t, cs.Dates)
	assert.Equal(t, 10, after.DurationDays)
	assert.Equal(t, DurationDays(after.StartDate, after.EndDate), after.DurationDays)
}

func TestApplyPatch_Validation(t *testing.T) {
	_, _, err := ApplyPatch(publishedTask(), TaskPatch{EndDate: Some(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))}, time.Now())
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, _, err = ApplyPatch(publishedTask(), TaskPatch{Name: Some("   ")}, time.Now())
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, _, err = ApplyPatch(publishedTask(), TaskPatch{Status: Some(db.TaskStatus("DONE"))}, time.Now())
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestApplyPatch_Completion(t *testing.T) {
	now := day(time.February, 1)
	after, cs, err := ApplyPatch(publishedTask(), TaskPatch{IsCompleted: Some(true)}, now)
	require.NoError(t, err)
	require.NotNil(t, cs.Completion)
	assert.True(t, *cs.Completion)
	assert.Equal(t, db.TaskCompleted, after.Status)
	assert.Equal(t, 100, after.ProgressPercent)
	require.NotNil(t, after.CompletedAt)
	assert.Equal(t, now, *after.CompletedAt)

	again, cs, err := ApplyPatch(after, TaskPatch{IsCompleted: Some(true)}, now)
	require.NoError(t, err)
	assert.Nil(t, cs.Completion)
	assert.Equal(t, after.CompletedAt, again.CompletedAt)

	reopened, cs, err := ApplyPatch(after, TaskPatch{IsCompleted: Some(false)}, now)
	require.NoError(t, err)
	require.NotNil(t, cs.Completion)
	assert.False(t, *cs.Completion)
	assert.Equal(t, db.TaskPending, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)
	assert.Equal(t, 0, reopened.ProgressPercent)
}

func TestApplyPatch_UnsetFieldsAreUntouched(t *testing.T) {
	before := publishedTask()
	after, cs, err := ApplyPatch(before, TaskPatch{}, time.Now())
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.Equal(t, before, after)
}
