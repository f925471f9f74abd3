package services

import (
	"strings"
	"time"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
)

// Field is one optional member of a patch. Set distinguishes "leave alone"
// from "set to the zero value".
type Field[T any] struct {
	Set   bool
	Value T
}

func Some[T any](v T) Field[T] { return Field[T]{Set: true, Value: v} }

// TaskPatch lists the fields a caller wants to change.
type TaskPatch struct {
	Name            Field[string]
	Description     Field[string]
	Notes           Field[string]
	StartDate       Field[time.Time]
	EndDate         Field[time.Time]
	AssigneeID      Field[*string]
	IsCompleted     Field[bool]
	Status          Field[db.TaskStatus]
	ProgressPercent Field[int]
	ChecklistItems  Field[[]db.ChecklistItem]

	// SkipPayroll suppresses the payroll side effects of completion changes.
	SkipPayroll bool
}

// ChangeSet summarizes what ApplyPatch actually changed.
type ChangeSet struct {
	Fields     []string
	Previous   map[string]interface{}
	Dates      bool
	Assignee   bool
	Checklist  bool
	Completion *bool
}

func (c ChangeSet) Empty() bool { return len(c.Fields) == 0 }

func (c *ChangeSet) mark(field string, previous interface{}) {
	c.Fields = append(c.Fields, field)
	if c.Previous == nil {
		c.Previous = map[string]interface{}{}
	}
	c.Previous[field] = previous
}

var validStatuses = map[db.TaskStatus]bool{
	db.TaskPending: true, db.TaskInProgress: true, db.TaskBlocked: true,
	db.TaskCompleted: true, db.TaskCancelled: true,
}

// ApplyPatch returns task with p applied. It does not touch SyncStatus; see
// ResolveSyncStatus.
func ApplyPatch(task db.SchedulerTask, p TaskPatch, now time.Time) (db.SchedulerTask, ChangeSet, error) {
	var cs ChangeSet
	out := task

	if p.Name.Set {
		name := strings.TrimSpace(p.Name.Value)
		if name == "" {
			return task, cs, apperr.Validation("task name is required")
		}
		if name != out.Name {
			cs.mark("name", out.Name)
			out.Name = name
		}
	}
	if p.Description.Set && p.Description.Value != out.Description {
		cs.mark("description", out.Description)
		out.Description = p.Description.Value
	}
	if p.Notes.Set && p.Notes.Value != out.Notes {
		cs.mark("notes", out.Notes)
		out.Notes = p.Notes.Value
	}
	if p.StartDate.Set && !DateOnly(p.StartDate.Value).Equal(DateOnly(out.StartDate)) {
		cs.mark("start_date", out.StartDate)
		out.StartDate = DateOnly(p.StartDate.Value)
		cs.Dates = true
	}
	if p.EndDate.Set && !DateOnly(p.EndDate.Value).Equal(DateOnly(out.EndDate)) {
		cs.mark("end_date", out.EndDate)
		out.EndDate = DateOnly(p.EndDate.Value)
		cs.Dates = true
	}
	if cs.Dates {
		if out.EndDate.Before(out.StartDate) {
			return task, ChangeSet{}, apperr.Validation("end date is before start date")
		}
		out.DurationDays = DurationDays(out.StartDate, out.EndDate)
	}
	if p.AssigneeID.Set && !sameStringPtr(p.AssigneeID.Value, out.AssignedToCrewMemberID) {
		cs.mark("assigned_to_crew_member_id", derefString(out.AssignedToCrewMemberID))
		out.AssignedToCrewMemberID = p.AssigneeID.Value
		cs.Assignee = true
	}
	if p.ChecklistItems.Set {
		cs.mark("checklist_items", len(out.ChecklistItems))
		out.ChecklistItems = p.ChecklistItems.Value
		cs.Checklist = true
	}
	if p.ProgressPercent.Set && p.ProgressPercent.Value != out.ProgressPercent {
		if p.ProgressPercent.Value < 0 || p.ProgressPercent.Value > 100 {
			return task, ChangeSet{}, apperr.Validation("progress must be between 0 and 100")
		}
		cs.mark("progress_percent", out.ProgressPercent)
		out.ProgressPercent = p.ProgressPercent.Value
	}

	wasCompleted := task.Status == db.TaskCompleted
	status := out.Status
	if p.Status.Set {
		if !validStatuses[p.Status.Value] {
			return task, ChangeSet{}, apperr.Validation("unknown task status %q", p.Status.Value)
		}
		status = p.Status.Value
	}
	if p.IsCompleted.Set {
		switch {
		case p.IsCompleted.Value:
			status = db.TaskCompleted
		case status == db.TaskCompleted:
			status = db.TaskPending
		}
	}
	if status != out.Status {
		cs.mark("status", out.Status)
		out.Status = status
	}
	if isCompleted := out.Status == db.TaskCompleted; isCompleted != wasCompleted {
		cs.Completion = &isCompleted
		if isCompleted {
			completedAt := now
			out.CompletedAt = &completedAt
			out.ProgressPercent = 100
		} else {
			out.CompletedAt = nil
			if out.ProgressPercent == 100 {
				out.ProgressPercent = 0
			}
		}
	}
	return out, cs, nil
}

// ResolveSyncStatus decides the sync status after an edit. A published or
// invited task falls back to DRAFT only when something the calendar shows
// changed: name, description, notes or dates. Assignment, checklist and
// completion edits keep the current status.
func ResolveSyncStatus(before, after db.SchedulerTask) db.SyncStatus {
	if before.SyncStatus != db.SyncPublished && before.SyncStatus != db.SyncInvited {
		return after.SyncStatus
	}
	if before.Name != after.Name ||
		before.Description != after.Description ||
		before.Notes != after.Notes ||
		!DateOnly(before.StartDate).Equal(DateOnly(after.StartDate)) ||
		!DateOnly(before.EndDate).Equal(DateOnly(after.EndDate)) {
		return db.SyncDraft
	}
	return before.SyncStatus
}
