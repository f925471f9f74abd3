package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

// QuoteItemTaskInput creates the task of one quote line item.
type QuoteItemTaskInput struct {
	ItemID      string
	Name        string
	StartDate   time.Time
	EndDate     time.Time
	AssigneeID  *string
	Notes       string
	IsCompleted bool
	Category    string
}

// TaskResult is a mutated task plus any side-effect outcome.
type TaskResult struct {
	Task     *db.SchedulerTask `json:"task"`
	Payroll  *db.Payroll       `json:"payroll,omitempty"`
	Warnings []Warning         `json:"warnings,omitempty"`
}

// CreateFromQuoteItem creates the single task of a quote line item.
func (s *TaskService) CreateFromQuoteItem(ctx context.Context, t tenant.Tenant, eventID string, in QuoteItemTaskInput) (*TaskResult, error) {
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, apperr.Validation("start and end dates are required")
	}
	start, end := DateOnly(in.StartDate), DateOnly(in.EndDate)
	if end.Before(start) {
		return nil, apperr.Validation("end date is before start date")
	}
	stage, _ := db.ParseCategory(in.Category)

	var task db.SchedulerTask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvent(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		item, err := loadEventQuoteItem(ctx, tx, t, eventID, in.ItemID)
		if err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&db.SchedulerTask{}).Where("quote_item_id = ?", item.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Conflict("quote item %s already has a task", item.ID)
		}
		inst, _, err := ensureInstance(ctx, tx, ev, nil, s.opts.DefaultWindowDays)
		if err != nil {
			return err
		}

		assignee := item.AssignedToCrewMemberID
		if in.AssigneeID != nil {
			if _, err := loadCrewMember(ctx, tx, t, *in.AssigneeID); err != nil {
				return err
			}
			assignee = in.AssigneeID
		}
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = item.Name
		}
		order, err := nextSortOrder(ctx, tx, inst.ID, stage)
		if err != nil {
			return err
		}

		task = db.SchedulerTask{
			SchedulerInstanceID:    inst.ID,
			Name:                   name,
			StartDate:              start,
			EndDate:                end,
			DurationDays:           DurationDays(start, end),
			Category:               stage,
			Status:                 db.TaskPending,
			Notes:                  in.Notes,
			SortOrder:              order,
			AssignedToCrewMemberID: assignee,
			QuoteItemID:            &item.ID,
			SyncStatus:             db.SyncDraft,
		}
		if in.IsCompleted {
			now := s.now()
			task.Status, task.CompletedAt, task.ProgressPercent = db.TaskCompleted, &now, 100
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		if err := growWindow(ctx, tx, inst, start, end); err != nil {
			return err
		}
		return recordActivity(ctx, tx, task.ID, db.ActivityCreated, "task created from quote item", map[string]interface{}{"quote_item_id": item.ID})
	})
	if err != nil {
		return nil, err
	}

	res := &TaskResult{Task: &task}
	if in.IsCompleted {
		s.applyCompletionEffects(ctx, t, eventID, &task, true, res)
	}
	return res, nil
}

// ManualTaskInput creates an ad-hoc task.
type ManualTaskInput struct {
	SectionID         string
	Stage             string
	Name              string
	DurationDays      int
	CatalogCategoryID *string
	BudgetAmount      *float64
}

// CreateManual creates a manual task starting the day after the last task of
// the same stage ends, or at the window start.
func (s *TaskService) CreateManual(ctx context.Context, t tenant.Tenant, eventID string, in ManualTaskInput) (*db.SchedulerTask, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("task name is required")
	}
	stage, ok := db.ParseCategory(in.Stage)
	if !ok {
		s.Log.Debug("unknown stage coerced to PLANNING", logger.String("stage", in.Stage))
	}
	duration := ClampDuration(in.DurationDays)

	var task db.SchedulerTask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvent(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		inst, _, err := ensureInstance(ctx, tx, ev, nil, s.opts.DefaultWindowDays)
		if err != nil {
			return err
		}
		start, err := cascadeStart(ctx, tx, inst, stage)
		if err != nil {
			return err
		}
		end := AddDays(start, duration-1)

		task = db.SchedulerTask{
			SchedulerInstanceID: inst.ID,
			Name:                name,
			StartDate:           start,
			EndDate:             end,
			DurationDays:        duration,
			Category:            stage,
			Status:              db.TaskPending,
			BudgetAmount:        in.BudgetAmount,
			SyncStatus:          db.SyncDraft,
		}
		if in.SectionID != "" {
			task.SectionID = strPtr(in.SectionID)
		}
		if in.CatalogCategoryID != nil && *in.CatalogCategoryID != "" {
			ref, err := resolveCategoryRef(ctx, tx, inst.ID, *in.CatalogCategoryID)
			if err != nil {
				return err
			}
			task.CatalogCategoryID, task.SchedulerCustomCategoryID = ref.CatalogCategoryID, ref.SchedulerCustomCategoryID
		}
		if task.SortOrder, err = nextSortOrder(ctx, tx, inst.ID, stage); err != nil {
			return err
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create manual task: %w", err)
		}
		if err := growWindow(ctx, tx, inst, start, end); err != nil {
			return err
		}
		return recordActivity(ctx, tx, task.ID, db.ActivityCreated, "manual task created", nil)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// cascadeStart is the day after the latest end date among the stage's tasks.
func cascadeStart(ctx context.Context, tx *gorm.DB, inst *db.SchedulerInstance, stage db.TaskCategory) (time.Time, error) {
	var ends []time.Time
	if err := tx.WithContext(ctx).Model(&db.SchedulerTask{}).
		Where("scheduler_instance_id = ? AND category = ? AND pending_deletion = ?", inst.ID, stage, false).
		Pluck("end_date", &ends).Error; err != nil {
		return time.Time{}, fmt.Errorf("load stage end dates: %w", err)
	}
	if len(ends) == 0 {
		return DateOnly(inst.StartDate), nil
	}
	latest := ends[0]
	for _, e := range ends[1:] {
		if e.After(latest) {
			latest = e
		}
	}
	return AddDays(latest, 1), nil
}

// UpdateTask applies a partial update. Completion changes drive payroll
// unless the patch skips it.
func (s *TaskService) UpdateTask(ctx context.Context, t tenant.Tenant, eventID, taskID string, p TaskPatch) (*TaskResult, error) {
	var (
		after db.SchedulerTask
		cs    ChangeSet
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		before, err := loadTask(ctx, tx, inst.ID, taskID)
		if err != nil {
			return err
		}
		if p.AssigneeID.Set && p.AssigneeID.Value != nil {
			if _, err := loadCrewMember(ctx, tx, t, *p.AssigneeID.Value); err != nil {
				return err
			}
		}
		if after, cs, err = ApplyPatch(*before, p, s.now()); err != nil {
			return err
		}
		if cs.Empty() {
			return nil
		}
		after.SyncStatus = ResolveSyncStatus(*before, after)
		if err := tx.Save(&after).Error; err != nil {
			return fmt.Errorf("save task: %w", err)
		}
		if cs.Dates {
			if err := growWindow(ctx, tx, inst, after.StartDate, after.EndDate); err != nil {
				return err
			}
		}
		if cs.Assignee {
			if err := s.logAssignment(ctx, tx, before, &after); err != nil {
				return err
			}
		}
		if cs.Completion != nil {
			action := db.ActivityReopened
			if *cs.Completion {
				action = db.ActivityCompleted
			}
			if err := recordActivity(ctx, tx, after.ID, action, "task "+action, nil); err != nil {
				return err
			}
		}
		return recordActivity(ctx, tx, after.ID, db.ActivityUpdated, "task updated",
			map[string]interface{}{"fields": cs.Fields, "previous": cs.Previous})
	})
	if err != nil {
		return nil, err
	}

	res := &TaskResult{Task: &after}
	if cs.Completion != nil && !p.SkipPayroll {
		s.applyCompletionEffects(ctx, t, eventID, &after, *cs.Completion, res)
	}
	return res, nil
}

// applyCompletionEffects runs payroll after the task change committed. Its
// failures become warnings.
func (s *TaskService) applyCompletionEffects(ctx context.Context, t tenant.Tenant, eventID string, task *db.SchedulerTask, completed bool, res *TaskResult) {
	if s.Payroll == nil {
		return
	}
	if task.QuoteItemID == nil {
		res.Warnings = append(res.Warnings, Warning{Op: "payroll", Message: "task has no quote item"})
		return
	}
	fields := []logger.Field{logger.String("task_id", task.ID), logger.String("event_id", eventID)}
	if completed {
		res.Warnings = appendWarning(res.Warnings, nonFatal(s.Log, "payroll.create", func() error {
			out, err := s.Payroll.CreateFromCompletedTask(ctx, t, eventID, task.ID, nil)
			if err == nil && out != nil {
				res.Payroll = out.Payroll
			}
			return err
		}, fields...))
		return
	}
	res.Warnings = appendWarning(res.Warnings, nonFatal(s.Log, "payroll.delete", func() error {
		_, err := s.Payroll.DeleteFromUncompletedTask(ctx, t, eventID, task.ID)
		return err
	}, fields...))
}

func (s *TaskService) logAssignment(ctx context.Context, tx *gorm.DB, before, after *db.SchedulerTask) error {
	prevName := crewName(ctx, tx, before.AssignedToCrewMemberID)
	if after.AssignedToCrewMemberID == nil {
		return recordActivity(ctx, tx, after.ID, db.ActivityUnassigned, "crew member unassigned", map[string]interface{}{
			"previous_assignee_id":   derefString(before.AssignedToCrewMemberID),
			"previous_assignee_name": prevName,
		})
	}
	return recordActivity(ctx, tx, after.ID, db.ActivityAssigned, "crew member assigned", map[string]interface{}{
		"assignee_id":            *after.AssignedToCrewMemberID,
		"assignee_name":          crewName(ctx, tx, after.AssignedToCrewMemberID),
		"previous_assignee_id":   derefString(before.AssignedToCrewMemberID),
		"previous_assignee_name": prevName,
	})
}

// AssignCrew sets or clears the task assignee and mirrors it on the quote item.
// Assignment alone never moves the task back to DRAFT.
func (s *TaskService) AssignCrew(ctx context.Context, t tenant.Tenant, eventID, taskID string, crewID *string) (*db.SchedulerTask, error) {
	if crewID != nil && *crewID == "" {
		crewID = nil
	}
	var task *db.SchedulerTask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		if task, err = loadTask(ctx, tx, inst.ID, taskID); err != nil {
			return err
		}
		if sameStringPtr(task.AssignedToCrewMemberID, crewID) {
			return nil
		}
		if crewID != nil {
			if _, err := loadCrewMember(ctx, tx, t, *crewID); err != nil {
				return err
			}
		}
		before := *task
		task.AssignedToCrewMemberID = crewID
		if err := tx.Model(task).Update("assigned_to_crew_member_id", crewID).Error; err != nil {
			return err
		}
		if task.QuoteItemID != nil {
			if err := tx.Model(&db.QuoteItem{}).Where("id = ?", *task.QuoteItemID).
				Update("assigned_to_crew_member_id", crewID).Error; err != nil {
				return fmt.Errorf("mirror assignee on quote item: %w", err)
			}
		}
		return s.logAssignment(ctx, tx, &before, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask stages a removal: the task goes to DRAFT, loses its quote item
// link and is removed for real on the next publish.
func (s *TaskService) DeleteTask(ctx context.Context, t tenant.Tenant, eventID, taskID string) (*db.SchedulerTask, error) {
	var task *db.SchedulerTask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		if task, err = loadTask(ctx, tx, inst.ID, taskID); err != nil {
			return err
		}
		if task.PendingDeletion {
			return nil
		}
		task.PendingDeletion = true
		task.SyncStatus = db.SyncDraft
		if task.QuoteItemID != nil {
			task.DetachedQuoteItemID, task.QuoteItemID = task.QuoteItemID, nil
		}
		if err := tx.Model(task).Select("pending_deletion", "sync_status", "quote_item_id", "detached_quote_item_id").
			Updates(task).Error; err != nil {
			return fmt.Errorf("stage task deletion: %w", err)
		}
		return recordActivity(ctx, tx, task.ID, db.ActivityDeleted, "task removal staged", map[string]interface{}{
			"quote_item_id": derefString(task.DetachedQuoteItemID),
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Reorder directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ReorderTask swaps the task with its neighbour among tasks that share its
// effective category. Catalog-linked and manual tasks share the same key.
func (s *TaskService) ReorderTask(ctx context.Context, t tenant.Tenant, eventID, taskID, direction string) error {
	if direction != DirectionUp && direction != DirectionDown {
		return apperr.Validation("direction must be %q or %q", DirectionUp, DirectionDown)
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		target, err := loadTask(ctx, tx, inst.ID, taskID)
		if err != nil {
			return err
		}
		var tasks []db.SchedulerTask
		if err := tx.Where("scheduler_instance_id = ? AND pending_deletion = ?", inst.ID, false).
			Find(&tasks).Error; err != nil {
			return err
		}
		keys, err := effectiveKeys(ctx, tx, tasks)
		if err != nil {
			return err
		}
		key := keys[target.ID]

		siblings := make([]db.SchedulerTask, 0, len(tasks))
		for _, task := range tasks {
			if keys[task.ID] == key {
				siblings = append(siblings, task)
			}
		}
		sort.SliceStable(siblings, func(i, j int) bool {
			if siblings[i].SortOrder != siblings[j].SortOrder {
				return siblings[i].SortOrder < siblings[j].SortOrder
			}
			if !siblings[i].StartDate.Equal(siblings[j].StartDate) {
				return siblings[i].StartDate.Before(siblings[j].StartDate)
			}
			return siblings[i].ID < siblings[j].ID
		})

		pos := -1
		for i := range siblings {
			if siblings[i].ID == target.ID {
				pos = i
			}
		}
		other := pos - 1
		if direction == DirectionDown {
			other = pos + 1
		}
		if pos < 0 || other < 0 || other >= len(siblings) {
			return nil
		}
		siblings[pos], siblings[other] = siblings[other], siblings[pos]
		for i := range siblings {
			if siblings[i].SortOrder == i {
				continue
			}
			if err := tx.Model(&db.SchedulerTask{}).Where("id = ?", siblings[i].ID).
				Update("sort_order", i).Error; err != nil {
				return fmt.Errorf("update task order: %w", err)
			}
		}
		return nil
	})
}

// effectiveKeys maps task id to its ordering key: the task's catalog category,
// else the linked item's service category, else the stage.
func effectiveKeys(ctx context.Context, tx *gorm.DB, tasks []db.SchedulerTask) (map[string]string, error) {
	itemIDs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if task.QuoteItemID != nil && task.CatalogCategoryID == nil {
			itemIDs = append(itemIDs, *task.QuoteItemID)
		}
	}
	itemCategory := map[string]*string{}
	if len(itemIDs) > 0 {
		var items []db.QuoteItem
		if err := tx.WithContext(ctx).Preload("CatalogItem").Where("id IN ?", itemIDs).Find(&items).Error; err != nil {
			return nil, err
		}
		for i := range items {
			itemCategory[items[i].ID] = EffectiveCategoryID(nil, &items[i])
		}
	}

	keys := make(map[string]string, len(tasks))
	for _, task := range tasks {
		var cat *string
		switch {
		case task.CatalogCategoryID != nil:
			cat = task.CatalogCategoryID
		case task.SchedulerCustomCategoryID != nil:
			keys[task.ID] = "custom:" + *task.SchedulerCustomCategoryID
			continue
		case task.QuoteItemID != nil:
			cat = itemCategory[*task.QuoteItemID]
		}
		if cat != nil {
			keys[task.ID] = "catalog:" + *cat
		} else {
			keys[task.ID] = "stage:" + string(task.Category)
		}
	}
	return keys, nil
}

// DuplicateManual clones a manual task into the next free slot of its stage.
func (s *TaskService) DuplicateManual(ctx context.Context, t tenant.Tenant, eventID, taskID string) (*db.SchedulerTask, error) {
	var clone db.SchedulerTask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		src, err := loadTask(ctx, tx, inst.ID, taskID)
		if err != nil {
			return err
		}
		if !src.IsManual() {
			return apperr.Validation("only manual tasks can be duplicated")
		}
		if src.PendingDeletion {
			return apperr.Validation("task %s is pending deletion", src.ID)
		}
		duration := ClampDuration(src.DurationDays)
		start, err := cascadeStart(ctx, tx, inst, src.Category)
		if err != nil {
			return err
		}
		end := AddDays(start, duration-1)
		clone = db.SchedulerTask{
			SchedulerInstanceID:       inst.ID,
			Name:                      src.Name + " (copy)",
			Description:               src.Description,
			StartDate:                 start,
			EndDate:                   end,
			DurationDays:              duration,
			Category:                  src.Category,
			SectionID:                 src.SectionID,
			CatalogCategoryID:         src.CatalogCategoryID,
			SchedulerCustomCategoryID: src.SchedulerCustomCategoryID,
			Status:                    db.TaskPending,
			BudgetAmount:              src.BudgetAmount,
			SyncStatus:                db.SyncDraft,
		}
		if clone.SortOrder, err = nextSortOrder(ctx, tx, inst.ID, src.Category); err != nil {
			return err
		}
		if err := tx.Create(&clone).Error; err != nil {
			return fmt.Errorf("duplicate task: %w", err)
		}
		if err := growWindow(ctx, tx, inst, start, end); err != nil {
			return err
		}
		return recordActivity(ctx, tx, clone.ID, db.ActivityCreated, "task duplicated", map[string]interface{}{"source_task_id": src.ID})
	})
	if err != nil {
		return nil, err
	}
	return &clone, nil
}

// Classify sets the stage and catalog category of any task. For catalog-linked
// tasks the category is written back to the quote item as well.
func (s *TaskService) Classify(ctx context.Context, t tenant.Tenant, eventID, taskID, category string, catalogCategoryID *string) (*db.SchedulerTask, error) {
	stage, _ := db.ParseCategory(category)
	if catalogCategoryID != nil && *catalogCategoryID == "" {
		catalogCategoryID = nil
	}
	var task *db.SchedulerTask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		if task, err = loadTask(ctx, tx, inst.ID, taskID); err != nil {
			return err
		}
		updates := map[string]interface{}{"category": stage, "catalog_category_id": catalogCategoryID}
		task.Category, task.CatalogCategoryID = stage, catalogCategoryID
		if catalogCategoryID != nil {
			updates["scheduler_custom_category_id"] = nil
			task.SchedulerCustomCategoryID = nil
		}
		if err := tx.Model(task).Updates(updates).Error; err != nil {
			return fmt.Errorf("classify task: %w", err)
		}
		if task.QuoteItemID != nil && catalogCategoryID != nil {
			if err := tx.Model(&db.QuoteItem{}).Where("id = ?", *task.QuoteItemID).
				Update("service_category_id", *catalogCategoryID).Error; err != nil {
				return fmt.Errorf("write category back to quote item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// SyncQuoteTasks creates DRAFT tasks for approved quote items that have none.
// Items whose task is pending deletion are skipped.
func (s *TaskService) SyncQuoteTasks(ctx context.Context, t tenant.Tenant, eventID string) (int, error) {
	created := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvent(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		inst, _, err := ensureInstance(ctx, tx, ev, nil, s.opts.DefaultWindowDays)
		if err != nil {
			return err
		}
		var items []db.QuoteItem
		if err := tx.Joins("JOIN quotes ON quotes.id = quote_items.quote_id").
			Where("quotes.event_id = ? AND quotes.studio_id = ? AND quotes.status = ?", eventID, t.StudioID, db.QuoteStatusApproved).
			Where("quote_items.id NOT IN (?)", tx.Model(&db.SchedulerTask{}).Select("quote_item_id").Where("quote_item_id IS NOT NULL")).
			Where("quote_items.id NOT IN (?)", tx.Model(&db.SchedulerTask{}).Select("detached_quote_item_id").Where("detached_quote_item_id IS NOT NULL")).
			Order("quote_items.sort_order").
			Find(&items).Error; err != nil {
			return fmt.Errorf("load unscheduled quote items: %w", err)
		}
		start := DateOnly(inst.StartDate)
		for i := range items {
			item := items[i]
			task := db.SchedulerTask{
				SchedulerInstanceID:    inst.ID,
				Name:                   item.Name,
				StartDate:              start,
				EndDate:                start,
				DurationDays:           1,
				Category:               db.CategoryPlanning,
				Status:                 db.TaskPending,
				SortOrder:              item.SortOrder,
				AssignedToCrewMemberID: item.AssignedToCrewMemberID,
				QuoteItemID:            &item.ID,
				SyncStatus:             db.SyncDraft,
			}
			if err := tx.Create(&task).Error; err != nil {
				return fmt.Errorf("create task for quote item %s: %w", item.ID, err)
			}
			if err := recordActivity(ctx, tx, task.ID, db.ActivityCreated, "task created from approved quote", map[string]interface{}{"quote_item_id": item.ID}); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.Log.Info("quote items synchronized to scheduler",
			logger.String("event_id", eventID), logger.Int("created", created))
	}
	return created, nil
}

// GetTask returns one task of the event.
func (s *TaskService) GetTask(ctx context.Context, t tenant.Tenant, eventID, taskID string) (*db.SchedulerTask, error) {
	_, inst, err := requireInstance(ctx, s.DB, t, eventID)
	if err != nil {
		return nil, err
	}
	return loadTask(ctx, s.DB, inst.ID, taskID)
}
