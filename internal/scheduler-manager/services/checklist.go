package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
)

// ChecklistService reads studio checklist templates and imports them into tasks.
type ChecklistService struct {
	DB *gorm.DB
}

func NewChecklistService(gormDB *gorm.DB) *ChecklistService {
	return &ChecklistService{DB: gormDB}
}

// ListTemplates returns active templates, optionally only those of one stage.
func (s *ChecklistService) ListTemplates(ctx context.Context, t tenant.Tenant, stage string) ([]db.ChecklistTemplate, error) {
	q := s.DB.WithContext(ctx).Where("studio_id = ? AND is_active = ?", t.StudioID, true)
	if stage != "" {
		c, ok := db.ParseCategory(stage)
		if !ok {
			return nil, apperr.Validation("unknown stage %q", stage)
		}
		q = q.Where("category = ? OR category IS NULL", c)
	}
	templates := []db.ChecklistTemplate{}
	if err := q.Order("sort_order, name").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list checklist templates: %w", err)
	}
	return templates, nil
}

type ImportInput struct {
	TemplateIDs []string
	// PrefixWithTemplateName prepends "<template>: " to every imported label.
	PrefixWithTemplateName bool
}

// ImportTemplates appends template items to the task checklist in the order
// the templates were given. Checklist edits never move a task back to DRAFT.
func (s *ChecklistService) ImportTemplates(ctx context.Context, t tenant.Tenant, eventID, taskID string, in ImportInput) (*db.SchedulerTask, error) {
	var task *db.SchedulerTask
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inst, err := requireInstance(ctx, tx, t, eventID)
		if err != nil {
			return err
		}
		if task, err = loadTask(ctx, tx, inst.ID, taskID); err != nil {
			return err
		}
		if len(in.TemplateIDs) == 0 {
			return nil
		}

		var templates []db.ChecklistTemplate
		if err := tx.Where("studio_id = ? AND id IN ?", t.StudioID, in.TemplateIDs).Find(&templates).Error; err != nil {
			return err
		}
		byID := make(map[string]db.ChecklistTemplate, len(templates))
		for _, tpl := range templates {
			byID[tpl.ID] = tpl
		}

		items := append([]db.ChecklistItem{}, task.ChecklistItems...)
		for _, id := range in.TemplateIDs {
			tpl, ok := byID[id]
			if !ok {
				return apperr.NotFound("checklist template %s", id)
			}
			for _, it := range tpl.Items {
				label := it.Label
				if in.PrefixWithTemplateName {
					label = tpl.Name + ": " + label
				}
				items = append(items, db.ChecklistItem{ID: uuid.NewString(), Label: label, Source: "template:" + tpl.ID})
			}
		}
		task.ChecklistItems = items
		if err := tx.Model(task).Update("checklist_items", task.ChecklistItems).Error; err != nil {
			return fmt.Errorf("save checklist: %w", err)
		}
		return recordActivity(ctx, tx, task.ID, db.ActivityUpdated, "checklist templates imported",
			map[string]interface{}{"fields": []string{"checklist_items"}, "templates": in.TemplateIDs})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
