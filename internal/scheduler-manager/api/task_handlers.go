package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/services"
)

type createFromItemRequest struct {
	QuoteItemID            string  `json:"quote_item_id"`
	Name                   string  `json:"name"`
	StartDate              string  `json:"start_date"`
	EndDate                string  `json:"end_date"`
	AssignedToCrewMemberID *string `json:"assigned_to_crew_member_id"`
	Notes                  string  `json:"notes"`
	IsCompleted            bool    `json:"is_completed"`
	Category               string  `json:"category"`
}

type createManualRequest struct {
	SectionID         string   `json:"section_id"`
	Stage             string   `json:"stage"`
	Name              string   `json:"name"`
	DurationDays      int      `json:"duration_days"`
	CatalogCategoryID *string  `json:"catalog_category_id"`
	BudgetAmount      *float64 `json:"budget_amount"`
}

// updateTaskRequest distinguishes absent fields (nil) from explicit values.
// AssignedToCrewMemberID is raw so that null can unassign.
type updateTaskRequest struct {
	Name                   *string             `json:"name"`
	Description            *string             `json:"description"`
	Notes                  *string             `json:"notes"`
	StartDate              *string             `json:"start_date"`
	EndDate                *string             `json:"end_date"`
	AssignedToCrewMemberID json.RawMessage     `json:"assigned_to_crew_member_id"`
	IsCompleted            *bool               `json:"is_completed"`
	Status                 *string             `json:"status"`
	ProgressPercent        *int                `json:"progress_percent"`
	ChecklistItems         *[]db.ChecklistItem `json:"checklist_items"`
	SkipPayroll            bool                `json:"skip_payroll"`
}

type reorderRequest struct {
	Direction string `json:"direction"`
}

type classifyRequest struct {
	Category          string  `json:"category"`
	CatalogCategoryID *string `json:"catalog_category_id"`
}

type assignRequest struct {
	CrewMemberID *string `json:"crew_member_id"`
}

type payrollRequest struct {
	CrewMemberID *string  `json:"crew_member_id"`
	Cost         *float64 `json:"cost"`
	Quantity     *int     `json:"quantity"`
	Name         string   `json:"name"`
}

func (r updateTaskRequest) patch() (services.TaskPatch, error) {
	var p services.TaskPatch
	if r.Name != nil {
		p.Name = services.Some(*r.Name)
	}
	if r.Description != nil {
		p.Description = services.Some(*r.Description)
	}
	if r.Notes != nil {
		p.Notes = services.Some(*r.Notes)
	}
	if r.StartDate != nil {
		d, err := parseDate("start_date", *r.StartDate)
		if err != nil {
			return p, err
		}
		p.StartDate = services.Some(d)
	}
	if r.EndDate != nil {
		d, err := parseDate("end_date", *r.EndDate)
		if err != nil {
			return p, err
		}
		p.EndDate = services.Some(d)
	}
	if len(r.AssignedToCrewMemberID) > 0 {
		var id *string
		if !bytes.Equal(r.AssignedToCrewMemberID, []byte("null")) {
			if err := json.Unmarshal(r.AssignedToCrewMemberID, &id); err != nil {
				return p, apperr.Validation("assigned_to_crew_member_id must be a string or null")
			}
			if id != nil && *id == "" {
				id = nil
			}
		}
		p.AssigneeID = services.Some(id)
	}
	if r.IsCompleted != nil {
		p.IsCompleted = services.Some(*r.IsCompleted)
	}
	if r.Status != nil {
		p.Status = services.Some(db.TaskStatus(*r.Status))
	}
	if r.ProgressPercent != nil {
		p.ProgressPercent = services.Some(*r.ProgressPercent)
	}
	if r.ChecklistItems != nil {
		p.ChecklistItems = services.Some(*r.ChecklistItems)
	}
	p.SkipPayroll = r.SkipPayroll
	return p, nil
}

func (h *Handler) CreateTaskFromItem(ctx context.Context, c *app.RequestContext) {
	var req createFromItemRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "create task from item", err)
		return
	}
	if req.QuoteItemID == "" {
		badRequest(c, "quote_item_id is required")
		return
	}
	in := services.QuoteItemTaskInput{
		ItemID:      req.QuoteItemID,
		Name:        req.Name,
		AssigneeID:  req.AssignedToCrewMemberID,
		Notes:       req.Notes,
		IsCompleted: req.IsCompleted,
		Category:    req.Category,
	}
	var err error
	if in.StartDate, in.EndDate, err = optionalRange(req.StartDate, req.EndDate); err != nil {
		h.fail(c, "create task from item", err)
		return
	}
	res, err := h.Tasks.CreateFromQuoteItem(ctx, tenantOf(c), c.Param("event"), in)
	if err != nil {
		h.fail(c, "create task from item", err)
		return
	}
	ok(c, http.StatusCreated, res, res.Warnings...)
}

// optionalRange parses both dates or neither.
func optionalRange(from, to string) (time.Time, time.Time, error) {
	if from == "" && to == "" {
		return time.Time{}, time.Time{}, nil
	}
	rng, err := parseRange(from, to)
	return rng.From, rng.To, err
}

func (h *Handler) CreateManualTask(ctx context.Context, c *app.RequestContext) {
	var req createManualRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "create manual task", err)
		return
	}
	task, err := h.Tasks.CreateManual(ctx, tenantOf(c), c.Param("event"), services.ManualTaskInput{
		SectionID:         req.SectionID,
		Stage:             req.Stage,
		Name:              req.Name,
		DurationDays:      req.DurationDays,
		CatalogCategoryID: req.CatalogCategoryID,
		BudgetAmount:      req.BudgetAmount,
	})
	if err != nil {
		h.fail(c, "create manual task", err)
		return
	}
	ok(c, http.StatusCreated, task)
}

func (h *Handler) GetTask(ctx context.Context, c *app.RequestContext) {
	task, err := h.Tasks.GetTask(ctx, tenantOf(c), c.Param("event"), c.Param("task"))
	if err != nil {
		h.fail(c, "get task", err)
		return
	}
	ok(c, http.StatusOK, task)
}

func (h *Handler) UpdateTask(ctx context.Context, c *app.RequestContext) {
	var req updateTaskRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "update task", err)
		return
	}
	p, err := req.patch()
	if err != nil {
		h.fail(c, "update task", err)
		return
	}
	res, err := h.Tasks.UpdateTask(ctx, tenantOf(c), c.Param("event"), c.Param("task"), p)
	if err != nil {
		h.fail(c, "update task", err)
		return
	}
	ok(c, http.StatusOK, res, res.Warnings...)
}

func (h *Handler) DeleteTask(ctx context.Context, c *app.RequestContext) {
	task, err := h.Tasks.DeleteTask(ctx, tenantOf(c), c.Param("event"), c.Param("task"))
	if err != nil {
		h.fail(c, "delete task", err)
		return
	}
	ok(c, http.StatusOK, task)
}

func (h *Handler) ReorderTask(ctx context.Context, c *app.RequestContext) {
	var req reorderRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "reorder task", err)
		return
	}
	if err := h.Tasks.ReorderTask(ctx, tenantOf(c), c.Param("event"), c.Param("task"), req.Direction); err != nil {
		h.fail(c, "reorder task", err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (h *Handler) DuplicateTask(ctx context.Context, c *app.RequestContext) {
	task, err := h.Tasks.DuplicateManual(ctx, tenantOf(c), c.Param("event"), c.Param("task"))
	if err != nil {
		h.fail(c, "duplicate task", err)
		return
	}
	ok(c, http.StatusCreated, task)
}

func (h *Handler) ClassifyTask(ctx context.Context, c *app.RequestContext) {
	var req classifyRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "classify task", err)
		return
	}
	task, err := h.Tasks.Classify(ctx, tenantOf(c), c.Param("event"), c.Param("task"), req.Category, req.CatalogCategoryID)
	if err != nil {
		h.fail(c, "classify task", err)
		return
	}
	ok(c, http.StatusOK, task)
}

func (h *Handler) AssignCrew(ctx context.Context, c *app.RequestContext) {
	var req assignRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "assign crew", err)
		return
	}
	task, err := h.Tasks.AssignCrew(ctx, tenantOf(c), c.Param("event"), c.Param("task"), req.CrewMemberID)
	if err != nil {
		h.fail(c, "assign crew", err)
		return
	}
	ok(c, http.StatusOK, task)
}

func (h *Handler) ImportChecklist(ctx context.Context, c *app.RequestContext) {
	var req struct {
		TemplateIDs            []string `json:"template_ids"`
		PrefixWithTemplateName bool     `json:"prefix_with_template_name"`
	}
	if err := bind(c, &req); err != nil {
		h.fail(c, "import checklist", err)
		return
	}
	task, err := h.Checklists.ImportTemplates(ctx, tenantOf(c), c.Param("event"), c.Param("task"), services.ImportInput{
		TemplateIDs:            req.TemplateIDs,
		PrefixWithTemplateName: req.PrefixWithTemplateName,
	})
	if err != nil {
		h.fail(c, "import checklist", err)
		return
	}
	ok(c, http.StatusOK, task)
}

func (h *Handler) ListChecklistTemplates(ctx context.Context, c *app.RequestContext) {
	templates, err := h.Checklists.ListTemplates(ctx, tenantOf(c), c.Query("stage"))
	if err != nil {
		h.fail(c, "list checklist templates", err)
		return
	}
	ok(c, http.StatusOK, templates)
}

// CreatePayroll runs the completion payroll effect directly, optionally with
// overridden item data.
func (h *Handler) CreatePayroll(ctx context.Context, c *app.RequestContext) {
	var req payrollRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "create payroll", err)
		return
	}
	var override *services.ItemData
	if req.CrewMemberID != nil || req.Cost != nil || req.Quantity != nil || req.Name != "" {
		override = &services.ItemData{CrewMemberID: req.CrewMemberID, Cost: req.Cost, Quantity: req.Quantity, Name: req.Name}
	}
	out, err := h.Payroll.CreateFromCompletedTask(ctx, tenantOf(c), c.Param("event"), c.Param("task"), override)
	if err != nil {
		h.fail(c, "create payroll", err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	ok(c, status, out)
}

func (h *Handler) DeletePayroll(ctx context.Context, c *app.RequestContext) {
	deleted, err := h.Payroll.DeleteFromUncompletedTask(ctx, tenantOf(c), c.Param("event"), c.Param("task"))
	if err != nil {
		h.fail(c, "delete payroll", err)
		return
	}
	ok(c, http.StatusOK, map[string]bool{"deleted": deleted})
}
