package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"studio-scheduler-service/internal/scheduler-manager/services"
)

type windowRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type stagedStateRequest struct {
	CustomCategoriesBySectionStage json.RawMessage `json:"custom_categories_by_section_stage"`
	ExplicitlyActivatedStageIDs    json.RawMessage `json:"explicitly_activated_stage_ids"`
}

type publishRequest struct {
	SendInvitations bool `json:"send_invitations"`
}

func (h *Handler) GetEventScheduler(ctx context.Context, c *app.RequestContext) {
	out, err := h.Tasks.GetEventScheduler(ctx, tenantOf(c), c.Param("event"))
	if err != nil {
		h.fail(c, "event scheduler", err)
		return
	}
	ok(c, http.StatusOK, out, out.Warnings...)
}

// GetOrCreateInstance answers 201 when the instance was created, 200 when it
// already existed. The body is optional.
func (h *Handler) GetOrCreateInstance(ctx context.Context, c *app.RequestContext) {
	var req windowRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "get or create instance", err)
		return
	}
	var rng *services.DateRange
	if req.StartDate != "" || req.EndDate != "" {
		r, err := parseRange(req.StartDate, req.EndDate)
		if err != nil {
			h.fail(c, "get or create instance", err)
			return
		}
		rng = &r
	}
	inst, created, err := h.Tasks.GetOrCreateInstance(ctx, tenantOf(c), c.Param("event"), rng)
	if err != nil {
		h.fail(c, "get or create instance", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, inst)
}

func (h *Handler) UpdateWindow(ctx context.Context, c *app.RequestContext) {
	var req windowRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "update window", err)
		return
	}
	rng, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		h.fail(c, "update window", err)
		return
	}
	inst, err := h.Tasks.UpdateWindow(ctx, tenantOf(c), c.Param("event"), rng)
	if err != nil {
		h.fail(c, "update window", err)
		return
	}
	ok(c, http.StatusOK, inst)
}

func (h *Handler) CheckStatus(ctx context.Context, c *app.RequestContext) {
	st, err := h.Tasks.CheckStatus(ctx, tenantOf(c), c.Param("event"))
	if err != nil {
		h.fail(c, "check status", err)
		return
	}
	ok(c, http.StatusOK, st)
}

func (h *Handler) SaveStagedState(ctx context.Context, c *app.RequestContext) {
	var req stagedStateRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "save staged state", err)
		return
	}
	inst, err := h.Tasks.SaveStagedState(ctx, tenantOf(c), c.Param("event"), services.StagedState{
		CustomCategoriesBySectionStage: req.CustomCategoriesBySectionStage,
		ExplicitlyActivatedStageIDs:    req.ExplicitlyActivatedStageIDs,
	})
	if err != nil {
		h.fail(c, "save staged state", err)
		return
	}
	ok(c, http.StatusOK, inst)
}

func (h *Handler) Publish(ctx context.Context, c *app.RequestContext) {
	var req publishRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "publish", err)
		return
	}
	res, err := h.Tasks.Publish(ctx, tenantOf(c), c.Param("event"), req.SendInvitations)
	if err != nil {
		h.fail(c, "publish", err)
		return
	}
	ok(c, http.StatusOK, res, res.Warnings...)
}

func (h *Handler) CancelPendingChanges(ctx context.Context, c *app.RequestContext) {
	res, err := h.Tasks.CancelPendingChanges(ctx, tenantOf(c), c.Param("event"))
	if err != nil {
		h.fail(c, "cancel pending changes", err)
		return
	}
	ok(c, http.StatusOK, res)
}

func (h *Handler) GetDraftCount(ctx context.Context, c *app.RequestContext) {
	n, err := h.Tasks.GetDraftCount(ctx, tenantOf(c), c.Param("event"))
	if err != nil {
		h.fail(c, "draft count", err)
		return
	}
	ok(c, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) GetDraftSummary(ctx context.Context, c *app.RequestContext) {
	sum, err := h.Tasks.GetDraftSummary(ctx, tenantOf(c), c.Param("event"))
	if err != nil {
		h.fail(c, "draft summary", err)
		return
	}
	ok(c, http.StatusOK, sum)
}

func (h *Handler) ClearScheduler(ctx context.Context, c *app.RequestContext) {
	res, err := h.Tasks.ClearScheduler(ctx, tenantOf(c), c.Param("event"))
	if err != nil {
		h.fail(c, "clear scheduler", err)
		return
	}
	ok(c, http.StatusOK, res, res.Warnings...)
}

func (h *Handler) SyncQuoteTasks(ctx context.Context, c *app.RequestContext) {
	n, err := h.Tasks.SyncQuoteTasks(ctx, tenantOf(c), c.Param("event"))
	if err != nil {
		h.fail(c, "sync quote tasks", err)
		return
	}
	ok(c, http.StatusOK, map[string]int{"created": n})
}
