package api

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"studio-scheduler-service/internal/scheduler-manager/services"
)

type categoryRequest struct {
	SectionID string `json:"section_id"`
	Stage     string `json:"stage"`
	Name      string `json:"name"`
}

func (h *Handler) ListCategories(ctx context.Context, c *app.RequestContext) {
	cats, err := h.Categories.List(ctx, tenantOf(c), c.Param("event"))
	if err != nil {
		h.fail(c, "list categories", err)
		return
	}
	ok(c, http.StatusOK, cats)
}

func (h *Handler) CreateCategory(ctx context.Context, c *app.RequestContext) {
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "create category", err)
		return
	}
	cat, err := h.Categories.Create(ctx, tenantOf(c), c.Param("event"), services.CategoryInput{
		SectionID: req.SectionID, Stage: req.Stage, Name: req.Name,
	})
	if err != nil {
		h.fail(c, "create category", err)
		return
	}
	ok(c, http.StatusCreated, cat)
}

func (h *Handler) ReorderCategories(ctx context.Context, c *app.RequestContext) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := bind(c, &req); err != nil {
		h.fail(c, "reorder categories", err)
		return
	}
	if err := h.Categories.Reorder(ctx, tenantOf(c), c.Param("event"), req.IDs); err != nil {
		h.fail(c, "reorder categories", err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (h *Handler) RenameCategory(ctx context.Context, c *app.RequestContext) {
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "rename category", err)
		return
	}
	cat, err := h.Categories.Rename(ctx, tenantOf(c), c.Param("event"), c.Param("category"), req.Name)
	if err != nil {
		h.fail(c, "rename category", err)
		return
	}
	ok(c, http.StatusOK, cat)
}

func (h *Handler) DeleteCategory(ctx context.Context, c *app.RequestContext) {
	n, err := h.Categories.Delete(ctx, tenantOf(c), c.Param("event"), c.Param("category"))
	if err != nil {
		h.fail(c, "delete category", err)
		return
	}
	ok(c, http.StatusOK, map[string]int64{"unlinked_tasks": n})
}

func (h *Handler) GetDeletionImpact(ctx context.Context, c *app.RequestContext) {
	impact, err := h.Categories.GetDeletionImpact(ctx, tenantOf(c), c.Param("event"), c.Param("category"))
	if err != nil {
		h.fail(c, "category deletion impact", err)
		return
	}
	ok(c, http.StatusOK, impact)
}

func (h *Handler) ResolveCategoryRef(ctx context.Context, c *app.RequestContext) {
	ref, err := h.Categories.ResolveCategoryIDForManualTask(ctx, tenantOf(c), c.Param("event"), c.Param("category"))
	if err != nil {
		h.fail(c, "resolve category", err)
		return
	}
	ok(c, http.StatusOK, ref)
}
