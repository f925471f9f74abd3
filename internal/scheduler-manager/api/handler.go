// Package api exposes the scheduler operations over HTTP. Every route runs
// under a studio slug that is resolved to a tenant once per request.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studio-scheduler-service/internal/apperr"
	"studio-scheduler-service/internal/scheduler-manager/services"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

const (
	tenantKey   = "tenant"
	actorHeader = "X-User-ID"
	dateLayout  = "2006-01-02"
)

// Resolver turns a studio slug into a tenant.
type Resolver interface {
	Resolve(ctx context.Context, slug string) (tenant.Tenant, error)
}

type Handler struct {
	Tasks      *services.TaskService
	Categories *services.CategoryService
	Payroll    *services.PayrollService
	Checklists *services.ChecklistService
	Tenants    Resolver
	Log        logger.Logger
	// Gatherer backs /metrics; nil skips the route.
	Gatherer prometheus.Gatherer
}

func NewHandler(tasks *services.TaskService, cats *services.CategoryService, payroll *services.PayrollService,
	checklists *services.ChecklistService, tenants Resolver, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{Tasks: tasks, Categories: cats, Payroll: payroll, Checklists: checklists, Tenants: tenants, Log: log}
}

// Register mounts every route on h.
func (h *Handler) Register(r *server.Hertz) {
	r.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, utils.H{"message": "pong"})
	})
	if h.Gatherer != nil {
		r.GET("/metrics", adaptor.HertzHandler(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	studio := r.Group("/studios/:studio", h.resolveTenant)
	studio.GET("/checklist-templates", h.ListChecklistTemplates)

	sched := studio.Group("/events/:event/scheduler")
	{
		sched.GET("", h.GetEventScheduler)
		sched.DELETE("", h.ClearScheduler)
		sched.POST("/instance", h.GetOrCreateInstance)
		sched.PUT("/window", h.UpdateWindow)
		sched.GET("/status", h.CheckStatus)
		sched.PUT("/staged-state", h.SaveStagedState)
		sched.POST("/publish", h.Publish)
		sched.POST("/cancel", h.CancelPendingChanges)
		sched.GET("/drafts/count", h.GetDraftCount)
		sched.GET("/drafts/summary", h.GetDraftSummary)
		sched.POST("/sync-quote-tasks", h.SyncQuoteTasks)
	}
	tasks := sched.Group("/tasks")
	{
		tasks.POST("", h.CreateManualTask)
		tasks.POST("/from-item", h.CreateTaskFromItem)
		tasks.GET("/:task", h.GetTask)
		tasks.PATCH("/:task", h.UpdateTask)
		tasks.DELETE("/:task", h.DeleteTask)
		tasks.POST("/:task/reorder", h.ReorderTask)
		tasks.POST("/:task/duplicate", h.DuplicateTask)
		tasks.PUT("/:task/category", h.ClassifyTask)
		tasks.PUT("/:task/assignee", h.AssignCrew)
		tasks.POST("/:task/checklist/import", h.ImportChecklist)
		tasks.POST("/:task/payroll", h.CreatePayroll)
		tasks.DELETE("/:task/payroll", h.DeletePayroll)
	}
	cats := sched.Group("/categories")
	{
		cats.GET("", h.ListCategories)
		cats.POST("", h.CreateCategory)
		cats.PUT("/order", h.ReorderCategories)
		cats.PATCH("/:category", h.RenameCategory)
		cats.DELETE("/:category", h.DeleteCategory)
		cats.GET("/:category/impact", h.GetDeletionImpact)
	}
	sched.GET("/category-refs/:category", h.ResolveCategoryRef)
}

func (h *Handler) resolveTenant(ctx context.Context, c *app.RequestContext) {
	t, err := h.Tenants.Resolve(ctx, c.Param("studio"))
	if err != nil {
		h.fail(c, "resolve tenant", err)
		c.Abort()
		return
	}
	if actor := strings.TrimSpace(string(c.GetHeader(actorHeader))); actor != "" {
		t = t.WithActor(actor)
	}
	c.Set(tenantKey, t)
	c.Next(ctx)
}

func tenantOf(c *app.RequestContext) tenant.Tenant {
	t, _ := c.Get(tenantKey)
	tn, _ := t.(tenant.Tenant)
	return tn
}

// bind decodes an optional JSON body into req.
func bind(c *app.RequestContext, req interface{}) error {
	if len(c.Request.Body()) == 0 {
		return nil
	}
	if err := c.BindJSON(req); err != nil {
		return apperr.Validation("invalid request payload: %v", err)
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. The calendar day is the one
// written in the input, whatever its offset.
func parseDate(field, v string) (time.Time, error) {
	if d, err := time.Parse(dateLayout, v); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Validation("%s: invalid date %q", field, v)
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), nil
}

func parseRange(from, to string) (services.DateRange, error) {
	start, err := parseDate("start_date", from)
	if err != nil {
		return services.DateRange{}, err
	}
	end, err := parseDate("end_date", to)
	if err != nil {
		return services.DateRange{}, err
	}
	return services.DateRange{From: start, To: end}, nil
}
