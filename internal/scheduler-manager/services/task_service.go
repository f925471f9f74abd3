package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"studio-scheduler-service/internal/config"
	"studio-scheduler-service/internal/scheduler-manager/calendar"
	"studio-scheduler-service/internal/scheduler-manager/catalog"
	"studio-scheduler-service/internal/scheduler-manager/financials"
	"studio-scheduler-service/internal/scheduler-manager/metrics"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

const (
	DefaultWindowDays    = config.DefaultWindowDays
	DefaultDetailTimeout = config.DefaultDetailTimeout
	DefaultSyncRPS       = config.DefaultCalendarSyncRPS

	backgroundCallTimeout = 15 * time.Second
)

// PayrollEffects is what task completion changes trigger.
type PayrollEffects interface {
	CreateFromCompletedTask(ctx context.Context, t tenant.Tenant, eventID, taskID string, override *ItemData) (*PayrollOutcome, error)
	DeleteFromUncompletedTask(ctx context.Context, t tenant.Tenant, eventID, taskID string) (bool, error)
}

type TaskServiceOptions struct {
	DefaultWindowDays int
	DetailTimeout     time.Duration
	CalendarSyncRPS   int
}

// TaskDeps are the collaborators of TaskService.
type TaskDeps struct {
	DB         *gorm.DB
	Calendar   calendar.Client
	Catalog    catalog.Provider
	Financials financials.Provider
	Payroll    PayrollEffects
	Log        logger.Logger
	Metrics    *metrics.Metrics
}

// TaskService owns scheduler instances, their tasks, the publish/cancel
// lifecycle and the event detail read.
type TaskService struct {
	DB         *gorm.DB
	Calendar   calendar.Client
	Catalog    catalog.Provider
	Financials financials.Provider
	Payroll    PayrollEffects
	Log        logger.Logger
	Metrics    *metrics.Metrics

	opts    TaskServiceOptions
	limiter *rate.Limiter
	now     func() time.Time
	bg      sync.WaitGroup
}

func NewTaskService(deps TaskDeps, opts TaskServiceOptions) *TaskService {
	if opts.DefaultWindowDays <= 0 {
		opts.DefaultWindowDays = DefaultWindowDays
	}
	if opts.DetailTimeout <= 0 {
		opts.DetailTimeout = DefaultDetailTimeout
	}
	if opts.CalendarSyncRPS <= 0 {
		opts.CalendarSyncRPS = DefaultSyncRPS
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Calendar == nil {
		deps.Calendar = calendar.Noop{}
	}
	return &TaskService{
		DB:         deps.DB,
		Calendar:   deps.Calendar,
		Catalog:    deps.Catalog,
		Financials: deps.Financials,
		Payroll:    deps.Payroll,
		Log:        deps.Log,
		Metrics:    deps.Metrics,
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Limit(opts.CalendarSyncRPS), opts.CalendarSyncRPS),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Wait blocks until background calendar cleanups have finished.
func (s *TaskService) Wait() { s.bg.Wait() }

// deleteEventAsync cancels a calendar event without blocking the caller.
func (s *TaskService) deleteEventAsync(calendarID, eventID, taskID string) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundCallTimeout)
		defer cancel()
		if err := s.Calendar.DeleteEvent(ctx, calendarID, eventID); err != nil {
			s.Log.Warn("calendar event cleanup failed",
				logger.String("task_id", taskID), logger.String("google_event_id", eventID), logger.Error(err))
		}
	}()
}
