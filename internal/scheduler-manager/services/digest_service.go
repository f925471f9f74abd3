package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/events"
	smKafka "studio-scheduler-service/internal/scheduler-manager/kafka"
	"studio-scheduler-service/internal/scheduler-manager/metrics"
	"studio-scheduler-service/pkg/logger"
)

const (
	DefaultDigestCron = "0 8 * * *"
	digestJobTag      = "draft_digest"
)

// DigestService periodically publishes one message per event that still has
// unpublished scheduler changes.
type DigestService struct {
	DB        *gorm.DB
	Scheduler gocron.Scheduler
	Producer  smKafka.MessageWriter
	Log       logger.Logger
	Metrics   *metrics.Metrics
	CronExpr  string

	appContext context.Context
	now        func() time.Time
}

func NewDigestService(ctx context.Context, gormDB *gorm.DB, producer smKafka.MessageWriter, cronExpr string, log logger.Logger, m *metrics.Metrics) (*DigestService, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if cronExpr == "" {
		cronExpr = DefaultDigestCron
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DigestService{
		DB:         gormDB,
		Scheduler:  s,
		Producer:   producer,
		Log:        log,
		Metrics:    m,
		CronExpr:   cronExpr,
		appContext: ctx,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start registers the digest job and starts the scheduler.
func (s *DigestService) Start() error {
	s.Scheduler.RemoveByTags(digestJobTag)
	job, err := s.Scheduler.NewJob(
		gocron.CronJob(s.CronExpr, false),
		gocron.NewTask(func() {
			if _, err := s.RunOnce(s.appContext); err != nil {
				s.Log.Error("draft digest run failed", logger.Error(err))
			}
		}),
		gocron.WithName(digestJobTag),
		gocron.WithTags(digestJobTag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule draft digest with cron %q: %w", s.CronExpr, err)
	}
	s.Scheduler.Start()

	fields := []logger.Field{logger.String("cron", s.CronExpr), logger.String("job_id", job.ID().String())}
	if next, err := job.NextRun(); err == nil {
		fields = append(fields, logger.Time("next_run", next))
	}
	s.Log.Info("draft digest scheduled", fields...)
	return nil
}

func (s *DigestService) Stop() {
	if err := s.Scheduler.Shutdown(); err != nil {
		s.Log.Error("gocron shutdown failed", logger.Error(err))
	}
}

type draftRow struct {
	InstanceID string
	StudioID   string
	EventID    string
	DraftCount int64
}

// RunOnce publishes the digest for every instance with DRAFT tasks and
// returns how many messages were written.
func (s *DigestService) RunOnce(ctx context.Context) (int, error) {
	var rows []draftRow
	if err := s.DB.WithContext(ctx).Model(&db.SchedulerTask{}).
		Select("scheduler_instances.id AS instance_id, scheduler_instances.studio_id, scheduler_instances.event_id, COUNT(*) AS draft_count").
		Joins("JOIN scheduler_instances ON scheduler_instances.id = scheduler_tasks.scheduler_instance_id").
		Where("scheduler_tasks.sync_status = ?", db.SyncDraft).
		Group("scheduler_instances.id, scheduler_instances.studio_id, scheduler_instances.event_id").
		Order("scheduler_instances.studio_id").
		Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("count draft tasks: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	generated := s.now()
	msgs := make([]kafka.Message, 0, len(rows))
	for _, r := range rows {
		payload, err := json.Marshal(events.DraftDigestPayload{
			StudioID:    r.StudioID,
			EventID:     r.EventID,
			InstanceID:  r.InstanceID,
			DraftCount:  r.DraftCount,
			GeneratedAt: generated,
		})
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(r.EventID), Value: payload})
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.Producer.WriteMessages(writeCtx, msgs...); err != nil {
		return 0, fmt.Errorf("publish draft digest: %w", err)
	}
	s.Metrics.DigestIssued(len(msgs))
	s.Log.Info("draft digest published", logger.Int("events", len(msgs)))
	return len(msgs), nil
}
