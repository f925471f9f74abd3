package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"studio-scheduler-service/internal/models"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/metrics"
	"studio-scheduler-service/pkg/logger"
	"studio-scheduler-service/pkg/validation"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ResultService consumes calendar worker results and records the external
// calendar ids and invitation state on tasks.
type ResultService struct {
	DB      *gorm.DB
	Reader  MessageReader
	Log     logger.Logger
	Metrics *metrics.Metrics
}

func NewResultService(gormDB *gorm.DB, reader MessageReader, log logger.Logger, m *metrics.Metrics) *ResultService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ResultService{DB: gormDB, Reader: reader, Log: log, Metrics: m}
}

func (s *ResultService) StartConsuming(ctx context.Context) {
	s.Log.Info("calendar result consumer starting")
	go func() {
		for {
			select {
			case <-ctx.Done():
				s.Log.Info("calendar result consumer stopped")
				return
			default:
			}

			readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			msg, err := s.Reader.ReadMessage(readCtx)
			cancel()

			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, io.EOF):
				s.Log.Info("calendar result reader closed")
				return
			case err != nil:
				s.Log.Error("calendar result read failed", logger.Error(err))
				time.Sleep(time.Second)
				continue
			}

			if err := s.HandleResult(ctx, msg.Value); err != nil {
				s.Log.Warn("calendar result skipped",
					logger.String("topic", msg.Topic), logger.Int64("offset", msg.Offset), logger.Error(err))
			}
		}
	}()
}

// HandleResult validates one result payload and applies it to its task.
func (s *ResultService) HandleResult(ctx context.Context, raw []byte) error {
	if err := validation.CalendarResult.Validate(raw); err != nil {
		return err
	}
	var res models.CalendarResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return err
	}
	s.Metrics.CalendarResult(res.Type, res.Status)

	if res.Type != models.CommandSyncTask || res.TaskID == "" {
		if res.Status == models.ResultFailed {
			s.Log.Warn("calendar delete failed",
				logger.String("command_id", res.CommandID), logger.String("google_event_id", res.GoogleEventID), logger.String("error", res.Error))
		}
		return nil
	}

	updates := map[string]interface{}{}
	if res.Status == models.ResultCompleted {
		if res.GoogleEventID != "" {
			updates["google_event_id"] = res.GoogleEventID
		}
		if res.GoogleCalendarID != "" {
			updates["google_calendar_id"] = res.GoogleCalendarID
		}
	} else {
		updates["invitation_status"] = db.InvitationError
		s.Log.Warn("calendar sync failed",
			logger.String("task_id", res.TaskID), logger.String("command_id", res.CommandID), logger.String("error", res.Error))
	}
	if len(updates) == 0 {
		return nil
	}
	tx := s.DB.WithContext(ctx).Model(&db.SchedulerTask{}).Where("id = ?", res.TaskID).Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		s.Log.Debug("calendar result for unknown task", logger.String("task_id", res.TaskID))
	}
	return nil
}

func (s *ResultService) Close() {
	if s.Reader != nil {
		if err := s.Reader.Close(); err != nil {
			s.Log.Warn("close calendar result reader", logger.Error(err))
		}
	}
}
