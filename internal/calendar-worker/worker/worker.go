// Package worker consumes calendar commands, executes them and publishes
// the results for the scheduler manager.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"studio-scheduler-service/internal/calendar-worker/executors"
	"studio-scheduler-service/internal/models"
	smKafka "studio-scheduler-service/internal/scheduler-manager/kafka"
	"studio-scheduler-service/pkg/logger"
)

const DefaultConcurrency = 4

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Worker struct {
	Reader      MessageReader
	Results     smKafka.MessageWriter
	Executor    executors.Executor
	Log         logger.Logger
	Concurrency int
}

func New(reader MessageReader, results smKafka.MessageWriter, executor executors.Executor, log logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{Reader: reader, Results: results, Executor: executor, Log: log, Concurrency: DefaultConcurrency}
}

// Run reads commands until ctx is cancelled or the reader closes, then waits
// for in-flight commands.
func (w *Worker) Run(ctx context.Context) {
	limit := w.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	defer wg.Wait()

	w.Log.Info("calendar worker listening for commands", logger.Int("concurrency", limit))
	for {
		select {
		case <-ctx.Done():
			w.Log.Info("calendar worker stopping")
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, time.Second)
		msg, err := w.Reader.ReadMessage(readCtx)
		cancel()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			continue
		case errors.Is(err, context.Canceled):
			continue
		case errors.Is(err, io.EOF):
			w.Log.Info("calendar command reader closed")
			return
		case err != nil:
			w.Log.Error("calendar command read failed", logger.Error(err))
			time.Sleep(time.Second)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(value []byte) {
			defer func() { <-sem; wg.Done() }()
			res, ok := w.Handle(ctx, value)
			if ok {
				w.publish(res)
			}
		}(msg.Value)
	}
}

// Handle executes one raw command. ok is false when the payload is not a
// command at all and no result can be addressed.
func (w *Worker) Handle(ctx context.Context, raw []byte) (models.CalendarResult, bool) {
	var cmd models.CalendarCommand
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.CommandID == "" {
		w.Log.Warn("calendar command dropped", logger.String("payload", string(raw)))
		return models.CalendarResult{}, false
	}

	res := models.CalendarResult{CommandID: cmd.CommandID, Type: cmd.Type, TaskID: cmd.TaskID}
	out, err := w.Executor.Execute(ctx, cmd)
	if err != nil {
		w.Log.Warn("calendar command failed",
			logger.String("command_id", cmd.CommandID), logger.String("type", cmd.Type), logger.Error(err))
		res.Status = models.ResultFailed
		res.Error = err.Error()
		res.GoogleEventID = cmd.GoogleEventID
		return res, true
	}
	res.Status = models.ResultCompleted
	res.GoogleEventID = out.GoogleEventID
	res.GoogleCalendarID = out.GoogleCalendarID
	w.Log.Info("calendar command completed",
		logger.String("command_id", cmd.CommandID), logger.String("type", cmd.Type), logger.String("google_event_id", res.GoogleEventID))
	return res, true
}

// publish uses its own timeout so results of in-flight commands still go out
// during shutdown.
func (w *Worker) publish(res models.CalendarResult) {
	if err := w.Publish(context.Background(), res); err != nil {
		w.Log.Error("calendar result not sent", logger.String("command_id", res.CommandID), logger.Error(err))
	}
}

func (w *Worker) Publish(ctx context.Context, res models.CalendarResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal calendar result: %w", err)
	}
	key := res.TaskID
	if key == "" {
		key = res.CommandID
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return w.Results.WriteMessages(writeCtx, kafka.Message{Key: []byte(key), Value: payload})
}
