package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"studio-scheduler-service/internal/calendar-worker/executors"
	"studio-scheduler-service/internal/calendar-worker/worker"
	"studio-scheduler-service/internal/config"
	smKafka "studio-scheduler-service/internal/scheduler-manager/kafka"
	"studio-scheduler-service/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Must(logger.Config{}).Fatal("Failed to load configuration", logger.Error(err))
	}
	log := logger.Must(cfg.Logging)
	defer func() { _ = log.Sync() }()
	log.Info("Calendar Worker starting...")

	registry := executors.NewRegistry()
	registry.Register(executors.ExecutorTypeLog, executors.NewLogExecutor(log))
	executorType := executors.ExecutorTypeLog
	if cfg.Calendar.BridgeURL != "" {
		webhook, err := executors.NewWebhookExecutor(cfg.Calendar.BridgeURL, cfg.Calendar.Timeout)
		if err != nil {
			log.Fatal("Failed to create webhook executor", logger.Error(err))
		}
		registry.Register(executors.ExecutorTypeWebhook, webhook)
		executorType = executors.ExecutorTypeWebhook
	}
	executor, err := registry.Get(executorType)
	if err != nil {
		log.Fatal("Failed to select calendar executor", logger.Error(err))
	}

	reader := smKafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.CalendarCommandTopic, cfg.Kafka.CalendarWorkerGroupID)
	defer reader.Close()
	producer := smKafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.CalendarResultTopic)
	defer producer.Close()
	log.Info("Calendar Worker configured",
		logger.Strings("brokers", cfg.Kafka.Brokers),
		logger.String("command_topic", cfg.Kafka.CalendarCommandTopic),
		logger.String("result_topic", cfg.Kafka.CalendarResultTopic),
		logger.String("executor", executorType),
		logger.Strings("registered", registry.Types()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		log.Info("Shutdown signal received", logger.String("signal", sig.String()))
		cancel()
	}()

	worker.New(reader, producer, executor, log).Run(ctx)
	log.Info("Calendar Worker stopped.")
}
