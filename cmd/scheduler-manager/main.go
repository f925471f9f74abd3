package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/prometheus/client_golang/prometheus"

	"studio-scheduler-service/internal/config"
	"studio-scheduler-service/internal/scheduler-manager/api"
	"studio-scheduler-service/internal/scheduler-manager/calendar"
	"studio-scheduler-service/internal/scheduler-manager/catalog"
	schedDB "studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/financials"
	smKafka "studio-scheduler-service/internal/scheduler-manager/kafka"
	"studio-scheduler-service/internal/scheduler-manager/metrics"
	"studio-scheduler-service/internal/scheduler-manager/services"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	gorm_db "studio-scheduler-service/pkg/db"
	"studio-scheduler-service/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Must(logger.Config{}).Fatal("Failed to load configuration", logger.Error(err))
	}
	log := logger.Must(cfg.Logging)
	defer func() { _ = log.Sync() }()
	log.Info("Scheduler Manager starting...")

	appCtx, appCancel := context.WithCancel(context.Background())

	gormDB, err := gorm_db.NewGormDB(gorm_db.Options{Type: cfg.Database.Type, DSN: cfg.Database.DSN, LogLevel: cfg.Database.LogLevel})
	if err != nil {
		log.Fatal("Failed to initialize database", logger.Error(err))
	}
	if err := gorm_db.AutoMigrate(gormDB, schedDB.AllModels()...); err != nil {
		log.Fatal("Failed to migrate database", logger.Error(err))
	}
	log.Info("Database ready", logger.String("type", cfg.Database.Type))

	m := metrics.New(prometheus.DefaultRegisterer)

	var cache tenant.Cache = tenant.NewMemoryCache()
	var redisCache *tenant.RedisCache
	if cfg.Redis.Address != "" {
		redisCache, err = tenant.NewRedisCache(appCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis tenant cache unavailable, using memory cache", logger.Error(err))
		} else {
			cache = redisCache
		}
	}

	commandProducer := smKafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.CalendarCommandTopic)
	digestProducer := smKafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.DraftDigestTopic)

	payroll := services.NewPayrollService(gormDB, log, m)
	tasks := services.NewTaskService(services.TaskDeps{
		DB:         gormDB,
		Calendar:   calendar.NewDispatcher(gormDB, commandProducer, log, m),
		Catalog:    catalog.NewDBProvider(gormDB),
		Financials: financials.NewDBProvider(gormDB),
		Payroll:    payroll,
		Log:        log,
		Metrics:    m,
	}, services.TaskServiceOptions{
		DefaultWindowDays: cfg.Scheduler.DefaultWindowDays,
		DetailTimeout:     cfg.Scheduler.DetailTimeout,
		CalendarSyncRPS:   cfg.Scheduler.CalendarSyncRPS,
	})

	resultService := services.NewResultService(gormDB,
		smKafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.CalendarResultTopic, cfg.Kafka.CalendarResultGroupID), log, m)
	resultService.StartConsuming(appCtx)

	digestService, err := services.NewDigestService(appCtx, gormDB, digestProducer, cfg.Scheduler.DraftDigestCron, log, m)
	if err != nil {
		log.Fatal("Failed to create digest service", logger.Error(err))
	}
	if err := digestService.Start(); err != nil {
		log.Fatal("Failed to start digest job", logger.Error(err))
	}

	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelInfo)

	h := server.Default(server.WithHostPorts(cfg.Server.Addr), server.WithExitWaitTime(cfg.Server.ExitWaitTime))

	handler := api.NewHandler(tasks,
		services.NewCategoryService(gormDB, log, cfg.Scheduler.DefaultWindowDays),
		payroll,
		services.NewChecklistService(gormDB),
		tenant.NewResolver(gormDB, cache, cfg.Scheduler.TenantCacheTTL, log),
		log)
	handler.Gatherer = prometheus.DefaultGatherer
	handler.Register(h)

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		hlog.Infof("Received signal: %s. Initiating graceful shutdown...", sig)

		appCancel()

		shutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer httpShutdownCancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			hlog.Errorf("Hertz server shutdown error: %v", err)
		} else {
			hlog.Info("Hertz server gracefully stopped.")
		}

		digestService.Stop()
		tasks.Wait()
		resultService.Close()

		for name, w := range map[string]smKafka.MessageWriter{"calendar commands": commandProducer, "draft digest": digestProducer} {
			if err := w.Close(); err != nil {
				log.Error("Kafka producer close error", logger.String("producer", name), logger.Error(err))
			}
		}
		if redisCache != nil {
			_ = redisCache.Close()
		}
		log.Info("Scheduler Manager gracefully shut down.")
	}()

	log.Info("Scheduler Manager starting Hertz server", logger.String("addr", cfg.Server.Addr))
	h.Spin()
}
