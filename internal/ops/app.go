// Package ops holds the scheduler-ops command tree.
package ops

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"gorm.io/gorm"

	"studio-scheduler-service/internal/config"
	"studio-scheduler-service/internal/scheduler-manager/calendar"
	"studio-scheduler-service/internal/scheduler-manager/catalog"
	"studio-scheduler-service/internal/scheduler-manager/financials"
	smKafka "studio-scheduler-service/internal/scheduler-manager/kafka"
	"studio-scheduler-service/internal/scheduler-manager/services"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	gorm_db "studio-scheduler-service/pkg/db"
	"studio-scheduler-service/pkg/logger"
)

type Flags struct {
	ConfigPath string
	LogLevel   string
	DBType     string
	DBDSN      string
}

// App is populated by the root Before hook; commands hold a pointer to it.
type App struct {
	Config  *config.Config
	Log     logger.Logger
	DB      *gorm.DB
	Tasks   *services.TaskService
	Tenants *tenant.Resolver

	// Writers override the Kafka producers the commands would create.
	CommandWriter smKafka.MessageWriter
	DigestWriter  smKafka.MessageWriter

	closers []func() error
}

// NewRoot builds the scheduler-ops command with every subcommand registered.
func NewRoot(flags *Flags, app *App) *cli.Command {
	root := &cli.Command{
		Name:      "scheduler-ops",
		Usage:     "Operate the studio scheduler",
		UsageText: "scheduler-ops [global options] command [command options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("CONFIG_FILE"),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "db-type",
				Usage:       "database type (sqlite, mysql); overrides config",
				Destination: &flags.DBType,
			},
			&cli.StringFlag{
				Name:        "db-dsn",
				Usage:       "database DSN; overrides config",
				Destination: &flags.DBDSN,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, app.init(flags)
		},
		After: func(ctx context.Context, c *cli.Command) error {
			return app.close()
		},
	}

	root = NewMigrateCmd(app).Register(root)
	root = NewResetCmd(app).Register(root)
	root = NewDraftsCmd(app).Register(root)
	root = NewDigestCmd(app).Register(root)
	return root
}

func (a *App) init(flags *Flags) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.DBType != "" {
		cfg.Database.Type = flags.DBType
	}
	if flags.DBDSN != "" {
		cfg.Database.DSN = flags.DBDSN
	}
	cfg.Logging.Level = flags.LogLevel
	a.Config = cfg

	if a.Log == nil {
		if a.Log, err = logger.New(cfg.Logging); err != nil {
			return err
		}
	}
	if a.DB, err = gorm_db.NewGormDB(gorm_db.Options{Type: cfg.Database.Type, DSN: cfg.Database.DSN, LogLevel: cfg.Database.LogLevel}); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if a.CommandWriter == nil {
		w := smKafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.CalendarCommandTopic)
		a.CommandWriter = w
		a.closers = append(a.closers, w.Close)
	}
	a.Tasks = services.NewTaskService(services.TaskDeps{
		DB:         a.DB,
		Calendar:   calendar.NewDispatcher(a.DB, a.CommandWriter, a.Log, nil),
		Catalog:    catalog.NewDBProvider(a.DB),
		Financials: financials.NewDBProvider(a.DB),
		Payroll:    services.NewPayrollService(a.DB, a.Log, nil),
		Log:        a.Log,
	}, services.TaskServiceOptions{
		DefaultWindowDays: cfg.Scheduler.DefaultWindowDays,
		DetailTimeout:     cfg.Scheduler.DetailTimeout,
		CalendarSyncRPS:   cfg.Scheduler.CalendarSyncRPS,
	})
	a.Tenants = tenant.NewResolver(a.DB, nil, 0, a.Log)
	return nil
}

func (a *App) close() error {
	if a.Tasks != nil {
		a.Tasks.Wait()
	}
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return firstErr
}

func eventFlags(studio, event *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "studio", Usage: "studio slug", Required: true, Destination: studio},
		&cli.StringFlag{Name: "event", Usage: "event id", Required: true, Destination: event},
	}
}
