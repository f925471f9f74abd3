// Package config loads scheduler configuration from a YAML file, .env files
// and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"studio-scheduler-service/pkg/logger"
)

const (
	DefaultServerAddr            = ":8080"
	DefaultDBType                = "sqlite"
	DefaultSQLiteDSN             = "scheduler.db"
	DefaultKafkaBrokers          = "localhost:9092"
	DefaultCalendarCommandTopic  = "calendar_commands"
	DefaultCalendarResultTopic   = "calendar_results"
	DefaultCalendarResultGroupID = "scheduler-manager-calendar-results"
	DefaultCalendarWorkerGroupID = "calendar-worker-group"
	DefaultDraftDigestTopic      = "scheduler_draft_digest"
	DefaultDraftDigestCron       = "0 * * * *"
	DefaultWindowDays            = 30
	DefaultDetailTimeout         = 8 * time.Second
	DefaultCalendarSyncRPS       = 5
	DefaultTenantCacheTTL        = 5 * time.Minute
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Redis     RedisConfig     `yaml:"redis"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Logging   logger.Config   `yaml:"logging"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ExitWaitTime time.Duration `yaml:"exit_wait_time"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	DSN      string `yaml:"dsn"`
	LogLevel string `yaml:"log_level"`
}

type KafkaConfig struct {
	Brokers               []string `yaml:"brokers"`
	CalendarCommandTopic  string   `yaml:"calendar_command_topic"`
	CalendarResultTopic   string   `yaml:"calendar_result_topic"`
	CalendarResultGroupID string   `yaml:"calendar_result_group_id"`
	CalendarWorkerGroupID string   `yaml:"calendar_worker_group_id"`
	DraftDigestTopic      string   `yaml:"draft_digest_topic"`
}

type SchedulerConfig struct {
	DefaultWindowDays int           `yaml:"default_window_days"`
	DetailTimeout     time.Duration `yaml:"detail_timeout"`
	CalendarSyncRPS   int           `yaml:"calendar_sync_rps"`
	DraftDigestCron   string        `yaml:"draft_digest_cron"`
	TenantCacheTTL    time.Duration `yaml:"tenant_cache_ttl"`
}

// RedisConfig enables the Redis tenant cache when Address is set.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CalendarConfig is read by the calendar worker.
type CalendarConfig struct {
	BridgeURL string        `yaml:"bridge_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Load reads path (optional) and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ENV_FILE wins over .env.local, which wins over .env.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	setString(&cfg.Database.Type, "DB_TYPE")
	setString(&cfg.Database.DSN, "DB_DSN")
	setString(&cfg.Database.LogLevel, "DB_LOG_LEVEL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString(&cfg.Kafka.CalendarCommandTopic, "CALENDAR_COMMAND_TOPIC")
	setString(&cfg.Kafka.CalendarResultTopic, "CALENDAR_RESULT_TOPIC")
	setString(&cfg.Kafka.CalendarResultGroupID, "CALENDAR_RESULT_GROUP_ID")
	setString(&cfg.Kafka.CalendarWorkerGroupID, "CALENDAR_WORKER_GROUP_ID")
	setString(&cfg.Kafka.DraftDigestTopic, "DRAFT_DIGEST_TOPIC")
	setInt(&cfg.Scheduler.DefaultWindowDays, "SCHEDULER_DEFAULT_WINDOW_DAYS")
	setDuration(&cfg.Scheduler.DetailTimeout, "SCHEDULER_DETAIL_TIMEOUT")
	setInt(&cfg.Scheduler.CalendarSyncRPS, "CALENDAR_SYNC_RPS")
	setString(&cfg.Scheduler.DraftDigestCron, "DRAFT_DIGEST_CRON")
	setDuration(&cfg.Scheduler.TenantCacheTTL, "TENANT_CACHE_TTL")
	setString(&cfg.Redis.Address, "REDIS_ADDRESS")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setString(&cfg.Calendar.BridgeURL, "CALENDAR_BRIDGE_URL")
	setDuration(&cfg.Calendar.Timeout, "CALENDAR_TIMEOUT")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ExitWaitTime == 0 {
		c.Server.ExitWaitTime = 5 * time.Second
	}
	if c.Database.Type == "" {
		c.Database.Type = DefaultDBType
	}
	if c.Database.DSN == "" && c.Database.Type == DefaultDBType {
		c.Database.DSN = DefaultSQLiteDSN
	}
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = strings.Split(DefaultKafkaBrokers, ",")
	}
	if c.Kafka.CalendarCommandTopic == "" {
		c.Kafka.CalendarCommandTopic = DefaultCalendarCommandTopic
	}
	if c.Kafka.CalendarResultTopic == "" {
		c.Kafka.CalendarResultTopic = DefaultCalendarResultTopic
	}
	if c.Kafka.CalendarResultGroupID == "" {
		c.Kafka.CalendarResultGroupID = DefaultCalendarResultGroupID
	}
	if c.Kafka.CalendarWorkerGroupID == "" {
		c.Kafka.CalendarWorkerGroupID = DefaultCalendarWorkerGroupID
	}
	if c.Kafka.DraftDigestTopic == "" {
		c.Kafka.DraftDigestTopic = DefaultDraftDigestTopic
	}
	if c.Scheduler.DefaultWindowDays <= 0 {
		c.Scheduler.DefaultWindowDays = DefaultWindowDays
	}
	if c.Scheduler.DetailTimeout <= 0 {
		c.Scheduler.DetailTimeout = DefaultDetailTimeout
	}
	if c.Scheduler.CalendarSyncRPS <= 0 {
		c.Scheduler.CalendarSyncRPS = DefaultCalendarSyncRPS
	}
	if c.Scheduler.DraftDigestCron == "" {
		c.Scheduler.DraftDigestCron = DefaultDraftDigestCron
	}
	if c.Scheduler.TenantCacheTTL <= 0 {
		c.Scheduler.TenantCacheTTL = DefaultTenantCacheTTL
	}
	if c.Calendar.Timeout <= 0 {
		c.Calendar.Timeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations the binaries cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("database.type must be sqlite or mysql, got %q", c.Database.Type)
	}
	if c.Scheduler.DefaultWindowDays > 365 {
		return fmt.Errorf("scheduler.default_window_days must be <= 365, got %d", c.Scheduler.DefaultWindowDays)
	}
	return nil
}
