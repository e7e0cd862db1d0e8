// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings (ops/admin surface only)
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3010"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Database  DatabaseConfig
	LLM       LLMConfig
	Worker    WorkerConfig
	Scheduler SchedulerConfig
	Approval  ApprovalConfig

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"incidentwire"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"incidentwire"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// StageOverride holds per-stage LLM settings. Empty fields fall back to the
// router defaults.
type StageOverride struct {
	Provider  string `env:"PROVIDER"`
	Model     string `env:"MODEL"`
	MaxTokens int    `env:"MAX_TOKENS"`
	Enabled   bool   `env:"ENABLED" envDefault:"true"`
}

// LLMConfig holds provider credentials, defaults, and per-stage overrides
type LLMConfig struct {
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OllamaBaseURL   string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434/v1"`

	DefaultProvider  string `env:"DEFAULT_LLM_PROVIDER" envDefault:"anthropic"`
	DefaultModel     string `env:"DEFAULT_LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	FallbackProvider string `env:"FALLBACK_LLM_PROVIDER"`
	FallbackModel    string `env:"FALLBACK_LLM_MODEL"`

	DefaultMaxTokens int           `env:"LLM_MAX_TOKENS" envDefault:"4096"`
	CallTimeout      time.Duration `env:"LLM_CALL_TIMEOUT" envDefault:"300s"`
	Concurrency      int           `env:"LLM_CONCURRENCY" envDefault:"4"`
	RequestsPerMin   int           `env:"LLM_REQUESTS_PER_MINUTE" envDefault:"60"`

	Triage              StageOverride `envPrefix:"LLM_TRIAGE_"`
	Stage1              StageOverride `envPrefix:"LLM_STAGE1_"`
	Stage2              StageOverride `envPrefix:"LLM_STAGE2_"`
	RelevanceAI         StageOverride `envPrefix:"LLM_RELEVANCE_"`
	EnrichmentReextract StageOverride `envPrefix:"LLM_ENRICHMENT_REEXTRACT_"`
}

// WorkerConfig holds queue topology and job timing settings
type WorkerConfig struct {
	// Queues is the list of queues this worker drains, in priority order
	Queues       []string      `env:"WORKER_QUEUES" envDefault:"fetch,extraction,enrichment,default" envSeparator:","`
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`

	StaleTimeout time.Duration `env:"JOB_STALE_TIMEOUT" envDefault:"30m"`

	FetchSoftTimeout    time.Duration `env:"FETCH_SOFT_TIMEOUT" envDefault:"300s"`
	FetchHardTimeout    time.Duration `env:"FETCH_HARD_TIMEOUT" envDefault:"360s"`
	ProcessSoftTimeout  time.Duration `env:"PROCESS_SOFT_TIMEOUT" envDefault:"600s"`
	ProcessHardTimeout  time.Duration `env:"PROCESS_HARD_TIMEOUT" envDefault:"720s"`
	BatchSoftTimeout    time.Duration `env:"BATCH_SOFT_TIMEOUT" envDefault:"3600s"`
	BatchHardTimeout    time.Duration `env:"BATCH_HARD_TIMEOUT" envDefault:"3720s"`
	EnrichSoftTimeout   time.Duration `env:"ENRICH_SOFT_TIMEOUT" envDefault:"600s"`
	EnrichHardTimeout   time.Duration `env:"ENRICH_HARD_TIMEOUT" envDefault:"720s"`
	PipelineSoftTimeout time.Duration `env:"PIPELINE_SOFT_TIMEOUT" envDefault:"3600s"`
	PipelineHardTimeout time.Duration `env:"PIPELINE_HARD_TIMEOUT" envDefault:"3720s"`
}

// SchedulerConfig holds beat schedule cron expressions (with seconds field)
type SchedulerConfig struct {
	FetchCron         string        `env:"SCHEDULE_FETCH" envDefault:"0 0 * * * *"`
	StaleSweepCron    string        `env:"SCHEDULE_STALE_SWEEP" envDefault:"0 */15 * * * *"`
	MetricsRollupCron string        `env:"SCHEDULE_METRICS_ROLLUP" envDefault:"0 */5 * * * *"`
	ViewRefreshCron   string        `env:"SCHEDULE_VIEW_REFRESH" envDefault:"0 0 */6 * * *"`
	TerminalJobMaxAge time.Duration `env:"TERMINAL_JOB_MAX_AGE" envDefault:"720h"`
}

// ApprovalConfig holds global approval thresholds; category and per-type
// settings are layered on top of these at decision time.
type ApprovalConfig struct {
	AutoApproveEnabled  bool    `env:"APPROVAL_AUTO_APPROVE" envDefault:"true"`
	AutoRejectEnabled   bool    `env:"APPROVAL_AUTO_REJECT" envDefault:"true"`
	AutoRejectBelow     float64 `env:"APPROVAL_AUTO_REJECT_BELOW" envDefault:"0.30"`
	MinConfidenceReview float64 `env:"APPROVAL_MIN_CONFIDENCE_REVIEW" envDefault:"0.50"`
	FieldConfidenceMin  float64 `env:"APPROVAL_FIELD_CONFIDENCE_MIN" envDefault:"0.70"`
}

// NewConfig parses configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
