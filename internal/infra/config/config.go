package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"

	"repo-digest/internal/domain"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	GitHub struct {
		Token   string        `envconfig:"GITHUB_TOKEN"`
		APIURL  string        `envconfig:"GITHUB_API_URL"`
		Timeout time.Duration `envconfig:"GITHUB_TIMEOUT" default:"15s"`
	} `envconfig:""`

	OpenAI struct {
		Enabled   bool          `envconfig:"OPENAI_ENABLED" default:"false"`
		APIKey    string        `envconfig:"OPENAI_API_KEY"`
		BaseURL   string        `envconfig:"OPENAI_BASE_URL"`
		Model     string        `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
		MaxTokens int           `envconfig:"OPENAI_MAX_TOKENS" default:"400"`
		Timeout   time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Delivery struct {
		Timeout time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"10s"`
	} `envconfig:""`

	RateLimit struct {
		Default int `envconfig:"RATE_LIMIT_DEFAULT" default:"100"`
		Digest  int `envconfig:"RATE_LIMIT_DIGEST" default:"10"`
		Try     int `envconfig:"RATE_LIMIT_TRY" default:"3"`
	} `envconfig:""`

	Plans struct {
		FreeRepos int `envconfig:"PLAN_FREE_REPOS" default:"1"`
		ProRepos  int `envconfig:"PLAN_PRO_REPOS" default:"5"`
		TeamRepos int `envconfig:"PLAN_TEAM_REPOS" default:"100"`
	} `envconfig:""`

	Queues struct {
		Backend string `envconfig:"QUEUE_BACKEND" default:"rabbitmq"`
		Digest  string `envconfig:"DIGEST_QUEUE_KEY" default:"digest_jobs"`
	} `envconfig:""`

	Schedule struct {
		Tick          time.Duration `envconfig:"SCHEDULE_TICK" default:"1m"`
		DailyHour     int           `envconfig:"SCHEDULE_DAILY_HOUR" default:"9"`
		WeeklyDay     time.Weekday  `envconfig:"SCHEDULE_WEEKLY_DAY" default:"1"`
		RetentionDays int           `envconfig:"RETENTION_DAYS" default:"30"`
	} `envconfig:""`
}

// PlanLimits возвращает лимиты тарифов из конфигурации.
func (c AppConfig) PlanLimits() domain.PlanLimits {
	return domain.PlanLimits{
		FreeRepos: c.Plans.FreeRepos,
		ProRepos:  c.Plans.ProRepos,
		TeamRepos: c.Plans.TeamRepos,
	}
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse разбирает окружение без завершения процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
