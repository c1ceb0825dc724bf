package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"repo-digest/internal/adapters/completion"
	"repo-digest/internal/adapters/delivery"
	"repo-digest/internal/adapters/github"
	"repo-digest/internal/adapters/httpapi"
	"repo-digest/internal/adapters/repo"
	"repo-digest/internal/domain"
	"repo-digest/internal/infra/cache"
	"repo-digest/internal/infra/config"
	"repo-digest/internal/infra/db"
	httpinfra "repo-digest/internal/infra/http"
	applog "repo-digest/internal/infra/log"
	"repo-digest/internal/infra/metrics"
	"repo-digest/internal/infra/openai"
	"repo-digest/internal/usecase/digest"
	metricsusecase "repo-digest/internal/usecase/metrics"
	"repo-digest/internal/usecase/monitors"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось применить схему")
	}
	store := repo.NewPostgres(pool)

	var limiter domain.RateLimiter
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к Redis")
		}
		defer client.Close()
		limiter = cache.NewRedis(client)
	} else {
		logger.Warn().Msg("api: REDIS_ADDR не задан, лимиты запросов отключены")
	}

	ghOpts := github.Options{Token: cfg.GitHub.Token, APIURL: cfg.GitHub.APIURL, Timeout: cfg.GitHub.Timeout}
	fetcher, err := github.NewFetcher(ghOpts, applog.Component(logger, "github"))
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось создать клиента GitHub")
	}
	visibility, err := github.NewVisibility(ghOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось создать клиента GitHub GraphQL")
	}

	ledger := digest.NewLedger(store, store, applog.Component(logger, "ledger"))
	digestService := digest.NewService(
		fetcher,
		digest.NewComposer(newCompleter(cfg)),
		delivery.NewDispatcher(applog.Component(logger, "delivery"),
			delivery.NewSlack(cfg.Delivery.Timeout),
			delivery.NewDiscord(cfg.Delivery.Timeout),
			delivery.Email{},
		),
		ledger,
		store,
		store,
		applog.Component(logger, "digest"),
	)
	monitorService := monitors.NewService(store, store, store, visibility, cfg.PlanLimits(), applog.Component(logger, "monitors"))
	metricsService := metricsusecase.NewService(store, store)

	server := httpinfra.NewServer(applog.Component(logger, "http"))
	httpapi.NewHandler(digestService, ledger, monitorService, metricsService, limiter, httpapi.Limits{
		Default: cfg.RateLimit.Default,
		Digest:  cfg.RateLimit.Digest,
		Try:     cfg.RateLimit.Try,
	}, applog.Component(logger, "api")).Mount(server.Router)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}

// newCompleter включает доработку хайлайтов через OpenAI, если она настроена.
func newCompleter(cfg config.AppConfig) domain.Completer {
	if !cfg.OpenAI.Enabled || cfg.OpenAI.APIKey == "" {
		return completion.Passthrough{}
	}
	client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	return completion.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens)
}
