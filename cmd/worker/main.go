package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"repo-digest/internal/adapters/completion"
	"repo-digest/internal/adapters/delivery"
	"repo-digest/internal/adapters/github"
	"repo-digest/internal/adapters/repo"
	"repo-digest/internal/domain"
	"repo-digest/internal/infra/cache"
	"repo-digest/internal/infra/config"
	"repo-digest/internal/infra/db"
	applog "repo-digest/internal/infra/log"
	"repo-digest/internal/infra/metrics"
	"repo-digest/internal/infra/openai"
	"repo-digest/internal/infra/queue"
	"repo-digest/internal/usecase/digest"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)

	var (
		redisClient *redis.Client
		dedupe      domain.Cache
	)
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: нет подключения к Redis")
		}
		defer redisClient.Close()
		dedupe = cache.NewRedis(redisClient)
	}

	digestQueue, closeQueue, err := queue.Open(cfg.Queues.Backend, cfg.RabbitURL, redisClient, cfg.Queues.Digest)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось инициализировать очередь")
	}
	defer func() { _ = closeQueue() }()

	fetcher, err := github.NewFetcher(github.Options{
		Token:   cfg.GitHub.Token,
		APIURL:  cfg.GitHub.APIURL,
		Timeout: cfg.GitHub.Timeout,
	}, applog.Component(logger, "github"))
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось создать клиента GitHub")
	}

	var completer domain.Completer = completion.Passthrough{}
	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "" {
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		completer = completion.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens)
	}

	digestService := digest.NewService(
		fetcher,
		digest.NewComposer(completer),
		delivery.NewDispatcher(applog.Component(logger, "delivery"),
			delivery.NewSlack(cfg.Delivery.Timeout),
			delivery.NewDiscord(cfg.Delivery.Timeout),
			delivery.Email{},
		),
		digest.NewLedger(store, store, applog.Component(logger, "ledger")),
		store,
		store,
		applog.Component(logger, "digest"),
	)

	worker := &jobWorker{
		log:     logger,
		queue:   digestQueue,
		dedupe:  dedupe,
		service: digestService,
	}

	logger.Info().Str("backend", cfg.Queues.Backend).Msg("worker: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("worker: остановлен")
}
