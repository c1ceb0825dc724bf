package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"repo-digest/internal/adapters/repo"
	"repo-digest/internal/infra/cache"
	"repo-digest/internal/infra/config"
	"repo-digest/internal/infra/db"
	applog "repo-digest/internal/infra/log"
	"repo-digest/internal/infra/metrics"
	"repo-digest/internal/infra/queue"
	"repo-digest/internal/usecase/monitors"
	"repo-digest/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:          "scheduler",
		Short:        "Плановая рассылка дайджестов и очистка удалённых мониторов",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(runCmd(cfg, logger), tickCmd(cfg, logger), purgeCmd(cfg, logger))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd(cfg config.AppConfig, logger zerolog.Logger) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ставить задачи по тикеру до остановки",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			metrics.MustRegister(prometheus.DefaultRegisterer)
			metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

			svc, cleanup, err := newSchedule(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			logger.Info().Dur("interval", interval).Msg("scheduler: старт")
			return svc.Run(ctx, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", cfg.Schedule.Tick, "интервал между проходами")
	return cmd
}

func tickCmd(cfg config.AppConfig, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Один проход планировщика",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newSchedule(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := svc.Tick(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().Int("jobs", n).Msg("scheduler: проход завершён")
			return nil
		},
	}
}

func purgeCmd(cfg config.AppConfig, logger zerolog.Logger) *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Окончательно удалить мониторы, удалённые раньше срока хранения",
		RunE: func(cmd *cobra.Command, args []string) error {
			if retentionDays <= 0 {
				return fmt.Errorf("retention-days must be positive, got %d", retentionDays)
			}
			ctx := cmd.Context()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			store := repo.NewPostgres(pool)

			retention := time.Duration(retentionDays) * 24 * time.Hour
			svc := monitors.NewService(store, store, nil, nil, cfg.PlanLimits(), applog.Component(logger, "monitors"))
			purged, err := svc.Purge(ctx, retention)
			if err != nil {
				return fmt.Errorf("purge monitors: %w", err)
			}
			slots, err := store.PurgeScheduleTasks(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return fmt.Errorf("purge schedule slots: %w", err)
			}
			logger.Info().Int64("monitors", purged).Int64("slots", slots).Int("retention_days", retentionDays).Msg("scheduler: очистка завершена")
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", cfg.Schedule.RetentionDays, "срок хранения удалённых мониторов в днях")
	return cmd
}

func connect(ctx context.Context, cfg config.AppConfig) (*pgxpool.Pool, error) {
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("нет подключения к БД: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// newSchedule поднимает БД и очередь для планировщика.
func newSchedule(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*schedule.Service, func(), error) {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := repo.NewPostgres(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		if redisClient, err = cache.Connect(ctx, cfg.RedisAddr); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	digestQueue, closeQueue, err := queue.Open(cfg.Queues.Backend, cfg.RabbitURL, redisClient, cfg.Queues.Digest)
	if err != nil {
		pool.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, nil, fmt.Errorf("очередь: %w", err)
	}
	cleanup := func() {
		_ = closeQueue()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
	}

	svc, err := schedule.NewService(store, store, digestQueue, schedule.Options{
		DailyHour: cfg.Schedule.DailyHour,
		WeeklyDay: cfg.Schedule.WeeklyDay,
	}, applog.Component(logger, "scheduler"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
