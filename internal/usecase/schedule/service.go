// Package schedule ставит в очередь плановые дайджесты мониторов.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// ErrInvalidHour возвращается, если час доставки вне диапазона 0..23.
var ErrInvalidHour = errors.New("schedule: hour must be between 0 and 23")

// Options задают окно доставки в UTC.
type Options struct {
	DailyHour int
	WeeklyDay time.Weekday
}

// Service отвечает за расписание мониторов.
type Service struct {
	monitors domain.MonitorRepo
	tasks    domain.ScheduleTaskRepo
	queue    domain.DigestQueue
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

// NewService создаёт сервис.
func NewService(monitors domain.MonitorRepo, tasks domain.ScheduleTaskRepo, queue domain.DigestQueue, opts Options, logger zerolog.Logger) (*Service, error) {
	if opts.DailyHour < 0 || opts.DailyHour > 23 {
		return nil, ErrInvalidHour
	}
	return &Service{
		monitors: monitors,
		tasks:    tasks,
		queue:    queue,
		opts:     opts,
		log:      logger,
		now:      time.Now,
	}, nil
}

// Slot возвращает слот монитора с указанной частотой, наступивший к моменту now.
// Для on_merge слотов нет.
func (o Options) Slot(cadence domain.Cadence, now time.Time) (time.Time, bool) {
	now = now.UTC()
	slot := time.Date(now.Year(), now.Month(), now.Day(), o.DailyHour, 0, 0, 0, time.UTC)
	switch cadence {
	case domain.CadenceDaily:
	case domain.CadenceWeekly:
		if now.Weekday() != o.WeeklyDay {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}
	if now.Before(slot) {
		return time.Time{}, false
	}
	return slot, true
}

// Tick ставит задачи для всех мониторов, чей слот наступил и ещё не занят.
// Возвращает число поставленных задач.
func (s *Service) Tick(ctx context.Context) (int, error) {
	now := s.now().UTC()
	monitors, err := s.monitors.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, m := range monitors {
		if err := ctx.Err(); err != nil {
			return enqueued, err
		}
		slot, ok := s.opts.Slot(m.Cadence, now)
		if !ok {
			continue
		}
		acquired, err := s.tasks.Acquire(ctx, m.ID, slot)
		if err != nil {
			metrics.ScheduledJobs.WithLabelValues(string(m.Cadence), "error").Inc()
			s.log.Error().Err(err).Str("monitor_id", m.ID).Msg("scheduler: не удалось занять слот")
			continue
		}
		if !acquired {
			continue
		}
		job := domain.DigestJob{
			ID:             uuid.NewString(),
			MonitorID:      m.ID,
			Repo:           m.Repo,
			DeliveryMethod: m.DeliveryMethod,
			Destination:    m.Destination,
			ScheduledFor:   slot,
			RequestedAt:    now,
			Cause:          domain.DigestCauseScheduled,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			metrics.ScheduledJobs.WithLabelValues(string(m.Cadence), "error").Inc()
			s.log.Error().Err(err).Str("monitor_id", m.ID).Time("slot", slot).Msg("scheduler: не удалось поставить задачу")
			continue
		}
		metrics.ScheduledJobs.WithLabelValues(string(m.Cadence), "enqueued").Inc()
		enqueued++
	}
	if enqueued > 0 {
		s.log.Info().Int("jobs", enqueued).Msg("scheduler: задачи поставлены")
	}
	return enqueued, nil
}

// Run вызывает Tick с заданным интервалом до отмены контекста.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("scheduler: ошибка выборки мониторов")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
