// Package metrics сворачивает записи дайджестов в итоги за период и дневные ряды.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/montanaflynn/stats"

	"repo-digest/internal/domain"
)

const (
	MinPeriodDays = 1
	MaxPeriodDays = 90

	day = 24 * time.Hour
)

// Scope — организация и, при необходимости, конкретный монитор.
type Scope struct {
	OrgID     string
	MonitorID string
}

// Totals — итоги за период и, по запросу, за предыдущий период той же длины.
type Totals struct {
	PeriodDays int             `json:"period_days"`
	Metrics    domain.Metrics  `json:"metrics"`
	Previous   *domain.Metrics `json:"previous_metrics,omitempty"`
}

// Series — дневной ряд с нулевыми днями и средними по полям.
type Series struct {
	PeriodDays    int                      `json:"period_days"`
	Points        []domain.TimeseriesPoint `json:"timeseries"`
	DailyAverages map[string]float64       `json:"daily_averages"`
	From          time.Time                `json:"from"`
	To            time.Time                `json:"to"`
}

// Service агрегирует метрики из журнала дайджестов.
type Service struct {
	monitors domain.MonitorRepo
	digests  domain.DigestRepo
	now      func() time.Time
}

// NewService создаёт агрегатор.
func NewService(monitors domain.MonitorRepo, digests domain.DigestRepo) *Service {
	return &Service{monitors: monitors, digests: digests, now: time.Now}
}

// ValidatePeriod проверяет диапазон 1..90 дней.
func ValidatePeriod(periodDays int) error {
	if periodDays < MinPeriodDays || periodDays > MaxPeriodDays {
		return domain.ErrInvalidPeriod
	}
	return nil
}

// TotalsWindow возвращает [now - N*(offset+1) дней, now - N*offset дней).
func TotalsWindow(now time.Time, periodDays, offsetPeriods int) (time.Time, time.Time) {
	period := time.Duration(periodDays) * day
	to := now.Add(-period * time.Duration(offsetPeriods))
	return to.Add(-period), to
}

// SeriesWindow возвращает окно ряда: последние 24 часа для одного дня, иначе
// N календарных дней UTC, начиная с полуночи N-1 дней назад.
func SeriesWindow(now time.Time, periodDays int) (time.Time, time.Time) {
	now = now.UTC()
	if periodDays == 1 {
		return now.Add(-day), now
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -(periodDays - 1)), today.Add(day)
}

// Totals считает итоги за период; compare добавляет предыдущий период.
func (s *Service) Totals(ctx context.Context, scope Scope, periodDays int, compare bool) (Totals, error) {
	if err := ValidatePeriod(periodDays); err != nil {
		return Totals{}, err
	}
	now := s.now().UTC()
	from, to := TotalsWindow(now, periodDays, 0)
	current, err := s.Sum(ctx, scope, from, to)
	if err != nil {
		return Totals{}, err
	}
	out := Totals{PeriodDays: periodDays, Metrics: current}
	if compare {
		pFrom, pTo := TotalsWindow(now, periodDays, 1)
		prev, err := s.Sum(ctx, scope, pFrom, pTo)
		if err != nil {
			return Totals{}, err
		}
		out.Previous = &prev
	}
	return out, nil
}

// Timeseries строит ряд фиксированной длины: пропущенные дни заполняются нулями.
func (s *Service) Timeseries(ctx context.Context, scope Scope, periodDays int) (Series, error) {
	if err := ValidatePeriod(periodDays); err != nil {
		return Series{}, err
	}
	now := s.now().UTC()
	from, to := SeriesWindow(now, periodDays)
	rows, err := s.rows(ctx, scope, from, to)
	if err != nil {
		return Series{}, err
	}

	points := make([]domain.TimeseriesPoint, periodDays)
	if periodDays == 1 {
		points[0].Date = now.Format(time.DateOnly)
		for _, r := range rows {
			points[0].Metrics = points[0].Metrics.Add(r.Metrics)
		}
	} else {
		for i := range points {
			points[i].Date = from.AddDate(0, 0, i).Format(time.DateOnly)
		}
		for _, r := range rows {
			idx := int(r.DeliveredAt.UTC().Sub(from) / day)
			if idx < 0 || idx >= periodDays {
				continue
			}
			points[idx].Metrics = points[idx].Metrics.Add(r.Metrics)
		}
	}

	return Series{
		PeriodDays:    periodDays,
		Points:        points,
		DailyAverages: dailyAverages(points),
		From:          from,
		To:            to,
	}, nil
}

// Sum складывает метрики записей в окне [from, to).
func (s *Service) Sum(ctx context.Context, scope Scope, from, to time.Time) (domain.Metrics, error) {
	rows, err := s.rows(ctx, scope, from, to)
	if err != nil {
		return domain.Metrics{}, err
	}
	var total domain.Metrics
	for _, r := range rows {
		total = total.Add(r.Metrics)
	}
	return total, nil
}

// rows фильтрует записи дважды: запросом по списку мониторов и повторной
// проверкой членства после выборки, чтобы монитор, удалённый между шагами, не попал в итог.
func (s *Service) rows(ctx context.Context, scope Scope, from, to time.Time) ([]domain.MetricsRow, error) {
	ids, err := s.resolve(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.digests.ListMetrics(ctx, ids, from, to)
	if err != nil {
		return nil, err
	}

	active, err := s.resolve(ctx, scope)
	if err != nil && !errors.Is(err, domain.ErrMonitorNotFound) {
		return nil, err
	}
	member := make(map[string]struct{}, len(active))
	for _, id := range active {
		member[id] = struct{}{}
	}
	out := rows[:0]
	for _, r := range rows {
		if _, ok := member[r.MonitorID]; !ok {
			continue
		}
		if r.DeliveredAt.Before(from) || !r.DeliveredAt.Before(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) resolve(ctx context.Context, scope Scope) ([]string, error) {
	if scope.MonitorID == "" {
		return s.monitors.ListActiveIDsByOrg(ctx, scope.OrgID)
	}
	m, err := s.monitors.GetActiveByID(ctx, scope.MonitorID)
	if err != nil {
		return nil, err
	}
	if m.OrgID != scope.OrgID {
		return nil, domain.ErrMonitorNotFound
	}
	return []string{m.ID}, nil
}

func dailyAverages(points []domain.TimeseriesPoint) map[string]float64 {
	columns := make([]stats.Float64Data, len(domain.MetricFieldNames))
	for _, p := range points {
		for i, v := range p.Metrics.Fields() {
			columns[i] = append(columns[i], float64(v))
		}
	}
	out := make(map[string]float64, len(columns))
	for i, name := range domain.MetricFieldNames {
		mean, err := stats.Mean(columns[i])
		if err != nil {
			mean = 0
		}
		rounded, err := stats.Round(mean, 2)
		if err != nil {
			rounded = mean
		}
		out[name] = rounded
	}
	return out
}
