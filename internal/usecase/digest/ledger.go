package digest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// Ledger связывает доставки с мониторами и пишет неизменяемые записи.
type Ledger struct {
	monitors domain.MonitorRepo
	digests  domain.DigestRepo
	log      zerolog.Logger
}

// NewLedger создаёт журнал дайджестов.
func NewLedger(monitors domain.MonitorRepo, digests domain.DigestRepo, logger zerolog.Logger) *Ledger {
	return &Ledger{monitors: monitors, digests: digests, log: logger}
}

// Resolve ищет активный монитор по точному совпадению репозитория и адреса.
func (l *Ledger) Resolve(ctx context.Context, repo, destination string) (domain.Monitor, error) {
	m, err := l.monitors.FindActiveByRepoAndDestination(ctx, repo, destination)
	if errors.Is(err, domain.ErrMonitorNotFound) {
		return domain.Monitor{}, domain.ErrMonitorNotFound
	}
	if err != nil {
		return domain.Monitor{}, fmt.Errorf("resolve monitor: %w", err)
	}
	return m, nil
}

// Append пишет запись. Некорректный идентификатор монитора не ломает журнал:
// запись пропускается с предупреждением и возвращается false без ошибки.
func (l *Ledger) Append(ctx context.Context, rec domain.DigestRecord) (bool, error) {
	if _, err := uuid.Parse(rec.MonitorID); err != nil {
		metrics.LedgerSkipped.WithLabelValues("invalid_monitor_id").Inc()
		l.log.Warn().Str("monitor_id", rec.MonitorID).Msg("digest: некорректный идентификатор монитора, запись пропущена")
		return false, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := l.digests.AppendDigest(ctx, rec); err != nil {
		metrics.LedgerSkipped.WithLabelValues("store_error").Inc()
		return false, fmt.Errorf("append digest: %w", err)
	}
	return true, nil
}

const (
	DefaultRecentLimit = 5
	MaxRecentLimit     = 20
)

// Recent возвращает последние записи монитора организации, не больше MaxRecentLimit.
func (l *Ledger) Recent(ctx context.Context, orgID, monitorID string, limit int) ([]domain.DigestRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	m, err := l.monitors.GetActiveByID(ctx, monitorID)
	if err != nil {
		return nil, err
	}
	if m.OrgID != orgID {
		return nil, domain.ErrMonitorNotFound
	}
	return l.digests.ListRecentDigests(ctx, monitorID, limit)
}
