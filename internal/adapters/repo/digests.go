package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// AppendDigest добавляет запись о доставке. Записи не обновляются.
func (p *Postgres) AppendDigest(ctx context.Context, rec domain.DigestRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DeliveredAt.IsZero() {
		rec.DeliveredAt = p.now()
	}
	payload, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO digests (id, monitor_id, summary, status, delivery_method, delivered_at, error_message, created_by, metrics_json)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
`, rec.ID, rec.MonitorID, rec.Summary, string(rec.Status), string(rec.DeliveryMethod), rec.DeliveredAt.UTC(), rec.ErrorMessage, rec.CreatedBy, payload)
	metrics.ObserveNetworkRequest("postgres", "digests_insert", "digests", start, err)
	return err
}

// ListRecentDigests возвращает последние записи монитора, новые первыми.
func (p *Postgres) ListRecentDigests(ctx context.Context, monitorID string, limit int) ([]domain.DigestRecord, error) {
	if !validID(monitorID) {
		return nil, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id::text, monitor_id::text, summary, status, delivery_method, delivered_at,
       COALESCE(error_message, ''), COALESCE(created_by, ''), metrics_json
FROM digests
WHERE monitor_id = $1
ORDER BY delivered_at DESC
LIMIT $2
`, monitorID, limit)
	metrics.ObserveNetworkRequest("postgres", "digests_recent", "digests", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DigestRecord
	for rows.Next() {
		var rec domain.DigestRecord
		var status, method string
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.MonitorID, &rec.Summary, &status, &method, &rec.DeliveredAt, &rec.ErrorMessage, &rec.CreatedBy, &raw); err != nil {
			return nil, err
		}
		rec.Status = domain.DigestStatus(status)
		rec.DeliveryMethod = domain.DeliveryMethod(method)
		rec.Metrics = decodeMetrics(raw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListMetrics возвращает метрики записей активных мониторов за [from, to).
func (p *Postgres) ListMetrics(ctx context.Context, monitorIDs []string, from, to time.Time) ([]domain.MetricsRow, error) {
	ids := make([]string, 0, len(monitorIDs))
	for _, id := range monitorIDs {
		if validID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT d.monitor_id::text, d.delivered_at, d.metrics_json
FROM digests d
JOIN monitors m ON m.id = d.monitor_id AND NOT m.deleted
WHERE d.monitor_id::text = ANY($1)
  AND d.delivered_at >= $2
  AND d.delivered_at < $3
ORDER BY d.delivered_at
`, ids, from.UTC(), to.UTC())
	metrics.ObserveNetworkRequest("postgres", "digests_metrics", "digests", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MetricsRow, error) {
		var r domain.MetricsRow
		var raw []byte
		if err := row.Scan(&r.MonitorID, &r.DeliveredAt, &raw); err != nil {
			return domain.MetricsRow{}, err
		}
		r.Metrics = decodeMetrics(raw)
		return r, nil
	})
}

// decodeMetrics разбирает снимок. Отсутствующие или битые поля считаются нулями.
func decodeMetrics(raw []byte) domain.Metrics {
	var m domain.Metrics
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Metrics{}
	}
	return m
}
