package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

const monitorColumns = `id::text, org_id::text, repo, delivery_method, destination, frequency, is_private, created_by, created_at, deleted, deleted_at`

func scanMonitor(row pgx.Row) (domain.Monitor, error) {
	var m domain.Monitor
	var method, cadence string
	err := row.Scan(&m.ID, &m.OrgID, &m.Repo, &method, &m.Destination, &cadence, &m.IsPrivate, &m.CreatedBy, &m.CreatedAt, &m.Deleted, &m.DeletedAt)
	if err != nil {
		return domain.Monitor{}, err
	}
	m.DeliveryMethod = domain.DeliveryMethod(method)
	m.Cadence = domain.Cadence(cadence)
	return m, nil
}

// FindActiveByRepoAndDestination ищет активный монитор по паре репозиторий+адрес.
func (p *Postgres) FindActiveByRepoAndDestination(ctx context.Context, repo, destination string) (domain.Monitor, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	m, err := scanMonitor(p.pool.QueryRow(ctx, `
SELECT `+monitorColumns+`
FROM monitors
WHERE repo = $1 AND destination = $2 AND NOT deleted
LIMIT 1
`, repo, destination))
	metrics.ObserveNetworkRequest("postgres", "monitors_find", "monitors", start, ignoreNoRows(err))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Monitor{}, domain.ErrMonitorNotFound
	}
	return m, err
}

// GetActiveByID возвращает активный монитор.
func (p *Postgres) GetActiveByID(ctx context.Context, id string) (domain.Monitor, error) {
	if !validID(id) {
		return domain.Monitor{}, domain.ErrMonitorNotFound
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	m, err := scanMonitor(p.pool.QueryRow(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1 AND NOT deleted`, id))
	metrics.ObserveNetworkRequest("postgres", "monitors_get", "monitors", start, ignoreNoRows(err))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Monitor{}, domain.ErrMonitorNotFound
	}
	return m, err
}

// ListActiveIDsByOrg возвращает идентификаторы активных мониторов организации.
func (p *Postgres) ListActiveIDsByOrg(ctx context.Context, orgID string) ([]string, error) {
	if !validID(orgID) {
		return nil, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id::text FROM monitors WHERE org_id = $1 AND NOT deleted ORDER BY created_at`, orgID)
	metrics.ObserveNetworkRequest("postgres", "monitors_list_ids", "monitors", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListActive возвращает все активные мониторы.
func (p *Postgres) ListActive(ctx context.Context) ([]domain.Monitor, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE NOT deleted ORDER BY created_at`)
	metrics.ObserveNetworkRequest("postgres", "monitors_list_active", "monitors", start, err)
	if err != nil {
		return nil, err
	}
	return collectMonitors(rows)
}

// ListActiveByOrg возвращает активные мониторы организации.
func (p *Postgres) ListActiveByOrg(ctx context.Context, orgID string) ([]domain.Monitor, error) {
	if !validID(orgID) {
		return nil, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE org_id = $1 AND NOT deleted ORDER BY created_at`, orgID)
	metrics.ObserveNetworkRequest("postgres", "monitors_list_org", "monitors", start, err)
	if err != nil {
		return nil, err
	}
	return collectMonitors(rows)
}

func collectMonitors(rows pgx.Rows) ([]domain.Monitor, error) {
	defer rows.Close()
	var out []domain.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateCadence меняет частоту активного монитора организации.
func (p *Postgres) UpdateCadence(ctx context.Context, id, orgID string, cadence domain.Cadence) error {
	if !validID(id) || !validID(orgID) {
		return domain.ErrMonitorNotFound
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `UPDATE monitors SET frequency = $3 WHERE id = $1 AND org_id = $2 AND NOT deleted`, id, orgID, string(cadence))
	metrics.ObserveNetworkRequest("postgres", "monitors_update_frequency", "monitors", start, err)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrMonitorNotFound
	}
	return nil
}

// CountActiveByOrg считает активные мониторы организации.
func (p *Postgres) CountActiveByOrg(ctx context.Context, orgID string) (int, error) {
	if !validID(orgID) {
		return 0, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var n int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM monitors WHERE org_id = $1 AND NOT deleted`, orgID).Scan(&n)
	metrics.ObserveNetworkRequest("postgres", "monitors_count", "monitors", start, err)
	return n, err
}

// CreateMonitor проверяет занятость адреса и вставляет монитор в одной транзакции.
// Транзакционная advisory-блокировка по адресу сериализует конкурентные вставки.
func (p *Postgres) CreateMonitor(ctx context.Context, m domain.Monitor) (domain.Monitor, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	created, err := p.createMonitorTx(ctx, m)
	metrics.ObserveNetworkRequest("postgres", "monitors_create", "monitors", start, err)
	if isUniqueViolation(err) {
		return domain.Monitor{}, domain.ErrMonitorExists
	}
	return created, err
}

func (p *Postgres) createMonitorTx(ctx context.Context, m domain.Monitor) (domain.Monitor, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Monitor{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.Destination); err != nil {
		return domain.Monitor{}, fmt.Errorf("advisory lock: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT org_id::text, repo FROM monitors WHERE destination = $1 AND NOT deleted`, m.Destination)
	if err != nil {
		return domain.Monitor{}, err
	}
	owners, err := pgx.CollectRows(rows, pgx.RowToStructByPos[destinationOwner])
	if err != nil {
		return domain.Monitor{}, err
	}
	if err := checkDestinationOwners(owners, m); err != nil {
		return domain.Monitor{}, err
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err = tx.QueryRow(ctx, `
INSERT INTO monitors (id, org_id, repo, delivery_method, destination, frequency, is_private, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at
`, m.ID, m.OrgID, m.Repo, string(m.DeliveryMethod), m.Destination, string(m.Cadence), m.IsPrivate, m.CreatedBy).Scan(&m.CreatedAt)
	if err != nil {
		return domain.Monitor{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Monitor{}, err
	}
	return m, nil
}

// destinationOwner — активный монитор, уже привязанный к адресу.
type destinationOwner struct {
	OrgID string
	Repo  string
}

// checkDestinationOwners запрещает чужой организации занимать адрес и
// повторно подписывать тот же репозиторий на тот же адрес.
func checkDestinationOwners(owners []destinationOwner, m domain.Monitor) error {
	for _, o := range owners {
		if o.OrgID != m.OrgID {
			return domain.ErrDestinationInUse
		}
		if o.Repo == m.Repo {
			return domain.ErrMonitorExists
		}
	}
	return nil
}

// SoftDelete помечает монитор удалённым. Записи дайджестов остаются.
func (p *Postgres) SoftDelete(ctx context.Context, id, orgID string, at time.Time) error {
	if !validID(id) || !validID(orgID) {
		return domain.ErrMonitorNotFound
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
UPDATE monitors SET deleted = TRUE, deleted_at = $3
WHERE id = $1 AND org_id = $2 AND NOT deleted
`, id, orgID, at.UTC())
	metrics.ObserveNetworkRequest("postgres", "monitors_soft_delete", "monitors", start, err)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrMonitorNotFound
	}
	return nil
}

// PurgeDeleted окончательно удаляет мониторы, удалённые раньше указанного момента.
func (p *Postgres) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `DELETE FROM monitors WHERE deleted AND deleted_at < $1`, before.UTC())
	metrics.ObserveNetworkRequest("postgres", "monitors_purge", "monitors", start, err)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
