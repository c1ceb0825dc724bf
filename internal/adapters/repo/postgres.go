package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var (
	_ domain.MonitorRepo      = (*Postgres)(nil)
	_ domain.DigestRepo       = (*Postgres)(nil)
	_ domain.OrgRepo          = (*Postgres)(nil)
	_ domain.TokenProvider    = (*Postgres)(nil)
	_ domain.ScheduleTaskRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// validID отсекает идентификаторы, которые Postgres не примет как UUID.
func validID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// GetOrganization реализует domain.OrgRepo.
func (p *Postgres) GetOrganization(ctx context.Context, orgID string) (domain.Organization, error) {
	if !validID(orgID) {
		return domain.Organization{}, domain.ErrOrgNotFound
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var org domain.Organization
	var plan string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id::text, plan, is_internal
FROM organizations
WHERE id = $1 AND NOT deleted
`, orgID).Scan(&org.ID, &plan, &org.IsInternal)
	metrics.ObserveNetworkRequest("postgres", "organizations_get", "organizations", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Organization{}, domain.ErrOrgNotFound
	}
	if err != nil {
		return domain.Organization{}, err
	}
	org.Plan = domain.PlanName(plan)
	return org, nil
}

// GitHubToken реализует domain.TokenProvider. Пустая строка без ошибки — токена нет.
func (p *Postgres) GitHubToken(ctx context.Context, userID string) (string, error) {
	if !validID(userID) {
		return "", nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var token *string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT access_token FROM users WHERE id = $1 AND NOT deleted`, userID).Scan(&token)
	metrics.ObserveNetworkRequest("postgres", "users_token", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if token == nil {
		return "", nil
	}
	return *token, nil
}

// Acquire вставляет запись о поставленной задаче и возвращает true, если удалось.
func (p *Postgres) Acquire(ctx context.Context, monitorID string, scheduledFor time.Time) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
INSERT INTO digest_schedule_tasks (monitor_id, scheduled_for)
VALUES ($1, $2)
ON CONFLICT (monitor_id, scheduled_for) DO NOTHING
`, monitorID, scheduledFor.UTC())
	metrics.ObserveNetworkRequest("postgres", "schedule_tasks_acquire", "digest_schedule_tasks", start, err)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// PurgeScheduleTasks удаляет отметки о слотах старше указанного момента.
func (p *Postgres) PurgeScheduleTasks(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `DELETE FROM digest_schedule_tasks WHERE scheduled_for < $1`, before.UTC())
	metrics.ObserveNetworkRequest("postgres", "schedule_tasks_purge", "digest_schedule_tasks", start, err)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}
