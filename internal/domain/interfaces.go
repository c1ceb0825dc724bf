package domain

import (
	"context"
	"time"
)

// ActivitySource выгружает активность репозитория за последние 24 часа.
type ActivitySource interface {
	Fetch(ctx context.Context, repo, token string) (Activity, error)
}

// VisibilityChecker определяет, приватный ли репозиторий.
type VisibilityChecker interface {
	IsPrivate(ctx context.Context, repo, token string) (bool, error)
}

// Completer дорабатывает черновик хайлайтов через сервис генерации текста.
type Completer interface {
	Complete(ctx context.Context, highlights string) (string, error)
}

// Dispatcher доставляет дайджест в выбранный канал.
type Dispatcher interface {
	Dispatch(ctx context.Context, delivery Delivery, msg Message) (DeliveryResult, error)
}

// MonitorRepo хранит мониторы.
type MonitorRepo interface {
	FindActiveByRepoAndDestination(ctx context.Context, repo, destination string) (Monitor, error)
	GetActiveByID(ctx context.Context, id string) (Monitor, error)
	ListActiveIDsByOrg(ctx context.Context, orgID string) ([]string, error)
	ListActive(ctx context.Context) ([]Monitor, error)
	ListActiveByOrg(ctx context.Context, orgID string) ([]Monitor, error)
	CountActiveByOrg(ctx context.Context, orgID string) (int, error)
	// CreateMonitor атомарно проверяет уникальность пары репозиторий+адрес и
	// занятость адреса другой организацией, затем вставляет монитор.
	CreateMonitor(ctx context.Context, m Monitor) (Monitor, error)
	UpdateCadence(ctx context.Context, id, orgID string, cadence Cadence) error
	SoftDelete(ctx context.Context, id, orgID string, at time.Time) error
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// DigestRepo добавляет и читает записи дайджестов. Пути обновления нет.
type DigestRepo interface {
	AppendDigest(ctx context.Context, rec DigestRecord) error
	ListRecentDigests(ctx context.Context, monitorID string, limit int) ([]DigestRecord, error)
	// ListMetrics возвращает метрики записей активных мониторов из списка,
	// доставленных в полуинтервале [from, to).
	ListMetrics(ctx context.Context, monitorIDs []string, from, to time.Time) ([]MetricsRow, error)
}

// TokenProvider возвращает токен GitHub пользователя для приватных репозиториев.
type TokenProvider interface {
	GitHubToken(ctx context.Context, userID string) (string, error)
}

// OrgRepo отдаёт сведения о тарифе организации.
type OrgRepo interface {
	GetOrganization(ctx context.Context, orgID string) (Organization, error)
}

// RateLimiter считает запросы в фиксированном окне.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}
