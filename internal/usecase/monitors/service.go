// Package monitors управляет подписками репозиториев на каналы доставки.
package monitors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// CreateRequest — параметры нового монитора.
type CreateRequest struct {
	OrgID          string
	UserID         string
	Repo           string
	DeliveryMethod string
	Destination    string
	Cadence        string
}

// Service реализует создание, изменение и удаление мониторов.
type Service struct {
	monitors   domain.MonitorRepo
	orgs       domain.OrgRepo
	tokens     domain.TokenProvider
	visibility domain.VisibilityChecker
	limits     domain.PlanLimits
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт сервис мониторов. tokens и visibility могут быть nil.
func NewService(monitors domain.MonitorRepo, orgs domain.OrgRepo, tokens domain.TokenProvider, visibility domain.VisibilityChecker, limits domain.PlanLimits, logger zerolog.Logger) *Service {
	return &Service{
		monitors:   monitors,
		orgs:       orgs,
		tokens:     tokens,
		visibility: visibility,
		limits:     limits,
		log:        logger,
		now:        time.Now,
	}
}

// Create проверяет запрос, лимит тарифа и видимость репозитория, затем создаёт монитор.
// Уникальность пары репозиторий+адрес и занятость адреса другой организацией
// проверяются в транзакции хранилища.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Monitor, error) {
	repo := strings.TrimSpace(req.Repo)
	if _, _, err := domain.SplitRepo(repo); err != nil {
		return domain.Monitor{}, err
	}
	method, err := domain.ParseDeliveryMethod(req.DeliveryMethod)
	if err != nil {
		return domain.Monitor{}, err
	}
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return domain.Monitor{}, domain.ErrMissingDestination
	}
	cadence := domain.CadenceDaily
	if strings.TrimSpace(req.Cadence) != "" {
		if cadence, err = domain.ParseCadence(req.Cadence); err != nil {
			return domain.Monitor{}, err
		}
	}

	org, err := s.orgs.GetOrganization(ctx, req.OrgID)
	if err != nil {
		return domain.Monitor{}, err
	}
	count, err := s.monitors.CountActiveByOrg(ctx, org.ID)
	if err != nil {
		return domain.Monitor{}, fmt.Errorf("count monitors: %w", err)
	}
	if err := s.limits.CheckRepoLimit(org, count); err != nil {
		return domain.Monitor{}, err
	}

	private, err := s.checkVisibility(ctx, repo, req.UserID)
	if err != nil {
		return domain.Monitor{}, err
	}

	m, err := s.monitors.CreateMonitor(ctx, domain.Monitor{
		ID:             uuid.NewString(),
		OrgID:          org.ID,
		Repo:           repo,
		DeliveryMethod: method,
		Destination:    destination,
		Cadence:        cadence,
		IsPrivate:      private,
		CreatedBy:      req.UserID,
	})
	if err != nil {
		return domain.Monitor{}, err
	}
	metrics.MonitorsCreated.WithLabelValues(string(method)).Inc()
	s.log.Info().Str("monitor_id", m.ID).Str("org_id", org.ID).Str("repo", repo).Msg("monitors: монитор создан")
	return m, nil
}

// checkVisibility возвращает приватность репозитория. Без токена приватный
// репозиторий отклоняется с ErrTokenRequired. Ошибки проверки не маскируются.
func (s *Service) checkVisibility(ctx context.Context, repo, userID string) (bool, error) {
	if s.visibility == nil {
		return false, nil
	}
	token := ""
	if s.tokens != nil && userID != "" {
		var err error
		if token, err = s.tokens.GitHubToken(ctx, userID); err != nil {
			return false, fmt.Errorf("github token: %w", err)
		}
	}
	private, err := s.visibility.IsPrivate(ctx, repo, token)
	if err != nil {
		return false, err
	}
	if private && token == "" {
		return false, domain.ErrTokenRequired
	}
	return private, nil
}

// List возвращает активные мониторы организации.
func (s *Service) List(ctx context.Context, orgID string) ([]domain.Monitor, error) {
	return s.monitors.ListActiveByOrg(ctx, orgID)
}

// UpdateCadence меняет частоту монитора.
func (s *Service) UpdateCadence(ctx context.Context, orgID, id, raw string) error {
	cadence, err := domain.ParseCadence(raw)
	if err != nil {
		return err
	}
	return s.monitors.UpdateCadence(ctx, id, orgID, cadence)
}

// Delete помечает монитор удалённым. Записи дайджестов сохраняются,
// но перестают попадать в метрики.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	if err := s.monitors.SoftDelete(ctx, id, orgID, s.now().UTC()); err != nil {
		return err
	}
	s.log.Info().Str("monitor_id", id).Str("org_id", orgID).Msg("monitors: монитор удалён")
	return nil
}

// Purge окончательно удаляет мониторы, удалённые более retention назад.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return s.monitors.PurgeDeleted(ctx, s.now().UTC().Add(-retention))
}
