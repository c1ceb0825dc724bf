package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// Request — запрос на построение и доставку дайджеста.
type Request struct {
	Repo                string
	DeliveryMethod      string
	WebhookURL          string
	Email               string
	DestinationOverride string
	UserID              string
}

// Result — итог построения дайджеста.
type Result struct {
	Success        bool
	Message        string
	Summary        string
	RepoName       string
	RepoURL        string
	DeliveryStatus domain.DigestStatus
	DeliveryError  string
	Metrics        domain.Metrics
	Recorded       bool
}

// Service ведёт дайджест по цепочке: выборка, классификация, сборка, доставка, запись.
type Service struct {
	source     domain.ActivitySource
	composer   *Composer
	dispatcher domain.Dispatcher
	ledger     *Ledger
	monitors   domain.MonitorRepo
	tokens     domain.TokenProvider
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт сервис дайджестов. tokens может быть nil.
func NewService(source domain.ActivitySource, composer *Composer, dispatcher domain.Dispatcher, ledger *Ledger, monitors domain.MonitorRepo, tokens domain.TokenProvider, logger zerolog.Logger) *Service {
	return &Service{
		source:     source,
		composer:   composer,
		dispatcher: dispatcher,
		ledger:     ledger,
		monitors:   monitors,
		tokens:     tokens,
		log:        logger,
		now:        time.Now,
	}
}

// destinationFor выбирает адрес из запроса по способу доставки.
func destinationFor(method domain.DeliveryMethod, req Request) string {
	if method == domain.DeliveryEmail {
		return strings.TrimSpace(req.Email)
	}
	return strings.TrimSpace(req.WebhookURL)
}

// Generate строит и доставляет дайджест для монитора, найденного по репозиторию и адресу.
// Без монитора запрос не выполняется и запись не создаётся.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	repo := strings.TrimSpace(req.Repo)
	if _, _, err := domain.SplitRepo(repo); err != nil {
		return Result{}, err
	}
	method, err := domain.ParseDeliveryMethod(req.DeliveryMethod)
	if err != nil {
		return Result{}, err
	}
	destination := destinationFor(method, req)
	if destination == "" {
		return Result{}, domain.ErrMissingDestination
	}

	monitor, err := s.ledger.Resolve(ctx, repo, destination)
	if err != nil {
		return Result{}, err
	}

	target := destination
	if override := strings.TrimSpace(req.DestinationOverride); override != "" {
		target = override
	}
	return s.run(ctx, monitor, domain.Delivery{Method: method, Destination: target}, req.UserID)
}

// RunJob обрабатывает задачу планировщика. Удалённый монитор пропускается.
func (s *Service) RunJob(ctx context.Context, job domain.DigestJob) (Result, error) {
	monitor, err := s.monitors.GetActiveByID(ctx, job.MonitorID)
	if err != nil {
		return Result{}, err
	}
	return s.run(ctx, monitor, domain.Delivery{Method: monitor.DeliveryMethod, Destination: monitor.Destination}, "")
}

// Try строит демонстрационный дайджест в Slack без монитора и без записи в журнал.
func (s *Service) Try(ctx context.Context, repo, webhookURL string) (Result, error) {
	repo = strings.TrimSpace(repo)
	if _, _, err := domain.SplitRepo(repo); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(webhookURL) == "" {
		return Result{}, domain.ErrMissingDestination
	}
	start := time.Now()
	snap, summary, err := s.build(ctx, repo, "")
	if err != nil {
		return Result{}, err
	}
	res, err := s.deliver(ctx, domain.Delivery{Method: domain.DeliverySlack, Destination: webhookURL}, snap, summary)
	if err != nil {
		return Result{}, err
	}
	metrics.ObserveDigest(string(domain.DeliverySlack), string(res.DeliveryStatus), start)
	return res, nil
}

func (s *Service) run(ctx context.Context, monitor domain.Monitor, delivery domain.Delivery, userID string) (Result, error) {
	start := time.Now()
	logger := s.log.With().Str("monitor_id", monitor.ID).Str("repo", monitor.Repo).Logger()

	token, err := s.tokenFor(ctx, monitor, userID)
	if err != nil {
		return Result{}, err
	}
	snap, summary, err := s.build(ctx, monitor.Repo, token)
	if err != nil {
		metrics.ObserveDigest(string(delivery.Method), "error", start)
		return Result{}, err
	}
	res, err := s.deliver(ctx, delivery, snap, summary)
	if err != nil {
		return Result{}, err
	}

	createdBy := userID
	if createdBy == "" {
		createdBy = "scheduler"
	}
	rec := domain.DigestRecord{
		MonitorID:      monitor.ID,
		Summary:        summary,
		Status:         res.DeliveryStatus,
		DeliveryMethod: delivery.Method,
		DeliveredAt:    s.now().UTC(),
		ErrorMessage:   res.DeliveryError,
		CreatedBy:      createdBy,
		Metrics:        res.Metrics,
	}
	recorded, err := s.ledger.Append(ctx, rec)
	if err != nil {
		logger.Error().Err(err).Msg("digest: не удалось сохранить запись")
	}
	res.Recorded = recorded
	metrics.ObserveDigest(string(delivery.Method), string(res.DeliveryStatus), start)
	logger.Info().Str("status", string(res.DeliveryStatus)).Bool("recorded", recorded).Msg("digest: дайджест обработан")
	return res, nil
}

// tokenFor возвращает токен только для приватных репозиториев.
func (s *Service) tokenFor(ctx context.Context, monitor domain.Monitor, userID string) (string, error) {
	if !monitor.IsPrivate || s.tokens == nil {
		return "", nil
	}
	for _, id := range []string{userID, monitor.CreatedBy} {
		if id == "" {
			continue
		}
		token, err := s.tokens.GitHubToken(ctx, id)
		if err != nil {
			return "", fmt.Errorf("github token: %w", err)
		}
		if token != "" {
			return token, nil
		}
	}
	return "", domain.ErrTokenRequired
}

func (s *Service) build(ctx context.Context, repo, token string) (domain.ActivitySnapshot, string, error) {
	act, err := s.source.Fetch(ctx, repo, token)
	if err != nil {
		return domain.ActivitySnapshot{}, "", err
	}
	snap := domain.ActivitySnapshot{
		Repository: act.Repository,
		Counts:     act.Counts,
		Categories: Classify(s.log, act.Commits),
	}
	summary, err := s.composer.Compose(ctx, snap.Counts, snap.Categories, snap.Repository.FullName)
	if err != nil {
		var genErr *domain.SummaryGenerationError
		if errors.As(err, &genErr) {
			return domain.ActivitySnapshot{}, "", err
		}
		return domain.ActivitySnapshot{}, "", &domain.SummaryGenerationError{Err: err}
	}
	return snap, summary, nil
}

func (s *Service) deliver(ctx context.Context, delivery domain.Delivery, snap domain.ActivitySnapshot, summary string) (Result, error) {
	out, err := s.dispatcher.Dispatch(ctx, delivery, domain.Message{
		Summary:  summary,
		RepoName: snap.Repository.FullName,
		RepoURL:  snap.Repository.HTMLURL,
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Success:        out.Success,
		Summary:        summary,
		RepoName:       snap.Repository.FullName,
		RepoURL:        snap.Repository.HTMLURL,
		DeliveryStatus: domain.DigestSuccess,
		Message:        "Digest sent successfully",
		Metrics:        domain.MetricsFromSnapshot(snap),
	}
	if !out.Success {
		res.DeliveryStatus = domain.DigestFailure
		res.DeliveryError = out.Error
		res.Message = "Digest generated but delivery failed: " + out.Error
	}
	return res, nil
}
