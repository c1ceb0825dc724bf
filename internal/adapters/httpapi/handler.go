// Package httpapi публикует сценарии дайджестов, мониторов и метрик через REST.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
	httpinfra "repo-digest/internal/infra/http"
	"repo-digest/internal/usecase/digest"
	"repo-digest/internal/usecase/metrics"
	"repo-digest/internal/usecase/monitors"
)

// DigestService строит и доставляет дайджесты.
type DigestService interface {
	Generate(ctx context.Context, req digest.Request) (digest.Result, error)
	Try(ctx context.Context, repo, webhookURL string) (digest.Result, error)
}

// RecentDigests отдаёт последние записи журнала.
type RecentDigests interface {
	Recent(ctx context.Context, orgID, monitorID string, limit int) ([]domain.DigestRecord, error)
}

// MonitorService управляет мониторами.
type MonitorService interface {
	Create(ctx context.Context, req monitors.CreateRequest) (domain.Monitor, error)
	List(ctx context.Context, orgID string) ([]domain.Monitor, error)
	UpdateCadence(ctx context.Context, orgID, id, cadence string) error
	Delete(ctx context.Context, orgID, id string) error
}

// MetricsService считает итоги и ряды.
type MetricsService interface {
	Totals(ctx context.Context, scope metrics.Scope, periodDays int, compare bool) (metrics.Totals, error)
	Timeseries(ctx context.Context, scope metrics.Scope, periodDays int) (metrics.Series, error)
}

// Limits задают число запросов в минуту на вызывающего.
type Limits struct {
	Default int
	Digest  int
	Try     int
}

// Handler собирает маршруты API.
type Handler struct {
	digests  DigestService
	recent   RecentDigests
	monitors MonitorService
	metrics  MetricsService
	limiter  domain.RateLimiter
	limits   Limits
	log      zerolog.Logger
}

// NewHandler создаёт обработчик. limiter может быть nil.
func NewHandler(digests DigestService, recent RecentDigests, monitors MonitorService, metrics MetricsService, limiter domain.RateLimiter, limits Limits, logger zerolog.Logger) *Handler {
	return &Handler{
		digests:  digests,
		recent:   recent,
		monitors: monitors,
		metrics:  metrics,
		limiter:  limiter,
		limits:   limits,
		log:      logger,
	}
}

// Mount регистрирует маршруты /api/v1.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpinfra.IdentityMiddleware)

		api.With(h.rateLimit("digest_try", h.limits.Try)).Post("/digest/try", h.tryDigest)

		api.Group(func(protected chi.Router) {
			protected.Use(httpinfra.RequireOrg)

			protected.With(h.rateLimit("digest", h.limits.Digest)).Post("/digest", h.generateDigest)

			protected.Group(func(g chi.Router) {
				g.Use(h.rateLimit("default", h.limits.Default))

				g.Get("/monitors", h.listMonitors)
				g.Post("/monitors", h.createMonitor)
				g.Patch("/monitors/{id}", h.updateMonitor)
				g.Delete("/monitors/{id}", h.deleteMonitor)
				g.Get("/monitors/{id}/digests", h.recentDigests)
				g.Get("/monitors/{id}/metrics", h.monitorTotals)
				g.Get("/monitors/{id}/metrics/timeseries", h.monitorTimeseries)
				g.Get("/orgs/{orgID}/metrics", h.orgTotals)
				g.Get("/orgs/{orgID}/metrics/timeseries", h.orgTimeseries)
			})
		})
	})
}

func (h *Handler) rateLimit(endpoint string, perMinute int) func(http.Handler) http.Handler {
	return httpinfra.RateLimit(h.limiter, endpoint, perMinute, time.Minute, h.log)
}

type digestRequest struct {
	Repo                string `json:"repo"`
	DeliveryMethod      string `json:"delivery_method"`
	WebhookURL          string `json:"webhook_url"`
	DestinationOverride string `json:"destination_override"`
	Email               string `json:"email"`
}

type digestResponse struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	Summary        string         `json:"summary"`
	RepoName       string         `json:"repo_name"`
	RepoURL        string         `json:"repo_url,omitempty"`
	DeliveryStatus string         `json:"delivery_status"`
	DeliveryError  string         `json:"delivery_error,omitempty"`
	Metrics        domain.Metrics `json:"metrics"`
}

func newDigestResponse(res digest.Result) digestResponse {
	return digestResponse{
		Success:        res.Success,
		Message:        res.Message,
		Summary:        res.Summary,
		RepoName:       res.RepoName,
		RepoURL:        res.RepoURL,
		DeliveryStatus: string(res.DeliveryStatus),
		DeliveryError:  res.DeliveryError,
		Metrics:        res.Metrics,
	}
}

func (h *Handler) generateDigest(w http.ResponseWriter, r *http.Request) {
	var req digestRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.digests.Generate(r.Context(), digest.Request{
		Repo:                req.Repo,
		DeliveryMethod:      req.DeliveryMethod,
		WebhookURL:          req.WebhookURL,
		Email:               req.Email,
		DestinationOverride: req.DestinationOverride,
		UserID:              httpinfra.IdentityFrom(r.Context()).UserID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, newDigestResponse(res))
}

type tryRequest struct {
	Repo       string `json:"repo"`
	WebhookURL string `json:"webhook_url"`
}

func (h *Handler) tryDigest(w http.ResponseWriter, r *http.Request) {
	var req tryRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.digests.Try(r.Context(), req.Repo, req.WebhookURL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, newDigestResponse(res))
}

type monitorRequest struct {
	Repo           string `json:"repo"`
	DeliveryMethod string `json:"delivery_method"`
	Destination    string `json:"destination"`
	Frequency      string `json:"frequency"`
}

type monitorView struct {
	ID             string    `json:"id"`
	Repo           string    `json:"repo"`
	DeliveryMethod string    `json:"delivery_method"`
	Destination    string    `json:"destination"`
	Frequency      string    `json:"frequency"`
	IsPrivate      bool      `json:"is_private"`
	CreatedAt      time.Time `json:"created_at"`
}

func newMonitorView(m domain.Monitor) monitorView {
	return monitorView{
		ID:             m.ID,
		Repo:           m.Repo,
		DeliveryMethod: string(m.DeliveryMethod),
		Destination:    m.Destination,
		Frequency:      string(m.Cadence),
		IsPrivate:      m.IsPrivate,
		CreatedAt:      m.CreatedAt,
	}
}

func (h *Handler) createMonitor(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if !decode(w, r, &req) {
		return
	}
	id := httpinfra.IdentityFrom(r.Context())
	m, err := h.monitors.Create(r.Context(), monitors.CreateRequest{
		OrgID:          id.OrgID,
		UserID:         id.UserID,
		Repo:           req.Repo,
		DeliveryMethod: req.DeliveryMethod,
		Destination:    req.Destination,
		Cadence:        req.Frequency,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, newMonitorView(m))
}

func (h *Handler) listMonitors(w http.ResponseWriter, r *http.Request) {
	list, err := h.monitors.List(r.Context(), httpinfra.IdentityFrom(r.Context()).OrgID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]monitorView, 0, len(list))
	for _, m := range list {
		views = append(views, newMonitorView(m))
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"monitors": views})
}

func (h *Handler) updateMonitor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Frequency string `json:"frequency"`
	}
	if !decode(w, r, &req) {
		return
	}
	orgID := httpinfra.IdentityFrom(r.Context()).OrgID
	if err := h.monitors.UpdateCadence(r.Context(), orgID, chi.URLParam(r, "id"), req.Frequency); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMonitor(w http.ResponseWriter, r *http.Request) {
	orgID := httpinfra.IdentityFrom(r.Context()).OrgID
	if err := h.monitors.Delete(r.Context(), orgID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordView struct {
	ID             string         `json:"id"`
	Summary        string         `json:"summary"`
	Status         string         `json:"status"`
	DeliveryMethod string         `json:"delivery_method"`
	DeliveredAt    time.Time      `json:"delivered_at"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metrics        domain.Metrics `json:"metrics"`
}

func (h *Handler) recentDigests(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "validation_error", errors.New("limit must be an integer"))
		return
	}
	orgID := httpinfra.IdentityFrom(r.Context()).OrgID
	records, err := h.recent.Recent(r.Context(), orgID, chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, recordView{
			ID:             rec.ID,
			Summary:        rec.Summary,
			Status:         string(rec.Status),
			DeliveryMethod: string(rec.DeliveryMethod),
			DeliveredAt:    rec.DeliveredAt,
			ErrorMessage:   rec.ErrorMessage,
			Metrics:        rec.Metrics,
		})
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"digests": views})
}

func (h *Handler) monitorTotals(w http.ResponseWriter, r *http.Request) {
	scope := metrics.Scope{OrgID: httpinfra.IdentityFrom(r.Context()).OrgID, MonitorID: chi.URLParam(r, "id")}
	h.totals(w, r, scope)
}

func (h *Handler) monitorTimeseries(w http.ResponseWriter, r *http.Request) {
	scope := metrics.Scope{OrgID: httpinfra.IdentityFrom(r.Context()).OrgID, MonitorID: chi.URLParam(r, "id")}
	h.timeseries(w, r, scope)
}

func (h *Handler) orgTotals(w http.ResponseWriter, r *http.Request) {
	scope, ok := orgScope(w, r)
	if !ok {
		return
	}
	h.totals(w, r, scope)
}

func (h *Handler) orgTimeseries(w http.ResponseWriter, r *http.Request) {
	scope, ok := orgScope(w, r)
	if !ok {
		return
	}
	h.timeseries(w, r, scope)
}

// orgScope разрешает метрики только своей организации.
func orgScope(w http.ResponseWriter, r *http.Request) (metrics.Scope, bool) {
	orgID := chi.URLParam(r, "orgID")
	if orgID != httpinfra.IdentityFrom(r.Context()).OrgID {
		httpinfra.WriteError(w, http.StatusForbidden, "forbidden", errors.New("access to this organization is not allowed"))
		return metrics.Scope{}, false
	}
	return metrics.Scope{OrgID: orgID}, true
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request, scope metrics.Scope) {
	period, err := intQuery(r, "period_days", 7)
	if err != nil {
		h.fail(w, r, domain.ErrInvalidPeriod)
		return
	}
	compare := false
	if raw := r.URL.Query().Get("compare_to_previous"); raw != "" {
		if compare, err = strconv.ParseBool(raw); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "validation_error", errors.New("compare_to_previous must be a boolean"))
			return
		}
	}
	out, err := h.metrics.Totals(r.Context(), scope, period, compare)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) timeseries(w http.ResponseWriter, r *http.Request, scope metrics.Scope) {
	period, err := intQuery(r, "period_days", 30)
	if err != nil {
		h.fail(w, r, domain.ErrInvalidPeriod)
		return
	}
	out, err := h.metrics.Timeseries(r.Context(), scope, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, out)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return false
	}
	return true
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
