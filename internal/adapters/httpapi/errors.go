package httpapi

import (
	"errors"
	"net/http"

	"repo-digest/internal/domain"
	httpinfra "repo-digest/internal/infra/http"
)

// statusFor сопоставляет доменную ошибку с HTTP-статусом и кодом.
func statusFor(err error) (int, string) {
	var (
		limitErr    *domain.PlanLimitError
		upstreamErr *domain.UpstreamFetchError
		summaryErr  *domain.SummaryGenerationError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidRepository),
		errors.Is(err, domain.ErrUnsupportedDeliveryMethod),
		errors.Is(err, domain.ErrMissingDestination),
		errors.Is(err, domain.ErrInvalidCadence),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrTokenRequired):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrMonitorNotFound),
		errors.Is(err, domain.ErrOrgNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &limitErr),
		errors.Is(err, domain.ErrDestinationInUse):
		return http.StatusForbidden, "plan_limit"
	case errors.Is(err, domain.ErrMonitorExists):
		return http.StatusConflict, "already_exists"
	case errors.As(err, &upstreamErr):
		return http.StatusInternalServerError, "upstream_error"
	case errors.As(err, &summaryErr):
		return http.StatusInternalServerError, "summary_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail пишет ответ с ошибкой. Текст внутренних ошибок наружу не отдаётся.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", httpinfra.RequestID(r)).
			Msg("api: ошибка обработки запроса")
		if code == "internal_error" {
			err = errors.New("internal server error")
		}
	}
	httpinfra.WriteError(w, status, code, err)
}
