package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

const (
	// HeaderOrgID передаёт организацию вызывающего.
	HeaderOrgID = "X-Org-ID"
	// HeaderUserID передаёт пользователя вызывающего.
	HeaderUserID = "X-User-ID"
)

// Identity — аутентифицированный вызывающий.
type Identity struct {
	OrgID  string
	UserID string
}

type identityKey struct{}

// IdentityMiddleware кладёт идентичность из заголовков в контекст.
// Аутентификация выполняется на шлюзе перед сервисом.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			OrgID:  strings.TrimSpace(r.Header.Get(HeaderOrgID)),
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom возвращает идентичность из контекста запроса.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// RequireOrg отклоняет запросы без организации.
func RequireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()).OrgID == "" {
			WriteError(w, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing %s header", HeaderOrgID))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit ограничивает число запросов на ключ вызывающего в фиксированном окне.
// Без лимитера middleware пропускает всё.
func RateLimit(limiter domain.RateLimiter, endpoint string, limit int, window time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + endpoint + ":" + callerKey(r)
			ok, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				logger.Warn().Err(err).Str("endpoint", endpoint).Msg("ratelimit: лимитер недоступен, пропускаем запрос")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.RateLimitExceeded.WithLabelValues(endpoint).Inc()
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", fmt.Errorf("rate limit exceeded: %d per %s", limit, window))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	id := IdentityFrom(r.Context())
	if id.UserID != "" {
		return "user:" + id.UserID
	}
	if id.OrgID != "" {
		return "org:" + id.OrgID
	}
	return "ip:" + clientHost(r.RemoteAddr)
}

// clientHost отбрасывает порт: у каждого TCP-соединения он свой.
func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, code string, err error) {
	WriteJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

// WriteJSON отправляет JSON-ответ.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
