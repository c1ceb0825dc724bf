package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-digest/internal/domain"
	httpinfra "repo-digest/internal/infra/http"
	"repo-digest/internal/usecase/digest"
	"repo-digest/internal/usecase/metrics"
	"repo-digest/internal/usecase/monitors"
)

type fakeDigests struct {
	res  digest.Result
	err  error
	last digest.Request
}

func (f *fakeDigests) Generate(_ context.Context, req digest.Request) (digest.Result, error) {
	f.last = req
	if f.err != nil {
		return digest.Result{}, f.err
	}
	if _, _, err := domain.SplitRepo(req.Repo); err != nil {
		return digest.Result{}, err
	}
	return f.res, nil
}

func (f *fakeDigests) Try(context.Context, string, string) (digest.Result, error) {
	return f.res, f.err
}

type fakeRecent struct{ limit int }

func (f *fakeRecent) Recent(_ context.Context, orgID, monitorID string, limit int) ([]domain.DigestRecord, error) {
	f.limit = limit
	if orgID != "org-a" {
		return nil, domain.ErrMonitorNotFound
	}
	return []domain.DigestRecord{{ID: "d1", MonitorID: monitorID, Status: domain.DigestSuccess}}, nil
}

type fakeMonitors struct {
	createErr error
	last      monitors.CreateRequest
}

func (f *fakeMonitors) Create(_ context.Context, req monitors.CreateRequest) (domain.Monitor, error) {
	f.last = req
	if f.createErr != nil {
		return domain.Monitor{}, f.createErr
	}
	return domain.Monitor{ID: "m1", Repo: req.Repo, DeliveryMethod: domain.DeliverySlack, Cadence: domain.CadenceDaily}, nil
}

func (f *fakeMonitors) List(context.Context, string) ([]domain.Monitor, error) {
	return []domain.Monitor{{ID: "m1"}}, nil
}

func (f *fakeMonitors) UpdateCadence(_ context.Context, _, _, cadence string) error {
	_, err := domain.ParseCadence(cadence)
	return err
}

func (f *fakeMonitors) Delete(context.Context, string, string) error { return nil }

type fakeMetrics struct {
	scope   metrics.Scope
	period  int
	compare bool
}

func (f *fakeMetrics) Totals(_ context.Context, scope metrics.Scope, period int, compare bool) (metrics.Totals, error) {
	f.scope, f.period, f.compare = scope, period, compare
	if err := metrics.ValidatePeriod(period); err != nil {
		return metrics.Totals{}, err
	}
	return metrics.Totals{PeriodDays: period, Metrics: domain.Metrics{Commits: 3}}, nil
}

func (f *fakeMetrics) Timeseries(_ context.Context, scope metrics.Scope, period int) (metrics.Series, error) {
	f.scope, f.period = scope, period
	return metrics.Series{PeriodDays: period}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

type fixture struct {
	digests  *fakeDigests
	monitors *fakeMonitors
	metrics  *fakeMetrics
	recent   *fakeRecent
	router   chi.Router
}

func newFixture(limiter domain.RateLimiter) *fixture {
	f := &fixture{
		digests: &fakeDigests{res: digest.Result{
			Success: true, Message: "Digest sent successfully", RepoName: "octocat/Hello-World",
			DeliveryStatus: domain.DigestSuccess, Metrics: domain.Metrics{Commits: 2},
		}},
		monitors: &fakeMonitors{},
		metrics:  &fakeMetrics{},
		recent:   &fakeRecent{},
		router:   chi.NewRouter(),
	}
	NewHandler(f.digests, f.recent, f.monitors, f.metrics, limiter, Limits{Default: 100, Digest: 10, Try: 3}, zerolog.Nop()).Mount(f.router)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(httpinfra.HeaderOrgID, "org-a")
	req.Header.Set(httpinfra.HeaderUserID, "u1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpinfra.ErrorResponse {
	t.Helper()
	var out httpinfra.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGenerateDigest(t *testing.T) {
	f := newFixture(nil)

	rec := f.do(http.MethodPost, "/api/v1/digest", `{"repo":"octocat/Hello-World","delivery_method":"slack","webhook_url":"https://hooks.slack.com/x"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out digestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "success", out.DeliveryStatus)
	assert.Equal(t, 2, out.Metrics.Commits)
	assert.Equal(t, "u1", f.digests.last.UserID)
}

func TestGenerateDigestRejectsBadRepo(t *testing.T) {
	rec := newFixture(nil).do(http.MethodPost, "/api/v1/digest", `{"repo":"not-a-repo","delivery_method":"slack","webhook_url":"https://hooks.slack.com/x"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "owner/repo")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrMonitorNotFound, http.StatusNotFound},
		{domain.ErrMissingDestination, http.StatusBadRequest},
		{&domain.UpstreamFetchError{Op: "repo", StatusCode: 502}, http.StatusInternalServerError},
		{&domain.SummaryGenerationError{Err: assert.AnError}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		f := newFixture(nil)
		f.digests.err = tc.err
		rec := f.do(http.MethodPost, "/api/v1/digest", `{"repo":"octocat/Hello-World"}`)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestDigestRequiresOrg(t *testing.T) {
	f := newFixture(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/digest", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTryDigestIsRateLimited(t *testing.T) {
	rec := newFixture(denyLimiter{}).do(http.MethodPost, "/api/v1/digest/try", `{"repo":"octocat/Hello-World","webhook_url":"https://hooks.slack.com/x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCreateMonitorErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{nil, http.StatusCreated},
		{&domain.PlanLimitError{Plan: domain.PlanFree, Limit: 1}, http.StatusForbidden},
		{domain.ErrDestinationInUse, http.StatusForbidden},
		{domain.ErrMonitorExists, http.StatusConflict},
		{domain.ErrTokenRequired, http.StatusBadRequest},
	}
	for _, tc := range cases {
		f := newFixture(nil)
		f.monitors.createErr = tc.err
		rec := f.do(http.MethodPost, "/api/v1/monitors", `{"repo":"octocat/Hello-World","delivery_method":"slack","destination":"https://hooks.slack.com/x","frequency":"weekly"}`)
		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, "org-a", f.monitors.last.OrgID)
		assert.Equal(t, "weekly", f.monitors.last.Cadence)
	}
}

func TestDestinationInUseMentionsUpgrade(t *testing.T) {
	f := newFixture(nil)
	f.monitors.createErr = domain.ErrDestinationInUse
	rec := f.do(http.MethodPost, "/api/v1/monitors", `{"repo":"octocat/Hello-World","delivery_method":"slack","destination":"https://hooks.slack.com/x"}`)
	assert.Contains(t, decodeError(t, rec).Error, "Upgrade")
}

func TestMonitorLifecycleRoutes(t *testing.T) {
	f := newFixture(nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/monitors", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPatch, "/api/v1/monitors/m1", `{"frequency":"weekly"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/api/v1/monitors/m1", `{"frequency":"hourly"}`).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/monitors/m1", "").Code)
}

func TestRecentDigests(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodGet, "/api/v1/monitors/m1/digests?limit=50", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, f.recent.limit)
	assert.Contains(t, rec.Body.String(), `"id":"d1"`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/monitors/m1/digests?limit=x", "").Code)
}

func TestMonitorMetrics(t *testing.T) {
	f := newFixture(nil)

	rec := f.do(http.MethodGet, "/api/v1/monitors/m1/metrics?period_days=14&compare_to_previous=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, metrics.Scope{OrgID: "org-a", MonitorID: "m1"}, f.metrics.scope)
	assert.Equal(t, 14, f.metrics.period)
	assert.True(t, f.metrics.compare)

	rec = f.do(http.MethodGet, "/api/v1/monitors/m1/metrics/timeseries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, f.metrics.period)
}

func TestMetricsPeriodValidation(t *testing.T) {
	f := newFixture(nil)
	for _, q := range []string{"period_days=0", "period_days=91", "period_days=abc"} {
		rec := f.do(http.MethodGet, "/api/v1/monitors/m1/metrics?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestOrgMetricsScopedToCaller(t *testing.T) {
	f := newFixture(nil)

	rec := f.do(http.MethodGet, "/api/v1/orgs/org-a/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, metrics.Scope{OrgID: "org-a"}, f.metrics.scope)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/orgs/org-b/metrics/timeseries", "").Code)
}
