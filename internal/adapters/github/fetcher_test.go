package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

var fixedNow = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

func setupTestFetcher(t *testing.T, handler http.Handler) *Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f, err := NewFetcher(Options{APIURL: server.URL, Timeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	f.now = func() time.Time { return fixedNow }
	return f
}

func githubMux(t *testing.T, seen *sync.Map) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/Hello-World", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"full_name":"octocat/Hello-World","html_url":"https://github.com/octocat/Hello-World"}`)
	})
	mux.HandleFunc("/repos/octocat/Hello-World/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-05-01T12:00:00Z", r.URL.Query().Get("since"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[{"sha":"a1","commit":{"message":"fix: null pointer"}},{"sha":"b2","commit":{"message":"feat: add search"}}]`)
	})
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		seen.Store(q, true)
		switch {
		case strings.Contains(q, "type:pr created:"):
			fmt.Fprint(w, `{"total_count":2,"items":[{"number":1},{"number":2}]}`)
		case strings.Contains(q, "type:pr closed:"):
			fmt.Fprint(w, `{"total_count":1,"items":[{"number":3}]}`)
		default:
			fmt.Fprint(w, `{"total_count":0,"items":[]}`)
		}
	})
	return mux
}

func TestFetchCollectsCountsAndCommits(t *testing.T) {
	var seen sync.Map
	f := setupTestFetcher(t, githubMux(t, &seen))

	act, err := f.Fetch(context.Background(), "octocat/Hello-World", "")
	require.NoError(t, err)

	assert.Equal(t, "octocat/Hello-World", act.Repository.FullName)
	assert.Equal(t, "https://github.com/octocat/Hello-World", act.Repository.HTMLURL)
	assert.Equal(t, domain.SummaryCounts{Commits: 2, PRsOpened: 2, PRsClosed: 1}, act.Counts)
	require.Len(t, act.Commits, 2)
	assert.Equal(t, "fix: null pointer", act.Commits[0].Message)
	assert.Equal(t, fixedNow.Add(-Lookback), act.Since)

	for _, q := range []string{
		"repo:octocat/Hello-World type:pr created:>2024-05-01T12:00:00Z",
		"repo:octocat/Hello-World type:pr closed:>2024-05-01T12:00:00Z",
		"repo:octocat/Hello-World type:issue created:>2024-05-01T12:00:00Z",
		"repo:octocat/Hello-World type:issue closed:>2024-05-01T12:00:00Z",
	} {
		_, ok := seen.Load(q)
		assert.True(t, ok, "query %q was not issued", q)
	}
}

func TestFetchCountsAreCappedAtPageLength(t *testing.T) {
	mux := githubMux(t, &sync.Map{})
	capped := http.NewServeMux()
	capped.Handle("/", mux)
	capped.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":250,"items":[{"number":1}]}`)
	})
	f := setupTestFetcher(t, capped)

	act, err := f.Fetch(context.Background(), "octocat/Hello-World", "")
	require.NoError(t, err)
	assert.Equal(t, 1, act.Counts.PRsOpened)
}

func TestFetchSendsToken(t *testing.T) {
	mux := githubMux(t, &sync.Map{})
	f := setupTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		mux.ServeHTTP(w, r)
	}))

	_, err := f.Fetch(context.Background(), "octocat/Hello-World", "secret")
	require.NoError(t, err)
}

func TestFetchUpstreamError(t *testing.T) {
	f := setupTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))

	_, err := f.Fetch(context.Background(), "octocat/missing", "")
	require.Error(t, err)

	var upstream *domain.UpstreamFetchError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
}

func TestFetchRejectsMalformedRepo(t *testing.T) {
	f := setupTestFetcher(t, http.NotFoundHandler())

	for _, repo := range []string{"not-a-repo", "a/b/c", "/b", "a/", ""} {
		_, err := f.Fetch(context.Background(), repo, "")
		assert.ErrorIs(t, err, domain.ErrInvalidRepository, repo)
	}
}

func TestFetchMetricLabelsDoNotIncludeRepo(t *testing.T) {
	var seen sync.Map
	f := setupTestFetcher(t, githubMux(t, &seen))
	before := testutil.ToFloat64(metrics.NetworkRequestTotal.WithLabelValues("github", "repos_get", "repos", "success"))

	_, err := f.Fetch(context.Background(), "octocat/Hello-World", "")
	require.NoError(t, err)

	after := testutil.ToFloat64(metrics.NetworkRequestTotal.WithLabelValues("github", "repos_get", "repos", "success"))
	assert.Equal(t, before+1, after)

	ch := make(chan prometheus.Metric, 256)
	metrics.NetworkRequestTotal.Collect(ch)
	close(ch)
	for m := range ch {
		var out dto.Metric
		require.NoError(t, m.Write(&out))
		for _, l := range out.GetLabel() {
			assert.NotEqual(t, "octocat/Hello-World", l.GetValue())
		}
	}
}
