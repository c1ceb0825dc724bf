// Package github выгружает активность репозиториев из GitHub REST и GraphQL API.
package github

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	gogithub "github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"repo-digest/internal/domain"
)

// Options настраивает клиентов GitHub.
type Options struct {
	// Token используется, когда запрос не передал собственный токен.
	Token string
	// APIURL переопределяет адрес REST API (GitHub Enterprise, тесты).
	APIURL  string
	Timeout time.Duration
}

// clients собирает REST и GraphQL клиентов под конкретный токен.
// Ожидание вторичных лимитов общее для всех клиентов процесса.
type clients struct {
	waiter       http.RoundTripper
	restURL      *url.URL
	graphqlURL   string
	defaultToken string
	timeout      time.Duration
}

func newClients(opts Options) (*clients, error) {
	waiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	c := &clients{waiter: waiter, defaultToken: opts.Token, timeout: opts.Timeout}
	if c.timeout <= 0 {
		c.timeout = 15 * time.Second
	}
	if api := strings.TrimSpace(opts.APIURL); api != "" {
		base := strings.TrimRight(api, "/")
		c.restURL, err = url.Parse(base + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		c.graphqlURL = strings.TrimSuffix(base, "/v3") + "/graphql"
	}
	return c, nil
}

func (c *clients) httpClient(token string) *http.Client {
	if token == "" {
		token = c.defaultToken
	}
	transport := c.waiter
	if token != "" {
		transport = &oauth2.Transport{
			Base:   c.waiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		}
	}
	return &http.Client{Transport: transport, Timeout: c.timeout}
}

func (c *clients) rest(token string) *gogithub.Client {
	client := gogithub.NewClient(c.httpClient(token))
	if c.restURL != nil {
		client.BaseURL = c.restURL
	}
	return client
}

func (c *clients) graphql(token string) *githubv4.Client {
	if c.graphqlURL != "" {
		return githubv4.NewEnterpriseClient(c.graphqlURL, c.httpClient(token))
	}
	return githubv4.NewClient(c.httpClient(token))
}

// SplitRepo разбирает owner/name.
func SplitRepo(repo string) (owner, name string, err error) {
	return domain.SplitRepo(repo)
}

func upstreamError(op string, resp *gogithub.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	return &domain.UpstreamFetchError{Op: op, StatusCode: status, Err: err}
}
