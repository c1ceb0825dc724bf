package github

import (
	"context"
	"fmt"
	"time"

	gogithub "github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

const (
	// Lookback — фиксированное окно выборки активности.
	Lookback = 24 * time.Hour
	// PageSize — размер единственной запрашиваемой страницы.
	PageSize = 100
)

// Fetcher реализует domain.ActivitySource поверх GitHub REST API.
type Fetcher struct {
	clients *clients
	log     zerolog.Logger
	now     func() time.Time
}

var _ domain.ActivitySource = (*Fetcher)(nil)

// NewFetcher создаёт выгрузчик активности.
func NewFetcher(opts Options, logger zerolog.Logger) (*Fetcher, error) {
	c, err := newClients(opts)
	if err != nil {
		return nil, err
	}
	return &Fetcher{clients: c, log: logger, now: time.Now}, nil
}

// Fetch выполняет шесть запросов параллельно: метаданные, четыре поиска и коммиты.
// Первая ошибка отменяет остальные запросы.
func (f *Fetcher) Fetch(ctx context.Context, repo, token string) (domain.Activity, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return domain.Activity{}, err
	}
	since := f.now().UTC().Add(-Lookback)
	stamp := since.Format(time.RFC3339)
	client := f.clients.rest(token)
	fullName := owner + "/" + name

	out := domain.Activity{Since: since}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		r, resp, err := client.Repositories.Get(gctx, owner, name)
		metrics.ObserveNetworkRequest("github", "repos_get", "repos", start, err)
		if err != nil {
			return upstreamError("repository", resp, err)
		}
		out.Repository = domain.Repository{FullName: r.GetFullName(), HTMLURL: r.GetHTMLURL()}
		return nil
	})

	searches := []struct {
		op    string
		query string
		dst   *int
	}{
		{"prs_opened", fmt.Sprintf("repo:%s type:pr created:>%s", fullName, stamp), &out.Counts.PRsOpened},
		{"prs_closed", fmt.Sprintf("repo:%s type:pr closed:>%s", fullName, stamp), &out.Counts.PRsClosed},
		{"issues_opened", fmt.Sprintf("repo:%s type:issue created:>%s", fullName, stamp), &out.Counts.IssuesOpened},
		{"issues_closed", fmt.Sprintf("repo:%s type:issue closed:>%s", fullName, stamp), &out.Counts.IssuesClosed},
	}
	for _, s := range searches {
		s := s
		g.Go(func() error {
			n, err := f.searchCount(gctx, client, s.op, s.query)
			if err != nil {
				return err
			}
			*s.dst = n
			return nil
		})
	}

	g.Go(func() error {
		start := time.Now()
		commits, resp, err := client.Repositories.ListCommits(gctx, owner, name, &gogithub.CommitsListOptions{
			Since:       since,
			ListOptions: gogithub.ListOptions{PerPage: PageSize},
		})
		metrics.ObserveNetworkRequest("github", "commits_list", "repos", start, err)
		if err != nil {
			return upstreamError("commits", resp, err)
		}
		if resp != nil && resp.NextPage != 0 {
			f.log.Warn().Str("repo", fullName).Int("page_size", PageSize).Msg("github: коммитов больше одной страницы, учитывается только первая")
		}
		out.Commits = make([]domain.Commit, 0, len(commits))
		for _, c := range commits {
			out.Commits = append(out.Commits, domain.Commit{SHA: c.GetSHA(), Message: c.GetCommit().GetMessage()})
		}
		out.Counts.Commits = len(out.Commits)
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Activity{}, err
	}
	if out.Repository.FullName == "" {
		out.Repository.FullName = fullName
	}
	return out, nil
}

func (f *Fetcher) searchCount(ctx context.Context, client *gogithub.Client, op, query string) (int, error) {
	start := time.Now()
	res, resp, err := client.Search.Issues(ctx, query, &gogithub.SearchOptions{
		ListOptions: gogithub.ListOptions{PerPage: PageSize},
	})
	metrics.ObserveNetworkRequest("github", "search_"+op, "search", start, err)
	if err != nil {
		return 0, upstreamError(op, resp, err)
	}
	n := len(res.Issues)
	if total := res.GetTotal(); total > n {
		f.log.Warn().Str("op", op).Int("total", total).Int("counted", n).Msg("github: результатов больше размера страницы, счётчик ограничен")
	}
	return n, nil
}
