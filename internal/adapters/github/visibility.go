package github

import (
	"context"
	"errors"
	"net/http"
	"time"

	gogithub "github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// Visibility определяет приватность репозитория. С токеном используется GraphQL API,
// без токена REST: GraphQL анонимные запросы не принимает.
type Visibility struct {
	clients *clients
}

var _ domain.VisibilityChecker = (*Visibility)(nil)

// NewVisibility создаёт проверку видимости.
func NewVisibility(opts Options) (*Visibility, error) {
	c, err := newClients(opts)
	if err != nil {
		return nil, err
	}
	return &Visibility{clients: c}, nil
}

type repositoryVisibilityQuery struct {
	Repository struct {
		IsPrivate bool
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// IsPrivate возвращает признак приватности. Анонимно недоступный репозиторий (404)
// считается приватным: без токена его не отличить от несуществующего.
func (v *Visibility) IsPrivate(ctx context.Context, repo, token string) (bool, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return false, err
	}
	if token == "" && v.clients.defaultToken == "" {
		return v.isPrivateAnonymous(ctx, owner, name)
	}
	var q repositoryVisibilityQuery
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}
	start := time.Now()
	err = v.clients.graphql(token).Query(ctx, &q, variables)
	metrics.ObserveNetworkRequest("github", "graphql_repository", "repos", start, err)
	if err != nil {
		return false, &domain.UpstreamFetchError{Op: "visibility", Err: err}
	}
	return q.Repository.IsPrivate, nil
}

func (v *Visibility) isPrivateAnonymous(ctx context.Context, owner, name string) (bool, error) {
	start := time.Now()
	r, resp, err := v.clients.rest("").Repositories.Get(ctx, owner, name)
	metrics.ObserveNetworkRequest("github", "repos_get", "repos", start, err)
	if err != nil {
		var errResp *gogithub.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
			return true, nil
		}
		return false, upstreamError("visibility", resp, err)
	}
	return r.GetPrivate(), nil
}
