package digest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-digest/internal/domain"
)

const slackHook = "https://hooks.slack.com/services/T/B/x"

type serviceFixture struct {
	monitors   *memoryMonitors
	digests    *memoryDigests
	source     *staticSource
	dispatcher *recordingDispatcher
	service    *Service
}

func helloWorldActivity() domain.Activity {
	return domain.Activity{
		Repository: domain.Repository{FullName: "octocat/Hello-World", HTMLURL: "https://github.com/octocat/Hello-World"},
		Counts:     domain.SummaryCounts{Commits: 2, PRsOpened: 2, PRsClosed: 1},
		Commits:    commits("fix: null pointer", "feat: add search"),
	}
}

func newServiceFixture(tokens domain.TokenProvider, monitors ...domain.Monitor) *serviceFixture {
	f := &serviceFixture{
		monitors:   &memoryMonitors{monitors: monitors},
		digests:    &memoryDigests{},
		source:     &staticSource{activity: helloWorldActivity()},
		dispatcher: &recordingDispatcher{result: domain.DeliveryResult{Success: true}},
	}
	ledger := NewLedger(f.monitors, f.digests, zerolog.Nop())
	f.service = NewService(f.source, NewComposer(echoCompleter{}), f.dispatcher, ledger, f.monitors, tokens, zerolog.Nop())
	f.service.now = func() time.Time { return time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC) }
	return f
}

func slackMonitor() domain.Monitor {
	return domain.Monitor{ID: monitorID, OrgID: "org-a", Repo: "octocat/Hello-World", DeliveryMethod: domain.DeliverySlack, Destination: slackHook, Cadence: domain.CadenceDaily, CreatedBy: "owner"}
}

func TestGenerateExample(t *testing.T) {
	f := newServiceFixture(nil, slackMonitor())

	res, err := f.service.Generate(context.Background(), Request{
		Repo: "octocat/Hello-World", DeliveryMethod: "slack", WebhookURL: slackHook, UserID: "u1",
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, domain.DigestSuccess, res.DeliveryStatus)
	assert.Equal(t, "octocat/Hello-World", res.RepoName)
	assert.Contains(t, res.Summary, "2 PRs opened, 1 closed / 0 issues opened, 0 closed")
	assert.Equal(t, domain.Metrics{Commits: 2, PRsOpened: 2, PRsClosed: 1, Bugfixes: 1, Features: 1}, res.Metrics)
	assert.True(t, res.Recorded)

	require.Len(t, f.digests.records, 1)
	rec := f.digests.records[0]
	assert.Equal(t, monitorID, rec.MonitorID)
	assert.Equal(t, domain.DigestSuccess, rec.Status)
	assert.Equal(t, "u1", rec.CreatedBy)
	assert.Equal(t, res.Metrics, rec.Metrics)
	assert.Equal(t, res.Summary, rec.Summary)

	require.Len(t, f.dispatcher.messages, 1)
	assert.Equal(t, "https://github.com/octocat/Hello-World", f.dispatcher.messages[0].RepoURL)
}

func TestGenerateValidation(t *testing.T) {
	f := newServiceFixture(nil, slackMonitor())

	_, err := f.service.Generate(context.Background(), Request{Repo: "not-a-repo", DeliveryMethod: "slack", WebhookURL: slackHook})
	assert.ErrorIs(t, err, domain.ErrInvalidRepository)

	_, err = f.service.Generate(context.Background(), Request{Repo: "o/r", DeliveryMethod: "pigeon", WebhookURL: slackHook})
	assert.ErrorIs(t, err, domain.ErrUnsupportedDeliveryMethod)

	_, err = f.service.Generate(context.Background(), Request{Repo: "o/r", DeliveryMethod: "email", WebhookURL: slackHook})
	assert.ErrorIs(t, err, domain.ErrMissingDestination)

	assert.Empty(t, f.source.tokens)
	assert.Empty(t, f.dispatcher.deliveries)
}

func TestGenerateWithoutMonitorWritesNothing(t *testing.T) {
	f := newServiceFixture(nil)

	_, err := f.service.Generate(context.Background(), Request{Repo: "octocat/Hello-World", DeliveryMethod: "slack", WebhookURL: slackHook})
	assert.ErrorIs(t, err, domain.ErrMonitorNotFound)
	assert.Empty(t, f.source.tokens)
	assert.Empty(t, f.digests.records)
}

func TestGenerateDeliveryFailureIsRecorded(t *testing.T) {
	f := newServiceFixture(nil, slackMonitor())
	f.dispatcher.result = domain.DeliveryResult{Success: false, Error: "slack: unexpected status 404"}

	res, err := f.service.Generate(context.Background(), Request{Repo: "octocat/Hello-World", DeliveryMethod: "slack", WebhookURL: slackHook})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.DigestFailure, res.DeliveryStatus)
	assert.Contains(t, res.Message, "404")

	require.Len(t, f.digests.records, 1)
	assert.Equal(t, domain.DigestFailure, f.digests.records[0].Status)
	assert.Equal(t, "slack: unexpected status 404", f.digests.records[0].ErrorMessage)
}

func TestGenerateDestinationOverride(t *testing.T) {
	f := newServiceFixture(nil, slackMonitor())

	_, err := f.service.Generate(context.Background(), Request{
		Repo: "octocat/Hello-World", DeliveryMethod: "slack", WebhookURL: slackHook,
		DestinationOverride: "https://hooks.slack.com/services/T/B/other",
	})
	require.NoError(t, err)
	require.Len(t, f.dispatcher.deliveries, 1)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/other", f.dispatcher.deliveries[0].Destination)
}

func TestGenerateStoreFailureDoesNotFailRequest(t *testing.T) {
	f := newServiceFixture(nil, slackMonitor())
	f.digests.err = assert.AnError

	res, err := f.service.Generate(context.Background(), Request{Repo: "octocat/Hello-World", DeliveryMethod: "slack", WebhookURL: slackHook})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Recorded)
}

func TestGenerateUpstreamError(t *testing.T) {
	f := newServiceFixture(nil, slackMonitor())
	f.source.err = &domain.UpstreamFetchError{Op: "repository", StatusCode: 502}

	_, err := f.service.Generate(context.Background(), Request{Repo: "octocat/Hello-World", DeliveryMethod: "slack", WebhookURL: slackHook})
	var upstream *domain.UpstreamFetchError
	require.ErrorAs(t, err, &upstream)
	assert.Empty(t, f.digests.records)
}

func TestGeneratePrivateRepoUsesToken(t *testing.T) {
	private := slackMonitor()
	private.IsPrivate = true

	f := newServiceFixture(mapTokens{"owner": "gho_owner"}, private)
	_, err := f.service.Generate(context.Background(), Request{Repo: "octocat/Hello-World", DeliveryMethod: "slack", WebhookURL: slackHook, UserID: "stranger"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gho_owner"}, f.source.tokens)

	f = newServiceFixture(mapTokens{}, private)
	_, err = f.service.Generate(context.Background(), Request{Repo: "octocat/Hello-World", DeliveryMethod: "slack", WebhookURL: slackHook})
	assert.ErrorIs(t, err, domain.ErrTokenRequired)
}

func TestTryNeverRecords(t *testing.T) {
	f := newServiceFixture(nil)

	res, err := f.service.Try(context.Background(), "octocat/Hello-World", slackHook)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, f.digests.records)
	require.Len(t, f.dispatcher.deliveries, 1)
	assert.Equal(t, domain.DeliverySlack, f.dispatcher.deliveries[0].Method)
}

func TestRunJobUsesMonitorDestination(t *testing.T) {
	f := newServiceFixture(nil, slackMonitor())

	res, err := f.service.RunJob(context.Background(), domain.DigestJob{MonitorID: monitorID})
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.Equal(t, "scheduler", f.digests.records[0].CreatedBy)
	assert.Equal(t, slackHook, f.dispatcher.deliveries[0].Destination)

	_, err = f.service.RunJob(context.Background(), domain.DigestJob{MonitorID: "gone"})
	assert.ErrorIs(t, err, domain.ErrMonitorNotFound)
}
