package digest

import (
	"context"
	"sync"
	"time"

	"repo-digest/internal/domain"
)

type memoryMonitors struct {
	mu       sync.Mutex
	monitors []domain.Monitor
}

func (m *memoryMonitors) FindActiveByRepoAndDestination(_ context.Context, repo, destination string) (domain.Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mon := range m.monitors {
		if !mon.Deleted && mon.Repo == repo && mon.Destination == destination {
			return mon, nil
		}
	}
	return domain.Monitor{}, domain.ErrMonitorNotFound
}

func (m *memoryMonitors) GetActiveByID(_ context.Context, id string) (domain.Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mon := range m.monitors {
		if !mon.Deleted && mon.ID == id {
			return mon, nil
		}
	}
	return domain.Monitor{}, domain.ErrMonitorNotFound
}

func (m *memoryMonitors) ListActiveIDsByOrg(context.Context, string) ([]string, error) { return nil, nil }
func (m *memoryMonitors) ListActive(context.Context) ([]domain.Monitor, error)         { return nil, nil }
func (m *memoryMonitors) ListActiveByOrg(context.Context, string) ([]domain.Monitor, error) {
	return nil, nil
}
func (m *memoryMonitors) UpdateCadence(context.Context, string, string, domain.Cadence) error {
	return nil
}
func (m *memoryMonitors) CountActiveByOrg(context.Context, string) (int, error)        { return 0, nil }
func (m *memoryMonitors) CreateMonitor(_ context.Context, mon domain.Monitor) (domain.Monitor, error) {
	return mon, nil
}
func (m *memoryMonitors) SoftDelete(context.Context, string, string, time.Time) error { return nil }
func (m *memoryMonitors) PurgeDeleted(context.Context, time.Time) (int64, error)      { return 0, nil }

type memoryDigests struct {
	mu      sync.Mutex
	records []domain.DigestRecord
	err     error
}

func (d *memoryDigests) AppendDigest(_ context.Context, rec domain.DigestRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.records = append(d.records, rec)
	return nil
}

func (d *memoryDigests) ListRecentDigests(_ context.Context, monitorID string, limit int) ([]domain.DigestRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.DigestRecord
	for i := len(d.records) - 1; i >= 0 && len(out) < limit; i-- {
		if d.records[i].MonitorID == monitorID {
			out = append(out, d.records[i])
		}
	}
	return out, nil
}

func (d *memoryDigests) ListMetrics(context.Context, []string, time.Time, time.Time) ([]domain.MetricsRow, error) {
	return nil, nil
}

type staticSource struct {
	activity domain.Activity
	err      error
	tokens   []string
}

func (s *staticSource) Fetch(_ context.Context, _ string, token string) (domain.Activity, error) {
	s.tokens = append(s.tokens, token)
	return s.activity, s.err
}

type recordingDispatcher struct {
	result     domain.DeliveryResult
	deliveries []domain.Delivery
	messages   []domain.Message
}

func (d *recordingDispatcher) Dispatch(_ context.Context, del domain.Delivery, msg domain.Message) (domain.DeliveryResult, error) {
	if del.Destination == "" {
		return domain.DeliveryResult{}, domain.ErrMissingDestination
	}
	d.deliveries = append(d.deliveries, del)
	d.messages = append(d.messages, msg)
	return d.result, nil
}

type mapTokens map[string]string

func (m mapTokens) GitHubToken(_ context.Context, userID string) (string, error) {
	return m[userID], nil
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, highlights string) (string, error) {
	return highlights, nil
}
