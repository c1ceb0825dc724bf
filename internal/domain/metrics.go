package domain

import "time"

// Metrics — снимок счётчиков, сохраняемый вместе с записью дайджеста.
// Содержит только числа, без текста коммитов.
type Metrics struct {
	Commits      int `json:"commits"`
	PRsOpened    int `json:"prs_opened"`
	PRsClosed    int `json:"prs_closed"`
	IssuesOpened int `json:"issues_opened"`
	IssuesClosed int `json:"issues_closed"`
	Bugfixes     int `json:"bugfixes"`
	Features     int `json:"features"`
	Perf         int `json:"perf"`
	Docs         int `json:"docs"`
	Refactors    int `json:"refactors"`
	Other        int `json:"other"`
}

// MetricsFromSnapshot строит снимок метрик по результатам выборки.
func MetricsFromSnapshot(snap ActivitySnapshot) Metrics {
	return Metrics{
		Commits:      snap.Counts.Commits,
		PRsOpened:    snap.Counts.PRsOpened,
		PRsClosed:    snap.Counts.PRsClosed,
		IssuesOpened: snap.Counts.IssuesOpened,
		IssuesClosed: snap.Counts.IssuesClosed,
		Bugfixes:     snap.Categories.Count(CategoryBugfix),
		Features:     snap.Categories.Count(CategoryFeature),
		Perf:         snap.Categories.Count(CategoryPerf),
		Docs:         snap.Categories.Count(CategoryDocs),
		Refactors:    snap.Categories.Count(CategoryRefactor),
		Other:        snap.Categories.Count(CategoryOther),
	}
}

// Add возвращает поэлементную сумму.
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		Commits:      m.Commits + o.Commits,
		PRsOpened:    m.PRsOpened + o.PRsOpened,
		PRsClosed:    m.PRsClosed + o.PRsClosed,
		IssuesOpened: m.IssuesOpened + o.IssuesOpened,
		IssuesClosed: m.IssuesClosed + o.IssuesClosed,
		Bugfixes:     m.Bugfixes + o.Bugfixes,
		Features:     m.Features + o.Features,
		Perf:         m.Perf + o.Perf,
		Docs:         m.Docs + o.Docs,
		Refactors:    m.Refactors + o.Refactors,
		Other:        m.Other + o.Other,
	}
}

// Fields возвращает значения в фиксированном порядке, совпадающем с MetricFieldNames.
func (m Metrics) Fields() []int {
	return []int{m.Commits, m.PRsOpened, m.PRsClosed, m.IssuesOpened, m.IssuesClosed, m.Bugfixes, m.Features, m.Perf, m.Docs, m.Refactors, m.Other}
}

// MetricFieldNames — JSON-имена полей Metrics в порядке Fields.
var MetricFieldNames = []string{"commits", "prs_opened", "prs_closed", "issues_opened", "issues_closed", "bugfixes", "features", "perf", "docs", "refactors", "other"}

// MetricsRow — метрики одной записи дайджеста для агрегации.
type MetricsRow struct {
	MonitorID   string
	DeliveredAt time.Time
	Metrics     Metrics
}

// TimeseriesPoint — сумма метрик за один календарный день (UTC).
type TimeseriesPoint struct {
	Date string `json:"date"`
	Metrics
}
