package domain

import (
	"strings"
	"time"
)

// DeliveryMethod описывает канал доставки дайджеста.
type DeliveryMethod string

const (
	// DeliverySlack — входящий вебхук Slack.
	DeliverySlack DeliveryMethod = "slack"
	// DeliveryDiscord — вебхук Discord.
	DeliveryDiscord DeliveryMethod = "discord"
	// DeliveryEmail — доставка письмом.
	DeliveryEmail DeliveryMethod = "email"
)

// DeliveryMethods перечисляет все поддерживаемые каналы.
var DeliveryMethods = []DeliveryMethod{DeliverySlack, DeliveryDiscord, DeliveryEmail}

// ParseDeliveryMethod нормализует строку и проверяет, что канал известен.
func ParseDeliveryMethod(raw string) (DeliveryMethod, error) {
	method := DeliveryMethod(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range DeliveryMethods {
		if method == known {
			return method, nil
		}
	}
	return "", ErrUnsupportedDeliveryMethod
}

// IsWebhook сообщает, доставляется ли канал через HTTPS-вебхук.
func (m DeliveryMethod) IsWebhook() bool {
	return m == DeliverySlack || m == DeliveryDiscord
}

// Cadence задаёт частоту дайджестов монитора.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceOnMerge Cadence = "on_merge"
)

// ParseCadence проверяет частоту.
func ParseCadence(raw string) (Cadence, error) {
	switch c := Cadence(strings.ToLower(strings.TrimSpace(raw))); c {
	case CadenceDaily, CadenceWeekly, CadenceOnMerge:
		return c, nil
	}
	return "", ErrInvalidCadence
}

// Monitor — постоянная подписка репозитория на канал доставки.
type Monitor struct {
	ID             string
	OrgID          string
	Repo           string
	DeliveryMethod DeliveryMethod
	Destination    string
	Cadence        Cadence
	IsPrivate      bool
	CreatedBy      string
	CreatedAt      time.Time
	Deleted        bool
	DeletedAt      *time.Time
}

// SplitRepo проверяет идентификатор owner/name: ровно один слэш, обе части непустые.
func SplitRepo(repo string) (owner, name string, err error) {
	repo = strings.TrimSpace(repo)
	if strings.Count(repo, "/") != 1 {
		return "", "", ErrInvalidRepository
	}
	owner, name, _ = strings.Cut(repo, "/")
	if owner == "" || name == "" {
		return "", "", ErrInvalidRepository
	}
	return owner, name, nil
}

// Repository содержит метаданные репозитория из GitHub.
type Repository struct {
	FullName string
	HTMLURL  string
}

// Commit — коммит в том виде, в каком его отдаёт GitHub.
type Commit struct {
	SHA     string
	Message string
}

// SummaryCounts хранит счётчики активности за окно.
type SummaryCounts struct {
	Commits      int `json:"commits"`
	PRsOpened    int `json:"prs_opened"`
	PRsClosed    int `json:"prs_closed"`
	IssuesOpened int `json:"issues_opened"`
	IssuesClosed int `json:"issues_closed"`
}

// Total возвращает сумму всех счётчиков.
func (c SummaryCounts) Total() int {
	return c.Commits + c.PRsOpened + c.PRsClosed + c.IssuesOpened + c.IssuesClosed
}

// Activity — сырой результат выборки из GitHub до классификации.
type Activity struct {
	Repository Repository
	Counts     SummaryCounts
	Commits    []Commit
	Since      time.Time
}

// ActivitySnapshot — активность репозитория с классифицированными коммитами.
type ActivitySnapshot struct {
	Repository Repository
	Counts     SummaryCounts
	Categories Categories
}

// DigestStatus — статус доставки дайджеста.
type DigestStatus string

const (
	DigestPending DigestStatus = "pending"
	DigestSuccess DigestStatus = "success"
	DigestFailure DigestStatus = "failure"
)

// DigestRecord — неизменяемая запись о попытке доставки.
type DigestRecord struct {
	ID             string
	MonitorID      string
	Summary        string
	Status         DigestStatus
	DeliveryMethod DeliveryMethod
	DeliveredAt    time.Time
	ErrorMessage   string
	CreatedBy      string
	Metrics        Metrics
}

// Delivery описывает, куда отправить дайджест.
type Delivery struct {
	Method      DeliveryMethod
	Destination string
}

// Message — готовый к отправке дайджест.
type Message struct {
	Summary  string
	RepoName string
	RepoURL  string
}

// DeliveryResult — итог отправки через адаптер канала.
type DeliveryResult struct {
	Success bool
	Error   string
}
