package domain

import (
	"context"
	"time"
)

// DigestJobCause описывает источник запроса на дайджест.
type DigestJobCause string

const (
	// DigestCauseManual — дайджест запрошен вручную.
	DigestCauseManual DigestJobCause = "manual"
	// DigestCauseScheduled — дайджест запланирован по расписанию.
	DigestCauseScheduled DigestJobCause = "scheduled"
)

// DigestJob содержит информацию о задаче построения дайджеста.
type DigestJob struct {
	ID             string         `json:"job_id"`
	MonitorID      string         `json:"monitor_id"`
	Repo           string         `json:"repo"`
	DeliveryMethod DeliveryMethod `json:"delivery_method"`
	Destination    string         `json:"destination"`
	ScheduledFor   time.Time      `json:"scheduled_for"`
	RequestedAt    time.Time      `json:"requested_at"`
	Cause          DigestJobCause `json:"cause"`
}

// DigestQueue описывает очередь задач на построение дайджестов.
type DigestQueue interface {
	Enqueue(ctx context.Context, job DigestJob) error
	Receive(ctx context.Context) (DigestJob, DigestAckFunc, error)
}

// DigestAckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type DigestAckFunc func(success bool) error

// ScheduleTaskRepo отвечает за идемпотентное планирование задач дайджеста.
type ScheduleTaskRepo interface {
	// Acquire помечает выполнение задачи монитора на указанный слот и возвращает true,
	// если запись была создана. При конфликте возвращает false без ошибки.
	Acquire(ctx context.Context, monitorID string, scheduledFor time.Time) (bool, error)
}
