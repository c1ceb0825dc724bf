package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRepository — идентификатор репозитория не в формате owner/repo.
	ErrInvalidRepository = errors.New("repo must be in the format 'owner/repo'")
	// ErrMissingDestination — для выбранного канала не указан адрес.
	ErrMissingDestination = errors.New("destination is required for the selected delivery method")
	// ErrUnsupportedDeliveryMethod — неизвестный канал доставки.
	ErrUnsupportedDeliveryMethod = errors.New("unsupported delivery method")
	// ErrInvalidCadence — неизвестная частота.
	ErrInvalidCadence = errors.New("frequency must be one of daily, weekly, on_merge")
	// ErrMonitorNotFound — нет активного монитора для пары репозиторий+адрес.
	ErrMonitorNotFound = errors.New("monitor not found")
	// ErrMonitorExists — монитор для пары репозиторий+адрес уже существует.
	ErrMonitorExists = errors.New("monitor for this repository and destination already exists")
	// ErrDestinationInUse — адрес уже используется другой организацией.
	ErrDestinationInUse = errors.New("this destination is already used by another organization. Upgrade your plan to use this destination")
	// ErrTokenRequired — для приватного репозитория нужен токен GitHub.
	ErrTokenRequired = errors.New("a GitHub token is required to monitor private repositories")
	// ErrInvalidPeriod — период вне допустимого диапазона.
	ErrInvalidPeriod = errors.New("period_days must be between 1 and 90")
	// ErrOrgNotFound — организация не найдена.
	ErrOrgNotFound = errors.New("organization not found")
)

// UpstreamFetchError — ошибка обращения к GitHub.
type UpstreamFetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("failed to fetch repository data (%s): status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch repository data (%s): %v", e.Op, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// SummaryGenerationError — сбой сервиса генерации текста.
type SummaryGenerationError struct {
	Err error
}

func (e *SummaryGenerationError) Error() string {
	return fmt.Sprintf("failed to generate summary: %v", e.Err)
}

func (e *SummaryGenerationError) Unwrap() error { return e.Err }

// PlanLimitError — организация упёрлась в лимит тарифа.
type PlanLimitError struct {
	Plan  PlanName
	Limit int
}

func (e *PlanLimitError) Error() string {
	return fmt.Sprintf("Your plan allows up to %d repositories. Upgrade to add more.", e.Limit)
}
