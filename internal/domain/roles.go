package domain

import "strings"

// PlanName описывает тариф организации.
type PlanName string

const (
	PlanFree PlanName = "free"
	PlanPro  PlanName = "pro"
	PlanTeam PlanName = "team"
)

// Plan описывает ограничения тарифа.
type Plan struct {
	Name     PlanName
	MaxRepos int
}

// PlanLimits задаёт лимиты тарифов. Значение 0 означает отсутствие лимита.
type PlanLimits struct {
	FreeRepos int
	ProRepos  int
	TeamRepos int
}

// DefaultPlanLimits возвращает лимиты по умолчанию.
func DefaultPlanLimits() PlanLimits {
	return PlanLimits{FreeRepos: 1, ProRepos: 5, TeamRepos: 100}
}

// PlanFor возвращает тариф по имени; неизвестные имена считаются бесплатным тарифом.
func (l PlanLimits) PlanFor(name PlanName) Plan {
	switch PlanName(strings.ToLower(string(name))) {
	case PlanPro:
		return Plan{Name: PlanPro, MaxRepos: l.ProRepos}
	case PlanTeam:
		return Plan{Name: PlanTeam, MaxRepos: l.TeamRepos}
	default:
		return Plan{Name: PlanFree, MaxRepos: l.FreeRepos}
	}
}

// Organization — то, что ядру нужно знать об организации для проверки тарифа.
type Organization struct {
	ID         string
	Plan       PlanName
	IsInternal bool
}

// CheckRepoLimit проверяет, можно ли добавить ещё один монитор.
func (l PlanLimits) CheckRepoLimit(org Organization, current int) error {
	if org.IsInternal {
		return nil
	}
	plan := l.PlanFor(org.Plan)
	if plan.MaxRepos > 0 && current >= plan.MaxRepos {
		return &PlanLimitError{Plan: plan.Name, Limit: plan.MaxRepos}
	}
	return nil
}
