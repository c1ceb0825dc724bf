package domain

// Category — семантическая метка коммита.
type Category string

const (
	CategoryBugfix   Category = "bugfix"
	CategoryFeature  Category = "feature"
	CategoryPerf     Category = "perf"
	CategoryDocs     Category = "docs"
	CategoryRefactor Category = "refactor"
	CategoryOther    Category = "other"
)

// Categories хранит очищенные заголовки коммитов по категориям.
// В карте присутствуют только непустые категории.
type Categories map[Category][]string

// Count возвращает количество записей в категории.
func (c Categories) Count(cat Category) int {
	return len(c[cat])
}

// Total возвращает общее число записей во всех категориях.
func (c Categories) Total() int {
	total := 0
	for _, items := range c {
		total += len(items)
	}
	return total
}
