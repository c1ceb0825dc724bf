package digest

import (
	"context"
	"fmt"
	"strings"

	"repo-digest/internal/domain"
)

// NoActivitySummary возвращается без обращения к генерации, когда нечего описывать.
const NoActivitySummary = "No activity in the last 24 hours."

const highlightsPerCategory = 5

// highlightOrder задаёт порядок разделов хайлайтов.
var highlightOrder = []struct {
	category domain.Category
	header   string
}{
	{domain.CategoryBugfix, "🐛 Bugfixes:"},
	{domain.CategoryRefactor, "♻️ Refactors:"},
	{domain.CategoryFeature, "✨ Features:"},
	{domain.CategoryDocs, "📝 Docs:"},
	{domain.CategoryPerf, "⚡️ Performance:"},
	{domain.CategoryOther, "📦 Other:"},
}

// Composer собирает текст дайджеста.
type Composer struct {
	completer domain.Completer
}

// NewComposer создаёт сборщик с указанным доработчиком хайлайтов.
func NewComposer(completer domain.Completer) *Composer {
	return &Composer{completer: completer}
}

// Compose строит тело дайджеста. Ошибка генерации возвращается как SummaryGenerationError.
func (c *Composer) Compose(ctx context.Context, counts domain.SummaryCounts, cats domain.Categories, repoName string) (string, error) {
	if !hasContent(cats) {
		return NoActivitySummary, nil
	}

	highlights, err := c.completer.Complete(ctx, Highlights(cats))
	if err != nil {
		return "", &domain.SummaryGenerationError{Err: fmt.Errorf("%s: %w", repoName, err)}
	}

	var b strings.Builder
	b.WriteString(HeaderLine(counts))
	if tagged := TaggedLine(cats); tagged != "" {
		b.WriteString("\n")
		b.WriteString(tagged)
	}
	b.WriteString("\n\n🔥 Highlights:\n\n```\n")
	b.WriteString(strings.TrimSpace(highlights))
	b.WriteString("\n```")
	return b.String(), nil
}

// HeaderLine — строка со счётчиками PR и issues.
func HeaderLine(c domain.SummaryCounts) string {
	return fmt.Sprintf("%d PRs opened, %d closed / %d issues opened, %d closed", c.PRsOpened, c.PRsClosed, c.IssuesOpened, c.IssuesClosed)
}

// TaggedLine перечисляет число коммитов по категориям.
func TaggedLine(cats domain.Categories) string {
	var parts []string
	for _, h := range highlightOrder {
		if n := cats.Count(h.category); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, h.category))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "🚀 Tagged Commits: " + strings.Join(parts, ", ")
}

// Highlights строит черновик: заголовок раздела и до пяти пунктов на категорию.
func Highlights(cats domain.Categories) string {
	var lines []string
	for _, h := range highlightOrder {
		items := nonBlank(cats[h.category])
		if len(items) == 0 {
			continue
		}
		if len(items) > highlightsPerCategory {
			items = items[:highlightsPerCategory]
		}
		lines = append(lines, h.header)
		for _, item := range items {
			lines = append(lines, "- "+item)
		}
	}
	return strings.Join(lines, "\n")
}

func hasContent(cats domain.Categories) bool {
	for _, items := range cats {
		if len(nonBlank(items)) > 0 {
			return true
		}
	}
	return false
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}
