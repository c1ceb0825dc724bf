package digest

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"repo-digest/internal/domain"
)

const (
	maxCommitRunes = 100
	minCommitRunes = 5
)

var errInvalidUTF8 = errors.New("commit message is not valid UTF-8")

// stoplist — малоинформативные сообщения, которые не попадают в дайджест.
var stoplist = map[string]struct{}{
	".": {}, "!": {}, "?": {}, "...": {},
	"update": {}, "fix": {}, "wip": {},
}

// keywords проверяются независимо: коммит может попасть в несколько категорий.
var keywords = []struct {
	category domain.Category
	words    []string
}{
	{domain.CategoryBugfix, []string{"fix", "bug"}},
	{domain.CategoryFeature, []string{"feat", "feature"}},
	{domain.CategoryPerf, []string{"perf", "speed"}},
	{domain.CategoryDocs, []string{"doc"}},
	{domain.CategoryRefactor, []string{"refactor"}},
}

// Classify раскладывает заголовки коммитов по категориям.
// Ошибка в отдельном коммите пропускает только его.
func Classify(logger zerolog.Logger, commits []domain.Commit) domain.Categories {
	out := domain.Categories{}
	for _, c := range commits {
		line, err := cleanMessage(c.Message)
		if err != nil {
			logger.Warn().Err(err).Str("sha", c.SHA).Msg("digest: коммит пропущен")
			continue
		}
		if line == "" {
			continue
		}
		for _, cat := range categorize(line) {
			out[cat] = append(out[cat], line)
		}
	}
	return out
}

// cleanMessage возвращает первую строку сообщения, обрезанную до 100 рун,
// или пустую строку, если сообщение отфильтровано.
func cleanMessage(msg string) (string, error) {
	if !utf8.ValidString(msg) {
		return "", errInvalidUTF8
	}
	line, _, _ := strings.Cut(msg, "\n")
	if runes := []rune(line); len(runes) > maxCommitRunes {
		line = string(runes[:maxCommitRunes])
	}
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) < minCommitRunes {
		return "", nil
	}
	if _, skip := stoplist[strings.ToLower(line)]; skip {
		return "", nil
	}
	return line, nil
}

func categorize(line string) []domain.Category {
	lower := strings.ToLower(line)
	var cats []domain.Category
	for _, kw := range keywords {
		for _, w := range kw.words {
			if strings.Contains(lower, w) {
				cats = append(cats, kw.category)
				break
			}
		}
	}
	if len(cats) == 0 {
		return []domain.Category{domain.CategoryOther}
	}
	return cats
}
