package delivery

import "strings"

// SplitText режет текст на части не длиннее limit рун.
// Разрез по возможности приходится на перевод строки, чтобы блоки не рвались.
func SplitText(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if limit <= 0 || len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			if chunk := strings.Trim(string(runes[start:]), "\n"); chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}

		cut := end
		for i := end; i > start; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}

		if chunk := strings.Trim(string(runes[start:cut]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		for start = cut; start < len(runes) && runes[start] == '\n'; start++ {
		}
	}
	return parts
}
