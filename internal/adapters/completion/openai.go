// Package completion дорабатывает черновик хайлайтов дайджеста.
package completion

import (
	"context"
	"fmt"
	"strings"

	"repo-digest/internal/domain"
	openai "repo-digest/internal/infra/openai"
)

type chatClient interface {
	Chat(ctx context.Context, req openai.ChatRequest) (openai.ChatResponse, error)
}

const systemPrompt = "You are a helpful assistant that creates concise summaries of GitHub repository activity."

// OpenAI реализует domain.Completer через Chat Completions.
type OpenAI struct {
	client    chatClient
	model     string
	maxTokens int
}

var _ domain.Completer = (*OpenAI)(nil)

// NewOpenAI создаёт доработчик хайлайтов.
func NewOpenAI(client chatClient, model string, maxTokens int) *OpenAI {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &OpenAI{client: client, model: model, maxTokens: maxTokens}
}

// Complete отправляет сгруппированные хайлайты модели. Повторов нет.
func (o *OpenAI) Complete(ctx context.Context, highlights string) (string, error) {
	resp, err := o.client.Chat(ctx, openai.ChatRequest{
		Model:       o.model,
		Temperature: 0.7,
		MaxTokens:   o.maxTokens,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: HighlightsPrompt(highlights)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	text, err := resp.Text()
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", openai.ErrEmptyCompletion
	}
	return text, nil
}

// HighlightsPrompt собирает пользовательский промпт вокруг черновика.
func HighlightsPrompt(highlights string) string {
	var b strings.Builder
	b.WriteString("You are an assistant completing the Highlights section of a digest summarizing GitHub activity.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Improve the commit messages.\n")
	b.WriteString("- Keep tone neutral, punchy and friendly to developers and PMs. No filler words.\n")
	b.WriteString("- Use dashes and group bullets by type (🐛 Bugfixes, ✨ Features, ⚡️ Performance, 📝 Docs, ♻️ Refactors).\n")
	b.WriteString("- Be concise, no full sentences or summaries.\n")
	b.WriteString("- Do not make up anything that is not provided.\n\n")
	b.WriteString("Data to use to create highlights:\n")
	b.WriteString(highlights)
	b.WriteString("\n\nYour output:\n")
	return b.String()
}
