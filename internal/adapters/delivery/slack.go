package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"repo-digest/internal/domain"
)

// slackSectionLimit — максимальная длина текста в section-блоке Slack.
const slackSectionLimit = 3000

// Slack отправляет дайджест во входящий вебхук Slack.
type Slack struct {
	client *http.Client
}

// NewSlack создаёт канал Slack.
func NewSlack(timeout time.Duration) *Slack {
	return &Slack{client: newHTTPClient(timeout)}
}

func (s *Slack) Method() domain.DeliveryMethod { return domain.DeliverySlack }

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// buildSlackPayload строит сообщение: заголовок со ссылкой на репозиторий и текст дайджеста.
func buildSlackPayload(msg domain.Message) slackPayload {
	title := fmt.Sprintf("*📊 Daily Digest: %s*", msg.RepoName)
	if msg.RepoURL != "" {
		title = fmt.Sprintf("*📊 Daily Digest: <%s|%s>*", msg.RepoURL, msg.RepoName)
	}
	blocks := []slackBlock{
		{Type: "divider"},
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: title}},
	}
	for _, part := range SplitText(msg.Summary, slackSectionLimit) {
		blocks = append(blocks, slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: part}})
	}
	return slackPayload{
		Text:   "📊 Daily Digest: " + msg.RepoName,
		Blocks: blocks,
	}
}

// Send публикует сообщение. Успех только при ответе 200.
func (s *Slack) Send(ctx context.Context, webhookURL string, msg domain.Message) error {
	return postJSON(ctx, s.client, "slack", webhookURL, buildSlackPayload(msg))
}
