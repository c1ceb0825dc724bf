package delivery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"repo-digest/internal/domain"
)

const (
	discordEmbedLimit  = 4096
	discordEmbedsLimit = 10
	// discordTotalLimit — предел суммарной длины title и description всех embeds.
	discordTotalLimit = 6000
	discordColor       = 0x5865F2
)

// Discord отправляет дайджест в вебхук Discord.
type Discord struct {
	client *http.Client
}

// NewDiscord создаёт канал Discord.
func NewDiscord(timeout time.Duration) *Discord {
	return &Discord{client: newHTTPClient(timeout)}
}

func (d *Discord) Method() domain.DeliveryMethod { return domain.DeliveryDiscord }

type discordEmbed struct {
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description"`
	Color       int    `json:"color,omitempty"`
}

type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

// buildDiscordPayload кладёт дайджест в embeds, по одному на каждый кусок текста.
// Текст, не влезающий в общий лимит Discord, обрезается с многоточием.
func buildDiscordPayload(msg domain.Message) discordPayload {
	budget := discordTotalLimit - utf8.RuneCountInString(msg.RepoName)
	embeds := make([]discordEmbed, 0, 2)
	for i, part := range SplitText(msg.Summary, discordEmbedLimit) {
		if len(embeds) == discordEmbedsLimit || budget <= 0 {
			break
		}
		if n := utf8.RuneCountInString(part); n > budget {
			part = string([]rune(part)[:budget-1]) + "…"
		}
		budget -= utf8.RuneCountInString(part)
		e := discordEmbed{Description: part, Color: discordColor}
		if i == 0 {
			e.Title = msg.RepoName
			e.URL = msg.RepoURL
		}
		embeds = append(embeds, e)
	}
	return discordPayload{
		Content: "📊 Daily Digest: " + msg.RepoName,
		Embeds:  embeds,
	}
}

// Send публикует сообщение. С wait=true Discord отвечает 200 вместо 204.
func (d *Discord) Send(ctx context.Context, webhookURL string, msg domain.Message) error {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("discord: invalid webhook url")
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()
	return postJSON(ctx, d.client, "discord", u.String(), buildDiscordPayload(msg))
}
