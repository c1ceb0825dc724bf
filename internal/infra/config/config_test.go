package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("OPENAI_ENABLED", "true")
	t.Setenv("SCHEDULE_WEEKLY_DAY", "3")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "ghp_test", cfg.GitHub.Token)
	assert.Equal(t, 15*time.Second, cfg.GitHub.Timeout)
	assert.True(t, cfg.OpenAI.Enabled)
	assert.Equal(t, 400, cfg.OpenAI.MaxTokens)
	assert.Equal(t, 10*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, 10, cfg.RateLimit.Digest)
	assert.Equal(t, time.Wednesday, cfg.Schedule.WeeklyDay)
	assert.Equal(t, 30, cfg.Schedule.RetentionDays)
	assert.Equal(t, 5, cfg.PlanLimits().ProRepos)
}

func TestParseInvalidDuration(t *testing.T) {
	t.Setenv("GITHUB_TIMEOUT", "soon")
	_, err := Parse()
	assert.Error(t, err)
}
