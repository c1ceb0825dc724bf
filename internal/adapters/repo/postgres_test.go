package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"repo-digest/internal/domain"
)

func TestDecodeMetrics(t *testing.T) {
	assert.Equal(t, domain.Metrics{}, decodeMetrics(nil))
	assert.Equal(t, domain.Metrics{}, decodeMetrics([]byte("{broken")))
	assert.Equal(t, domain.Metrics{Commits: 3, Bugfixes: 1}, decodeMetrics([]byte(`{"commits":3,"bugfixes":1}`)))
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("3f1c8c1e-8f2a-4c55-9a0b-3e1f5b0d2a11"))
	assert.False(t, validID("not-a-uuid"))
	assert.False(t, validID(""))
}
