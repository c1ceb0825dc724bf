package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("prod", &buf)

	logger.Debug().Msg("скрыто")
	assert.Zero(t, buf.Len())

	worker := Component(logger, "worker")
	worker.Info().Msg("worker: старт")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "worker", entry["component"])
	assert.Equal(t, "prod", entry["env"])
	assert.Equal(t, "info", entry["level"])
	assert.NotEmpty(t, entry["time"])
}

func TestDevLoggerWritesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("dev", &buf)
	logger.Debug().Msg("видно")
	assert.Contains(t, buf.String(), "видно")
}
