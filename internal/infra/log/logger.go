package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт логгер сервиса: в dev читаемый вывод с уровнем debug,
// в остальных окружениях JSON с уровнем info.
func NewLogger(appEnv string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if appEnv == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return newLogger(appEnv, out)
}

func newLogger(appEnv string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(out).Level(level).With().Timestamp().Str("env", appEnv).Logger()
}

// Component возвращает дочерний логгер с полем component.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
