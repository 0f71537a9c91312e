package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт настроенный zerolog для воркера.
func NewLogger(appEnv, worker string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("worker", worker).Logger().Level(level)
	zerolog.TimeFieldFormat = time.RFC3339
	return logger
}
