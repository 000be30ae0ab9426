package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the structured logger used across the client.
// Console output is the default; set LOG_FORMAT=json for machine-readable
// output.
func NewLogger(cfg *Config) zerolog.Logger {
	var output = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "mesa-client").
		Logger().
		Level(parseLevel(cfg.LogLevel))

	if strings.EqualFold(cfg.LogFormat, "json") {
		logger = logger.Output(os.Stderr)
	}

	return logger
}

func parseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}
