package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level maps LOG_LEVEL to a zerolog level. The CLI is quiet by default and
// only reports errors.
func Level(v string, ok bool) zerolog.Level {
	if !ok {
		return zerolog.ErrorLevel
	}
	switch v {
	case "dev", "development", "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Init installs the global logger writing to stderr.
func Init() {
	InitWriter(os.Stderr)
}

// InitWriter installs the global logger writing to w.
func InitWriter(w io.Writer) {
	v, ok := os.LookupEnv("LOG_LEVEL")
	zerolog.SetGlobalLevel(Level(v, ok))
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()
}
