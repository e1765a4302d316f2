// Package logging provides the zerolog-based structured logging used by every
// Lambda entrypoint. Output is JSON on stderr; the level comes from the
// LOG_LEVEL environment variable (default info).
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(parseLevel(os.Getenv("LOG_LEVEL")))
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a sub-logger carrying the given component field. Handlers add
// their own request-scoped fields (requestId, transactionId) on top of it.
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
