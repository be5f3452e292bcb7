package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionLogger derives a logger carrying session identity fields.
func SessionLogger(id, remote, transport string) zerolog.Logger {
	return log.Logger.With().
		Str("session", id).
		Str("remote", remote).
		Str("transport", transport).
		Logger()
}

// ComponentLogger derives a logger tagged with one component name.
func ComponentLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
