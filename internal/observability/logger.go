package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger tags the global zerolog logger with app and garden. Output,
// level and formatting stay as the logging package configured them.
func InitLogger(app, garden string) zerolog.Logger {
	logger := log.Logger.With().Str("app", app).Str("garden", garden).Logger()
	log.Logger = logger
	return logger
}
