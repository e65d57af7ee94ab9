package utils

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// InitSentry enables error reporting. It returns false when dsn is empty or
// the client could not be created.
func InitSentry(dsn, env string) bool {
	if dsn == "" {
		log.Info().Msg("ℹ️ SENTRY_DSN not set, error reporting disabled")
		return false
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		AttachStacktrace: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("❌ sentry.Init failed")
		return false
	}

	log.Info().Str("env", env).Msg("✅ Sentry initialized")
	return true
}

// FlushSentry waits for buffered events before the process exits
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
