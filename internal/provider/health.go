package provider

import (
	"context"

	"github.com/rs/zerolog"
)

// pingRetryCount is the fixed probe budget. Retries are immediate, with
// no inter-attempt backoff; see the cache docs for why a failed budget
// evicts rather than lingers.
const pingRetryCount = 3

// probeWithRetry runs the instance's liveness check up to attempts times
// and reports whether any attempt succeeded. A cancelled context stops
// the loop early.
func probeWithRetry(ctx context.Context, p Provider, attempts int, log zerolog.Logger) bool {
	for i := 0; i < attempts; i++ {
		if p.Ping(ctx) {
			return true
		}
		log.Warn().
			Str("provider", p.Info().Name).
			Int("attempt", i+1).
			Int("budget", attempts).
			Msg("provider ping failed")
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}
