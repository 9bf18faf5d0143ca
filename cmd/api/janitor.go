package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/ports/out/clock"
	idempotencyport "github.com/skyporter/luggage-api/internal/ports/out/idempotency"
)

// runJanitor purges idempotency records older than ttl every interval until ctx ends.
func runJanitor(ctx context.Context, store idempotencyport.Store, clk clock.Clock, ttl, interval time.Duration, log zerolog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sweepIdempotency(ctx, store, clk, ttl, log)
		}
	}
}

func sweepIdempotency(ctx context.Context, store idempotencyport.Store, clk clock.Clock, ttl time.Duration, log zerolog.Logger) {
	n, err := store.Purge(ctx, clk.Now().Add(-ttl))
	if err != nil {
		log.Error().Err(err).Msg("idempotency purge failed")
		return
	}
	if n > 0 {
		log.Debug().Int("purged", n).Msg("idempotency records purged")
	}
}
