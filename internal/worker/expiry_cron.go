package worker

// expiry_cron.go
// Background goroutine that periodically sweeps ACTIVE reservations past their
// expiry date, returning remaining quantity to available stock.

import (
	"context"
	"time"

	"stockledger/internal/service"

	"github.com/rs/zerolog/log"
)

// StartExpiryCron launches a goroutine that ticks every interval and expires
// due reservations. It respects the context for graceful shutdown.
func StartExpiryCron(ctx context.Context, reservations service.ReservationService, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("expiry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("expiry_cron: shutting down")
				return
			case <-ticker.C:
				expired, err := reservations.ExpireDue(ctx, time.Now())
				if err != nil {
					log.Error().Err(err).Msg("expiry_cron: sweep failed")
					continue
				}
				if expired > 0 {
					log.Info().Int("expired", expired).Msg("expiry_cron: reservations expired")
				}
			}
		}
	}()
}
