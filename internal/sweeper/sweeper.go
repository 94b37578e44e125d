// Package sweeper runs the periodic auction maintenance loop: activate
// pending auctions whose start has arrived, close expired ones, and warn
// about auctions ending soon.
package sweeper

import (
	"context"
	"time"

	"carbid-backend/internal/auctions"

	"github.com/rs/zerolog/log"
)

type Sweeper struct {
	Auctions *auctions.Service
	Interval time.Duration
}

func New(svc *auctions.Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Sweeper{Auctions: svc, Interval: interval}
}

// Run blocks until ctx is cancelled. Each tick is independent: a failing
// tick is logged and the schedule continues, since expired-but-unclosed
// auctions remain selectable on the next pass. Cancellation is cooperative;
// an in-flight close finishes before the loop exits.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", s.Interval).Msg("Auction sweeper started")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Auction sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if n, err := s.Auctions.ActivatePending(ctx); err != nil {
		log.Error().Err(err).Msg("Sweeper: activate pass failed")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("Activated pending auctions")
	}

	if _, err := s.Auctions.CloseExpiredAuctions(ctx); err != nil {
		log.Error().Err(err).Msg("Sweeper: close pass failed")
	}

	if err := s.Auctions.NotifyEndingSoon(ctx); err != nil {
		log.Error().Err(err).Msg("Sweeper: ending-soon pass failed")
	}
}
