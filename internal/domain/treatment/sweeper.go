package treatment

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically marks overdue pending doses as missed. Callers
// run Start in its own goroutine and cancel the context to stop it.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Start runs one sweep immediately, then one per interval until the
// context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.svc.SweepMissed(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("missed-dose sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("marked_missed", n).Msg("missed-dose sweep")
	}
}
