// Package scheduler drives the recurring sweep on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/pvoronov/homeledger/internal/logger"
	"github.com/pvoronov/homeledger/internal/recurring"
)

// Sweeper is the slice of the recurring service the scheduler needs.
type Sweeper interface {
	Sweep(ctx context.Context, today civil.Date) (*recurring.SweepReport, error)
}

// SweepScheduler runs the recurring sweep on a cron spec, using the server's
// local date as "today".
type SweepScheduler struct {
	cronEngine *cron.Cron
	sweeper    Sweeper
	cronSpec   string
	log        zerolog.Logger
}

// NewSweepScheduler creates a scheduler that sweeps on the given cron spec,
// e.g. "10 0 * * *" for shortly after midnight.
func NewSweepScheduler(sweeper Sweeper, cronSpec string, log zerolog.Logger) *SweepScheduler {
	return &SweepScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)),
		sweeper:    sweeper,
		cronSpec:   cronSpec,
		log:        log,
	}
}

// Start registers the sweep job and starts the cron engine.
func (s *SweepScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, s.runSweep)
	if err != nil {
		return fmt.Errorf("Start: adding sweep cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.log.Info().Str("cron_spec", s.cronSpec).Msg("Recurring sweep scheduler started")
	return nil
}

// Stop stops the cron engine and waits for a running sweep to finish.
func (s *SweepScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Recurring sweep scheduler stopped")
}

func (s *SweepScheduler) runSweep() {
	ctx := logger.WithContext(context.Background(), s.log)
	today := civil.DateOf(time.Now())

	report, err := s.sweeper.Sweep(ctx, today)
	if err != nil {
		s.log.Error().Err(err).Str("date", today.String()).Msg("Scheduled recurring sweep failed")
		return
	}

	s.log.Info().
		Str("date", today.String()).
		Int("due", report.Due).
		Int("fired", report.Fired).
		Msg("Scheduled recurring sweep completed")
}
