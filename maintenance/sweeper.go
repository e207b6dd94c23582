// Package maintenance runs the daily expired refresh token sweep.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultHour is the local hour the sweep runs at when none is configured.
const DefaultHour = 2

// Purger deletes expired refresh tokens. *goFedAuth.Engine implements it.
type Purger interface {
	PurgeExpiredRefreshTokens(ctx context.Context) (int, error)
}

// Config controls when and how the sweep runs.
type Config struct {
	// Hour of day, 0-23, in Location.
	Hour int
	// Location defaults to time.Local.
	Location *time.Location
	// Timeout bounds a single sweep. Zero means no extra bound.
	Timeout time.Duration

	Logger *zap.Logger
	Now    func() time.Time
	// After replaces time.After in tests.
	After func(time.Duration) <-chan time.Time
}

// Sweeper calls Purger once a day.
type Sweeper struct {
	purger Purger
	cfg    Config
}

// New validates cfg and returns a Sweeper for p.
func New(p Purger, cfg Config) (*Sweeper, error) {
	if p == nil {
		return nil, errors.New("maintenance: purger required")
	}
	if cfg.Hour < 0 || cfg.Hour > 23 {
		return nil, fmt.Errorf("maintenance: hour %d out of range 0-23", cfg.Hour)
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("maintenance: timeout must be >= 0")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	return &Sweeper{purger: p, cfg: cfg}, nil
}

// RunOnce performs a single sweep and returns the number of deleted tokens.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := s.cfg.Now()
	n, err := s.purger.PurgeExpiredRefreshTokens(ctx)
	if err != nil {
		s.cfg.Logger.Error("refresh token sweep failed", zap.Error(err))
		return n, err
	}
	s.cfg.Logger.Info("refresh token sweep finished",
		zap.Int("deleted", n),
		zap.Duration("took", s.cfg.Now().Sub(start)),
	)
	return n, nil
}

// Run blocks until ctx is done, sweeping at the configured hour each day.
// A failed sweep is logged and retried at the next scheduled time.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		wait := NextRun(s.cfg.Now(), s.cfg.Hour, s.cfg.Location).Sub(s.cfg.Now())
		s.cfg.Logger.Debug("next refresh token sweep scheduled", zap.Duration("in", wait))

		select {
		case <-ctx.Done():
			return
		case <-s.cfg.After(wait):
		}
		_, _ = s.RunOnce(ctx)
	}
}

// NextRun returns the first instant strictly after now at hour:00 in loc.
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}
