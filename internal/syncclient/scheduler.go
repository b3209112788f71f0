package syncclient

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"notesync/internal/domain"
	"notesync/internal/logging"
)

const DefaultInterval = 15 * time.Second

// Syncer runs a single round.
type Syncer interface {
	Sync(ctx context.Context) (*Result, error)
}

// Scheduler runs rounds every interval and whenever Trigger is called.
// Consecutive failed rounds back off exponentially up to maxBackoff; a
// successful round resets the backoff. Failures are logged, never returned.
type Scheduler struct {
	syncer     Syncer
	interval   time.Duration
	baseDelay  time.Duration
	maxBackoff time.Duration
	logger     logging.Logger
	onResult   func(*Result)
	trigger    chan struct{}
}

type SchedulerOption func(*Scheduler)

// WithInterval sets the time between rounds. Non-positive values keep the default.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRoundBackoff sets the delay after the first failed round and its cap.
// Non-positive values keep the defaults.
func WithRoundBackoff(base, max time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if base > 0 {
			s.baseDelay = base
		}
		if max > 0 {
			s.maxBackoff = max
		}
	}
}

func WithSchedulerLogger(l logging.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// OnResult registers a callback invoked after every successful round.
func OnResult(fn func(*Result)) SchedulerOption {
	return func(s *Scheduler) { s.onResult = fn }
}

func NewScheduler(syncer Syncer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		syncer:     syncer,
		interval:   DefaultInterval,
		baseDelay:  DefaultBackoffBase,
		maxBackoff: DefaultBackoffMax,
		logger:     logging.NewNop(),
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger asks for a round as soon as possible. Calls made while a round
// is pending collapse into one.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done. The first round starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	backoff := s.newBackoff()

	for {
		select {
		case <-s.trigger:
		default:
		}

		wait := s.interval
		res, err := s.syncer.Sync(ctx)
		switch {
		case err == nil:
			backoff = s.newBackoff()
			if s.onResult != nil {
				s.onResult(res)
			}
		case errors.Is(err, ErrRoundInFlight):
		case ctx.Err() != nil:
			return
		default:
			next, _ := backoff.Next()
			wait = next
			if errors.Is(err, domain.ErrUnauthorized) {
				s.logger.Warn(ctx, "sync unauthorized, log in again", "retry_in", wait)
			} else {
				s.logger.Warn(ctx, "sync round failed", "error", err, "retry_in", wait)
			}
			if !s.sleep(ctx, wait) {
				return
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.trigger:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(s.maxBackoff, retry.NewExponential(s.baseDelay))
}
