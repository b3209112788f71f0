// Package syncclient drives sync rounds from a device: it pushes the local
// outbox, merges what the server returns, and schedules rounds on a timer
// and on demand.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"notesync/internal/domain"
	"notesync/internal/logging"
)

// ErrRoundInFlight is returned when Sync is called while another round is
// still running. The caller's round is skipped, not queued.
var ErrRoundInFlight = errors.New("sync round already in flight")

const (
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 60 * time.Second
)

// Store is the part of the local store a round needs.
type Store interface {
	GetCursor(ctx context.Context) (*int64, error)
	ListPendingChanges(ctx context.Context) ([]domain.OutboxEntry, error)
	ApplySyncResult(ctx context.Context, sent []domain.OutboxEntry, res *domain.SyncResponse) ([]domain.Note, error)
}

// Transport carries one sync request to the server.
type Transport interface {
	Sync(ctx context.Context, req *domain.SyncRequest) (*domain.SyncResponse, error)
}

// Result summarises a completed round.
type Result struct {
	Notes    []domain.Note
	Applied  []string
	Failed   []domain.ChangeFailure
	Pulled   int
	Pushed   int
	HeldBack int
	Cursor   int64
}

type Orchestrator struct {
	store       Store
	transport   Transport
	logger      logging.Logger
	clock       func() time.Time
	backoffBase time.Duration
	backoffMax  time.Duration

	mu sync.Mutex
}

type Option func(*Orchestrator)

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithBackoff sets how long an entry the server rejected is held back
// before it is pushed again.
func WithBackoff(base, max time.Duration) Option {
	return func(o *Orchestrator) {
		o.backoffBase = base
		o.backoffMax = max
	}
}

func NewOrchestrator(store Store, transport Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		transport:   transport,
		logger:      logging.NewNop(),
		clock:       time.Now,
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "sync")
	return o
}

// Sync runs one round. Nothing local changes unless the server answered;
// on a transport or auth failure the outbox and cursor are left as they
// were and the round can simply be retried.
func (o *Orchestrator) Sync(ctx context.Context) (*Result, error) {
	if !o.mu.TryLock() {
		return nil, ErrRoundInFlight
	}
	defer o.mu.Unlock()

	cursor, err := o.store.GetCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cursor: %w", err)
	}
	var lastPulledAt int64
	if cursor != nil {
		lastPulledAt = *cursor
	}

	pending, err := o.store.ListPendingChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}

	now := o.clock().UnixMilli()
	sent := make([]domain.OutboxEntry, 0, len(pending))
	changes := make([]domain.Change, 0, len(pending))
	for _, e := range pending {
		if !o.ready(e, now) {
			continue
		}
		sent = append(sent, e)
		changes = append(changes, e.Change())
	}

	req := &domain.SyncRequest{LastPulledAt: lastPulledAt, Changes: changes}
	res, err := o.transport.Sync(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}

	notes, err := o.store.ApplySyncResult(ctx, sent, res)
	if err != nil {
		return nil, fmt.Errorf("failed to apply sync result: %w", err)
	}

	for _, f := range res.Failed {
		o.logger.Warn(ctx, "change rejected by server", "note_id", f.NoteID, "error", f.Error)
	}
	o.logger.Info(ctx, "sync round complete",
		"pushed", len(sent),
		"held_back", len(pending)-len(sent),
		"pulled", len(res.Pull.Notes),
		"failed", len(res.Failed),
		"cursor", res.Cursor,
	)

	return &Result{
		Notes:    notes,
		Applied:  res.AppliedIDs,
		Failed:   res.Failed,
		Pulled:   len(res.Pull.Notes),
		Pushed:   len(sent),
		HeldBack: len(pending) - len(sent),
		Cursor:   res.Cursor,
	}, nil
}

// ready reports whether e may be pushed at now. Entries the server has
// rejected wait base*2^(attempt-1), capped at max, after their last attempt.
func (o *Orchestrator) ready(e domain.OutboxEntry, now int64) bool {
	if e.Attempt == 0 {
		return true
	}
	return now-e.LastAttemptAt >= entryBackoff(e.Attempt, o.backoffBase, o.backoffMax).Milliseconds()
}

func entryBackoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
