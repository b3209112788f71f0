package syncclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	calls atomic.Int32
	fail  atomic.Bool
	ran   chan struct{}
}

func newCountingSyncer() *countingSyncer {
	return &countingSyncer{ran: make(chan struct{}, 64)}
}

func (c *countingSyncer) Sync(context.Context) (*Result, error) {
	c.calls.Add(1)
	defer func() { c.ran <- struct{}{} }()
	if c.fail.Load() {
		return nil, errors.New("offline")
	}
	return &Result{Cursor: 1}, nil
}

func waitRound(t *testing.T, c *countingSyncer) {
	t.Helper()
	select {
	case <-c.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("round did not run")
	}
}

func TestScheduler_RunsImmediatelyAndOnTrigger(t *testing.T) {
	syncer := newCountingSyncer()
	var results atomic.Int32
	s := NewScheduler(syncer,
		WithInterval(time.Hour),
		OnResult(func(*Result) { results.Add(1) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitRound(t, syncer)
	s.Trigger()
	waitRound(t, syncer)

	cancel()
	<-done
	assert.Equal(t, int32(2), syncer.calls.Load())
	assert.Equal(t, int32(2), results.Load())
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	syncer := newCountingSyncer()
	s := NewScheduler(syncer, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < 3; i++ {
		waitRound(t, syncer)
	}
}

func TestScheduler_BacksOffFailedRounds(t *testing.T) {
	syncer := newCountingSyncer()
	syncer.fail.Store(true)
	s := NewScheduler(syncer,
		WithInterval(time.Hour),
		WithRoundBackoff(5*time.Millisecond, 20*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < 4; i++ {
		waitRound(t, syncer)
	}
	syncer.fail.Store(false)
	waitRound(t, syncer)
	require.GreaterOrEqual(t, syncer.calls.Load(), int32(5))
}

func TestScheduler_TriggerCoalesces(t *testing.T) {
	s := NewScheduler(newCountingSyncer())
	s.Trigger()
	s.Trigger()
	s.Trigger()
	assert.Len(t, s.trigger, 1)
}

func TestScheduler_IgnoresNonPositiveTimings(t *testing.T) {
	syncer := newCountingSyncer()
	syncer.fail.Store(true)
	s := NewScheduler(syncer, WithInterval(0), WithRoundBackoff(0, -time.Second))

	assert.Equal(t, DefaultInterval, s.interval)
	assert.Equal(t, DefaultBackoffBase, s.baseDelay)
	assert.Equal(t, DefaultBackoffMax, s.maxBackoff)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-syncer.ran
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), syncer.calls.Load())
}
