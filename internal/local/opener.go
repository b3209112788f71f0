package local

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Opener owns the lifetime of a Store. Open may be called from any number
// of goroutines; they share a single open attempt, and once a Store is open
// every later call returns it. A failed attempt is not remembered, so the
// next call retries.
type Opener struct {
	path string
	opts []Option

	group singleflight.Group
	mu    sync.Mutex
	store *Store
}

func NewOpener(path string, opts ...Option) *Opener {
	return &Opener{path: path, opts: opts}
}

func (o *Opener) Open(ctx context.Context) (*Store, error) {
	if s := o.current(); s != nil {
		return s, nil
	}

	v, err, _ := o.group.Do(o.path, func() (any, error) {
		if s := o.current(); s != nil {
			return s, nil
		}
		s, err := Open(ctx, o.path, o.opts...)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.store = s
		o.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Close releases the open Store, if any. A later Open reopens it.
func (o *Opener) Close() error {
	o.mu.Lock()
	s := o.store
	o.store = nil
	o.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

func (o *Opener) current() *Store {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store
}
