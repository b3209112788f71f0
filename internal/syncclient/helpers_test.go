package syncclient

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"notesync/internal/domain"
	"notesync/internal/local"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(ms int64) *fakeClock {
	return &fakeClock{t: time.UnixMilli(ms)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.UnixMilli(ms)
}

func openStore(t *testing.T, clock *fakeClock) *local.Store {
	t.Helper()
	s, err := local.Open(context.Background(), filepath.Join(t.TempDir(), "notes.db"), local.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// memNoteRepository is an in-memory server store with the same conditional
// write rules as the real backends.
type memNoteRepository struct {
	mu    sync.Mutex
	notes map[string]domain.RemoteNote
}

func newMemNoteRepository() *memNoteRepository {
	return &memNoteRepository{notes: make(map[string]domain.RemoteNote)}
}

func (m *memNoteRepository) FindByOwnerSince(_ context.Context, userID string, since int64) ([]*domain.RemoteNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.RemoteNote
	for _, n := range m.notes {
		if n.UserID == userID && n.UpdatedAt.UnixMilli() > since {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (m *memNoteRepository) FindByID(_ context.Context, id string) (*domain.RemoteNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (m *memNoteRepository) Insert(_ context.Context, note *domain.RemoteNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[note.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.notes[note.ID] = *note
	return nil
}

func (m *memNoteRepository) Update(_ context.Context, userID, id string, fields domain.NoteFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID || !n.UpdatedAt.Before(fields.UpdatedAt) {
		return false, nil
	}
	n.Name = fields.Name
	n.Document = fields.Document
	n.Deleted = fields.Deleted
	n.UpdatedAt = fields.UpdatedAt
	m.notes[id] = n
	return true, nil
}
