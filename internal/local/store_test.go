package local

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notesync/internal/domain"
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

func setupStore(t *testing.T, clock *fakeClock) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "notes.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateNote(t *testing.T) {
	clock := newFakeClock(1_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "Groceries", "<p>milk</p>")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "Groceries", n.Name)
	assert.Equal(t, int64(1_000), n.CreatedAt)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)
	assert.False(t, n.Deleted)

	got, err := s.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got)

	pending, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.OpUpsert, pending[0].Op)
	assert.Equal(t, n.ID, pending[0].NoteID)
	assert.Equal(t, *n, pending[0].Payload)
	assert.Equal(t, int64(1), pending[0].Revision)
	assert.Equal(t, 0, pending[0].Attempt)
}

func TestCreateNote_GeneratesName(t *testing.T) {
	s := setupStore(t, newFakeClock(1))

	n, err := s.CreateNote(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.NotEmpty(t, n.Name)
	assert.NotEqual(t, "  ", n.Name)
}

func TestSaveNote_NotFound(t *testing.T) {
	s := setupStore(t, newFakeClock(1))

	_, err := s.SaveNote(context.Background(), "missing", "x")
	require.ErrorIs(t, err, domain.ErrNotFound)

	pending, err := s.ListPendingChanges(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSaveNote_CoalescesOutbox(t *testing.T) {
	clock := newFakeClock(1_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "a", "v1")
	require.NoError(t, err)

	clock.Set(2_000)
	_, err = s.SaveNote(ctx, n.ID, "v2")
	require.NoError(t, err)

	clock.Set(3_000)
	saved, err := s.SaveNote(ctx, n.ID, "v3")
	require.NoError(t, err)
	assert.Equal(t, int64(3_000), saved.UpdatedAt)
	assert.Equal(t, int64(1_000), saved.CreatedAt)

	pending, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "v3", pending[0].Payload.Document)
	assert.Equal(t, int64(3_000), pending[0].CreatedAt)
	assert.Equal(t, int64(3), pending[0].Revision)
}

func TestRenameNote(t *testing.T) {
	clock := newFakeClock(1_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "draft", "body")
	require.NoError(t, err)

	_, err = s.RenameNote(ctx, n.ID, "  ")
	require.ErrorIs(t, err, domain.ErrValidation)

	clock.Set(2_000)
	renamed, err := s.RenameNote(ctx, n.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", renamed.Name)
	assert.Equal(t, "body", renamed.Document)
	assert.Equal(t, int64(2_000), renamed.UpdatedAt)

	pending, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "final", pending[0].Payload.Name)

	_, err = s.DeleteNote(ctx, n.ID)
	require.NoError(t, err)
	_, err = s.RenameNote(ctx, n.ID, "again")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveNote_UpdatedAtAlwaysAdvances(t *testing.T) {
	clock := newFakeClock(5_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "a", "v1")
	require.NoError(t, err)

	// clock stalls
	first, err := s.SaveNote(ctx, n.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, int64(5_001), first.UpdatedAt)

	// clock steps backwards past createdAt
	clock.Set(100)
	second, err := s.SaveNote(ctx, n.ID, "v3")
	require.NoError(t, err)
	assert.Equal(t, int64(5_002), second.UpdatedAt)
	assert.GreaterOrEqual(t, second.UpdatedAt, second.CreatedAt)
}

func TestDeleteNote(t *testing.T) {
	clock := newFakeClock(1_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	keep, err := s.CreateNote(ctx, "keep", "")
	require.NoError(t, err)
	gone, err := s.CreateNote(ctx, "gone", "")
	require.NoError(t, err)

	clock.Set(2_000)
	deleted, err := s.DeleteNote(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, int64(2_000), deleted.UpdatedAt)

	notes, err := s.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, keep.ID, notes[0].ID)

	got, err := s.GetNote(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	pending, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, e := range pending {
		if e.NoteID == gone.ID {
			assert.Equal(t, domain.OpDelete, e.Op)
			assert.True(t, e.Payload.Deleted)
		}
	}

	_, err = s.SaveNote(ctx, gone.ID, "resurrect")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListNotes_OrderedByUpdatedAt(t *testing.T) {
	clock := newFakeClock(1_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	a, err := s.CreateNote(ctx, "a", "")
	require.NoError(t, err)
	clock.Set(2_000)
	b, err := s.CreateNote(ctx, "b", "")
	require.NoError(t, err)
	clock.Set(3_000)
	_, err = s.SaveNote(ctx, a.ID, "edited")
	require.NoError(t, err)

	notes, err := s.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, a.ID, notes[0].ID)
	assert.Equal(t, b.ID, notes[1].ID)
}

func TestCursor(t *testing.T) {
	s := setupStore(t, newFakeClock(1))
	ctx := context.Background()

	c, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, s.SetCursor(ctx, 42))
	c, err = s.GetCursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(42), *c)
}

func TestSession(t *testing.T) {
	s := setupStore(t, newFakeClock(1))
	ctx := context.Background()

	got, err := s.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := &Session{Token: "tok", UserID: "u1", Email: "a@b.c", ExpiresAt: 99}
	require.NoError(t, s.SetSession(ctx, sess))

	got, err = s.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	require.NoError(t, s.ClearSession(ctx))
	got, err = s.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClearPendingChange(t *testing.T) {
	s := setupStore(t, newFakeClock(1))
	ctx := context.Background()

	_, err := s.CreateNote(ctx, "a", "")
	require.NoError(t, err)
	pending, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.ClearPendingChange(ctx, pending[0].ID))
	pending, err = s.ListPendingChanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApplySyncResult_KeepsEntriesEditedMidRound(t *testing.T) {
	clock := newFakeClock(1_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	a, err := s.CreateNote(ctx, "a", "v1")
	require.NoError(t, err)
	b, err := s.CreateNote(ctx, "b", "v1")
	require.NoError(t, err)

	sent, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, sent, 2)

	// edit while the request is in flight
	clock.Set(2_000)
	_, err = s.SaveNote(ctx, b.ID, "v2")
	require.NoError(t, err)

	res := &domain.SyncResponse{
		AppliedIDs: []string{a.ID, b.ID},
		Cursor:     1_500,
	}
	_, err = s.ApplySyncResult(ctx, sent, res)
	require.NoError(t, err)

	pending, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].NoteID)
	assert.Equal(t, "v2", pending[0].Payload.Document)

	cursor, err := s.GetCursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, int64(1_500), *cursor)
}

func TestApplySyncResult_MergesLastWriteWins(t *testing.T) {
	clock := newFakeClock(1_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	tie, err := s.CreateNote(ctx, "tie", "local")
	require.NoError(t, err)
	newer, err := s.CreateNote(ctx, "newer", "local")
	require.NoError(t, err)

	res := &domain.SyncResponse{
		Pull: domain.PullSet{Notes: []domain.Note{
			{ID: tie.ID, Name: "tie", Document: "remote", CreatedAt: 1_000, UpdatedAt: 1_000},
			{ID: newer.ID, Name: "newer", Document: "remote", CreatedAt: 1_000, UpdatedAt: 999},
			{ID: "fresh", Name: "fresh", Document: "remote", CreatedAt: 500, UpdatedAt: 800},
			{ID: "tomb", Name: "tomb", CreatedAt: 500, UpdatedAt: 700, Deleted: true},
		}},
		Cursor: 2_000,
	}
	notes, err := s.ApplySyncResult(ctx, nil, res)
	require.NoError(t, err)

	byID := map[string]domain.Note{}
	for _, n := range notes {
		byID[n.ID] = n
	}
	require.Len(t, byID, 3)
	assert.Equal(t, "remote", byID[tie.ID].Document)
	assert.Equal(t, "local", byID[newer.ID].Document)
	assert.Equal(t, "remote", byID["fresh"].Document)

	tomb, err := s.GetNote(ctx, "tomb")
	require.NoError(t, err)
	assert.True(t, tomb.Deleted)
}

func TestApplySyncResult_RecordsFailedAttempts(t *testing.T) {
	clock := newFakeClock(1_000)
	s := setupStore(t, clock)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "a", "")
	require.NoError(t, err)
	sent, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)

	clock.Set(4_000)
	res := &domain.SyncResponse{
		Failed: []domain.ChangeFailure{{NoteID: n.ID, Error: "boom"}},
		Cursor: 3_000,
	}
	_, err = s.ApplySyncResult(ctx, sent, res)
	require.NoError(t, err)

	pending, err := s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempt)
	assert.Equal(t, int64(4_000), pending[0].LastAttemptAt)

	// a new edit resets the retry state
	clock.Set(5_000)
	_, err = s.SaveNote(ctx, n.ID, "again")
	require.NoError(t, err)
	pending, err = s.ListPendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 0, pending[0].Attempt)
	assert.Equal(t, int64(0), pending[0].LastAttemptAt)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	n, err := s.CreateNote(ctx, "persisted", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}
