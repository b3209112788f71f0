package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"notesync/internal/domain"
	"notesync/internal/websocket"
)

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			u := *user
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := m.users[id]; ok {
		u := *user
		return &u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *mockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	for _, user := range m.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

type mockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	gets     int
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{sessions: make(map[string]*domain.Session)}
}

func (m *mockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockSessionRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// mockNoteRepository mirrors the conditional-update semantics of the real
// stores: writes apply only for the owner and only when strictly newer.
type mockNoteRepository struct {
	mu      sync.Mutex
	notes   map[string]domain.RemoteNote
	failIDs map[string]error
	pullErr error
	// raceInsert simulates another request inserting the note between
	// FindByID and Insert.
	raceInsert map[string]domain.RemoteNote
}

func newMockNoteRepository() *mockNoteRepository {
	return &mockNoteRepository{
		notes:      make(map[string]domain.RemoteNote),
		failIDs:    make(map[string]error),
		raceInsert: make(map[string]domain.RemoteNote),
	}
}

func (m *mockNoteRepository) put(n domain.RemoteNote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.ID] = n
}

func (m *mockNoteRepository) get(id string) (domain.RemoteNote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	return n, ok
}

func (m *mockNoteRepository) FindByOwnerSince(ctx context.Context, userID string, since int64) ([]*domain.RemoteNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pullErr != nil {
		return nil, m.pullErr
	}
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

func (m *mockNoteRepository) FindByID(ctx context.Context, id string) (*domain.RemoteNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failIDs[id]; ok {
		return nil, err
	}
	n, ok := m.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (m *mockNoteRepository) Insert(ctx context.Context, note *domain.RemoteNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if winner, ok := m.raceInsert[note.ID]; ok {
		delete(m.raceInsert, note.ID)
		m.notes[note.ID] = winner
	}
	if _, ok := m.notes[note.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.notes[note.ID] = *note
	return nil
}

func (m *mockNoteRepository) Update(ctx context.Context, userID, id string, fields domain.NoteFields) (bool, error) {
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

type broadcast struct {
	userID  string
	exclude string
	payload websocket.NotesChangedPayload
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcast
}

func (b *recordingBroadcaster) BroadcastToUser(userID string, msg *websocket.Message, excludeDeviceID string) error {
	var p websocket.NotesChangedPayload
	if err := msg.UnmarshalPayload(&p); err != nil {
		return err
	}
	if msg.Type != websocket.TypeNotesChanged {
		return errors.New("unexpected message type")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcast{userID: userID, exclude: excludeDeviceID, payload: p})
	return nil
}
