package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notesync/internal/adapter"
	"notesync/internal/domain"
	"notesync/internal/logging"
	"notesync/internal/repository"
	"notesync/internal/websocket"
)

type Broadcaster interface {
	BroadcastToUser(userID string, message *websocket.Message, excludeDeviceID string) error
}

// SyncService reconciles a client's pending changes against the server copy
// with last-write-wins on updatedAt, then returns what changed since the
// client's cursor.
type SyncService struct {
	noteRepo    repository.NoteRepository
	broadcaster Broadcaster
	logger      logging.Logger
	clock       func() time.Time
}

type SyncOption func(*SyncService)

func WithSyncClock(clock func() time.Time) SyncOption {
	return func(s *SyncService) { s.clock = clock }
}

func NewSyncService(noteRepo repository.NoteRepository, broadcaster Broadcaster, logger logging.Logger, opts ...SyncOption) *SyncService {
	s := &SyncService{
		noteRepo:    noteRepo,
		broadcaster: broadcaster,
		logger:      logger.With("component", "sync"),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync applies req.Changes in order and builds the pull set.
//
// A change is acknowledged in AppliedIDs once it has been reconciled, whether
// it won or lost. Losing changes get the winning server copy in the pull set
// so the client converges in the same round. A change that cannot be
// reconciled is reported in Failed and does not affect the others.
//
// Notes the caller already holds, because it just pushed exactly that
// version, are left out of the pull set.
func (s *SyncService) Sync(ctx context.Context, identity domain.Identity, req *domain.SyncRequest) (*domain.SyncResponse, error) {
	userID := identity.UserID

	resp := &domain.SyncResponse{
		AppliedIDs: []string{},
		Pull:       domain.PullSet{Notes: []domain.Note{}},
	}

	pushed := make(map[string]domain.Note, len(req.Changes))
	winners := make(map[string]*domain.RemoteNote)
	var changed []string

	for _, change := range req.Changes {
		incoming := incomingNote(change)

		wrote, current, err := s.applyChange(ctx, userID, incoming)
		if err != nil {
			s.logger.Warn(ctx, "change rejected", "user_id", userID, "note_id", change.NoteID, "error", err)
			resp.Failed = append(resp.Failed, domain.ChangeFailure{NoteID: change.NoteID, Error: err.Error()})
			continue
		}

		resp.AppliedIDs = append(resp.AppliedIDs, change.NoteID)
		pushed[change.NoteID] = incoming
		if wrote {
			changed = append(changed, change.NoteID)
			delete(winners, change.NoteID)
		} else if current != nil {
			winners[change.NoteID] = current
		}
	}

	delta, err := s.noteRepo.FindByOwnerSince(ctx, userID, req.LastPulledAt)
	if err != nil {
		return nil, fmt.Errorf("failed to pull changes: %w", err)
	}

	seen := make(map[string]bool, len(delta)+len(winners))
	for _, remote := range delta {
		seen[remote.ID] = true
		s.addPulled(resp, pushed, remote)
	}
	for id, remote := range winners {
		if !seen[id] {
			s.addPulled(resp, pushed, remote)
		}
	}

	resp.Cursor = s.clock().UnixMilli()

	s.logger.Info(ctx, "sync round",
		"user_id", userID,
		"device_id", identity.DeviceID,
		"pushed", len(req.Changes),
		"applied", len(resp.AppliedIDs),
		"written", len(changed),
		"failed", len(resp.Failed),
		"pulled", len(resp.Pull.Notes),
		"cursor", resp.Cursor,
	)

	if len(changed) > 0 {
		s.notify(ctx, identity, changed, resp.Cursor)
	}

	return resp, nil
}

func incomingNote(change domain.Change) domain.Note {
	n := change.Payload
	n.ID = change.NoteID
	if change.Op == domain.OpDelete {
		n.Deleted = true
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = change.CreatedAt
	}
	return n
}

// applyChange writes incoming when it is newer than the stored copy. It
// returns whether it wrote, and otherwise the stored copy that won.
func (s *SyncService) applyChange(ctx context.Context, userID string, incoming domain.Note) (bool, *domain.RemoteNote, error) {
	remote := adapter.ToRemote(incoming, userID)

	existing, err := s.noteRepo.FindByID(ctx, incoming.ID)
	if errors.Is(err, domain.ErrNotFound) {
		err = s.noteRepo.Insert(ctx, &remote)
		if err == nil {
			return true, nil, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return false, nil, err
		}
		// lost an insert race; compare against the winner
		existing, err = s.noteRepo.FindByID(ctx, incoming.ID)
	}
	if err != nil {
		return false, nil, err
	}

	if existing.UserID != userID {
		return false, nil, domain.ErrForbidden
	}

	applied, err := s.noteRepo.Update(ctx, userID, incoming.ID, remote.Fields())
	if err != nil {
		return false, nil, err
	}
	if applied {
		return true, nil, nil
	}
	return false, existing, nil
}

func (s *SyncService) addPulled(resp *domain.SyncResponse, pushed map[string]domain.Note, remote *domain.RemoteNote) {
	note := adapter.ToLocal(*remote)
	if mine, ok := pushed[note.ID]; ok && mine == note {
		return
	}
	resp.Pull.Notes = append(resp.Pull.Notes, note)
}

func (s *SyncService) notify(ctx context.Context, identity domain.Identity, noteIDs []string, cursor int64) {
	if s.broadcaster == nil {
		return
	}

	msg, err := websocket.NewMessage(websocket.TypeNotesChanged, &websocket.NotesChangedPayload{
		NoteIDs:  noteIDs,
		Cursor:   cursor,
		DeviceID: identity.DeviceID,
	})
	if err != nil {
		s.logger.Error(ctx, "failed to build notification", "error", err)
		return
	}
	if err := s.broadcaster.BroadcastToUser(identity.UserID, msg, identity.DeviceID); err != nil {
		s.logger.Warn(ctx, "failed to notify devices", "user_id", identity.UserID, "error", err)
	}
}
