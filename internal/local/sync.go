package local

import (
	"context"

	"notesync/internal/dbx"
	"notesync/internal/domain"
)

// ApplySyncResult folds a server response into the store in one transaction:
// pulled notes are merged last-write-wins (ties go to the server), entries
// the server acknowledged are cleared, entries it rejected are marked for
// retry, and the cursor advances. sent must be the entries the request was
// built from; an entry edited while the round was in flight has a newer
// revision and is left untouched.
//
// It returns the live notes after the merge.
func (s *Store) ApplySyncResult(ctx context.Context, sent []domain.OutboxEntry, res *domain.SyncResponse) ([]domain.Note, error) {
	applied := make(map[string]struct{}, len(res.AppliedIDs))
	for _, id := range res.AppliedIDs {
		applied[id] = struct{}{}
	}
	failed := make(map[string]struct{}, len(res.Failed))
	for _, f := range res.Failed {
		failed[f.NoteID] = struct{}{}
	}

	var (
		notes   []domain.Note
		merged  int
		cleared int
	)
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		for i := range res.Pull.Notes {
			ok, err := mergeNote(ctx, tx, &res.Pull.Notes[i])
			if err != nil {
				return err
			}
			if ok {
				merged++
			}
		}

		now := s.now()
		for _, e := range sent {
			if _, ok := applied[e.NoteID]; ok {
				ok, err := clearIfUnchanged(ctx, tx, e)
				if err != nil {
					return err
				}
				if ok {
					cleared++
				}
				continue
			}
			if _, ok := failed[e.NoteID]; ok {
				if err := markAttempt(ctx, tx, e, now); err != nil {
					return err
				}
			}
		}

		if err := setMeta(ctx, tx, syncKey, syncMetadata{LastPulledAt: res.Cursor}); err != nil {
			return err
		}

		var err error
		notes, err = listNotes(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "sync result applied",
		"merged", merged, "cleared", cleared, "failed", len(res.Failed), "cursor", res.Cursor)
	return notes, nil
}
