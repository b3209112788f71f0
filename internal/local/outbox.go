package local

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"notesync/internal/dbx"
	"notesync/internal/domain"
)

// enqueue records a pending change for note. A note has at most one pending
// entry: a later change replaces the earlier one in place, resets its retry
// state and bumps its revision.
func enqueue(ctx context.Context, db dbx.DBTX, op domain.ChangeOp, note *domain.Note, createdAt int64) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO outbox (id, op, note_id, payload, created_at, attempt, revision, last_attempt_at)
		VALUES (?, ?, ?, ?, ?, 0, 1, 0)
		ON CONFLICT(note_id) DO UPDATE SET
			op = excluded.op,
			payload = excluded.payload,
			created_at = excluded.created_at,
			attempt = 0,
			last_attempt_at = 0,
			revision = outbox.revision + 1`,
		uuid.NewString(), string(op), note.ID, string(payload), createdAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue change: %w", err)
	}
	return nil
}

// ListPendingChanges returns every outbox entry, oldest first.
func (s *Store) ListPendingChanges(ctx context.Context) ([]domain.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, op, note_id, payload, created_at, attempt, revision, last_attempt_at
		FROM outbox
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending changes: %w", err)
	}
	defer rows.Close()

	entries := []domain.OutboxEntry{}
	for rows.Next() {
		var (
			e       domain.OutboxEntry
			op      string
			payload string
		)
		if err := rows.Scan(&e.ID, &op, &e.NoteID, &payload, &e.CreatedAt, &e.Attempt, &e.Revision, &e.LastAttemptAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		e.Op = domain.ChangeOp(op)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode outbox payload %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox: %w", err)
	}
	return entries, nil
}

// ClearPendingChange removes an outbox entry regardless of its revision.
func (s *Store) ClearPendingChange(ctx context.Context, entryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to clear pending change: %w", err)
	}
	return nil
}

// clearIfUnchanged removes e only if nothing has replaced it since it was read.
func clearIfUnchanged(ctx context.Context, db dbx.DBTX, e domain.OutboxEntry) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ? AND revision = ?`, e.ID, e.Revision)
	if err != nil {
		return false, fmt.Errorf("failed to clear pending change: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to clear pending change: %w", err)
	}
	return n > 0, nil
}

func markAttempt(ctx context.Context, db dbx.DBTX, e domain.OutboxEntry, at int64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE outbox SET attempt = attempt + 1, last_attempt_at = ?
		WHERE id = ? AND revision = ?`,
		at, e.ID, e.Revision)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}
