package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"notesync/internal/dbx"
	"notesync/internal/domain"
	"notesync/internal/title"
)

const noteColumns = `id, name, document, created_at, updated_at, deleted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var n domain.Note
	if err := row.Scan(&n.ID, &n.Name, &n.Document, &n.CreatedAt, &n.UpdatedAt, &n.Deleted); err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNote stores a new note and queues it for upload. An empty name is
// replaced with a generated title.
func (s *Store) CreateNote(ctx context.Context, name, document string) (*domain.Note, error) {
	if strings.TrimSpace(name) == "" {
		name = title.Generate()
	}

	now := s.now()
	note := &domain.Note{
		ID:        uuid.NewString(),
		Name:      name,
		Document:  document,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := putNote(ctx, tx, note); err != nil {
			return err
		}
		return enqueue(ctx, tx, domain.OpUpsert, note, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "note created", "note_id", note.ID)
	return note, nil
}

// SaveNote replaces the document of an existing note and queues the new
// version. Tombstoned notes cannot be saved.
func (s *Store) SaveNote(ctx context.Context, id, document string) (*domain.Note, error) {
	var note *domain.Note

	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		note, err = getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if note.Deleted {
			return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
		}

		note.Document = document
		note.UpdatedAt = s.stamp(note)
		if err := putNote(ctx, tx, note); err != nil {
			return err
		}
		return enqueue(ctx, tx, domain.OpUpsert, note, note.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// RenameNote changes the name of an existing note and queues the new version.
func (s *Store) RenameNote(ctx context.Context, id, name string) (*domain.Note, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name must not be empty: %w", domain.ErrValidation)
	}

	var note *domain.Note
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		note, err = getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if note.Deleted {
			return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
		}

		note.Name = name
		note.UpdatedAt = s.stamp(note)
		if err := putNote(ctx, tx, note); err != nil {
			return err
		}
		return enqueue(ctx, tx, domain.OpUpsert, note, note.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// DeleteNote marks a note as deleted and queues the tombstone. Deleting an
// already deleted note is a no-op.
func (s *Store) DeleteNote(ctx context.Context, id string) (*domain.Note, error) {
	var note *domain.Note

	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		note, err = getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if note.Deleted {
			return nil
		}

		note.Deleted = true
		note.UpdatedAt = s.stamp(note)
		if err := putNote(ctx, tx, note); err != nil {
			return err
		}
		return enqueue(ctx, tx, domain.OpDelete, note, note.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// GetNote returns the note with the given id, tombstones included.
func (s *Store) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	return getNote(ctx, s.db, id)
}

// ListNotes returns all live notes, most recently updated first.
func (s *Store) ListNotes(ctx context.Context) ([]domain.Note, error) {
	return listNotes(ctx, s.db)
}

// stamp returns the updatedAt for a local edit of n. The value never goes
// below createdAt and is always strictly newer than the stored version, even
// when the wall clock stalls or steps backwards.
func (s *Store) stamp(n *domain.Note) int64 {
	ts := s.now()
	if ts < n.CreatedAt {
		ts = n.CreatedAt
	}
	if ts <= n.UpdatedAt {
		ts = n.UpdatedAt + 1
	}
	return ts
}

func getNote(ctx context.Context, db dbx.DBTX, id string) (*domain.Note, error) {
	row := db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

func listNotes(ctx context.Context, db dbx.DBTX) ([]domain.Note, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE deleted = 0
		ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []domain.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

func putNote(ctx context.Context, db dbx.DBTX, n *domain.Note) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted`,
		n.ID, n.Name, n.Document, n.CreatedAt, n.UpdatedAt, n.Deleted)
	if err != nil {
		return fmt.Errorf("failed to write note: %w", err)
	}
	return nil
}

// mergeNote writes a pulled note unless the local copy is strictly newer.
// It reports whether the row was written.
func mergeNote(ctx context.Context, db dbx.DBTX, n *domain.Note) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
		WHERE excluded.updated_at >= notes.updated_at`,
		n.ID, n.Name, n.Document, n.CreatedAt, n.UpdatedAt, n.Deleted)
	if err != nil {
		return false, fmt.Errorf("failed to merge note %s: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to merge note %s: %w", n.ID, err)
	}
	return affected > 0, nil
}
