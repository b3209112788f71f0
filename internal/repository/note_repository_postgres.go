package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"notesync/internal/domain"
)

type postgresNoteRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresNoteRepository(pool *pgxpool.Pool) NoteRepository {
	return &postgresNoteRepository{pool: pool}
}

const noteSelect = `SELECT id, user_id, name, document, created_at, updated_at, deleted FROM notes`

func scanRemoteNote(row pgx.Row) (*domain.RemoteNote, error) {
	var n domain.RemoteNote
	if err := row.Scan(&n.ID, &n.UserID, &n.Name, &n.Document, &n.CreatedAt, &n.UpdatedAt, &n.Deleted); err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return &n, nil
}

func (r *postgresNoteRepository) FindByOwnerSince(ctx context.Context, userID string, since int64) ([]*domain.RemoteNote, error) {
	rows, err := r.pool.Query(ctx,
		noteSelect+` WHERE user_id = $1 AND updated_at > $2 ORDER BY updated_at`,
		userID, time.UnixMilli(since).UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []*domain.RemoteNote{}
	for rows.Next() {
		n, err := scanRemoteNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

func (r *postgresNoteRepository) FindByID(ctx context.Context, id string) (*domain.RemoteNote, error) {
	n, err := scanRemoteNote(r.pool.QueryRow(ctx, noteSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

func (r *postgresNoteRepository) Insert(ctx context.Context, note *domain.RemoteNote) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO notes (id, user_id, name, document, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		note.ID, note.UserID, note.Name, note.Document, note.CreatedAt.UTC(), note.UpdatedAt.UTC(), note.Deleted)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note %s: %w", note.ID, domain.ErrAlreadyExists)
	}
	return nil
}

func (r *postgresNoteRepository) Update(ctx context.Context, userID, id string, fields domain.NoteFields) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notes
		SET name = $3, document = $4, deleted = $5, updated_at = $6
		WHERE id = $1 AND user_id = $2 AND updated_at < $6`,
		id, userID, fields.Name, fields.Document, fields.Deleted, fields.UpdatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to update note: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
