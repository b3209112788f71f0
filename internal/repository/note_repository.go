package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"notesync/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// NoteRepository is the server's per-user note store.
type NoteRepository interface {
	// FindByOwnerSince returns the user's notes with updatedAt strictly
	// after since (epoch ms), tombstones included.
	FindByOwnerSince(ctx context.Context, userID string, since int64) ([]*domain.RemoteNote, error)
	FindByID(ctx context.Context, id string) (*domain.RemoteNote, error)
	// Insert fails with domain.ErrAlreadyExists when the id is taken.
	Insert(ctx context.Context, note *domain.RemoteNote) error
	// Update overwrites the note only if it belongs to userID and its stored
	// updatedAt is strictly older than fields.UpdatedAt. It reports whether
	// the write happened.
	Update(ctx context.Context, userID, id string, fields domain.NoteFields) (bool, error)
}

const (
	noteDocType      = "note"
	couchPageSize    = 500
	couchMaxConflict = 5
)

type noteDoc struct {
	ID          string    `json:"_id,omitempty"`
	Rev         string    `json:"_rev,omitempty"`
	Type        string    `json:"type"`
	NoteID      string    `json:"note_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Document    string    `json:"document"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UpdatedAtMs int64     `json:"updated_at_ms"`
	Deleted     bool      `json:"deleted"`
}

func noteDocID(id string) string {
	return fmt.Sprintf("note:%s", id)
}

func newNoteDoc(n *domain.RemoteNote) *noteDoc {
	return &noteDoc{
		Type:        noteDocType,
		NoteID:      n.ID,
		UserID:      n.UserID,
		Name:        n.Name,
		Document:    n.Document,
		CreatedAt:   n.CreatedAt.UTC(),
		UpdatedAt:   n.UpdatedAt.UTC(),
		UpdatedAtMs: n.UpdatedAt.UnixMilli(),
		Deleted:     n.Deleted,
	}
}

func (d *noteDoc) toDomain() *domain.RemoteNote {
	return &domain.RemoteNote{
		ID:        d.NoteID,
		UserID:    d.UserID,
		Name:      d.Name,
		Document:  d.Document,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: time.UnixMilli(d.UpdatedAtMs).UTC(),
		Deleted:   d.Deleted,
	}
}

type noteRepository struct {
	db *kivik.DB
}

func NewNoteRepository(client *kivik.Client, dbName string) NoteRepository {
	return &noteRepository{db: client.DB(dbName)}
}

func (r *noteRepository) FindByOwnerSince(ctx context.Context, userID string, since int64) ([]*domain.RemoteNote, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type":          noteDocType,
			"user_id":       userID,
			"updated_at_ms": map[string]interface{}{"$gt": since},
		},
		"limit": couchPageSize,
	}

	notes := []*domain.RemoteNote{}
	for {
		rows := r.db.Find(ctx, query)
		count := 0
		for rows.Next() {
			var doc noteDoc
			if err := rows.ScanDoc(&doc); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan note: %w", err)
			}
			notes = append(notes, doc.toDomain())
			count++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to list notes: %w", err)
		}
		meta, err := rows.Metadata()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read result metadata: %w", err)
		}
		if count < couchPageSize || meta.Bookmark == "" {
			break
		}
		query["bookmark"] = meta.Bookmark
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.Before(notes[j].UpdatedAt)
	})
	return notes, nil
}

func (r *noteRepository) FindByID(ctx context.Context, id string) (*domain.RemoteNote, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *noteRepository) get(ctx context.Context, id string) (*noteDoc, error) {
	var doc noteDoc
	if err := r.db.Get(ctx, noteDocID(id)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return &doc, nil
}

func (r *noteRepository) Insert(ctx context.Context, note *domain.RemoteNote) error {
	if _, err := r.db.Put(ctx, noteDocID(note.ID), newNoteDoc(note)); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return fmt.Errorf("note %s: %w", note.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// Update uses the document revision as a compare-and-swap token. A
// concurrent writer makes Put fail with 409, in which case the document is
// re-read and the comparison made again.
func (r *noteRepository) Update(ctx context.Context, userID, id string, fields domain.NoteFields) (bool, error) {
	incoming := fields.UpdatedAt.UnixMilli()

	for attempt := 0; attempt < couchMaxConflict; attempt++ {
		doc, err := r.get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if doc.UserID != userID || doc.UpdatedAtMs >= incoming {
			return false, nil
		}

		doc.Name = fields.Name
		doc.Document = fields.Document
		doc.Deleted = fields.Deleted
		doc.UpdatedAt = fields.UpdatedAt.UTC()
		doc.UpdatedAtMs = incoming

		_, err = r.db.Put(ctx, noteDocID(id), doc)
		if err == nil {
			return true, nil
		}
		if kivik.HTTPStatus(err) != http.StatusConflict {
			return false, fmt.Errorf("failed to update note: %w", err)
		}
	}
	return false, fmt.Errorf("failed to update note %s: too many concurrent writers", id)
}
