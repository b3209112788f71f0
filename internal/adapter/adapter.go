// Package adapter converts notes between the client representation
// (epoch-millisecond timestamps, no owner) and the server representation
// (native timestamps, owned by a user). Conversions are pure and lossless at
// millisecond precision.
package adapter

import (
	"time"

	"notesync/internal/domain"
)

// ToRemote attaches the owner and converts timestamps to time.Time.
func ToRemote(n domain.Note, userID string) domain.RemoteNote {
	return domain.RemoteNote{
		ID:        n.ID,
		UserID:    userID,
		Name:      n.Name,
		Document:  n.Document,
		CreatedAt: FromMillis(n.CreatedAt),
		UpdatedAt: FromMillis(n.UpdatedAt),
		Deleted:   n.Deleted,
	}
}

// ToLocal strips the owner and converts timestamps back to milliseconds.
func ToLocal(r domain.RemoteNote) domain.Note {
	return domain.Note{
		ID:        r.ID,
		Name:      r.Name,
		Document:  r.Document,
		CreatedAt: r.CreatedAt.UnixMilli(),
		UpdatedAt: r.UpdatedAt.UnixMilli(),
		Deleted:   r.Deleted,
	}
}

func ToLocalSlice(notes []*domain.RemoteNote) []domain.Note {
	out := make([]domain.Note, 0, len(notes))
	for _, n := range notes {
		out = append(out, ToLocal(*n))
	}
	return out
}

// FromMillis returns the UTC time for an epoch-millisecond timestamp.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
