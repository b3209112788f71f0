package adapter

import (
	"testing"
	"time"

	"notesync/internal/domain"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		note domain.Note
	}{
		{
			name: "regular note",
			note: domain.Note{ID: "n1", Name: "Tiny Robot", Document: `{"type":"doc"}`, CreatedAt: 1700000000123, UpdatedAt: 1700000005999},
		},
		{
			name: "tombstone with empty document",
			note: domain.Note{ID: "n2", Name: "Gone", CreatedAt: 1, UpdatedAt: 2, Deleted: true},
		},
		{
			name: "zero timestamps",
			note: domain.Note{ID: "n3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToLocal(ToRemote(tt.note, "user-1"))
			if got != tt.note {
				t.Errorf("ToLocal(ToRemote()) = %+v, want %+v", got, tt.note)
			}
		})
	}
}

func TestToRemote(t *testing.T) {
	n := domain.Note{ID: "n1", Name: "x", CreatedAt: 1700000000123, UpdatedAt: 1700000000456}

	r := ToRemote(n, "user-1")

	if r.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", r.UserID)
	}
	if r.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", r.CreatedAt.Location())
	}
	if r.UpdatedAt.Nanosecond() != 456*int(time.Millisecond) {
		t.Errorf("UpdatedAt nanos = %d, want %d", r.UpdatedAt.Nanosecond(), 456*int(time.Millisecond))
	}
}

func TestToLocalSlice(t *testing.T) {
	remote := []*domain.RemoteNote{
		{ID: "a", UserID: "u", UpdatedAt: FromMillis(10)},
		{ID: "b", UserID: "u", UpdatedAt: FromMillis(20)},
	}

	got := ToLocalSlice(remote)
	if len(got) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(got))
	}
	if got[1].ID != "b" || got[1].UpdatedAt != 20 {
		t.Errorf("unexpected second note: %+v", got[1])
	}
}
