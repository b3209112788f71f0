package domain

import "time"

// Note is the client-side representation of a note. Timestamps are epoch
// milliseconds. Document is the editor's serialized content and is never
// interpreted here.
type Note struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Document  string `json:"document"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Deleted   bool   `json:"deleted"`
}

// RemoteNote is the server-side copy of a note, owned by a single user.
type RemoteNote struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

// NoteFields are the mutable fields overwritten by a winning change.
type NoteFields struct {
	Name      string
	Document  string
	Deleted   bool
	UpdatedAt time.Time
}

// Fields returns the mutable part of n.
func (n *RemoteNote) Fields() NoteFields {
	return NoteFields{
		Name:      n.Name,
		Document:  n.Document,
		Deleted:   n.Deleted,
		UpdatedAt: n.UpdatedAt,
	}
}
