package domain

type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// OutboxEntry is a local mutation waiting to be acknowledged by the server.
// There is at most one entry per NoteID; later mutations replace the payload
// in place and bump Revision.
type OutboxEntry struct {
	ID            string   `json:"id"`
	Op            ChangeOp `json:"op"`
	NoteID        string   `json:"noteId"`
	Payload       Note     `json:"payload"`
	CreatedAt     int64    `json:"createdAt"`
	Attempt       int      `json:"attempt"`
	Revision      int64    `json:"revision"`
	LastAttemptAt int64    `json:"lastAttemptAt"`
}

// Change converts the entry into its wire form.
func (e *OutboxEntry) Change() Change {
	return Change{
		Op:        e.Op,
		NoteID:    e.NoteID,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}
