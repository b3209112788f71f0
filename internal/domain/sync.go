package domain

// Change is one pushed local mutation.
type Change struct {
	Op        ChangeOp `json:"op" validate:"required,oneof=upsert delete"`
	NoteID    string   `json:"noteId" validate:"required"`
	Payload   Note     `json:"payload"`
	CreatedAt int64    `json:"createdAt"`
}

type SyncRequest struct {
	LastPulledAt int64    `json:"lastPulledAt" validate:"gte=0"`
	Changes      []Change `json:"changes" validate:"dive"`
}

// ChangeFailure reports a change that could not be reconciled. The client
// keeps the entry and retries it later.
type ChangeFailure struct {
	NoteID string `json:"noteId"`
	Error  string `json:"error"`
}

type PullSet struct {
	Notes []Note `json:"notes"`
}

type SyncResponse struct {
	AppliedIDs []string        `json:"appliedIds"`
	Failed     []ChangeFailure `json:"failed,omitempty"`
	Pull       PullSet         `json:"pull"`
	Cursor     int64           `json:"cursor"`
}
