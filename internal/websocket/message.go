package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// TypeNotesChanged tells a user's other devices that a sync round
	// changed server state and they should pull.
	TypeNotesChanged MessageType = "notes_changed"
	TypePing         MessageType = "ping"
	TypePong         MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type NotesChangedPayload struct {
	NoteIDs  []string `json:"note_ids"`
	Cursor   int64    `json:"cursor"`
	DeviceID string   `json:"device_id,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
