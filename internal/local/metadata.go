package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"notesync/internal/dbx"
)

const (
	syncKey    = "sync"
	sessionKey = "session"
)

type syncMetadata struct {
	LastPulledAt int64 `json:"lastPulledAt"`
}

// Session is the stored login of the local user.
type Session struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expiresAt"`
}

func getMeta(ctx context.Context, db dbx.DBTX, key string, dest any) (bool, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	if err := json.Unmarshal(value, dest); err != nil {
		return false, fmt.Errorf("failed to decode metadata[%s]: %w", key, err)
	}
	return true, nil
}

func setMeta(ctx context.Context, db dbx.DBTX, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode metadata[%s]: %w", key, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func deleteMeta(ctx context.Context, db dbx.DBTX, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

// GetCursor returns the server cursor of the last successful pull, or nil
// before the first sync.
func (s *Store) GetCursor(ctx context.Context) (*int64, error) {
	var m syncMetadata
	ok, err := getMeta(ctx, s.db, syncKey, &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m.LastPulledAt, nil
}

func (s *Store) SetCursor(ctx context.Context, ts int64) error {
	return setMeta(ctx, s.db, syncKey, syncMetadata{LastPulledAt: ts})
}

// GetSession returns nil when nobody is logged in.
func (s *Store) GetSession(ctx context.Context) (*Session, error) {
	var sess Session
	ok, err := getMeta(ctx, s.db, sessionKey, &sess)
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SetSession(ctx context.Context, sess *Session) error {
	return setMeta(ctx, s.db, sessionKey, sess)
}

func (s *Store) ClearSession(ctx context.Context) error {
	return deleteMeta(ctx, s.db, sessionKey)
}
