// Package database opens the server's backing stores: CouchDB or Postgres
// for notes and users, and Redis for sessions.
package database

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
)

// NoteIndexFields backs the per-user "changed since" query.
var NoteIndexFields = []string{"type", "user_id", "updated_at_ms"}

// CouchURL builds the server URL with basic-auth credentials.
func CouchURL(host, port, user, password string) string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + port,
	}
	return u.String()
}

// NewCouchClient connects to CouchDB and makes sure dbName and its indexes
// exist.
func NewCouchClient(ctx context.Context, couchURL, dbName string) (*kivik.Client, error) {
	client, err := kivik.New("couch", couchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	db := client.DB(dbName)
	indexes := map[string][]string{
		"notes-by-owner": NoteIndexFields,
		"users-by-email": {"email"},
		"users-by-name":  {"username"},
	}
	for name, fields := range indexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, "notesync", name, index); err != nil {
			return nil, fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return client, nil
}
