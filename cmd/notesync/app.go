package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"notesync/internal/config"
	"notesync/internal/local"
	"notesync/internal/logging"
	"notesync/internal/syncclient"
)

var errNotLoggedIn = errors.New("not logged in, run 'notesync login' first")

// app carries what every command shares: settings, the file logger and the
// lazily opened local store.
type app struct {
	cfg       *config.Client
	logger    logging.Logger
	logCloser io.Closer
	opener    *local.Opener
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	logger, closer, err := logging.NewFileLogger(a.cfg.LogFile, a.cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logCloser = closer
	a.opener = local.NewOpener(a.cfg.DBPath, local.WithLogger(logger))
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	var errs []error
	if a.opener != nil {
		errs = append(errs, a.opener.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

func (a *app) store(ctx context.Context) (*local.Store, error) {
	s, err := a.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store %s: %w", a.cfg.DBPath, err)
	}
	return s, nil
}

// session returns the stored login, or errNotLoggedIn.
func (a *app) session(ctx context.Context, store *local.Store) (*local.Session, error) {
	sess, err := store.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Token == "" {
		return nil, errNotLoggedIn
	}
	if sess.ExpiresAt > 0 && time.Now().UnixMilli() >= sess.ExpiresAt {
		return nil, fmt.Errorf("session expired: %w", errNotLoggedIn)
	}
	return sess, nil
}

func (a *app) transport(token string) *syncclient.HTTPTransport {
	if token == "" {
		return syncclient.NewHTTPTransport(a.cfg.ServerURL)
	}
	return syncclient.NewHTTPTransport(a.cfg.ServerURL, syncclient.WithToken(token))
}

// orchestrator builds a sync orchestrator for the logged-in user.
func (a *app) orchestrator(ctx context.Context) (*syncclient.Orchestrator, *local.Session, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, nil, err
	}
	sess, err := a.session(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	orch := syncclient.NewOrchestrator(store, a.transport(sess.Token),
		syncclient.WithLogger(a.logger),
		syncclient.WithBackoff(a.cfg.BackoffBase, a.cfg.BackoffMax),
	)
	return orch, sess, nil
}

func newRootCmd(cfg *config.Client) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:   "notesync",
		Short: "Offline-first notes with background sync",
		Long: `notesync keeps your notes in a local database that works offline.
Changes are queued and synced with the server whenever it is reachable.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the local notes database")
	pf.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "sync server URL")
	pf.DurationVar(&cfg.SyncInterval, "interval", cfg.SyncInterval, "background sync interval")
	pf.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file path")

	root.AddGroup(
		&cobra.Group{ID: "notes", Title: "Notes:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "account", Title: "Account:"},
	)

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newDevicesCmd(a),
		newNewCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newSaveCmd(a),
		newRenameCmd(a),
		newRmCmd(a),
		newSyncCmd(a),
		newWatchCmd(a),
		newEditCmd(a),
	)

	return root
}
