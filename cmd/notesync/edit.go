package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"notesync/internal/domain"
	"notesync/internal/editor"
)

func newEditCmd(a *app) *cobra.Command {
	var noEditor, offline bool

	cmd := &cobra.Command{
		Use:     "edit <id>",
		GroupID: "notes",
		Short:   "Edit a note in $EDITOR, saving and syncing as you write",
		Long: `edit writes the note to a file and watches it. Every time the file is
saved the change is stored locally, and while you are logged in it is synced
in the background. Without $EDITOR (or with --no-editor) the file path is
printed and edit runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			note, err := store.GetNote(ctx, args[0])
			if err != nil {
				return notFound(args[0], err)
			}
			if note.Deleted {
				return fmt.Errorf("note %s was deleted", note.ID)
			}

			path := filepath.Join(a.cfg.DataDir, "edit", note.ID+".html")
			if err := editor.Export(path, note.Document); err != nil {
				return err
			}
			defer os.Remove(path)

			watchCtx, cancelWatch := context.WithCancel(ctx)
			defer cancelWatch()

			var bg *backgroundSync
			if !offline {
				var err error
				bg, err = a.startBackgroundSync(watchCtx, nil)
				switch {
				case err == nil:
				case errors.Is(err, errNotLoggedIn):
					fmt.Fprintln(cmd.ErrOrStderr(), "Not logged in, edits are saved locally only")
				default:
					return err
				}
			}

			w := editor.NewWatcher(path, note.ID, store,
				editor.WithLogger(a.logger),
				editor.OnSave(func(*domain.Note) {
					if bg != nil {
						bg.scheduler.Trigger()
					}
				}),
			)

			var wg sync.WaitGroup
			var watchErr error
			wg.Add(1)
			go func() {
				defer wg.Done()
				watchErr = w.Run(watchCtx)
			}()

			program := os.Getenv("EDITOR")
			if noEditor || program == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Editing %s, press Ctrl+C to stop\n", path)
				<-ctx.Done()
			} else {
				ed := exec.CommandContext(ctx, program, path)
				ed.Stdin, ed.Stdout, ed.Stderr = os.Stdin, os.Stdout, os.Stderr
				if err := ed.Run(); err != nil && ctx.Err() == nil {
					stopAll(cancelWatch, &wg, bg)
					return fmt.Errorf("editor exited: %w", err)
				}
			}

			// Stopping the watcher saves any edit still inside the quiet
			// period. Background rounds are finished before the final one.
			stopAll(cancelWatch, &wg, bg)
			if watchErr != nil {
				return watchErr
			}

			if bg != nil {
				if _, err := bg.orch.Sync(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Final sync failed: %v\n", explainSyncError(err))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noEditor, "no-editor", false, "do not launch $EDITOR, only watch the file")
	cmd.Flags().BoolVar(&offline, "offline", false, "save locally without syncing")
	return cmd
}

func stopAll(cancel context.CancelFunc, watcher *sync.WaitGroup, bg *backgroundSync) {
	cancel()
	watcher.Wait()
	if bg != nil {
		bg.Wait()
	}
}
