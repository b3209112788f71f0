package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"notesync/internal/domain"
	"notesync/internal/syncclient"
)

func printResult(w io.Writer, res *syncclient.Result) {
	fmt.Fprintf(w, "Synced: %d pushed, %d pulled", res.Pushed, res.Pulled)
	if res.HeldBack > 0 {
		fmt.Fprintf(w, ", %d waiting to retry", res.HeldBack)
	}
	fmt.Fprintln(w)
	for _, f := range res.Failed {
		fmt.Fprintf(w, "  rejected %s: %s\n", f.NoteID, f.Error)
	}
}

func explainSyncError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return fmt.Errorf("%w (the session may have been revoked, log in again)", err)
	case errors.Is(err, domain.ErrTransport):
		return fmt.Errorf("%w (changes stay queued until the server is reachable)", err)
	default:
		return err
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "sync",
		GroupID: "sync",
		Short:   "Run one sync round now",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, _, err := a.orchestrator(ctx)
			if err != nil {
				return err
			}
			res, err := orch.Sync(ctx)
			if err != nil {
				return explainSyncError(err)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

// backgroundSync is a running scheduler and change notifier.
type backgroundSync struct {
	scheduler *syncclient.Scheduler
	orch      *syncclient.Orchestrator
	wg        sync.WaitGroup
}

// Wait blocks until both loops have returned. Their context must be done.
func (b *backgroundSync) Wait() {
	b.wg.Wait()
}

// startBackgroundSync runs the scheduler and the change notifier until ctx
// is done. Callers must Wait before running another round or closing the
// store.
func (a *app) startBackgroundSync(ctx context.Context, onResult func(*syncclient.Result)) (*backgroundSync, error) {
	orch, sess, err := a.orchestrator(ctx)
	if err != nil {
		return nil, err
	}

	opts := []syncclient.SchedulerOption{
		syncclient.WithInterval(a.cfg.SyncInterval),
		syncclient.WithRoundBackoff(a.cfg.BackoffBase, a.cfg.BackoffMax),
		syncclient.WithSchedulerLogger(a.logger),
	}
	if onResult != nil {
		opts = append(opts, syncclient.OnResult(onResult))
	}
	scheduler := syncclient.NewScheduler(orch, opts...)

	notifier, err := syncclient.NewNotifier(a.cfg.ServerURL, sess.Token, scheduler.Trigger,
		syncclient.WithNotifierLogger(a.logger),
		syncclient.WithReconnectBackoff(a.cfg.BackoffBase, a.cfg.BackoffMax),
	)
	if err != nil {
		return nil, err
	}

	bg := &backgroundSync{scheduler: scheduler, orch: orch}
	bg.wg.Add(2)
	go func() {
		defer bg.wg.Done()
		scheduler.Run(ctx)
	}()
	go func() {
		defer bg.wg.Done()
		notifier.Run(ctx)
	}()
	return bg, nil
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: "sync",
		Short:   "Keep syncing in the foreground until interrupted",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			bg, err := a.startBackgroundSync(ctx, func(res *syncclient.Result) {
				if res.Pushed > 0 || res.Pulled > 0 || len(res.Failed) > 0 {
					printResult(out, res)
				}
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Syncing with %s every %s, press Ctrl+C to stop\n", a.cfg.ServerURL, a.cfg.SyncInterval)
			<-ctx.Done()
			bg.Wait()
			return nil
		},
	}
}
