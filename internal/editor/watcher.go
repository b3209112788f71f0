// Package editor ties a note to a file on disk so it can be edited with any
// text editor. Writes to the file are debounced and saved to the local
// store as a single edit.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"notesync/internal/domain"
	"notesync/internal/logging"
)

const DefaultQuietPeriod = 500 * time.Millisecond

// Saver persists a new document body for a note.
type Saver interface {
	SaveNote(ctx context.Context, id, document string) (*domain.Note, error)
}

type Watcher struct {
	path   string
	noteID string
	saver  Saver
	quiet  time.Duration
	logger logging.Logger
	onSave func(*domain.Note)
	last   string
}

type Option func(*Watcher)

// WithQuietPeriod sets how long the file must stay unchanged before the
// pending edit is saved.
func WithQuietPeriod(d time.Duration) Option {
	return func(w *Watcher) { w.quiet = d }
}

func WithLogger(l logging.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// OnSave registers a callback run after every successful save.
func OnSave(fn func(*domain.Note)) Option {
	return func(w *Watcher) { w.onSave = fn }
}

func NewWatcher(path, noteID string, saver Saver, opts ...Option) *Watcher {
	w := &Watcher{
		path:   path,
		noteID: noteID,
		saver:  saver,
		quiet:  DefaultQuietPeriod,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Export writes document to path, creating parent directories.
func Export(path, document string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(document), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Run watches the file until ctx is done. The parent directory is watched
// rather than the file, so editors that save by rename are followed.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	absPath, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", w.path, err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	if data, err := os.ReadFile(absPath); err == nil {
		w.last = string(data)
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// The last write event may still be queued in fsw.Events.
			// flush skips content that was already saved.
			w.flush(context.WithoutCancel(ctx), absPath)
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.quiet)
			} else {
				timer.Reset(w.quiet)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.flush(ctx, absPath)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "file watcher error", "path", absPath, "error", err)
		}
	}
}

func (w *Watcher) flush(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn(ctx, "failed to read edited file", "path", path, "error", err)
		}
		return
	}

	doc := string(data)
	if doc == w.last {
		return
	}

	note, err := w.saver.SaveNote(ctx, w.noteID, doc)
	if err != nil {
		w.logger.Error(ctx, "failed to save note", "note_id", w.noteID, "error", err)
		return
	}
	w.last = doc
	w.logger.Debug(ctx, "note saved from file", "note_id", w.noteID, "updated_at", note.UpdatedAt)

	if w.onSave != nil {
		w.onSave(note)
	}
}
