package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Follow calls fn for every event recorded after the first seen events, until ctx is done or fn
// fails. It watches the story directory so it also picks up a log that does not exist yet.
func Follow(ctx context.Context, dir string, seen int, logger *slog.Logger, fn func(Event) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	st := Store{Dir: dir}
	if err := st.Ensure(); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	// drain delivers what lies past seen. A failed read is only logged: the next change, or the
	// retry timer, reads again. An error from fn ends the follow.
	var retry <-chan time.Time
	drain := func() error {
		evs, err := ReadEvents(ctx, dir, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("event log read failed", slog.String("dir", dir), slog.Any("err", err))
			retry = time.After(followRetryDelay)
			return nil
		}
		retry = nil
		for ; seen < len(evs); seen++ {
			if err := fn(evs[seen]); err != nil {
				return err
			}
		}
		return nil
	}
	// Catch up on anything written between the caller's read and the watch.
	if err := drain(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-retry:
			if err := drain(); err != nil {
				return err
			}
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isEventLogFile(ev.Name) || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if err := drain(); err != nil {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", slog.String("dir", dir), slog.Any("err", err))
		}
	}
}

const followRetryDelay = 250 * time.Millisecond

// isEventLogFile matches events.jsonl and the sqlite database with its -wal/-shm companions.
func isEventLogFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "events.")
}
