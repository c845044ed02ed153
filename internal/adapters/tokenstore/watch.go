package tokenstore

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"troffee-marketplace-client/internal/ports/outbound"
)

// watchFallbackInterval is the periodic re-read used alongside filesystem
// notifications, mirroring the 1-second session-loss check open chat views
// rely on.
const watchFallbackInterval = time.Second

// Watch emits a Change whenever the stored session is modified out of band:
// a filesystem notification on the store file plus a 1-second fallback
// re-read. A disappeared access token emits ChangeCleared so open views can
// close themselves.
func (s *FileStore) Watch(ctx context.Context) <-chan outbound.Change {
	changes := make(chan outbound.Change, 4)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Filesystem watcher unavailable, falling back to polling only")
		watcher = nil
	} else if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		// The file itself may be removed and recreated, so the parent
		// directory is watched instead.
		s.logger.Warn().Err(err).Msg("Failed to watch token store directory")
		watcher.Close()
		watcher = nil
	}

	go s.watchLoop(ctx, watcher, changes)
	return changes
}

func (s *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- outbound.Change) {
	defer close(changes)
	if watcher != nil {
		defer watcher.Close()
	}

	ticker := time.NewTicker(watchFallbackInterval)
	defer ticker.Stop()

	hadAccess := s.Access() != ""

	emit := func() {
		changed, session := s.reload()
		if !changed {
			return
		}
		hasAccess := session.Access != ""
		change := outbound.Change{Type: outbound.ChangeUpdated}
		if hadAccess && !hasAccess {
			change.Type = outbound.ChangeCleared
		}
		hadAccess = hasAccess
		select {
		case changes <- change:
		default:
			// A slow consumer misses intermediate states, not the final one:
			// the next tick re-reads the file.
		}
	}

	var events chan fsnotify.Event
	var errs chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case event := <-events:
			if event.Name == s.path {
				emit()
			}
		case err := <-errs:
			s.logger.Warn().Err(err).Msg("Token store watch error")
		case <-ticker.C:
			emit()
		case <-ctx.Done():
			return
		}
	}
}
