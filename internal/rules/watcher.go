package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce is how long after the last write before re-importing, so a
// half-written file is not parsed mid-save.
const watchDebounce = 500 * time.Millisecond

// Watcher re-imports a rules YAML document whenever the file changes, giving
// long-running monitor sessions hot rule reload without a restart.
type Watcher struct {
	store   *Store
	path    string
	watcher *fsnotify.Watcher
	log     zerolog.Logger
}

// NewWatcher creates a watcher for the given rules file.
func NewWatcher(store *Store, path string, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating rules watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %q: %w", path, err)
	}
	return &Watcher{store: store, path: path, watcher: fw, log: log}, nil
}

// Run blocks until ctx is cancelled, re-importing the rules file after each
// settled write. A document that fails validation is rejected wholesale and
// the previous rule set stays in effect.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			n, err := w.store.ImportFile(w.path)
			if err != nil {
				w.log.Warn().Err(err).Str("path", w.path).Msg("rules reload rejected")
				continue
			}
			w.log.Info().Int("rules", n).Str("path", w.path).Msg("rules reloaded")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("rules watcher error")
		}
	}
}
