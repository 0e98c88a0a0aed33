package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const (
	watchDebounce = 100 * time.Millisecond
	pollInterval  = 5 * time.Second
)

// KeyFileWatcher calls onChange whenever the license key file is written,
// created, renamed into place or removed.
type KeyFileWatcher struct {
	path     string
	onChange func()
}

// NewKeyFileWatcher watches path.
func NewKeyFileWatcher(path string, onChange func()) *KeyFileWatcher {
	return &KeyFileWatcher{path: filepath.Clean(path), onChange: onChange}
}

// Run blocks until ctx is done. The parent directory is watched so editors that
// replace the file are seen; if that fails it falls back to polling.
func (w *KeyFileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to polling for license key changes")
		return w.poll(ctx)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to watch license key directory, polling instead")
		return w.poll(ctx)
	}
	log.Info().Str("path", w.path).Msg("Watching license key file for changes")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// Let the writer finish.
			select {
			case <-time.After(watchDebounce):
			case <-ctx.Done():
				return nil
			}
			log.Info().Str("event", event.Op.String()).Msg("Detected license key file change")
			w.onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("License key watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *KeyFileWatcher) poll(ctx context.Context) error {
	var lastMod time.Time
	if stat, err := os.Stat(w.path); err == nil {
		lastMod = stat.ModTime()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stat, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if stat.ModTime().After(lastMod) {
				lastMod = stat.ModTime()
				log.Info().Msg("Detected license key file change via polling")
				w.onChange()
			}
		case <-ctx.Done():
			return nil
		}
	}
}
