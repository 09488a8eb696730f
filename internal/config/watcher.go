package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads the data dir .env file and swaps the Store snapshot.
type Watcher struct {
	loader   *Loader
	store    *Store
	envPath  string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stopChan chan struct{}

	mu       sync.Mutex
	timer    *time.Timer
	onReload []func(old, updated *Config)
}

// NewWatcher creates a watcher for loader's .env file.
func NewWatcher(loader *Loader, store *Store) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		loader:   loader,
		store:    store,
		envPath:  loader.EnvPath(),
		watcher:  watcher,
		debounce: defaultDebounce,
		stopChan: make(chan struct{}),
	}, nil
}

// OnReload registers fn to run after each successful swap.
func (cw *Watcher) OnReload(fn func(old, updated *Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.onReload = append(cw.onReload, fn)
}

// Start watches the directory holding the .env file, so editors that
// replace the file by rename are still seen.
func (cw *Watcher) Start() error {
	dir := filepath.Dir(cw.envPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := cw.watcher.Add(dir); err != nil {
		return err
	}

	go cw.watchForChanges()
	log.Info().Str("env_path", cw.envPath).Msg("Started watching config file for changes")
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (cw *Watcher) Stop() {
	select {
	case <-cw.stopChan:
		return
	default:
		close(cw.stopChan)
	}

	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()

	cw.watcher.Close()
}

// Reload re-reads configuration immediately (e.g. on SIGHUP).
func (cw *Watcher) Reload() error {
	updated, err := cw.loader.Load()
	if err != nil {
		log.Error().Err(err).Msg("Config reload failed; keeping previous configuration")
		return err
	}

	old := cw.store.Swap(updated)

	cw.mu.Lock()
	callbacks := append([]func(old, updated *Config){}, cw.onReload...)
	cw.mu.Unlock()

	for _, fn := range callbacks {
		fn(old, updated)
	}

	log.Info().Str("env_path", cw.envPath).Msg("Applied .env file changes to runtime config")
	return nil
}

func (cw *Watcher) watchForChanges() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cw.envPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			log.Debug().Str("event", event.Op.String()).Msg("Detected .env file change")
			cw.schedule()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-cw.stopChan:
			return
		}
	}
}

// schedule coalesces bursts of events into one reload.
func (cw *Watcher) schedule() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() {
		select {
		case <-cw.stopChan:
			return
		default:
		}
		_ = cw.Reload()
	})
}
