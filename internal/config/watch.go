package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/eventbus"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
)

// Watcher reloads the config file whenever it changes on disk and notifies
// the bus of the two settings the event catalog names explicitly
// (power-mode, user.language). This generalizes §6's "saving is atomic" to
// a long-running service: a hand-edit to config.toml while the monitor is
// up takes effect without a restart.
type Watcher struct {
	path   string
	bus    *eventbus.Bus
	logger logging.Logger
	cancel context.CancelFunc
	get    func() Config
	set    func(Config)
}

// NewWatcher creates a Watcher. get/set read and install the live
// configuration value (typically an atomic.Pointer-backed pair owned by
// the caller, per §9's guidance against hidden global mutable state).
func NewWatcher(path string, bus *eventbus.Bus, logger logging.Logger, get func() Config, set func(Config)) *Watcher {
	return &Watcher{path: path, bus: bus, logger: logger, get: get, set: set}
}

// Start begins watching in a background goroutine. Cancel ctx (or call
// Stop) to end it.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				w.reload()
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Stop ends the watch goroutine.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) reload() {
	previous := w.get()
	next, err := Load(w.path, w.logger)
	if err != nil {
		w.logger.Warn("failed to reload config", "error", err)
		return
	}
	w.set(next)
	w.bus.Publish(eventbus.NewLogEvent("configuration reloaded from disk"))

	if next.Agent.PowerMode != previous.Agent.PowerMode {
		w.bus.Publish(eventbus.PowerModeChangedEvent{PowerMode: next.Agent.PowerMode})
	}
	if next.User.Language != previous.User.Language {
		w.bus.Publish(eventbus.LanguageChangedEvent{Language: next.User.Language})
	}
}
