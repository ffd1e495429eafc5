package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// SettingsWatcher re-reads the config file when it changes and publishes the
// dashboard settings to subscribers. Other config sections need a restart.
type SettingsWatcher struct {
	configPath string
	logger     logger.Logger

	mu          sync.RWMutex
	settings    DashboardSettings
	subscribers []func(DashboardSettings)
}

func NewSettingsWatcher(configPath string, initial DashboardSettings, log logger.Logger) *SettingsWatcher {
	return &SettingsWatcher{
		configPath: configPath,
		logger:     log,
		settings:   initial,
	}
}

// Subscribe registers fn to receive every successfully reloaded settings value.
func (w *SettingsWatcher) Subscribe(fn func(DashboardSettings)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Current returns the last accepted settings.
func (w *SettingsWatcher) Current() DashboardSettings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

// Start watches the config file until ctx is done. The parent directory is
// watched so editors that replace the file through a rename are seen too.
func (w *SettingsWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(w.configPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	w.logger.Info("Settings watcher started", "configPath", target)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Info("Configuration file changed, reloading settings", "file", event.Name)
			if err := w.reload(); err != nil {
				w.logger.Error("Failed to reload settings", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Settings watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("Settings watcher stopping")
			return nil
		}
	}
}

func (w *SettingsWatcher) reload() error {
	cfg, err := LoadFrom(w.configPath)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.settings = cfg.Dashboard
	subs := make([]func(DashboardSettings), len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.Unlock()

	for _, fn := range subs {
		w.notify(fn, cfg.Dashboard)
	}
	w.logger.Info("Settings reloaded", "subscribers", len(subs))
	return nil
}

func (w *SettingsWatcher) notify(fn func(DashboardSettings), s DashboardSettings) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Settings subscriber panic", "panic", r)
		}
	}()
	fn(s)
}
