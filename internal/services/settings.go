package services

import (
	"sync/atomic"

	"github.com/platformbuilds/mirador-dashboards/internal/config"
)

// SettingsStore holds the live dashboard settings. Set is meant to be
// subscribed to config.SettingsWatcher.
type SettingsStore struct {
	v atomic.Pointer[config.DashboardSettings]
}

func NewSettingsStore(initial config.DashboardSettings) *SettingsStore {
	s := &SettingsStore{}
	s.Set(initial)
	return s
}

func (s *SettingsStore) Get() config.DashboardSettings {
	return *s.v.Load()
}

func (s *SettingsStore) Set(ns config.DashboardSettings) {
	s.v.Store(&ns)
}
