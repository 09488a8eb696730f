package config

import "sync/atomic"

// Store publishes the current Config snapshot to request handlers.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a store holding cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Current returns the live snapshot.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Swap publishes cfg and returns the previous snapshot.
func (s *Store) Swap(cfg *Config) *Config {
	return s.current.Swap(cfg)
}
