package session

import "sync"

// FlagStore persists per-rater boolean flags, such as the Part B
// instruction-panel dismissal. Injected so the round-trip behavior is
// testable without a browser.
type FlagStore interface {
	Get(key string) bool
	Set(key string, val bool)
}

// MemoryFlagStore is the default in-process FlagStore.
type MemoryFlagStore struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemoryFlagStore creates an empty flag store.
func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{flags: make(map[string]bool)}
}

func (s *MemoryFlagStore) Get(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[key]
}

func (s *MemoryFlagStore) Set(key string, val bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = val
}
