// Package navcache persists walkable-surface connectivity results keyed by
// map identity, so repeat generation requests over an unchanged map skip the
// sampling and reachability queries entirely.
package navcache

import (
	"errors"
	"sync"
	"time"
)

// ErrCorruptEntry marks a stored entry that failed to decode. Callers treat
// it as a cache miss and recompute; it is never surfaced as fatal.
var ErrCorruptEntry = errors.New("corrupt connectivity cache entry")

// Vec3 mirrors the nav package's position type. navcache keeps its own copy
// so the storage layer has no dependency on the analysis layer.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Entry is one cached connectivity analysis result.
type Entry struct {
	MapKey         string    `json:"map_key"`
	SampleCount    int       `json:"sample_count"`
	SampleDensity  float64   `json:"sample_density"`
	KNearest       int       `json:"k_nearest"`
	ComponentSizes []int     `json:"component_sizes"`
	Region         []Vec3    `json:"region"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// Store is an explicitly constructed, injectable key-value store for
// connectivity entries. Keys are map identities (optionally qualified by a
// surface version and sample configuration).
//
// Lock serializes concurrent analyses of the same key: the analyzer holds the
// per-key lock across its read-compute-write cycle so two requests for one
// map cannot race to write divergent regions.
type Store interface {
	Get(key string) (*Entry, bool, error)
	Put(key string, e *Entry) error
	Clear(key string) error
	ClearAll() error
	Lock(key string) (unlock func())
}

// MemoryStore is an in-memory Store for tests and single-process callers.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	locks   map[string]*sync.Mutex
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Get returns the entry for key, if present.
func (s *MemoryStore) Get(key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

// Put stores e under key, replacing any previous entry.
func (s *MemoryStore) Put(key string, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

// Clear removes the entry for key, if present.
func (s *MemoryStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// ClearAll removes every entry.
func (s *MemoryStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
	return nil
}

// Lock acquires the per-key mutex and returns its release function.
func (s *MemoryStore) Lock(key string) func() {
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
