package navcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meridian-synth/navroam/internal/monitoring"
)

// SQLiteStore is a durable Store backed by a single sqlite table. The region
// payload is stored as JSON; rows that fail to decode are reported as cache
// misses so a corrupt file never blocks recomputation.
type SQLiteStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// OpenSQLiteStore opens (creating if needed) the cache database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS connectivity_cache (
			map_key TEXT PRIMARY KEY,
			sample_count INTEGER,
			sample_density DOUBLE,
			k_nearest INTEGER,
			component_sizes TEXT,
			region TEXT,
			analyzed_at_ns INTEGER
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &SQLiteStore{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get returns the entry for key. Undecodable rows count as misses.
func (s *SQLiteStore) Get(key string) (*Entry, bool, error) {
	row := s.db.QueryRow(`
		SELECT sample_count, sample_density, k_nearest, component_sizes, region, analyzed_at_ns
		FROM connectivity_cache WHERE map_key = ?`, key)

	var (
		e          Entry
		sizesJSON  string
		regionJSON string
		analyzedNs int64
	)
	err := row.Scan(&e.SampleCount, &e.SampleDensity, &e.KNearest, &sizesJSON, &regionJSON, &analyzedNs)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry %q: %w", key, err)
	}

	e.MapKey = key
	e.AnalyzedAt = time.Unix(0, analyzedNs).UTC()
	if err := json.Unmarshal([]byte(sizesJSON), &e.ComponentSizes); err != nil {
		monitoring.Logf("[Cache] entry %q has corrupt component sizes, treating as miss: %v", key, err)
		return nil, false, nil
	}
	if err := json.Unmarshal([]byte(regionJSON), &e.Region); err != nil {
		monitoring.Logf("[Cache] entry %q has corrupt region payload, treating as miss: %v", key, err)
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores e under key, replacing any previous row.
func (s *SQLiteStore) Put(key string, e *Entry) error {
	sizesJSON, err := json.Marshal(e.ComponentSizes)
	if err != nil {
		return fmt.Errorf("encode component sizes: %w", err)
	}
	regionJSON, err := json.Marshal(e.Region)
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO connectivity_cache
			(map_key, sample_count, sample_density, k_nearest, component_sizes, region, analyzed_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(map_key) DO UPDATE SET
			sample_count = excluded.sample_count,
			sample_density = excluded.sample_density,
			k_nearest = excluded.k_nearest,
			component_sizes = excluded.component_sizes,
			region = excluded.region,
			analyzed_at_ns = excluded.analyzed_at_ns`,
		key, e.SampleCount, e.SampleDensity, e.KNearest,
		string(sizesJSON), string(regionJSON), e.AnalyzedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("write cache entry %q: %w", key, err)
	}
	return nil
}

// Clear removes the entry for key, if present.
func (s *SQLiteStore) Clear(key string) error {
	_, err := s.db.Exec(`DELETE FROM connectivity_cache WHERE map_key = ?`, key)
	if err != nil {
		return fmt.Errorf("clear cache entry %q: %w", key, err)
	}
	return nil
}

// ClearAll removes every entry.
func (s *SQLiteStore) ClearAll() error {
	_, err := s.db.Exec(`DELETE FROM connectivity_cache`)
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Lock acquires the in-process per-key mutex and returns its release
// function. The lock serializes analyses within one process; the upsert in
// Put keeps concurrent processes last-writer-wins.
func (s *SQLiteStore) Lock(key string) func() {
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
