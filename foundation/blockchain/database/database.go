// Package database handles all the lower level support for maintaining the
// blockchain on disk. Writes land in an overlay that is shared by every handle
// opened against the same location and only become durable on Commit.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/database/backend"
	"github.com/ethereum/go-ethereum/common/lru"
)

// ErrNotFound is returned when a key is not in the overlay or the backend.
var ErrNotFound = errors.New("key not found")

// readCacheSize is the number of committed values kept in memory per location.
const readCacheSize = 4096

// =============================================================================

// Registry hands out database handles. Handles opened on the same location
// share one overlay and one backend.
type Registry struct {
	mu     sync.Mutex
	shared map[string]*shared
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		shared: make(map[string]*shared),
	}
}

// Open returns a handle for the location, opening the backend on first use.
func (r *Registry) Open(location string) (*DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sh, exists := r.shared[location]
	if !exists {
		strg, err := backend.Open(location)
		if err != nil {
			return nil, err
		}

		sh = &shared{
			location: location,
			storage:  strg,
			overlay:  make(map[string][]byte),
			cache:    lru.NewCache[string, []byte](readCacheSize),
		}
		r.shared[location] = sh
	}
	sh.refs++

	return &DB{registry: r, sh: sh}, nil
}

// release drops a reference and closes the backend with the last handle.
func (r *Registry) release(sh *shared) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sh.refs--
	if sh.refs > 0 {
		return nil
	}

	delete(r.shared, sh.location)
	return sh.storage.Close()
}

// =============================================================================

// shared is the state every handle on a location points at.
type shared struct {
	location string
	refs     int

	mu      sync.RWMutex
	storage backend.Storage
	overlay map[string][]byte
	cache   *lru.Cache[string, []byte]
}

// DB is a handle to a location.
type DB struct {
	registry *Registry
	sh       *shared
	once     sync.Once
}

// Location returns the location this handle was opened against.
func (db *DB) Location() string {
	return db.sh.location
}

// Equal reports whether both handles point at the same location.
func (db *DB) Equal(other *DB) bool {
	if other == nil {
		return false
	}
	return db.sh == other.sh
}

// Get returns the value for the key from the overlay or the backend.
func (db *DB) Get(key []byte) ([]byte, error) {
	sh := db.sh

	sh.mu.RLock()
	v, exists := sh.overlay[string(key)]
	sh.mu.RUnlock()

	if exists {
		return v, nil
	}

	if v, exists := sh.cache.Get(string(key)); exists {
		return v, nil
	}

	v, err := sh.storage.Get(key)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, fmt.Errorf("%w: %x", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get %x: %w", key, err)
	}

	sh.cache.Add(string(key), v)

	return v, nil
}

// Put stores the value in the shared overlay. It is not durable until Commit.
func (db *DB) Put(key []byte, value []byte) {
	sh := db.sh

	v := make([]byte, len(value))
	copy(v, value)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.overlay[string(key)] = v
}

// Has reports whether the key exists in the overlay or the backend.
func (db *DB) Has(key []byte) (bool, error) {
	sh := db.sh

	sh.mu.RLock()
	_, exists := sh.overlay[string(key)]
	sh.mu.RUnlock()

	if exists || sh.cache.Contains(string(key)) {
		return true, nil
	}

	return sh.storage.Has(key)
}

// Commit flushes the overlay into the backend. Calling Commit with nothing
// pending does nothing.
func (db *DB) Commit() error {
	sh := db.sh

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if len(sh.overlay) == 0 {
		return nil
	}

	if err := sh.storage.Write(sh.overlay); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for k, v := range sh.overlay {
		sh.cache.Add(k, v)
	}
	sh.overlay = make(map[string][]byte)

	return nil
}

// Uncommitted returns the number of writes waiting for Commit.
func (db *DB) Uncommitted() int {
	sh := db.sh

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	return len(sh.overlay)
}

// Close releases the handle. Uncommitted writes are kept for other handles
// on the location and dropped with the last one.
func (db *DB) Close() error {
	var err error
	db.once.Do(func() {
		err = db.registry.release(db.sh)
	})
	return err
}
