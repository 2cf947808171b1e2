// Package backend provides the durable key/value engines that sit underneath
// the database overlay.
package backend

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// MemoryPrefix marks a location that lives in process memory only.
const MemoryPrefix = "memory:"

// ErrNotFound is returned when a key does not exist in the engine.
var ErrNotFound = errors.New("not found")

// Storage interface represents the behavior required to be implemented by any
// package providing durable storage for the database.
type Storage interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Write(batch map[string][]byte) error
	Close() error
}

// =============================================================================

// LevelDB implements the Storage interface on top of goleveldb.
type LevelDB struct {
	location string
	db       *leveldb.DB
}

// Open constructs the storage engine for the specified location. A location
// with the memory prefix is backed by an in memory leveldb.
func Open(location string) (*LevelDB, error) {
	if strings.HasPrefix(location, MemoryPrefix) {
		db, err := leveldb.Open(leveldbstorage.NewMemStorage(), nil)
		if err != nil {
			return nil, fmt.Errorf("open memory leveldb: %w", err)
		}
		return &LevelDB{location: location, db: db}, nil
	}

	if err := os.MkdirAll(location, 0755); err != nil {
		return nil, fmt.Errorf("create leveldb directory %s: %w", location, err)
	}

	db, err := leveldb.OpenFile(location, &opt.Options{
		OpenFilesCacheCapacity: 64,
		BlockCacheCapacity:     8 * opt.MiB,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", location, err)
	}

	return &LevelDB{location: location, db: db}, nil
}

// Location returns the location the engine was opened against.
func (l *LevelDB) Location() string {
	return l.location
}

// Get returns the value for the key or ErrNotFound.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Has reports whether the key exists.
func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

// Write stores the set of key/value pairs atomically.
func (l *LevelDB) Write(batch map[string][]byte) error {
	if len(batch) == 0 {
		return nil
	}

	var b leveldb.Batch
	for k, v := range batch {
		b.Put([]byte(k), v)
	}

	return l.db.Write(&b, nil)
}

// Close releases the engine.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
