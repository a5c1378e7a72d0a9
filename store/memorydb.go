package store

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryDB is an in-memory KeyValueStore used in tests and throwaway runs.
type MemoryDB struct {
	mu sync.RWMutex
	kv map[string][]byte
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{kv: make(map[string][]byte)}
}

func (db *MemoryDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.kv[string(key)]
	return ok, nil
}

func (db *MemoryDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if v, ok := db.kv[string(key)]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, ErrNotFound
}

func (db *MemoryDB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.kv[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.kv, string(key))
	return nil
}

func (db *MemoryDB) NewIterator(prefix []byte) Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var keys []string
	for k := range db.kv {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	it := &memIterator{index: -1}
	for _, k := range keys {
		it.keys = append(it.keys, []byte(k))
		it.values = append(it.values, append([]byte(nil), db.kv[k]...))
	}
	return it
}

func (db *MemoryDB) Close() error { return nil }

type memIterator struct {
	keys   [][]byte
	values [][]byte
	index  int
}

func (it *memIterator) Next() bool {
	it.index++
	return it.index < len(it.keys)
}

func (it *memIterator) Key() []byte   { return it.keys[it.index] }
func (it *memIterator) Value() []byte { return it.values[it.index] }
func (it *memIterator) Release()      { it.keys, it.values = nil, nil }
func (it *memIterator) Error() error  { return nil }
