package kv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ridge/repoindex/codec"
)

// Key spaces within the engine
const (
	spaceCatalog byte = 0x01
	spaceData    byte = 0x02
	spaceLongs   byte = 0x03
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store is closed")

// Store multiplexes named collections and atomic longs onto an Engine.
// Safe for concurrent use.
type Store struct {
	engine Engine
	closed atomic.Bool

	known sync.Map // collection name -> struct{}

	mu    sync.Mutex
	longs map[string]*Long
}

// New creates a store over an engine
func New(engine Engine) *Store {
	return &Store{engine: engine, longs: map[string]*Long{}}
}

func checkName(name string) {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		panic(fmt.Errorf("invalid collection name %q", name))
	}
}

func catalogKey(name string) []byte {
	return append([]byte{spaceCatalog}, name...)
}

func dataPrefix(name string) []byte {
	return append(append([]byte{spaceData}, name...), 0)
}

// Map returns a handle to a named collection. The collection is registered
// in the catalog by its first write or by Create.
func (s *Store) Map(name string) *Map {
	checkName(name)
	return &Map{store: s, name: name, prefix: dataPrefix(name)}
}

// Exists reports whether a collection is registered in the catalog
func (s *Store) Exists(name string) (bool, error) {
	checkName(name)
	if _, ok := s.known.Load(name); ok {
		return true, nil
	}
	_, ok, err := s.engine.Get(catalogKey(name))
	if err != nil {
		return false, fmt.Errorf("looking up collection %s: %w", name, err)
	}
	if ok {
		s.known.Store(name, struct{}{})
	}
	return ok, nil
}

// Names returns the names of the registered collections starting with
// prefix, in ascending order
func (s *Store) Names(prefix string) ([]string, error) {
	lo := catalogKey(prefix)
	it, err := s.engine.NewIterator(lo, codec.PrefixEnd(lo))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var names []string
	for it.Next() {
		names = append(names, string(it.Key()[1:]))
	}
	return names, it.Err()
}

// Drop removes a collection with all its entries
func (s *Store) Drop(name string) error {
	checkName(name)
	prefix := dataPrefix(name)
	if err := s.engine.DeleteRange(prefix, codec.PrefixEnd(prefix)); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	if err := s.engine.Delete(catalogKey(name)); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	s.known.Delete(name)
	return nil
}

func (s *Store) register(name string) error {
	if _, ok := s.known.Load(name); ok {
		return nil
	}
	if err := s.engine.Set(catalogKey(name), nil); err != nil {
		return fmt.Errorf("registering collection %s: %w", name, err)
	}
	s.known.Store(name, struct{}{})
	return nil
}

// Long returns the named persisted atomic long, loading it on first use.
// Values reach the engine on Commit.
func (s *Store) Long(name string) (*Long, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l := s.longs[name]; l != nil {
		return l, nil
	}
	l := &Long{key: append([]byte{spaceLongs}, name...)}
	raw, ok, err := s.engine.Get(l.key)
	if err != nil {
		return nil, fmt.Errorf("loading long %s: %w", name, err)
	}
	if ok {
		if len(raw) != 8 {
			return nil, fmt.Errorf("loading long %s: %w", name, codec.ErrCorrupt)
		}
		l.v.Store(int64(binary.BigEndian.Uint64(raw)))
	}
	s.longs[name] = l
	return l, nil
}

// Commit writes the atomic longs and makes all the writes so far durable
func (s *Store) Commit() error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.longs {
		if err := s.engine.Set(l.key, binary.BigEndian.AppendUint64(nil, uint64(l.Get()))); err != nil {
			return fmt.Errorf("committing: %w", err)
		}
	}
	if err := s.engine.Flush(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Close commits and closes the engine. Closing a closed store does nothing.
func (s *Store) Close() error {
	if err := s.Commit(); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.engine.Close()
}

// Destroy closes the engine and deletes all persisted data
func (s *Store) Destroy() error {
	s.closed.Store(true)
	return s.engine.Destroy()
}

// Map is a named ordered collection of byte keys and values
type Map struct {
	store  *Store
	name   string
	prefix []byte
}

// Name returns the collection name
func (m *Map) Name() string {
	return m.name
}

func (m *Map) key(k []byte) []byte {
	return append(append(make([]byte, 0, len(m.prefix)+len(k)), m.prefix...), k...)
}

// Create registers the collection in the catalog without adding entries
func (m *Map) Create() error {
	return m.store.register(m.name)
}

// Get returns the value stored for a key
func (m *Map) Get(k []byte) ([]byte, bool, error) {
	return m.store.engine.Get(m.key(k))
}

// Put stores a value
func (m *Map) Put(k, v []byte) error {
	if err := m.store.register(m.name); err != nil {
		return err
	}
	return m.store.engine.Set(m.key(k), v)
}

// Delete removes a key
func (m *Map) Delete(k []byte) error {
	return m.store.engine.Delete(m.key(k))
}

// Scan returns an iterator over the entries within a range. Keys returned
// by the iterator are relative to the collection.
func (m *Map) Scan(r Range) (Iterator, error) {
	if r.Empty() {
		return emptyIterator{}, nil
	}
	lo, hi := r.bounds()
	lower := m.key(lo)
	var upper []byte
	if hi == nil {
		upper = codec.PrefixEnd(m.prefix)
	} else {
		upper = m.key(hi)
	}
	it, err := m.store.engine.NewIterator(lower, upper)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", m.name, err)
	}
	return mapIterator{Iterator: it, prefixLen: len(m.prefix)}, nil
}

// Count returns the number of entries within a range
func (m *Map) Count(r Range) (int, error) {
	it, err := m.Scan(r)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	n := 0
	for it.Next() {
		n++
	}
	return n, it.Err()
}

// Clear removes all entries keeping the collection registered
func (m *Map) Clear() error {
	return m.store.engine.DeleteRange(m.prefix, codec.PrefixEnd(m.prefix))
}

type mapIterator struct {
	Iterator
	prefixLen int
}

func (it mapIterator) Key() []byte {
	return it.Iterator.Key()[it.prefixLen:]
}

type emptyIterator struct{}

func (emptyIterator) Next() bool    { return false }
func (emptyIterator) Key() []byte   { return nil }
func (emptyIterator) Value() []byte { return nil }
func (emptyIterator) Err() error    { return nil }
func (emptyIterator) Close() error  { return nil }

// Long is a persisted atomic long
type Long struct {
	key []byte
	v   atomic.Int64
}

// Get returns the current value
func (l *Long) Get() int64 {
	return l.v.Load()
}

// Set sets the value
func (l *Long) Set(v int64) {
	l.v.Store(v)
}

// CompareAndSet sets the value to new if it is old
func (l *Long) CompareAndSet(old, new int64) bool {
	return l.v.CompareAndSwap(old, new)
}
