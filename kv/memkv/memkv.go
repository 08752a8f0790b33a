// Package memkv is an in-memory kv.Engine on top of go-memdb.
//
// Readers work on immutable radix tree snapshots and never block writers.
// Data does not survive the process, but does survive Close: a closed engine
// can be opened again by a new kv.Store.
package memkv

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
	"github.com/ridge/must/v2"
	"github.com/ridge/repoindex/kv"
)

const (
	table   = "kv"
	idIndex = "id"
)

type entry struct {
	Key   []byte
	Value []byte
}

// keyIndexer indexes entries by their raw key bytes, preserving byte order
type keyIndexer struct{}

func (keyIndexer) FromArgs(args ...any) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected one argument, got %d", len(args))
	}
	key, ok := args[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("expected []byte argument, got %T", args[0])
	}
	return key, nil
}

func (ki keyIndexer) PrefixFromArgs(args ...any) ([]byte, error) {
	return ki.FromArgs(args...)
}

func (keyIndexer) FromObject(obj any) (bool, []byte, error) {
	return true, obj.(*entry).Key, nil
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		table: {
			Name: table,
			Indexes: map[string]*memdb.IndexSchema{
				idIndex: {
					Name:    idIndex,
					Unique:  true,
					Indexer: keyIndexer{},
				},
			},
		},
	},
}

// Engine is an in-memory kv.Engine. Safe for concurrent use.
type Engine struct {
	db atomic.Pointer[memdb.MemDB]
}

// New creates an empty engine
func New() *Engine {
	e := &Engine{}
	e.db.Store(must.OK1(memdb.NewMemDB(schema)))
	return e
}

// Get implements kv.Engine. The returned value must not be modified.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	obj := must.OK1(e.db.Load().Txn(false).First(table, idIndex, key))
	if obj == nil {
		return nil, false, nil
	}
	return obj.(*entry).Value, true, nil
}

// Set implements kv.Engine
func (e *Engine) Set(key, value []byte) error {
	txn := e.db.Load().Txn(true)
	must.OK(txn.Insert(table, &entry{Key: bytes.Clone(key), Value: bytes.Clone(value)}))
	txn.Commit()
	return nil
}

// Delete implements kv.Engine
func (e *Engine) Delete(key []byte) error {
	txn := e.db.Load().Txn(true)
	must.OK1(txn.DeleteAll(table, idIndex, key))
	txn.Commit()
	return nil
}

// DeleteRange implements kv.Engine
func (e *Engine) DeleteRange(start, end []byte) error {
	if start == nil {
		start = []byte{}
	}
	txn := e.db.Load().Txn(true)
	defer txn.Abort()

	// deleting while walking the same transaction is not supported by memdb
	var doomed []any
	it := must.OK1(txn.LowerBound(table, idIndex, start))
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if end != nil && bytes.Compare(obj.(*entry).Key, end) >= 0 {
			break
		}
		doomed = append(doomed, obj)
	}
	for _, obj := range doomed {
		must.OK(txn.Delete(table, obj))
	}
	txn.Commit()
	return nil
}

// NewIterator implements kv.Engine
func (e *Engine) NewIterator(lower, upper []byte) (kv.Iterator, error) {
	if lower == nil {
		lower = []byte{}
	}
	it := must.OK1(e.db.Load().Txn(false).LowerBound(table, idIndex, lower))
	return &iterator{it: it, upper: upper}, nil
}

// Flush implements kv.Engine
func (e *Engine) Flush() error {
	return nil
}

// Close implements kv.Engine
func (e *Engine) Close() error {
	return nil
}

// Destroy implements kv.Engine
func (e *Engine) Destroy() error {
	e.db.Store(must.OK1(memdb.NewMemDB(schema)))
	return nil
}

type iterator struct {
	it    memdb.ResultIterator
	upper []byte
	cur   *entry
}

func (i *iterator) Next() bool {
	if i.it == nil {
		return false
	}
	obj := i.it.Next()
	if obj == nil {
		i.it, i.cur = nil, nil
		return false
	}
	e := obj.(*entry)
	if i.upper != nil && bytes.Compare(e.Key, i.upper) >= 0 {
		i.it, i.cur = nil, nil
		return false
	}
	i.cur = e
	return true
}

func (i *iterator) Key() []byte {
	return i.cur.Key
}

func (i *iterator) Value() []byte {
	return i.cur.Value
}

func (i *iterator) Err() error {
	return nil
}

func (i *iterator) Close() error {
	i.it, i.cur = nil, nil
	return nil
}
