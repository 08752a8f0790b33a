// Package pebblekv is a persistent kv.Engine on top of Pebble.
package pebblekv

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ridge/repoindex/codec"
	"github.com/ridge/repoindex/kv"
	"go.uber.org/zap"
)

// Options configures the engine
type Options struct {
	// Dir is the database directory, created if missing
	Dir string
	// Logger receives Pebble's own log messages. Optional.
	Logger *zap.Logger
	// Sync makes every write durable before returning instead of waiting
	// for Flush
	Sync bool
}

// Engine is a Pebble-backed kv.Engine. Safe for concurrent use.
type Engine struct {
	dir   string
	db    *pebble.DB
	write *pebble.WriteOptions

	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates a database
func Open(opts Options) (*Engine, error) {
	po := &pebble.Options{}
	if opts.Logger != nil {
		po.Logger = opts.Logger.Named("pebble").Sugar()
	}
	db, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", opts.Dir, err)
	}
	write := pebble.NoSync
	if opts.Sync {
		write = pebble.Sync
	}
	return &Engine{dir: opts.Dir, db: db, write: write}, nil
}

// Get implements kv.Engine
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	v, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return bytes.Clone(v), true, nil
}

// Set implements kv.Engine
func (e *Engine) Set(key, value []byte) error {
	return e.db.Set(key, value, e.write)
}

// Delete implements kv.Engine
func (e *Engine) Delete(key []byte) error {
	return e.db.Delete(key, e.write)
}

// DeleteRange implements kv.Engine
func (e *Engine) DeleteRange(start, end []byte) error {
	if end == nil {
		// Pebble range deletions need an upper bound: use the successor of
		// the last key
		it := e.db.NewIter(&pebble.IterOptions{LowerBound: start})
		if it.Last() {
			end = codec.Successor(it.Key())
		}
		if err := it.Close(); err != nil {
			return err
		}
		if end == nil {
			return nil
		}
	}
	if start == nil {
		start = []byte{}
	}
	return e.db.DeleteRange(start, end, e.write)
}

// NewIterator implements kv.Engine
func (e *Engine) NewIterator(lower, upper []byte) (kv.Iterator, error) {
	return &iterator{it: e.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})}, nil
}

// Flush implements kv.Engine
func (e *Engine) Flush() error {
	return e.db.Flush()
}

// Close implements kv.Engine
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.db.Close()
	})
	return e.closeErr
}

// Destroy implements kv.Engine
func (e *Engine) Destroy() error {
	if err := e.Close(); err != nil {
		return err
	}
	return os.RemoveAll(e.dir)
}

type iterator struct {
	it      *pebble.Iterator
	started bool
}

func (i *iterator) Next() bool {
	if i.it == nil {
		return false
	}
	if !i.started {
		i.started = true
		return i.it.First()
	}
	return i.it.Next()
}

func (i *iterator) Key() []byte {
	return i.it.Key()
}

func (i *iterator) Value() []byte {
	return i.it.Value()
}

func (i *iterator) Err() error {
	if i.it == nil {
		return nil
	}
	return i.it.Error()
}

func (i *iterator) Close() error {
	if i.it == nil {
		return nil
	}
	err := i.it.Close()
	i.it = nil
	return err
}
