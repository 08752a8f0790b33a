package localindex

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ridge/must/v2"
	"github.com/ridge/repoindex/kv"
	"go.uber.org/zap"
)

const memberCacheSize = 1024

// enumeratedIndex keeps a collection of node keys per value. The values
// collection maps value keys to the names of the member collections.
type enumeratedIndex struct {
	*base
	valueMap *kv.Map
	members  *lru.Cache[string, *kv.Map] // value key -> member collection

	mu sync.Mutex

	requiresReindexing bool
}

func openEnumerated(b *base) (*enumeratedIndex, error) {
	e := &enumeratedIndex{
		base:     b,
		valueMap: b.collection(valuesSuffix),
		members:  must.OK1(lru.New[string, *kv.Map](memberCacheSize)),
	}
	if _, err := e.opened(e.valueMap); err != nil {
		return nil, err
	}
	collections, err := e.store.Names(e.name + membersInfix)
	if err != nil {
		return nil, err
	}
	// declared values get their collections below, after this check
	e.requiresReindexing = len(collections) == 0

	for _, raw := range e.def.EnumeratedValues {
		v, err := e.factory.Create(raw)
		if err != nil {
			return nil, fmt.Errorf("index %s: enumerated value %q: %w", e.name, raw, err)
		}
		if _, err := e.collectionFor(v, true); err != nil {
			return nil, err
		}
	}
	b.logger.Debug("Opened enumerated index", zap.Int("collections", len(collections)))
	return e, nil
}

// collectionFor returns the member collection of a value, or nil if there is
// none and create is false
func (e *enumeratedIndex) collectionFor(v any, create bool) (*kv.Map, error) {
	key := e.keys.Append(nil, v)
	if m, ok := e.members.Get(string(key)); ok {
		return m, nil
	}
	m, err := e.lookup(key)
	if err != nil || m != nil || !create {
		return m, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if m, err := e.lookup(key); err != nil || m != nil {
		return m, err
	}
	name, err := e.newCollectionName(key)
	if err != nil {
		return nil, err
	}
	m = e.store.Map(name)
	if err := m.Create(); err != nil {
		return nil, err
	}
	if err := e.valueMap.Put(key, []byte(name)); err != nil {
		return nil, err
	}
	e.members.Add(string(key), m)
	return m, nil
}

func (e *enumeratedIndex) lookup(key []byte) (*kv.Map, error) {
	name, ok, err := e.valueMap.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	m := e.store.Map(string(name))
	e.members.Add(string(key), m)
	return m, nil
}

func (e *enumeratedIndex) newCollectionName(key []byte) (string, error) {
	name := fmt.Sprintf("%s%s%016x", e.name, membersInfix, xxhash.Sum64(key))
	for i := 1; ; i++ {
		exists, err := e.store.Exists(name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s%s%016x.%d", e.name, membersInfix, xxhash.Sum64(key), i)
	}
}

// collections returns the member collections of all values
func (e *enumeratedIndex) collections() ([]*kv.Map, error) {
	it, err := e.valueMap.Scan(kv.All)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var res []*kv.Map
	for it.Next() {
		res = append(res, e.store.Map(string(it.Value())))
	}
	return res, it.Err()
}

func (e *enumeratedIndex) converter() Converter {
	return Converter{factory: e.factory, encode: func(v any) ([]byte, []byte) {
		k := e.keys.Append(nil, v)
		return k, k
	}}
}

func (e *enumeratedIndex) scan(r kv.Range) (cursor, error) {
	it, err := e.valueMap.Scan(r)
	if err != nil {
		return nil, err
	}
	return &enumeratedCursor{values: it, open: func(name string) (kv.Iterator, error) {
		return e.store.Map(name).Scan(kv.All)
	}}, nil
}

func (e *enumeratedIndex) Add(nodeKey string, v any) error {
	if err := e.check(); err != nil {
		return err
	}
	v, err := e.canonical(v)
	if err != nil {
		return err
	}
	m, err := e.collectionFor(v, true)
	if err != nil {
		return err
	}
	if err := m.Put([]byte(nodeKey), nil); err != nil {
		return err
	}
	e.counted("add")
	return nil
}

func (e *enumeratedIndex) Remove(nodeKey string) error {
	if err := e.check(); err != nil {
		return err
	}
	collections, err := e.collections()
	if err != nil {
		return err
	}
	for _, m := range collections {
		if err := m.Delete([]byte(nodeKey)); err != nil {
			return err
		}
	}
	e.counted("remove")
	return nil
}

func (e *enumeratedIndex) RemoveValue(nodeKey string, v any) error {
	if err := e.check(); err != nil {
		return err
	}
	v, err := e.canonical(v)
	if err != nil {
		return err
	}
	m, err := e.collectionFor(v, false)
	if err != nil || m == nil {
		return err
	}
	if err := m.Delete([]byte(nodeKey)); err != nil {
		return err
	}
	e.counted("remove_value")
	return nil
}

func (e *enumeratedIndex) RemoveAll() error {
	if err := e.check(); err != nil {
		return err
	}
	collections, err := e.collections()
	if err != nil {
		return err
	}
	for _, m := range collections {
		if err := m.Clear(); err != nil {
			return err
		}
	}
	return nil
}

func (e *enumeratedIndex) Filter(c Constraints) (*Results, error) {
	return e.filter(e, c)
}

func (e *enumeratedIndex) EstimateTotalCount() (int64, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	collections, err := e.collections()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, m := range collections {
		n, err := m.Count(kv.All)
		if err != nil {
			return 0, err
		}
		total += int64(n)
	}
	return total, nil
}

func (e *enumeratedIndex) EstimateCardinality(c Constraints) (int64, error) {
	return e.estimateCardinality(e, c)
}

func (e *enumeratedIndex) RequiresReindexing() bool {
	return e.requiresReindexing
}

func (e *enumeratedIndex) Shutdown(destroyed bool) error {
	e.shut.Store(true)
	if !destroyed {
		return nil
	}
	collections, err := e.collections()
	if err != nil {
		return err
	}
	e.members.Purge()
	return e.drop(append(collections, e.valueMap)...)
}

func (e *enumeratedIndex) forEach(fn func(nodeKey string, v any) error) error {
	it, err := e.valueMap.Scan(kv.All)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		v, _, err := e.keys.Read(it.Key())
		if err != nil {
			return err
		}
		members, err := e.store.Map(string(it.Value())).Scan(kv.All)
		if err != nil {
			return err
		}
		for members.Next() {
			if err := fn(string(members.Key()), v); err != nil {
				members.Close()
				return err
			}
		}
		if err := errors.Join(members.Err(), members.Close()); err != nil {
			return err
		}
	}
	return it.Err()
}

func (e *enumeratedIndex) Export(w io.Writer) error {
	if err := e.check(); err != nil {
		return err
	}
	return export(w, e.values, e.forEach)
}

func (e *enumeratedIndex) Import(r io.Reader) error {
	return importEntries(r, e.values, e.Add)
}
