package localindex

import (
	"io"

	"github.com/ridge/repoindex/codec"
	"github.com/ridge/repoindex/kv"
)

// uniqueIndex maps value keys to node keys; the last add of a value wins.
//
// The inverse collection holds a (node key, value) tuple for every forward
// entry the node owns.
type uniqueIndex struct {
	*base
	tuples  codec.TupleSerializer
	forward *kv.Map
	inverse *kv.Map

	requiresReindexing bool
}

func openUnique(b *base) (*uniqueIndex, error) {
	u := &uniqueIndex{
		base:    b,
		tuples:  codec.Tuples(b.keys),
		forward: b.collection(""),
		inverse: b.collection(inverseSuffix),
	}
	existed, err := u.opened(u.forward)
	if err != nil {
		return nil, err
	}
	u.requiresReindexing = !existed
	return u, nil
}

func (u *uniqueIndex) converter() Converter {
	return Converter{factory: u.factory, encode: func(v any) ([]byte, []byte) {
		k := u.keys.Append(nil, v)
		return k, k
	}}
}

func (u *uniqueIndex) scan(r kv.Range) (cursor, error) {
	it, err := u.forward.Scan(r)
	if err != nil {
		return nil, err
	}
	return mapCursor{it: it}, nil
}

func (u *uniqueIndex) Add(nodeKey string, v any) error {
	if err := u.check(); err != nil {
		return err
	}
	v, err := u.canonical(v)
	if err != nil {
		return err
	}
	key := u.keys.Append(nil, v)
	prev, ok, err := u.forward.Get(key)
	if err != nil {
		return err
	}
	if ok && string(prev) != nodeKey {
		u.logger.Debug("Overwriting unique value")
		if err := u.inverse.Delete(u.tuples.Append(nil, codec.Tuple{NodeKey: string(prev), Value: v})); err != nil {
			return err
		}
	}
	if err := u.forward.Put(key, []byte(nodeKey)); err != nil {
		return err
	}
	if err := u.inverse.Put(u.tuples.Append(nil, codec.Tuple{NodeKey: nodeKey, Value: v}), nil); err != nil {
		return err
	}
	u.counted("add")
	return nil
}

// release removes the forward entry of a value if the node still owns it
func (u *uniqueIndex) release(nodeKey string, v any) error {
	key := u.keys.Append(nil, v)
	owner, ok, err := u.forward.Get(key)
	if err != nil || !ok || string(owner) != nodeKey {
		return err
	}
	return u.forward.Delete(key)
}

func (u *uniqueIndex) Remove(nodeKey string) error {
	if err := u.check(); err != nil {
		return err
	}
	doomed, err := scanNode(u.inverse, u.tuples, nodeKey, func(v any, _ []byte) error {
		return u.release(nodeKey, v)
	})
	if err != nil {
		return err
	}
	for _, ikey := range doomed {
		if err := u.inverse.Delete(ikey); err != nil {
			return err
		}
	}
	u.counted("remove")
	return nil
}

func (u *uniqueIndex) RemoveValue(nodeKey string, v any) error {
	if err := u.check(); err != nil {
		return err
	}
	v, err := u.canonical(v)
	if err != nil {
		return err
	}
	if err := u.release(nodeKey, v); err != nil {
		return err
	}
	if err := u.inverse.Delete(u.tuples.Append(nil, codec.Tuple{NodeKey: nodeKey, Value: v})); err != nil {
		return err
	}
	u.counted("remove_value")
	return nil
}

func (u *uniqueIndex) RemoveAll() error {
	if err := u.check(); err != nil {
		return err
	}
	if err := u.forward.Clear(); err != nil {
		return err
	}
	return u.inverse.Clear()
}

func (u *uniqueIndex) Filter(c Constraints) (*Results, error) {
	return u.filter(u, c)
}

func (u *uniqueIndex) EstimateTotalCount() (int64, error) {
	if err := u.check(); err != nil {
		return 0, err
	}
	n, err := u.forward.Count(kv.All)
	return int64(n), err
}

func (u *uniqueIndex) EstimateCardinality(c Constraints) (int64, error) {
	return u.estimateCardinality(u, c)
}

func (u *uniqueIndex) RequiresReindexing() bool {
	return u.requiresReindexing
}

func (u *uniqueIndex) Shutdown(destroyed bool) error {
	u.shut.Store(true)
	if destroyed {
		return u.drop(u.forward, u.inverse)
	}
	return nil
}

func (u *uniqueIndex) forEach(fn func(nodeKey string, v any) error) error {
	it, err := u.forward.Scan(kv.All)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		v, _, err := u.keys.Read(it.Key())
		if err != nil {
			return err
		}
		if err := fn(string(it.Value()), v); err != nil {
			return err
		}
	}
	return it.Err()
}

func (u *uniqueIndex) Export(w io.Writer) error {
	if err := u.check(); err != nil {
		return err
	}
	return export(w, u.values, u.forEach)
}

func (u *uniqueIndex) Import(r io.Reader) error {
	return importEntries(r, u.values, u.Add)
}
