package localindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ridge/repoindex/codec"
	"github.com/ridge/repoindex/kv"
	"go.uber.org/zap"
)

const (
	nextSequenceKey = "next-sequence"
	// sequenceBlock sequences are reserved in the options collection ahead
	// of use, so that a restart after a crash never reuses a sequence
	sequenceBlock = 1 << 16
)

// duplicateIndex maps (value, sequence) keys to node keys.
//
// The inverse collection maps (node key, value) tuples to the sequences the
// node was added with for that value.
type duplicateIndex struct {
	*base
	keys    codec.SequencedSerializer
	tuples  codec.TupleSerializer
	forward *kv.Map
	inverse *kv.Map
	options *kv.Map

	seq      atomic.Uint64 // last allocated sequence
	mu       sync.Mutex
	reserved atomic.Uint64

	requiresReindexing bool
}

func openDuplicate(b *base) (*duplicateIndex, error) {
	d := &duplicateIndex{
		base:    b,
		keys:    codec.Sequenced(b.keys),
		tuples:  codec.Tuples(b.keys),
		forward: b.collection(""),
		inverse: b.collection(inverseSuffix),
		options: b.collection(optionsSuffix),
	}
	existed, err := d.opened(d.forward)
	if err != nil {
		return nil, err
	}
	d.requiresReindexing = !existed

	next, err := d.loadSequence()
	if err != nil {
		return nil, err
	}
	d.seq.Store(next - 1)
	if err := d.reserve(next); err != nil {
		return nil, err
	}
	b.logger.Debug("Opened duplicate index", zap.Uint64("nextSequence", next))
	return d, nil
}

func (d *duplicateIndex) loadSequence() (uint64, error) {
	raw, ok, err := d.options.Get([]byte(nextSequenceKey))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("index %s: %s: %w", d.name, nextSequenceKey, codec.ErrCorrupt)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (d *duplicateIndex) storeSequence(next uint64) error {
	return d.options.Put([]byte(nextSequenceKey), binary.BigEndian.AppendUint64(nil, next))
}

func (d *duplicateIndex) reserve(from uint64) error {
	if err := d.storeSequence(from + sequenceBlock); err != nil {
		return err
	}
	d.reserved.Store(from + sequenceBlock)
	return nil
}

func (d *duplicateIndex) nextSequence() (uint64, error) {
	seq := d.seq.Add(1)
	if seq < d.reserved.Load() {
		return seq, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq >= d.reserved.Load() {
		if err := d.reserve(seq + 1); err != nil {
			return 0, err
		}
	}
	return seq, nil
}

func (d *duplicateIndex) converter() Converter {
	return Converter{factory: d.factory, encode: d.keys.SequenceBounds}
}

func (d *duplicateIndex) scan(r kv.Range) (cursor, error) {
	it, err := d.forward.Scan(r)
	if err != nil {
		return nil, err
	}
	return mapCursor{it: it}, nil
}

func appendSequences(seqs []byte, seq uint64) []byte {
	return binary.AppendUvarint(bytes.Clone(seqs), seq)
}

func readSequences(raw []byte) ([]uint64, error) {
	var seqs []uint64
	for len(raw) > 0 {
		seq, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, fmt.Errorf("sequence list: %w", codec.ErrCorrupt)
		}
		seqs = append(seqs, seq)
		raw = raw[n:]
	}
	return seqs, nil
}

func (d *duplicateIndex) Add(nodeKey string, v any) error {
	if err := d.check(); err != nil {
		return err
	}
	v, err := d.canonical(v)
	if err != nil {
		return err
	}
	seq, err := d.nextSequence()
	if err != nil {
		return err
	}
	if err := d.forward.Put(d.keys.Append(nil, codec.SequencedKey{Value: v, Seq: seq}), []byte(nodeKey)); err != nil {
		return err
	}
	ikey := d.tuples.Append(nil, codec.Tuple{NodeKey: nodeKey, Value: v})
	seqs, _, err := d.inverse.Get(ikey)
	if err != nil {
		return err
	}
	if err := d.inverse.Put(ikey, appendSequences(seqs, seq)); err != nil {
		return err
	}
	d.counted("add")
	return nil
}

// removeTuple removes the forward entries of an inverse entry
func (d *duplicateIndex) removeTuple(v any, rawSeqs []byte) error {
	seqs, err := readSequences(rawSeqs)
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		if err := d.forward.Delete(d.keys.Append(nil, codec.SequencedKey{Value: v, Seq: seq})); err != nil {
			return err
		}
	}
	return nil
}

func (d *duplicateIndex) Remove(nodeKey string) error {
	if err := d.check(); err != nil {
		return err
	}
	doomed, err := scanNode(d.inverse, d.tuples, nodeKey, d.removeTuple)
	if err != nil {
		return err
	}
	for _, ikey := range doomed {
		if err := d.inverse.Delete(ikey); err != nil {
			return err
		}
	}
	d.counted("remove")
	return nil
}

func (d *duplicateIndex) RemoveValue(nodeKey string, v any) error {
	if err := d.check(); err != nil {
		return err
	}
	v, err := d.canonical(v)
	if err != nil {
		return err
	}
	ikey := d.tuples.Append(nil, codec.Tuple{NodeKey: nodeKey, Value: v})
	seqs, ok, err := d.inverse.Get(ikey)
	if err != nil || !ok {
		return err
	}
	if err := d.removeTuple(v, seqs); err != nil {
		return err
	}
	if err := d.inverse.Delete(ikey); err != nil {
		return err
	}
	d.counted("remove_value")
	return nil
}

func (d *duplicateIndex) RemoveAll() error {
	if err := d.check(); err != nil {
		return err
	}
	if err := d.forward.Clear(); err != nil {
		return err
	}
	return d.inverse.Clear()
}

func (d *duplicateIndex) Filter(c Constraints) (*Results, error) {
	return d.filter(d, c)
}

func (d *duplicateIndex) EstimateTotalCount() (int64, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	n, err := d.forward.Count(kv.All)
	return int64(n), err
}

func (d *duplicateIndex) EstimateCardinality(c Constraints) (int64, error) {
	return d.estimateCardinality(d, c)
}

func (d *duplicateIndex) RequiresReindexing() bool {
	return d.requiresReindexing
}

func (d *duplicateIndex) Shutdown(destroyed bool) error {
	if destroyed {
		d.shut.Store(true)
		return d.drop(d.forward, d.inverse, d.options)
	}
	if !d.shut.CompareAndSwap(false, true) {
		return nil
	}
	next := d.seq.Load() + 1
	d.logger.Debug("Shutting down duplicate index", zap.Uint64("nextSequence", next))
	return d.storeSequence(next)
}

func (d *duplicateIndex) forEach(fn func(nodeKey string, v any) error) error {
	it, err := d.forward.Scan(kv.All)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		key, _, err := d.keys.Read(it.Key())
		if err != nil {
			return err
		}
		if err := fn(string(it.Value()), key.(codec.SequencedKey).Value); err != nil {
			return err
		}
	}
	return it.Err()
}

func (d *duplicateIndex) Export(w io.Writer) error {
	if err := d.check(); err != nil {
		return err
	}
	return export(w, d.values, d.forEach)
}

func (d *duplicateIndex) Import(r io.Reader) error {
	return importEntries(r, d.values, d.Add)
}

// scanNode calls fn for every inverse entry of a node and returns their keys
func scanNode(inverse *kv.Map, tuples codec.TupleSerializer, nodeKey string, fn func(v any, raw []byte) error) ([][]byte, error) {
	prefix := tuples.NodePrefix(nodeKey)
	it, err := inverse.Scan(kv.Range{Lower: prefix, Upper: codec.PrefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys [][]byte
	for it.Next() {
		t, _, err := tuples.Read(it.Key())
		if err != nil {
			return nil, err
		}
		if err := fn(t.(codec.Tuple).Value, it.Value()); err != nil {
			return nil, err
		}
		keys = append(keys, bytes.Clone(it.Key()))
	}
	return keys, it.Err()
}
