package codec

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	absent  = 0x00
	present = 0x01
)

type nullSafe struct {
	Serializer
}

// NullSafe wraps a serializer so that it accepts nil. Every encoding is
// prefixed with a presence flag.
func NullSafe(s Serializer) Serializer {
	switch ns := s.(type) {
	case nullSafe:
		return ns
	case nullSafeKey:
		return ns.nullSafe
	}
	return nullSafe{Serializer: s}
}

func (ns nullSafe) Append(dst []byte, v any) []byte {
	if v == nil {
		return append(dst, absent)
	}
	return ns.Serializer.Append(append(dst, present), v)
}

func (ns nullSafe) Read(src []byte) (any, int, error) {
	if len(src) == 0 {
		return nil, 0, corrupt("presence flag")
	}
	switch src[0] {
	case absent:
		return nil, 1, nil
	case present:
		v, n, err := ns.Serializer.Read(src[1:])
		if err != nil {
			return nil, 0, err
		}
		return v, n + 1, nil
	default:
		return nil, 0, ErrCorrupt
	}
}

type nullSafeKey struct {
	nullSafe
	key KeySerializer
}

// NullSafeKey is NullSafe for key serializers. Absent values sort first.
func NullSafeKey(k KeySerializer) KeySerializer {
	if nk, ok := k.(nullSafeKey); ok {
		return nk
	}
	return nullSafeKey{nullSafe: nullSafe{Serializer: k}, key: k}
}

func (nk nullSafeKey) Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return nk.key.Compare(a, b)
	}
}

// SequencedKey is a duplicate index key: a value and the sequence number
// that tells apart the entries sharing it
type SequencedKey struct {
	Value any
	Seq   uint64
}

// SequencedSerializer encodes SequencedKey as the value key followed by the
// big-endian sequence. Value keys are self-delimiting, so keys are ordered by
// value first and by sequence among equal values.
type SequencedSerializer struct {
	Key KeySerializer
}

// Sequenced returns the (value, sequence) key serializer over a value key
// serializer
func Sequenced(k KeySerializer) SequencedSerializer {
	return SequencedSerializer{Key: k}
}

// Append implements Serializer
func (s SequencedSerializer) Append(dst []byte, v any) []byte {
	sk := v.(SequencedKey)
	return binary.BigEndian.AppendUint64(s.Key.Append(dst, sk.Value), sk.Seq)
}

// Read implements Serializer
func (s SequencedSerializer) Read(src []byte) (any, int, error) {
	v, n, err := s.Key.Read(src)
	if err != nil {
		return nil, 0, err
	}
	if len(src)-n < 8 {
		return nil, 0, corrupt("sequence")
	}
	return SequencedKey{Value: v, Seq: binary.BigEndian.Uint64(src[n:])}, n + 8, nil
}

// Compare implements KeySerializer
func (s SequencedSerializer) Compare(a, b any) int {
	x, y := a.(SequencedKey), b.(SequencedKey)
	if c := s.Key.Compare(x.Value, y.Value); c != 0 {
		return c
	}
	return compareOrdered(x.Seq, y.Seq)
}

// SequenceBounds returns the lowest and the highest possible keys of a value
func (s SequencedSerializer) SequenceBounds(v any) (lo, hi []byte) {
	return s.Append(nil, SequencedKey{Value: v, Seq: 0}),
		s.Append(nil, SequencedKey{Value: v, Seq: math.MaxUint64})
}

// Tuple is an inverse index entry: a node key and one of its values
type Tuple struct {
	NodeKey string
	Value   any
}

// TupleSerializer encodes Tuple as the node key followed by the null-safe
// value key, so all tuples of a node share one prefix
type TupleSerializer struct {
	Value KeySerializer
}

// Tuples returns the (node key, value) serializer over a value key serializer
func Tuples(k KeySerializer) TupleSerializer {
	return TupleSerializer{Value: NullSafeKey(k)}
}

// Append implements Serializer
func (s TupleSerializer) Append(dst []byte, v any) []byte {
	t := v.(Tuple)
	return s.Value.Append(appendStringKey(dst, t.NodeKey), t.Value)
}

// Read implements Serializer
func (s TupleSerializer) Read(src []byte) (any, int, error) {
	nodeKey, n, err := readStringKey(src)
	if err != nil {
		return nil, 0, err
	}
	v, m, err := s.Value.Read(src[n:])
	if err != nil {
		return nil, 0, err
	}
	return Tuple{NodeKey: nodeKey, Value: v}, n + m, nil
}

// Compare implements KeySerializer
func (s TupleSerializer) Compare(a, b any) int {
	x, y := a.(Tuple), b.(Tuple)
	if c := compareOrdered(x.NodeKey, y.NodeKey); c != 0 {
		return c
	}
	return s.Value.Compare(x.Value, y.Value)
}

// NodePrefix returns the prefix shared by all tuples of a node and by no
// tuple of any other node
func (s TupleSerializer) NodePrefix(nodeKey string) []byte {
	return appendStringKey(nil, nodeKey)
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if there is none
func PrefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Successor returns the smallest key greater than key
func Successor(key []byte) []byte {
	return append(bytes.Clone(key), 0)
}

// PackTuples encodes a block of tuples. A node key equal to the previous
// entry's node key is replaced by a one-byte marker.
//
// Block format: uvarint count, then per tuple either 0x00 (same node key) or
// 0x01 uvarint length and node key bytes, then the null-safe value.
func PackTuples(dst []byte, values Serializer, tuples []Tuple) []byte {
	values = NullSafe(values)
	dst = binary.AppendUvarint(dst, uint64(len(tuples)))
	for i, t := range tuples {
		if i > 0 && tuples[i-1].NodeKey == t.NodeKey {
			dst = append(dst, absent)
		} else {
			dst = append(dst, present)
			dst = stringSerializer{}.Append(dst, t.NodeKey)
		}
		dst = values.Append(dst, t.Value)
	}
	return dst
}

// UnpackTuples decodes a block produced by PackTuples and returns the number
// of bytes consumed
func UnpackTuples(src []byte, values Serializer) ([]Tuple, int, error) {
	values = NullSafe(values)
	count, off := binary.Uvarint(src)
	if off <= 0 {
		return nil, 0, corrupt("tuple block header")
	}
	if count > uint64(len(src)) {
		return nil, 0, ErrCorrupt
	}
	tuples := make([]Tuple, 0, count)
	var nodeKey string
	for i := uint64(0); i < count; i++ {
		if off >= len(src) {
			return nil, 0, corrupt("tuple block")
		}
		switch src[off] {
		case absent:
			if i == 0 {
				return nil, 0, ErrCorrupt
			}
			off++
		case present:
			k, n, err := stringSerializer{}.Read(src[off+1:])
			if err != nil {
				return nil, 0, err
			}
			nodeKey = k.(string)
			off += 1 + n
		default:
			return nil, 0, ErrCorrupt
		}
		v, n, err := values.Read(src[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		tuples = append(tuples, Tuple{NodeKey: nodeKey, Value: v})
	}
	return tuples, off, nil
}
