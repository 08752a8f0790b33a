// Package codec is the registry of binary serializers, natural comparators
// and order-preserving key serializers for every indexable value type.
//
// A Serializer produces a compact encoding used for stored values. A
// KeySerializer produces a self-delimiting encoding whose bytewise
// lexicographical order is the natural order of the values, so that encoded
// keys can be placed into any ordered byte-keyed store and concatenated into
// composite keys.
package codec

import (
	"errors"
	"fmt"

	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/value"
)

// ErrCorrupt is returned when decoding malformed input
var ErrCorrupt = errors.New("corrupt encoding")

// Serializer encodes and decodes values of a single type
type Serializer interface {
	// Append appends the encoding of v to dst
	Append(dst []byte, v any) []byte
	// Read decodes one value from the beginning of src and returns the
	// number of bytes consumed
	Read(src []byte) (v any, n int, err error)
}

// Comparator defines the natural order of values of a single type
type Comparator func(a, b any) int

// KeySerializer is a Serializer whose encodings sort bytewise in the order
// defined by Compare
type KeySerializer interface {
	Serializer
	Compare(a, b any) int
}

type codecs struct {
	serializer Serializer
	key        KeySerializer
}

// Registry maps value types to their codecs
type Registry struct {
	byType map[value.Type]codecs
}

// NewRegistry creates a registry populated with the codecs of all indexable
// value types
func NewRegistry() *Registry {
	r := &Registry{byType: map[value.Type]codecs{}}
	for _, t := range []value.Type{value.String, value.Name, value.Path, value.URI} {
		r.Register(t, stringSerializer{}, stringKey{})
	}
	r.Register(value.Long, longSerializer{}, longKey{})
	r.Register(value.Double, doubleSerializer{}, doubleKey{})
	r.Register(value.Boolean, boolSerializer{}, boolKey{})
	r.Register(value.Date, dateSerializer{}, dateKey{})
	r.Register(value.Reference, uuidSerializer{}, uuidKey{})
	r.Register(value.WeakReference, uuidSerializer{}, uuidKey{})
	return r
}

// Register installs the codecs for a type, replacing existing ones
func (r *Registry) Register(t value.Type, s Serializer, k KeySerializer) {
	r.byType[t] = codecs{serializer: s, key: k}
}

func (r *Registry) lookup(t value.Type) (codecs, error) {
	c, ok := r.byType[t]
	if !ok {
		return codecs{}, fmt.Errorf("%w: no codec for type %q", indexerr.ErrValidation, t)
	}
	return c, nil
}

// SerializerFor returns the compact serializer for a type. The serializer
// does not accept nil; see NullableSerializerFor.
func (r *Registry) SerializerFor(t value.Type) (Serializer, error) {
	c, err := r.lookup(t)
	if err != nil {
		return nil, err
	}
	return c.serializer, nil
}

// NullableSerializerFor returns the serializer for a type wrapped to accept
// nil values
func (r *Registry) NullableSerializerFor(t value.Type) (Serializer, error) {
	s, err := r.SerializerFor(t)
	if err != nil {
		return nil, err
	}
	return NullSafe(s), nil
}

// ComparatorFor returns the natural comparator of a type
func (r *Registry) ComparatorFor(t value.Type) (Comparator, error) {
	c, err := r.lookup(t)
	if err != nil {
		return nil, err
	}
	return c.key.Compare, nil
}

// KeySerializerFor returns the order-preserving key serializer for a type.
//
// cmp replaces the comparator reported by the serializer; it must agree with
// the bytewise order of the encoding. nil selects the natural comparator.
func (r *Registry) KeySerializerFor(t value.Type, cmp Comparator) (KeySerializer, error) {
	c, err := r.lookup(t)
	if err != nil {
		return nil, err
	}
	if cmp == nil {
		return c.key, nil
	}
	return comparing{KeySerializer: c.key, cmp: cmp}, nil
}

type comparing struct {
	KeySerializer
	cmp Comparator
}

func (c comparing) Compare(a, b any) int {
	return c.cmp(a, b)
}

func corrupt(what string) error {
	return fmt.Errorf("%w: truncated %s", ErrCorrupt, what)
}
