// Package kv is the ordered key-value storage capability the index engine is
// built on: named ordered collections with range views, persisted atomic
// longs and a catalog of collection names, all multiplexed onto one ordered
// byte-keyed Engine.
//
// Engines must allow reads concurrently with writes. An Iterator observes a
// consistent view of the engine as of its creation or later, and never a
// partially written entry.
package kv

import (
	"bytes"

	"github.com/ridge/repoindex/codec"
)

// Engine is an ordered byte-keyed storage engine
type Engine interface {
	// Get returns the value stored for a key
	Get(key []byte) (value []byte, ok bool, err error)
	// Set stores a value
	Set(key, value []byte) error
	// Delete removes a key. Removing a missing key is not an error.
	Delete(key []byte) error
	// DeleteRange removes all keys in [start, end). A nil end is unbounded.
	DeleteRange(start, end []byte) error
	// NewIterator returns an iterator over the keys in [lower, upper) in
	// ascending order. Nil bounds are unbounded. lower must be below upper.
	NewIterator(lower, upper []byte) (Iterator, error)
	// Flush makes all the writes so far durable
	Flush() error
	// Close releases the engine; persisted data is retained
	Close() error
	// Destroy closes the engine and deletes all persisted data
	Destroy() error
}

// Iterator walks over a key range.
//
// Key and Value are only valid until the next call to Next.
// Do not use an iterator concurrently.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Range is a key range within a collection. Nil bounds are unbounded.
type Range struct {
	Lower          []byte
	LowerExclusive bool
	Upper          []byte
	UpperInclusive bool
}

// All is the range covering every key
var All = Range{}

// Exact is the range covering exactly the keys from lo to hi inclusive
func Exact(lo, hi []byte) Range {
	return Range{Lower: lo, Upper: hi, UpperInclusive: true}
}

// From is the range of keys above lo
func From(lo []byte, inclusive bool) Range {
	return Range{Lower: lo, LowerExclusive: !inclusive}
}

// To is the range of keys below hi
func To(hi []byte, inclusive bool) Range {
	return Range{Upper: hi, UpperInclusive: inclusive}
}

// Intersect returns the range of keys belonging to both r and o
func (r Range) Intersect(o Range) Range {
	res := r
	if o.Lower != nil {
		c := bytes.Compare(o.Lower, r.Lower)
		if r.Lower == nil || c > 0 {
			res.Lower, res.LowerExclusive = o.Lower, o.LowerExclusive
		} else if c == 0 {
			res.LowerExclusive = r.LowerExclusive || o.LowerExclusive
		}
	}
	if o.Upper != nil {
		c := bytes.Compare(o.Upper, r.Upper)
		if r.Upper == nil || c < 0 {
			res.Upper, res.UpperInclusive = o.Upper, o.UpperInclusive
		} else if c == 0 {
			res.UpperInclusive = r.UpperInclusive && o.UpperInclusive
		}
	}
	return res
}

// Contains reports whether a key belongs to the range
func (r Range) Contains(key []byte) bool {
	if r.Lower != nil {
		c := bytes.Compare(key, r.Lower)
		if c < 0 || c == 0 && r.LowerExclusive {
			return false
		}
	}
	if r.Upper != nil {
		c := bytes.Compare(key, r.Upper)
		if c > 0 || c == 0 && !r.UpperInclusive {
			return false
		}
	}
	return true
}

// Empty reports whether the range contains no keys at all
func (r Range) Empty() bool {
	if r.Lower == nil || r.Upper == nil {
		return false
	}
	lo, hi := r.bounds()
	return bytes.Compare(lo, hi) >= 0
}

// bounds converts the range to the half-open [lo, hi) form engines use;
// hi is nil when unbounded
func (r Range) bounds() (lo, hi []byte) {
	lo = r.Lower
	if lo != nil && r.LowerExclusive {
		lo = codec.Successor(lo)
	}
	hi = r.Upper
	if hi != nil && r.UpperInclusive {
		hi = codec.Successor(hi)
	}
	return lo, hi
}
