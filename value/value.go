// Package value contains the property value types known to the index engine
// and the value factory that turns raw property values into typed, ordered
// Go values.
//
// Canonical representations:
//
//	String, Name, Path, URI   string
//	Long                      int64
//	Double                    float64 (-0 is stored as +0, every NaN as one NaN)
//	Boolean                   bool
//	Date                      time.Time in UTC
//	Reference, WeakReference  uuid.UUID
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/repoindex/indexerr"
)

// Type is a property value type
type Type string

// Type values
const (
	String        Type = "STRING"
	Name          Type = "NAME"
	Path          Type = "PATH"
	URI           Type = "URI"
	Long          Type = "LONG"
	Double        Type = "DOUBLE"
	Boolean       Type = "BOOLEAN"
	Date          Type = "DATE"
	Reference     Type = "REFERENCE"
	WeakReference Type = "WEAKREFERENCE"
	Decimal       Type = "DECIMAL"
	Binary        Type = "BINARY"
)

// Indexable reports whether values of the type can be indexed
func (t Type) Indexable() bool {
	switch t {
	case String, Name, Path, URI, Long, Double, Boolean, Date, Reference, WeakReference:
		return true
	default:
		return false
	}
}

// Stringlike reports whether the canonical representation of the type is a string
func (t Type) Stringlike() bool {
	switch t {
	case String, Name, Path, URI:
		return true
	default:
		return false
	}
}

// Factory converts raw values to the canonical representation of one type
type Factory interface {
	Type() Type
	Create(raw any) (any, error)
}

type factory struct {
	t  Type
	fn func(raw any) (any, bool)
}

func (f factory) Type() Type {
	return f.t
}

func (f factory) Create(raw any) (any, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil cannot be converted to %s", indexerr.ErrConversion, f.t)
	}
	v, ok := f.fn(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %T(%v) cannot be converted to %s", indexerr.ErrConversion, raw, raw, f.t)
	}
	return v, nil
}

var factories = map[Type]Factory{
	String:        factory{t: String, fn: toString},
	Name:          factory{t: Name, fn: toString},
	Path:          factory{t: Path, fn: toString},
	URI:           factory{t: URI, fn: toString},
	Long:          factory{t: Long, fn: toLong},
	Double:        factory{t: Double, fn: toDouble},
	Boolean:       factory{t: Boolean, fn: toBoolean},
	Date:          factory{t: Date, fn: toDate},
	Reference:     factory{t: Reference, fn: toReference},
	WeakReference: factory{t: WeakReference, fn: toReference},
}

// FactoryFor returns the value factory for an indexable type
func FactoryFor(t Type) (Factory, error) {
	f, ok := factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: type %q is not indexable", indexerr.ErrValidation, t)
	}
	return f, nil
}

// CanonicalDouble maps -0 to +0 and every NaN to the same NaN so that equal
// doubles have equal encodings
func CanonicalDouble(f float64) float64 {
	switch {
	case f == 0:
		return 0
	case math.IsNaN(f):
		return math.NaN()
	default:
		return f
	}
}

func toString(raw any) (any, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case bool:
		return strconv.FormatBool(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case json.Number:
		return v.String(), true
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), true
	case uuid.UUID:
		return v.String(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return nil, false
	}
}

func toLong(raw any) (any, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case float64:
		// JSON numbers arrive as float64
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	case time.Time:
		return v.UnixMilli(), true
	default:
		return nil, false
	}
}

func toDouble(raw any) (any, bool) {
	switch v := raw.(type) {
	case float64:
		return CanonicalDouble(v), true
	case float32:
		return CanonicalDouble(float64(v)), true
	case json.Number:
		f, err := v.Float64()
		return CanonicalDouble(f), err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return CanonicalDouble(f), err == nil
	default:
		n, ok := toLong(raw)
		if !ok {
			return nil, false
		}
		return float64(n.(int64)), true
	}
}

func toBoolean(raw any) (any, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return nil, false
	}
}

func toDate(raw any) (any, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, false
		}
		return t.UTC(), true
	default:
		// numbers are milliseconds since the epoch
		ms, ok := toLong(raw)
		if !ok {
			return nil, false
		}
		return time.UnixMilli(ms.(int64)).UTC(), true
	}
}

func toReference(raw any) (any, bool) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, true
	case [16]byte:
		return uuid.UUID(v), true
	case []byte:
		u, err := uuid.FromBytes(v)
		return u, err == nil
	case string:
		u, err := uuid.Parse(v)
		return u, err == nil
	default:
		return nil, false
	}
}
