package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/repoindex/value"
	"golang.org/x/exp/constraints"
)

func compareOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Strings are written with every 0x00 escaped as 0x00 0xff and terminated
// with 0x00 0x01. The terminator sorts below any escaped or regular byte, so
// a string sorts before all of its extensions even inside composite keys.
const (
	stringEscape     = 0xff
	stringTerminator = 0x01
)

type stringKey struct{}

func (stringKey) Append(dst []byte, v any) []byte {
	return appendStringKey(dst, v.(string))
}

func appendStringKey(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		dst = append(dst, s[i])
		if s[i] == 0 {
			dst = append(dst, stringEscape)
		}
	}
	return append(dst, 0, stringTerminator)
}

func (stringKey) Read(src []byte) (any, int, error) {
	return readStringKey(src)
}

func readStringKey(src []byte) (string, int, error) {
	buf := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		if src[i] != 0 {
			buf = append(buf, src[i])
			continue
		}
		if i+1 == len(src) {
			break
		}
		switch src[i+1] {
		case stringEscape:
			buf = append(buf, 0)
			i++
		case stringTerminator:
			return string(buf), i + 2, nil
		default:
			return "", 0, ErrCorrupt
		}
	}
	return "", 0, corrupt("string key")
}

func (stringKey) Compare(a, b any) int {
	return compareOrdered(a.(string), b.(string))
}

type longKey struct{}

func (longKey) Append(dst []byte, v any) []byte {
	// inverting the sign bit makes the serializations sort naturally
	return binary.BigEndian.AppendUint64(dst, uint64(v.(int64))^(1<<63))
}

func (longKey) Read(src []byte) (any, int, error) {
	if len(src) < 8 {
		return nil, 0, corrupt("long key")
	}
	return int64(binary.BigEndian.Uint64(src) ^ (1 << 63)), 8, nil
}

func (longKey) Compare(a, b any) int {
	return compareOrdered(a.(int64), b.(int64))
}

type doubleKey struct{}

// Positive doubles get the sign bit set, negative ones get every bit
// inverted. NaN is canonical and positive, so it sorts above +Inf.
func (doubleKey) Append(dst []byte, v any) []byte {
	bits := math.Float64bits(value.CanonicalDouble(v.(float64)))
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return binary.BigEndian.AppendUint64(dst, bits)
}

func (doubleKey) Read(src []byte) (any, int, error) {
	if len(src) < 8 {
		return nil, 0, corrupt("double key")
	}
	bits := binary.BigEndian.Uint64(src)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), 8, nil
}

func (doubleKey) Compare(a, b any) int {
	x, y := a.(float64), b.(float64)
	switch xn, yn := math.IsNaN(x), math.IsNaN(y); {
	case xn && yn:
		return 0
	case xn:
		return 1
	case yn:
		return -1
	}
	return compareOrdered(x, y)
}

type boolKey struct{}

func (boolKey) Append(dst []byte, v any) []byte {
	if v.(bool) {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func (boolKey) Read(src []byte) (any, int, error) {
	if len(src) < 1 {
		return nil, 0, corrupt("boolean key")
	}
	return src[0] != 0, 1, nil
}

func (boolKey) Compare(a, b any) int {
	x, y := a.(bool), b.(bool)
	switch {
	case x == y:
		return 0
	case y:
		return -1
	default:
		return 1
	}
}

type dateKey struct{}

// Dates are the Unix seconds with the sign bit inverted, followed by the
// nanoseconds (0-999999999) in 32 bits. UnixNano does not cover the whole
// range of time.Time, so the pair is kept.
func (dateKey) Append(dst []byte, v any) []byte {
	t := v.(time.Time)
	dst = binary.BigEndian.AppendUint64(dst, uint64(t.Unix())^(1<<63))
	return binary.BigEndian.AppendUint32(dst, uint32(t.Nanosecond()))
}

func (dateKey) Read(src []byte) (any, int, error) {
	if len(src) < 12 {
		return nil, 0, corrupt("date key")
	}
	sec := int64(binary.BigEndian.Uint64(src) ^ (1 << 63))
	nsec := int64(binary.BigEndian.Uint32(src[8:]))
	return time.Unix(sec, nsec).UTC(), 12, nil
}

func (dateKey) Compare(a, b any) int {
	return a.(time.Time).Compare(b.(time.Time))
}

type uuidKey struct{}

func (uuidKey) Append(dst []byte, v any) []byte {
	u := v.(uuid.UUID)
	return append(dst, u[:]...)
}

func (uuidKey) Read(src []byte) (any, int, error) {
	if len(src) < 16 {
		return nil, 0, corrupt("reference key")
	}
	var u uuid.UUID
	copy(u[:], src)
	return u, 16, nil
}

func (uuidKey) Compare(a, b any) int {
	x, y := a.(uuid.UUID), b.(uuid.UUID)
	return bytes.Compare(x[:], y[:])
}
