package codec

import (
	"encoding/binary"
	"math"
	"time"
)

type stringSerializer struct{}

func (stringSerializer) Append(dst []byte, v any) []byte {
	s := v.(string)
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func (stringSerializer) Read(src []byte) (any, int, error) {
	l, n := binary.Uvarint(src)
	if n <= 0 || uint64(len(src)-n) < l {
		return nil, 0, corrupt("string")
	}
	return string(src[n : n+int(l)]), n + int(l), nil
}

type longSerializer struct{}

func (longSerializer) Append(dst []byte, v any) []byte {
	return binary.AppendVarint(dst, v.(int64))
}

func (longSerializer) Read(src []byte) (any, int, error) {
	v, n := binary.Varint(src)
	if n <= 0 {
		return nil, 0, corrupt("long")
	}
	return v, n, nil
}

type doubleSerializer struct{}

func (doubleSerializer) Append(dst []byte, v any) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.(float64)))
}

func (doubleSerializer) Read(src []byte) (any, int, error) {
	if len(src) < 8 {
		return nil, 0, corrupt("double")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(src)), 8, nil
}

type boolSerializer struct{}

func (boolSerializer) Append(dst []byte, v any) []byte {
	return boolKey{}.Append(dst, v)
}

func (boolSerializer) Read(src []byte) (any, int, error) {
	return boolKey{}.Read(src)
}

type dateSerializer struct{}

func (dateSerializer) Append(dst []byte, v any) []byte {
	t := v.(time.Time)
	dst = binary.AppendVarint(dst, t.Unix())
	return binary.AppendUvarint(dst, uint64(t.Nanosecond()))
}

func (dateSerializer) Read(src []byte) (any, int, error) {
	sec, n1 := binary.Varint(src)
	if n1 <= 0 {
		return nil, 0, corrupt("date")
	}
	nsec, n2 := binary.Uvarint(src[n1:])
	if n2 <= 0 || nsec >= uint64(time.Second) {
		return nil, 0, corrupt("date")
	}
	return time.Unix(sec, int64(nsec)).UTC(), n1 + n2, nil
}

type uuidSerializer struct{}

func (uuidSerializer) Append(dst []byte, v any) []byte {
	return uuidKey{}.Append(dst, v)
}

func (uuidSerializer) Read(src []byte) (any, int, error) {
	return uuidKey{}.Read(src)
}
