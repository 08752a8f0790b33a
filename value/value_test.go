package value

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/repoindex/indexerr"
	"github.com/stretchr/testify/require"
)

func TestFactoryForUnindexable(t *testing.T) {
	_, err := FactoryFor(Binary)
	require.ErrorIs(t, err, indexerr.ErrValidation)
	_, err = FactoryFor(Decimal)
	require.ErrorIs(t, err, indexerr.ErrValidation)
}

func TestLong(t *testing.T) {
	f, err := FactoryFor(Long)
	require.NoError(t, err)

	for _, raw := range []any{int64(42), 42, int32(42), uint8(42), float64(42), json.Number("42"), "42"} {
		v, err := f.Create(raw)
		require.NoError(t, err)
		require.Equal(t, int64(42), v)
	}

	_, err = f.Create(1.5)
	require.ErrorIs(t, err, indexerr.ErrConversion)
	_, err = f.Create(uint64(math.MaxUint64))
	require.ErrorIs(t, err, indexerr.ErrConversion)
	_, err = f.Create("forty-two")
	require.ErrorIs(t, err, indexerr.ErrConversion)
	_, err = f.Create(nil)
	require.ErrorIs(t, err, indexerr.ErrConversion)
}

func TestDouble(t *testing.T) {
	f, err := FactoryFor(Double)
	require.NoError(t, err)

	v, err := f.Create(math.Copysign(0, -1))
	require.NoError(t, err)
	require.False(t, math.Signbit(v.(float64)))

	v, err = f.Create("2.5")
	require.NoError(t, err)
	require.Equal(t, 2.5, v)

	v, err = f.Create(7)
	require.NoError(t, err)
	require.Equal(t, 7.0, v)
}

func TestDate(t *testing.T) {
	f, err := FactoryFor(Date)
	require.NoError(t, err)

	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	v, err := f.Create("2024-03-01T14:00:00+02:00")
	require.NoError(t, err)
	require.Equal(t, want, v)

	v, err = f.Create(want.UnixMilli())
	require.NoError(t, err)
	require.Equal(t, want, v)
}

func TestReference(t *testing.T) {
	f, err := FactoryFor(Reference)
	require.NoError(t, err)

	id := uuid.New()
	v, err := f.Create(id.String())
	require.NoError(t, err)
	require.Equal(t, id, v)

	_, err = f.Create("not-a-uuid")
	require.ErrorIs(t, err, indexerr.ErrConversion)
}

func TestString(t *testing.T) {
	f, err := FactoryFor(Name)
	require.NoError(t, err)

	v, err := f.Create([]byte("nt:unstructured"))
	require.NoError(t, err)
	require.Equal(t, "nt:unstructured", v)

	v, err = f.Create(int64(-3))
	require.NoError(t, err)
	require.Equal(t, "-3", v)
}
