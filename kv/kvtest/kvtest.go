// Package kvtest contains the conformance tests every kv.Engine passes
package kvtest

import (
	"fmt"
	"testing"

	"github.com/ridge/repoindex/kv"
	"github.com/stretchr/testify/require"
)

type pair struct {
	key, value string
}

func collect(t *testing.T, e kv.Engine, lower, upper []byte) []pair {
	it, err := e.NewIterator(lower, upper)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, it.Close())
	}()
	var res []pair
	for it.Next() {
		res = append(res, pair{key: string(it.Key()), value: string(it.Value())})
	}
	require.NoError(t, it.Err())
	return res
}

// RunEngineTests runs the conformance tests against engines created by open
func RunEngineTests(t *testing.T, open func(t *testing.T) kv.Engine) {
	t.Run("GetSetDelete", func(t *testing.T) {
		e := open(t)
		_, ok, err := e.Get([]byte("a"))
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, e.Set([]byte("a"), []byte("1")))
		require.NoError(t, e.Set([]byte("a"), []byte("2")))
		v, ok, err := e.Get([]byte("a"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("2"), v)

		require.NoError(t, e.Set([]byte("empty"), nil))
		_, ok, err = e.Get([]byte("empty"))
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, e.Delete([]byte("a")))
		require.NoError(t, e.Delete([]byte("a")))
		_, ok, err = e.Get([]byte("a"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Iterate", func(t *testing.T) {
		e := open(t)
		for _, k := range []string{"b", "a", "ab", "c", "a\x00"} {
			require.NoError(t, e.Set([]byte(k), []byte("v"+k)))
		}
		require.Equal(t, []pair{{"a", "va"}, {"a\x00", "va\x00"}, {"ab", "vab"}, {"b", "vb"}, {"c", "vc"}},
			collect(t, e, nil, nil))
		require.Equal(t, []pair{{"a\x00", "va\x00"}, {"ab", "vab"}},
			collect(t, e, []byte("a\x00"), []byte("b")))
		require.Equal(t, []pair{{"ab", "vab"}, {"b", "vb"}, {"c", "vc"}}, collect(t, e, []byte("aa"), nil))
		require.Empty(t, collect(t, e, []byte("d"), nil))
	})

	t.Run("SharedPrefixes", func(t *testing.T) {
		e := open(t)
		for _, k := range []string{"d\x00idx\x00a", "d\x00idx\x00b", "d\x00idx.inverse\x00a", "d\x00idy\x00a"} {
			require.NoError(t, e.Set([]byte(k), nil))
		}
		require.Equal(t, []pair{{"d\x00idx\x00a", ""}, {"d\x00idx\x00b", ""}},
			collect(t, e, []byte("d\x00idx\x00"), []byte("d\x00idx\x01")))
		require.Equal(t, []pair{{"d\x00idx\x00b", ""}},
			collect(t, e, []byte("d\x00idx\x00a\x00"), []byte("d\x00idx\x01")))
		require.Equal(t, []pair{{"d\x00idx.inverse\x00a", ""}},
			collect(t, e, []byte("d\x00idx."), []byte("d\x00idx/")))
		require.Len(t, collect(t, e, []byte("d\x00ia"), nil), 4)
		require.Empty(t, collect(t, e, []byte("d\x00idz"), nil))
	})

	t.Run("StoreCollections", func(t *testing.T) {
		s := kv.New(open(t))
		m := s.Map("ws/idx")
		require.NoError(t, m.Put([]byte("a"), nil))
		require.NoError(t, m.Put([]byte("b"), nil))
		require.NoError(t, s.Map("ws/idx.inverse").Put([]byte("a"), nil))

		n, err := m.Count(kv.All)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		n, err = m.Count(kv.From([]byte("a"), false))
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("DeleteRange", func(t *testing.T) {
		e := open(t)
		for i := 0; i < 10; i++ {
			require.NoError(t, e.Set([]byte(fmt.Sprintf("k%d", i)), nil))
		}
		require.NoError(t, e.DeleteRange([]byte("k2"), []byte("k5")))
		require.Len(t, collect(t, e, nil, nil), 7)
		require.NoError(t, e.DeleteRange([]byte("k7"), nil))
		keys := collect(t, e, nil, nil)
		require.Equal(t, []pair{{"k0", ""}, {"k1", ""}, {"k5", ""}, {"k6", ""}}, keys)
		require.NoError(t, e.DeleteRange(nil, nil))
		require.Empty(t, collect(t, e, nil, nil))
	})

	t.Run("WriteDuringIteration", func(t *testing.T) {
		e := open(t)
		for i := 0; i < 100; i++ {
			require.NoError(t, e.Set([]byte(fmt.Sprintf("k%03d", i)), []byte(fmt.Sprintf("v%03d", i))))
		}
		it, err := e.NewIterator(nil, nil)
		require.NoError(t, err)
		n := 0
		for it.Next() {
			require.Equal(t, "v"+string(it.Key()[1:]), string(it.Value()))
			require.NoError(t, e.Set([]byte(fmt.Sprintf("k%03d", 100+n)), []byte(fmt.Sprintf("v%03d", 100+n))))
			require.NoError(t, e.Delete([]byte(fmt.Sprintf("k%03d", n))))
			n++
		}
		require.NoError(t, it.Err())
		require.NoError(t, it.Close())
		require.GreaterOrEqual(t, n, 100)
	})

	t.Run("Flush", func(t *testing.T) {
		e := open(t)
		require.NoError(t, e.Set([]byte("a"), []byte("1")))
		require.NoError(t, e.Flush())
	})
}
