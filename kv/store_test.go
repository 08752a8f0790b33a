package kv_test

import (
	"testing"

	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/kv/memkv"
	"github.com/stretchr/testify/require"
)

func keys(t *testing.T, m *kv.Map, r kv.Range) []string {
	it, err := m.Scan(r)
	require.NoError(t, err)
	defer it.Close()
	var res []string
	for it.Next() {
		res = append(res, string(it.Key()))
	}
	require.NoError(t, it.Err())
	return res
}

func TestMapScan(t *testing.T) {
	s := kv.New(memkv.New())
	m := s.Map("ws/idx")
	other := s.Map("ws/idx.inverse")
	for _, k := range []string{"1", "3", "5", "7"} {
		require.NoError(t, m.Put([]byte(k), []byte("n"+k)))
		require.NoError(t, other.Put([]byte(k), nil))
	}

	require.Equal(t, []string{"1", "3", "5", "7"}, keys(t, m, kv.All))
	require.Equal(t, []string{"3", "5"}, keys(t, m, kv.Exact([]byte("3"), []byte("5"))))
	require.Equal(t, []string{"5", "7"}, keys(t, m, kv.From([]byte("3"), false)))
	require.Equal(t, []string{"3", "5", "7"}, keys(t, m, kv.From([]byte("3"), true)))
	require.Equal(t, []string{"1"}, keys(t, m, kv.To([]byte("3"), false)))
	require.Equal(t, []string{"1", "3"}, keys(t, m, kv.To([]byte("3"), true)))
	require.Empty(t, keys(t, m, kv.Range{Lower: []byte("5"), Upper: []byte("3")}))
	require.Empty(t, keys(t, m, kv.Range{Lower: []byte("3"), LowerExclusive: true, Upper: []byte("3"), UpperInclusive: true}))

	n, err := m.Count(kv.All)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	v, ok, err := m.Get([]byte("5"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("n5"), v)

	require.NoError(t, m.Delete([]byte("5")))
	require.Equal(t, []string{"1", "3", "7"}, keys(t, m, kv.All))
	require.NoError(t, m.Clear())
	require.Empty(t, keys(t, m, kv.All))
	require.Len(t, keys(t, other, kv.All), 4)

	exists, err := s.Exists("ws/idx")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestCatalog(t *testing.T) {
	s := kv.New(memkv.New())
	require.NoError(t, s.Map("ws/a").Create())
	require.NoError(t, s.Map("ws/a.v.1").Put([]byte("k"), nil))
	require.NoError(t, s.Map("ws/b").Put([]byte("k"), nil))
	require.NoError(t, s.Map("other/a").Create())

	names, err := s.Names("ws/a")
	require.NoError(t, err)
	require.Equal(t, []string{"ws/a", "ws/a.v.1"}, names)

	require.NoError(t, s.Drop("ws/a.v.1"))
	names, err = s.Names("ws/")
	require.NoError(t, err)
	require.Equal(t, []string{"ws/a", "ws/b"}, names)
	require.Empty(t, keys(t, s.Map("ws/a.v.1"), kv.All))

	exists, err := s.Exists("ws/a.v.1")
	require.NoError(t, err)
	require.False(t, exists)

	require.Panics(t, func() { s.Map("") })
	require.Panics(t, func() { s.Map("a\x00b") })
}

func TestLongPersistence(t *testing.T) {
	engine := memkv.New()
	s := kv.New(engine)
	l, err := s.Long("last-successful-update")
	require.NoError(t, err)
	require.Zero(t, l.Get())
	require.True(t, l.CompareAndSet(0, 42))
	require.False(t, l.CompareAndSet(0, 43))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Commit(), kv.ErrClosed)

	s = kv.New(engine)
	l, err = s.Long("last-successful-update")
	require.NoError(t, err)
	require.Equal(t, int64(42), l.Get())
	l2, err := s.Long("last-successful-update")
	require.NoError(t, err)
	require.Same(t, l, l2)

	require.NoError(t, s.Destroy())
	s = kv.New(engine)
	l, err = s.Long("last-successful-update")
	require.NoError(t, err)
	require.Zero(t, l.Get())
}

func TestRangeIntersect(t *testing.T) {
	a := kv.From([]byte("3"), true)
	b := kv.To([]byte("7"), false)
	r := a.Intersect(b)
	require.Equal(t, kv.Range{Lower: []byte("3"), Upper: []byte("7")}, r)
	require.True(t, r.Contains([]byte("3")))
	require.False(t, r.Contains([]byte("7")))

	r = r.Intersect(kv.From([]byte("3"), false))
	require.True(t, r.LowerExclusive)
	require.False(t, r.Contains([]byte("3")))

	r = r.Intersect(kv.To([]byte("9"), true))
	require.Equal(t, []byte("7"), r.Upper)
	require.False(t, r.UpperInclusive)

	require.True(t, kv.Exact([]byte("5"), []byte("5")).Intersect(kv.From([]byte("5"), false)).Empty())
	require.False(t, kv.All.Empty())
	require.Equal(t, kv.All, kv.All.Intersect(kv.All))
}
