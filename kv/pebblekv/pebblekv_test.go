package pebblekv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/kv/kvtest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEngine(t *testing.T) {
	kvtest.RunEngineTests(t, func(t *testing.T) kv.Engine {
		e, err := Open(Options{Dir: t.TempDir(), Logger: zaptest.NewLogger(t)})
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, e.Close())
		})
		return e
	})
}

func TestReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	e, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	require.NoError(t, e.Flush())
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	e, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	v, ok, err := e.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, e.Destroy())
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}
