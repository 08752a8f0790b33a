package localindex

import (
	"fmt"
	"sort"
	"testing"

	"github.com/ridge/repoindex/codec"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/kv/memkv"
	"github.com/ridge/repoindex/query"
	"github.com/ridge/repoindex/tlog"
	"github.com/ridge/repoindex/value"
	"github.com/stretchr/testify/require"
)

const workspace = "default"

func definition(kind indices.Kind, t value.Type) indices.Definition {
	return indices.Definition{
		Name:    "idx",
		Kind:    kind,
		Columns: []indices.Column{{Property: "prop", Type: t}},
	}
}

func config(t *testing.T, store *kv.Store) Config {
	return Config{Store: store, Registry: codec.NewRegistry(), Logger: tlog.NewForTesting(t)}
}

func open(t *testing.T, store *kv.Store, def indices.Definition) Index {
	idx, err := New(config(t, store), def, workspace)
	require.NoError(t, err)
	return idx
}

func newIndex(t *testing.T, kind indices.Kind, typ value.Type) Index {
	idx := open(t, kv.New(memkv.New()), definition(kind, typ))
	t.Cleanup(func() {
		require.NoError(t, idx.Shutdown(false))
	})
	return idx
}

// nodeOf is the node key given to value v by the fixtures
func nodeOf(v any) string {
	return fmt.Sprintf("node-%v", v)
}

// longIndex is a duplicate index holding {3, 5, 7, 10, 12}, one node each
func longIndex(t *testing.T) Index {
	idx := newIndex(t, indices.KindValue, value.Long)
	for _, v := range []int64{3, 5, 7, 10, 12} {
		require.NoError(t, idx.Add(nodeOf(v), v))
	}
	return idx
}

func nodes(vs ...any) []string {
	res := make([]string, 0, len(vs))
	for _, v := range vs {
		res = append(res, nodeOf(v))
	}
	return res
}

func lit(v any) query.Literal {
	return query.Literal{Value: v}
}

func cmp(op query.Operator, v any) query.Comparison {
	return query.Comparison{Operator: op, Operand: lit(v)}
}

// filterOrdered returns the node keys found in the order the cursor
// returned them
func filterOrdered(t *testing.T, idx Index, c Constraints) []string {
	t.Helper()
	r, err := idx.Filter(c)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, r.Close())
	}()

	var res []string
	w := WriterFunc(func(nodeKey string, score float32) {
		require.Equal(t, float32(1), score)
		res = append(res, nodeKey)
	})
	for {
		more, err := r.GetNextBatch(w, 2)
		require.NoError(t, err)
		if !more {
			break
		}
	}

	n, err := idx.EstimateCardinality(c)
	require.NoError(t, err)
	require.Equal(t, int64(len(res)), n)
	return res
}

func filter(t *testing.T, idx Index, cs ...query.Constraint) []string {
	t.Helper()
	res := filterOrdered(t, idx, Where(cs...))
	sort.Strings(res)
	return res
}

func sorted(s []string) []string {
	sort.Strings(s)
	return s
}
