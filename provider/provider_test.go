package provider

import (
	"sort"
	"testing"
	"time"

	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/kv/memkv"
	"github.com/ridge/repoindex/localindex"
	"github.com/ridge/repoindex/node"
	"github.com/ridge/repoindex/query"
	"github.com/ridge/repoindex/tlog"
	"github.com/ridge/repoindex/value"
	"github.com/stretchr/testify/require"
)

var (
	titleDef = indices.Definition{
		Name:    "title",
		Kind:    indices.KindValue,
		Columns: []indices.Column{{Property: "title", Type: value.String}},
	}
	typesDef = indices.Definition{
		Name:      "types",
		Workspace: "live",
		Kind:      indices.KindNodeType,
		Columns:   []indices.Column{{Property: node.PrimaryType, Type: value.String}},
	}
)

func newProvider(t *testing.T, store *kv.Store) *Provider {
	p, err := New(Config{Name: "local", Store: store, Logger: tlog.NewForTesting(t)})
	require.NoError(t, err)
	return p
}

func doc(workspace, key, title string) *node.Node {
	return &node.Node{
		Key:         key,
		Workspace:   workspace,
		Path:        "/" + key,
		PrimaryType: "nt:file",
		Properties:  map[string]*node.Property{"title": {Name: "title", Values: []any{title}}},
		Queryable:   true,
	}
}

func find(t *testing.T, m *ManagedIndex, cs ...query.Constraint) []string {
	t.Helper()
	r, err := m.Filter(localindex.Where(cs...))
	require.NoError(t, err)
	var res []string
	for {
		more, err := r.GetNextBatch(localindex.WriterFunc(func(nodeKey string, _ float32) {
			res = append(res, nodeKey)
		}), 100)
		require.NoError(t, err)
		if !more {
			break
		}
	}
	sort.Strings(res)
	return res
}

func index(t *testing.T, p *Provider, workspace, name string) *ManagedIndex {
	m, ok := p.Index(workspace, name)
	require.True(t, ok, "%s/%s", workspace, name)
	return m
}

func TestRouting(t *testing.T) {
	p := newProvider(t, kv.New(memkv.New()))
	defer func() {
		require.NoError(t, p.Close())
	}()
	require.NoError(t, p.Define(titleDef, typesDef))

	require.NoError(t, p.AddNode(doc("live", "k1", "a")))
	require.NoError(t, p.AddNode(doc("draft", "k2", "a")))
	require.Equal(t, []string{"draft", "live"}, p.Workspaces())

	require.Len(t, p.Indexes("live"), 2)
	require.Len(t, p.Indexes("draft"), 1)
	_, ok := p.Index("draft", "types")
	require.False(t, ok)

	require.Equal(t, []string{"k1"}, find(t, index(t, p, "live", "title")))
	require.Equal(t, []string{"k2"}, find(t, index(t, p, "draft", "title")))
	require.Equal(t, []string{"k1"}, find(t, index(t, p, "live", "types")))

	require.NoError(t, p.ModifyProperties("live", "k1", map[string]*node.Change{
		"title": {New: &node.Property{Name: "title", Values: []any{"b"}}},
	}, true))
	eqB := query.Comparison{Operator: query.EqualTo, Operand: query.Literal{Value: "b"}}
	require.Equal(t, []string{"k1"}, find(t, index(t, p, "live", "title"), eqB))

	// changes of non-queryable nodes are ignored
	require.NoError(t, p.ModifyProperties("live", "k1", map[string]*node.Change{
		"title": {New: &node.Property{Name: "title", Values: []any{"c"}}},
	}, false))
	require.Equal(t, []string{"k1"}, find(t, index(t, p, "live", "title"), eqB))

	require.NoError(t, p.RemoveNode(doc("live", "k1", "b")))
	require.Empty(t, find(t, index(t, p, "live", "title")))
	require.Empty(t, find(t, index(t, p, "live", "types")))

	require.ErrorIs(t, p.AddNode(doc("bad/ws", "k3", "a")), indexerr.ErrValidation)
}

func TestDefinitions(t *testing.T) {
	p := newProvider(t, kv.New(memkv.New()))
	defer func() {
		require.NoError(t, p.Close())
	}()

	other := titleDef
	other.Name = "other"
	other.Provider = "remote"
	require.NoError(t, p.Define(typesDef, titleDef, other))
	require.Equal(t, []indices.Definition{titleDef, typesDef}, p.Definitions())

	text := titleDef
	text.Kind = indices.KindText
	require.ErrorIs(t, p.Define(text), indexerr.ErrValidation)

	require.NoError(t, p.AddNode(doc("live", "k1", "a")))
	m := index(t, p, "live", "title")
	require.True(t, m.RequiresReindexing())
	require.Len(t, p.RequiringReindexing(), 2)

	// an unchanged definition keeps its index
	require.NoError(t, p.Define(titleDef))
	require.Same(t, m, index(t, p, "live", "title"))

	// a changed one is rebuilt empty
	changed := titleDef
	changed.Columns = []indices.Column{{Property: "title", Type: value.String, MultiValued: true}}
	require.NoError(t, p.Define(changed))
	require.NotSame(t, m, index(t, p, "live", "title"))
	require.Empty(t, find(t, index(t, p, "live", "title")))

	require.NoError(t, p.Undefine("title"))
	_, ok := p.Index("live", "title")
	require.False(t, ok)
	require.Equal(t, []indices.Definition{typesDef}, p.Definitions())
}

func TestApply(t *testing.T) {
	p := newProvider(t, kv.New(memkv.New()))
	defer func() {
		require.NoError(t, p.Close())
	}()
	require.NoError(t, p.Define(titleDef))
	require.True(t, p.Updater().LastSuccessfulUpdate().IsZero())

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Apply([]node.Event{
		{Kind: node.NodeAdded, Node: doc("live", "k1", "a")},
		{Kind: node.NodeAdded, Node: doc("live", "k2", "a")},
		{Kind: node.PropertiesModified, Workspace: "live", Key: "k2", Queryable: true, Changes: map[string]*node.Change{
			"title": {New: &node.Property{Name: "title", Values: []any{"z"}}},
		}},
		{Kind: node.NodeRemoved, Node: doc("live", "k1", "a")},
	}, ts))
	require.Equal(t, ts, p.Updater().LastSuccessfulUpdate())
	require.Equal(t, []string{"k2"}, find(t, index(t, p, "live", "title")))

	// a failed batch leaves the checkpoint alone
	err := p.Apply([]node.Event{{Kind: "renamed"}}, ts.Add(time.Hour))
	require.ErrorIs(t, err, indexerr.ErrValidation)
	require.Equal(t, ts, p.Updater().LastSuccessfulUpdate())
	require.ErrorIs(t, p.Apply([]node.Event{{Kind: node.NodeAdded}}, ts.Add(time.Hour)), indexerr.ErrValidation)
}

func TestRestart(t *testing.T) {
	engine := memkv.New()
	p := newProvider(t, kv.New(engine))
	require.NoError(t, p.Define(titleDef))
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Apply([]node.Event{{Kind: node.NodeAdded, Node: doc("live", "k1", "a")}}, ts))
	require.NoError(t, p.Close())

	p = newProvider(t, kv.New(engine))
	defer func() {
		require.NoError(t, p.Close())
	}()
	require.Equal(t, ts, p.Updater().LastSuccessfulUpdate())
	require.Equal(t, []string{"live"}, p.Workspaces())
	require.NoError(t, p.Define(titleDef))

	m := index(t, p, "live", "title")
	require.False(t, m.RequiresReindexing())
	require.Equal(t, []string{"k1"}, find(t, m))
	n, err := m.EstimateTotalCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestUpdaterMonotonic(t *testing.T) {
	u, err := NewUpdater(kv.New(memkv.New()), tlog.NewForTesting(t))
	require.NoError(t, err)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	require.NoError(t, u.Completed(t2))
	require.NoError(t, u.Completed(t1))
	require.Equal(t, t2, u.LastSuccessfulUpdate())
	require.NoError(t, u.Completed(t2.Add(time.Nanosecond)))
	require.Equal(t, t2.Add(time.Nanosecond), u.LastSuccessfulUpdate())
}

func TestAddWorkspace(t *testing.T) {
	p := newProvider(t, kv.New(memkv.New()))
	require.NoError(t, p.Define(titleDef, typesDef))

	require.NoError(t, p.AddWorkspace("live"))
	require.Equal(t, []string{"live"}, p.Workspaces())
	require.Len(t, p.Indexes("live"), 2)

	require.ErrorIs(t, p.AddWorkspace("a/b"), indexerr.ErrValidation)
}
