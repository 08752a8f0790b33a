package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/node"
	"github.com/ridge/repoindex/test"
	"github.com/ridge/repoindex/value"
	"github.com/stretchr/testify/require"
)

var titleDef = indices.Definition{
	Name:    "title",
	Kind:    indices.KindValue,
	Columns: []indices.Column{{Property: "title", Type: value.String}},
}

func writeDefinitions(t *testing.T, dir string, defs ...indices.Definition) string {
	path := filepath.Join(dir, "indexes.json")
	data, err := json.Marshal(defs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDumpLoad(t *testing.T) {
	dir := t.TempDir()
	flags := &storeFlags{
		dataDir:     filepath.Join(dir, "data"),
		backend:     backendPebble,
		definitions: writeDefinitions(t, dir, titleDef),
	}
	ctx := test.Context(t)

	p, closeFn, err := openProvider(ctx, flags)
	require.NoError(t, err)
	for _, key := range []string{"k1", "k2", "k3"} {
		require.NoError(t, p.AddNode(&node.Node{
			Key: key, Workspace: "default", Path: "/" + key, PrimaryType: "nt:file", Queryable: true,
			Properties: map[string]*node.Property{"title": {Name: "title", Values: []any{"title of " + key}}},
		}))
	}
	require.NoError(t, closeFn())

	file := filepath.Join(dir, "title.dump")
	require.NoError(t, dump(ctx, flags, "default", "title", file))

	flags.dataDir = filepath.Join(dir, "copy")
	require.NoError(t, load(ctx, flags, "default", "title", file, false))

	p, closeFn, err = openProvider(ctx, flags)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, closeFn())
	}()
	m, ok := p.Index("default", "title")
	require.True(t, ok)
	n, err := m.EstimateTotalCount()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestDumpUnknownIndex(t *testing.T) {
	dir := t.TempDir()
	flags := &storeFlags{dataDir: filepath.Join(dir, "data"), backend: backendPebble}
	require.Error(t, dump(test.Context(t), flags, "default", "title", filepath.Join(dir, "out")))
}

func TestIndexArgs(t *testing.T) {
	ws, idx, file, err := indexArgs("dump", []string{"default", "title"})
	require.NoError(t, err)
	require.Equal(t, []string{"default", "title", "-"}, []string{ws, idx, file})

	_, _, _, err = indexArgs("dump", []string{"default"})
	require.ErrorAs(t, err, &usageError{})
}

func TestUnknownBackend(t *testing.T) {
	flags := &storeFlags{backend: "tape"}
	_, err := flags.open(nil)
	require.ErrorAs(t, err, &usageError{})
}

const eventLines = `{"kind":"added","time":"2024-01-02T03:04:05Z","node":{"key":"k1","workspace":"default","path":"/a","primaryType":"nt:file","queryable":true}}

{"kind":"modified","time":"2024-01-02T03:04:06Z","workspace":"default","key":"k1","changes":{"size":{"new":{"name":"size","values":[42]}}}}
`

type fakePublisher struct {
	events []node.Event
	closed bool
}

func (p *fakePublisher) Publish(ctx context.Context, events ...node.Event) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestReadEvents(t *testing.T) {
	events, err := readEvents(strings.NewReader(eventLines))
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, node.NodeAdded, events[0].Kind)
	require.Equal(t, "/a", events[0].Node.Path)
	require.Equal(t, node.PropertiesModified, events[1].Kind)
	require.Equal(t, "k1", events[1].Key)

	_, err = readEvents(strings.NewReader(`{"kind":"removed","time":"2024-01-02T03:04:05Z"}` + "\n" + `{"kind":"renamed"}`))
	require.ErrorIs(t, err, indexerr.ErrValidation)
	require.ErrorContains(t, err, "line 1")
}

func TestPublishFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(file, []byte(eventLines), 0o644))

	p := &fakePublisher{}
	require.NoError(t, publish(test.Context(t), p, file))
	require.True(t, p.closed)
	require.Len(t, p.events, 2)
	require.Equal(t, "k1", p.events[0].Node.Key)

	p = &fakePublisher{}
	require.Error(t, publish(test.Context(t), p, filepath.Join(t.TempDir(), "missing")))
	require.True(t, p.closed)
	require.Empty(t, p.events)
}
