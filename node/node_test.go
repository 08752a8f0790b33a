package node

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathHelpers(t *testing.T) {
	cases := []struct {
		path      string
		depth     int64
		name      string
		localName string
	}{
		{"/", 0, "", ""},
		{"/a", 1, "a", "a"},
		{"/a/jcr:content", 2, "jcr:content", "content"},
		{"/a/b[2]", 2, "b", "b"},
		{"/a/mix:b[12]/c[x]", 3, "c[x]", "c[x]"},
	}
	for _, c := range cases {
		require.Equal(t, c.depth, Depth(c.path), c.path)
		require.Equal(t, c.name, Name(c.path), c.path)
		require.Equal(t, c.localName, LocalName(c.path), c.path)
	}
}

func TestFirst(t *testing.T) {
	var p *Property
	require.Nil(t, p.First())
	require.Nil(t, (&Property{Name: "x"}).First())
	require.Equal(t, "a", (&Property{Name: "x", Values: []any{"a", "b"}}).First())
}
