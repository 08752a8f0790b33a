package localindex

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/query"
	"github.com/ridge/repoindex/value"
	"github.com/stretchr/testify/require"
)

func TestExportImport(t *testing.T) {
	for _, kind := range []indices.Kind{indices.KindValue, indices.KindUniqueValue, indices.KindEnumeratedValue} {
		t.Run(string(kind), func(t *testing.T) {
			src := newIndex(t, kind, value.String)
			// enough entries to span several blocks
			for i := 0; i < 2*exportBlockSize+10; i++ {
				require.NoError(t, src.Add(fmt.Sprintf("k%05d", i), fmt.Sprintf("v%d", i%50)))
			}

			var buf bytes.Buffer
			require.NoError(t, src.Export(&buf))

			dst := newIndex(t, kind, value.String)
			require.NoError(t, dst.Import(bytes.NewReader(buf.Bytes())))

			for _, c := range []query.Constraint{cmp(query.EqualTo, "v7"), cmp(query.GreaterThan, "v42")} {
				require.Equal(t, filter(t, src, c), filter(t, dst, c))
			}
			want := int64(2*exportBlockSize + 10)
			if kind == indices.KindUniqueValue {
				// one node per value survives
				want = 50
			}
			n, err := src.EstimateTotalCount()
			require.NoError(t, err)
			require.Equal(t, want, n)
			n, err = dst.EstimateTotalCount()
			require.NoError(t, err)
			require.Equal(t, want, n)
		})
	}
}

func TestExportEmpty(t *testing.T) {
	src := newIndex(t, indices.KindValue, value.Long)
	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := newIndex(t, indices.KindValue, value.Long)
	require.NoError(t, dst.Import(&buf))
	require.Empty(t, filter(t, dst))
}

func TestImportGarbage(t *testing.T) {
	idx := newIndex(t, indices.KindValue, value.Long)
	require.ErrorIs(t, idx.Import(bytes.NewReader([]byte("definitely not an export"))), ErrBadExport)
}
