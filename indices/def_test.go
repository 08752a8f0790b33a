package indices

import (
	"testing"

	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/node"
	"github.com/ridge/repoindex/value"
	"github.com/stretchr/testify/require"
)

func def(kind Kind, property string, t value.Type) Definition {
	return Definition{Name: "idx", Kind: kind, Columns: []Column{{Property: property, Type: t}}}
}

func TestValidatePurpose(t *testing.T) {
	cases := []struct {
		def     Definition
		purpose Purpose
	}{
		{def(KindValue, "title", value.String), PurposeProperty},
		{def(KindUniqueValue, "id", value.Reference), PurposeProperty},
		{def(KindEnumeratedValue, "status", value.String), PurposeProperty},
		{def(KindValue, node.PrimaryType, value.Name), PurposePrimaryType},
		{def(KindValue, node.MixinTypes, value.Name), PurposeMixinTypes},
		{def(KindNodeType, node.PrimaryType, value.Name), PurposeNodeTypes},
		{def(KindValue, node.PathName, value.Path), PurposePath},
		{def(KindValue, node.DepthName, value.Long), PurposeDepth},
		{def(KindUniqueValue, node.NameName, value.Name), PurposeName},
		{def(KindEnumeratedValue, node.LocalNameName, value.String), PurposeLocalName},
	}
	for _, c := range cases {
		purpose, err := c.def.Validate()
		require.NoError(t, err, c.def.Columns[0].Property)
		require.Equal(t, c.purpose, purpose, c.def.Columns[0].Property)
	}
}

func TestValidateErrors(t *testing.T) {
	noColumns := def(KindValue, "x", value.String)
	noColumns.Columns = nil
	twoColumns := def(KindValue, "x", value.String)
	twoColumns.Columns = append(twoColumns.Columns, Column{Property: "y", Type: value.Long})
	enumOnValue := def(KindValue, "x", value.String)
	enumOnValue.EnumeratedValues = []string{"a"}

	for _, d := range []Definition{
		noColumns,
		twoColumns,
		enumOnValue,
		def(KindText, "body", value.String),
		def("BTREE", "x", value.String),
		def(KindValue, "price", value.Decimal),
		def(KindValue, "blob", value.Binary),
		def(KindValue, "", value.String),
		def(KindEnumeratedValue, "count", value.Long),
		def(KindNodeType, node.PrimaryType, value.Long),
		{Columns: []Column{{Property: "x", Type: value.String}}, Kind: KindValue},
	} {
		_, err := d.Validate()
		require.ErrorIs(t, err, indexerr.ErrValidation, "%+v", d)
	}

	for _, d := range []Definition{
		def(KindUniqueValue, node.PrimaryType, value.Name),
		def(KindUniqueValue, node.MixinTypes, value.Name),
		def(KindEnumeratedValue, node.PrimaryType, value.Name),
		def(KindEnumeratedValue, node.MixinTypes, value.Name),
	} {
		_, err := d.Validate()
		require.ErrorIs(t, err, indexerr.ErrUnsupportedCombination, "%+v", d)
	}
}

func TestAppliesTo(t *testing.T) {
	d := def(KindValue, "x", value.String)
	require.True(t, d.AppliesTo("default"))
	d.Workspace = "system"
	require.True(t, d.AppliesTo("system"))
	require.False(t, d.AppliesTo("default"))
}
