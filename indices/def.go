package indices

import (
	"fmt"

	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/node"
	"github.com/ridge/repoindex/value"
)

// Kind is a kind of index
type Kind string

// Index kinds
const (
	// KindValue allows any number of nodes per value
	KindValue Kind = "VALUE"
	// KindUniqueValue keeps at most one node per value, the last one added
	KindUniqueValue Kind = "UNIQUE_VALUE"
	// KindEnumeratedValue keeps one collection of nodes per value of a small
	// discrete domain
	KindEnumeratedValue Kind = "ENUMERATED_VALUE"
	// KindNodeType is an enumerated index over the primary and mixin types
	KindNodeType Kind = "NODE_TYPE"
	// KindText is a full-text index; not supported
	KindText Kind = "TEXT"
)

// Column is an indexed property
type Column struct {
	Property    string     `json:"property"`
	Type        value.Type `json:"type"`
	MultiValued bool       `json:"multiValued,omitempty"`
}

// Definition describes an index
type Definition struct {
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
	// Workspace is the workspace the index covers; empty means every
	// workspace
	Workspace string   `json:"workspace,omitempty"`
	Kind      Kind     `json:"kind"`
	Columns   []Column `json:"columns"`
	// EnumeratedValues is the closed set of values of an enumerated index
	EnumeratedValues []string `json:"enumeratedValues,omitempty"`
	// RootValue is indexed for the root node by indexes of path-derived
	// properties the root does not have
	RootValue any `json:"rootValue,omitempty"`
}

func (d Definition) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Kind)
}

// Column returns the indexed column of a valid definition
func (d Definition) Column() Column {
	return d.Columns[0]
}

// AppliesTo reports whether the definition covers a workspace
func (d Definition) AppliesTo(workspace string) bool {
	return d.Workspace == "" || d.Workspace == workspace
}

// Purpose is what an index is for, computed once by Validate
type Purpose int

// Purposes
const (
	// PurposeProperty indexes a regular property
	PurposeProperty Purpose = iota
	// PurposePrimaryType indexes the primary type
	PurposePrimaryType
	// PurposeMixinTypes indexes the mixin types
	PurposeMixinTypes
	// PurposeNodeTypes indexes the primary type and the mixin types together
	PurposeNodeTypes
	// PurposePath indexes the node path
	PurposePath
	// PurposeDepth indexes the node depth
	PurposeDepth
	// PurposeName indexes the node name
	PurposeName
	// PurposeLocalName indexes the node name without the namespace prefix
	PurposeLocalName
)

var purposeNames = [...]string{"property", "primary type", "mixin types", "node types", "path", "depth", "name", "local name"}

func (p Purpose) String() string {
	if int(p) < len(purposeNames) {
		return purposeNames[p]
	}
	return fmt.Sprintf("Purpose(%d)", int(p))
}

// PathDerived reports whether values are computed from the node path
func (p Purpose) PathDerived() bool {
	switch p {
	case PurposePath, PurposeDepth, PurposeName, PurposeLocalName:
		return true
	default:
		return false
	}
}

var pseudoProperties = map[string]Purpose{
	node.PrimaryType:   PurposePrimaryType,
	node.MixinTypes:    PurposeMixinTypes,
	node.PathName:      PurposePath,
	node.DepthName:     PurposeDepth,
	node.NameName:      PurposeName,
	node.LocalNameName: PurposeLocalName,
}

// Validate checks that an index can be built from the definition and returns
// its purpose
func (d Definition) Validate() (Purpose, error) {
	if d.Name == "" {
		return 0, fmt.Errorf("%w: index without a name", indexerr.ErrValidation)
	}
	if len(d.Columns) != 1 {
		return 0, fmt.Errorf("%w: index %s: exactly one column expected, got %d",
			indexerr.ErrValidation, d.Name, len(d.Columns))
	}
	col := d.Columns[0]
	if col.Property == "" {
		return 0, fmt.Errorf("%w: index %s: column without a property", indexerr.ErrValidation, d.Name)
	}

	switch d.Kind {
	case KindText:
		return 0, fmt.Errorf("%w: index %s: full-text indexes are not supported", indexerr.ErrValidation, d.Name)
	case KindValue, KindUniqueValue, KindEnumeratedValue, KindNodeType:
	default:
		return 0, fmt.Errorf("%w: index %s: unknown kind %q", indexerr.ErrValidation, d.Name, d.Kind)
	}
	if !col.Type.Indexable() {
		return 0, fmt.Errorf("%w: index %s: type %q is not indexable", indexerr.ErrValidation, d.Name, col.Type)
	}

	purpose, ok := pseudoProperties[col.Property]
	if !ok {
		purpose = PurposeProperty
	}

	switch d.Kind {
	case KindNodeType:
		if !col.Type.Stringlike() {
			return 0, fmt.Errorf("%w: index %s: node type indexes need a string-like column, got %s",
				indexerr.ErrValidation, d.Name, col.Type)
		}
		return PurposeNodeTypes, nil
	case KindUniqueValue, KindEnumeratedValue:
		if purpose == PurposePrimaryType || purpose == PurposeMixinTypes {
			return 0, fmt.Errorf("%w: index %s: %s index on %s",
				indexerr.ErrUnsupportedCombination, d.Name, d.Kind, col.Property)
		}
	}
	if d.Kind == KindEnumeratedValue && !col.Type.Stringlike() {
		return 0, fmt.Errorf("%w: index %s: enumerated indexes need a string-like column, got %s",
			indexerr.ErrValidation, d.Name, col.Type)
	}
	if len(d.EnumeratedValues) > 0 && d.Kind != KindEnumeratedValue && d.Kind != KindNodeType {
		return 0, fmt.Errorf("%w: index %s: enumerated values on a %s index",
			indexerr.ErrValidation, d.Name, d.Kind)
	}
	return purpose, nil
}
