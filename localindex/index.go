// Package localindex implements the local indexes: persistent ordered
// mappings from property values to node keys, and the compiler that turns
// constraint trees into range scans over them.
//
// There are three kinds of local index:
//
//   - duplicate (VALUE): any number of nodes per value. Entries are keyed by
//     (value, sequence); an inverse (node key, value) collection makes
//     removal by node proportional to the number of the node's entries.
//   - unique (UNIQUE_VALUE): at most one node per value. The last add wins;
//     uniqueness violations are not detected.
//   - enumerated (ENUMERATED_VALUE, NODE_TYPE): one collection of nodes per
//     distinct value of a small domain.
//
// Reads go through engine snapshots and never block writers. A cursor may or
// may not observe entries added after it was opened.
package localindex

import (
	"errors"
	"fmt"
	"io"

	"github.com/ridge/repoindex/codec"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/query"
	"github.com/ridge/repoindex/value"
	"go.uber.org/zap"
)

// ErrShutdown is returned by operations on an index that has been shut down
var ErrShutdown = errors.New("index is shut down")

// Constraints is a conjunction of constraints with the variables bound for
// one query execution
type Constraints struct {
	Constraints []query.Constraint
	Variables   map[string]any
}

// Where is a shorthand for Constraints without variables
func Where(cs ...query.Constraint) Constraints {
	return Constraints{Constraints: cs}
}

// Index is a local index of one workspace
type Index interface {
	// Name returns the index name, qualified by the workspace
	Name() string
	// Definition returns the definition the index was built from
	Definition() indices.Definition
	// Factory returns the factory converting raw values to index values
	Factory() value.Factory

	// Add associates a node with a value
	Add(nodeKey string, v any) error
	// Remove removes every association of a node
	Remove(nodeKey string) error
	// RemoveValue removes the associations of a node with one value
	RemoveValue(nodeKey string, v any) error
	// RemoveAll removes every association
	RemoveAll() error

	// Filter returns a cursor over the nodes satisfying all the constraints
	Filter(c Constraints) (*Results, error)
	// EstimateTotalCount returns the number of associations
	EstimateTotalCount() (int64, error)
	// EstimateCardinality returns the number of associations satisfying all
	// the constraints
	EstimateCardinality(c Constraints) (int64, error)

	// RequiresReindexing reports whether the index was created empty and has
	// to be filled from the content
	RequiresReindexing() bool
	// Shutdown releases the index. When destroyed, all its persisted state
	// is deleted. Safe to call more than once.
	Shutdown(destroyed bool) error

	// Export writes all associations to w
	Export(w io.Writer) error
	// Import adds the associations read from r
	Import(r io.Reader) error
}

// Config is the configuration shared by the local indexes of a store
type Config struct {
	Store    *kv.Store
	Registry *codec.Registry
	Logger   *zap.Logger
}

// New opens or creates the local index of a workspace for a definition
func New(cfg Config, def indices.Definition, workspace string) (Index, error) {
	if _, err := def.Validate(); err != nil {
		return nil, err
	}
	if cfg.Registry == nil {
		cfg.Registry = codec.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	b, err := newBase(cfg, def, workspace)
	if err != nil {
		return nil, err
	}
	switch def.Kind {
	case indices.KindValue:
		return openDuplicate(b)
	case indices.KindUniqueValue:
		return openUnique(b)
	case indices.KindEnumeratedValue, indices.KindNodeType:
		return openEnumerated(b)
	default:
		panic(fmt.Errorf("validated index %s has unexpected kind %q", def.Name, def.Kind))
	}
}
