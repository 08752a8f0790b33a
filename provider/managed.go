package provider

import (
	"io"

	"github.com/ridge/repoindex/adapters"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/localindex"
	"go.uber.org/zap"
)

// ManagedIndex is a local index kept up to date by its adapter
type ManagedIndex struct {
	index   localindex.Index
	adapter *adapters.Adapter
}

// Manage pairs a local index with the adapter its definition calls for
func Manage(idx localindex.Index, logger *zap.Logger) (*ManagedIndex, error) {
	a, err := adapters.New(idx, logger)
	if err != nil {
		return nil, err
	}
	return &ManagedIndex{index: idx, adapter: a}, nil
}

// Name returns the index name, qualified by the workspace
func (m *ManagedIndex) Name() string {
	return m.index.Name()
}

// Definition returns the definition of the index
func (m *ManagedIndex) Definition() indices.Definition {
	return m.index.Definition()
}

// Adapter returns the adapter feeding the index
func (m *ManagedIndex) Adapter() *adapters.Adapter {
	return m.adapter
}

// EstimateTotalCount returns the number of entries
func (m *ManagedIndex) EstimateTotalCount() (int64, error) {
	return m.index.EstimateTotalCount()
}

// EstimateCardinality returns the number of entries satisfying the
// constraints
func (m *ManagedIndex) EstimateCardinality(c localindex.Constraints) (int64, error) {
	return m.index.EstimateCardinality(c)
}

// Filter returns a cursor over the nodes satisfying the constraints
func (m *ManagedIndex) Filter(c localindex.Constraints) (*localindex.Results, error) {
	return m.index.Filter(c)
}

// RemoveAll removes every entry
func (m *ManagedIndex) RemoveAll() error {
	return m.index.RemoveAll()
}

// RequiresReindexing reports whether the index has to be filled from the
// content
func (m *ManagedIndex) RequiresReindexing() bool {
	return m.index.RequiresReindexing()
}

// Shutdown releases the index, deleting its state when destroyed
func (m *ManagedIndex) Shutdown(destroyed bool) error {
	return m.index.Shutdown(destroyed)
}

// Export writes every entry to w
func (m *ManagedIndex) Export(w io.Writer) error {
	return m.index.Export(w)
}

// Import adds the entries read from r
func (m *ManagedIndex) Import(r io.Reader) error {
	return m.index.Import(r)
}
