// Package provider keeps the managed indexes of every workspace up to date
// with node events and tracks the update checkpoint.
package provider

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ridge/repoindex/codec"
	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/localindex"
	"github.com/ridge/repoindex/node"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Config is the configuration of a Provider
type Config struct {
	// Name is the name of the provider. Definitions naming another provider
	// are ignored.
	Name string

	// Store keeps the indexes of all workspaces
	Store *kv.Store

	// Registry serializes index values. Defaults to codec.NewRegistry().
	Registry *codec.Registry

	Logger *zap.Logger
}

// Provider routes node events to the managed indexes of their workspace.
// Safe for concurrent use; events of one node must not be applied
// concurrently.
type Provider struct {
	name     string
	store    *kv.Store
	registry *codec.Registry
	logger   *zap.Logger
	updater  *Updater

	mu         sync.RWMutex
	defs       map[string]indices.Definition
	workspaces map[string]map[string]*ManagedIndex // workspace -> index name -> index
}

// New creates a provider. Workspaces that have indexes in the store are
// known from the start; their indexes are reopened by Define.
func New(cfg Config) (*Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = codec.NewRegistry()
	}
	updater, err := NewUpdater(cfg.Store, cfg.Logger)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		name:       cfg.Name,
		store:      cfg.Store,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
		updater:    updater,
		defs:       map[string]indices.Definition{},
		workspaces: map[string]map[string]*ManagedIndex{},
	}

	names, err := cfg.Store.Names("")
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	for _, name := range names {
		if i := strings.IndexByte(name, '/'); i > 0 {
			p.workspaces[name[:i]] = map[string]*ManagedIndex{}
		}
	}
	p.logger.Debug("Provider created", zap.Strings("workspaces", maps.Keys(p.workspaces)),
		zap.Time("lastSuccessfulUpdate", updater.LastSuccessfulUpdate()))
	return p, nil
}

// Updater returns the updater tracking the checkpoint
func (p *Provider) Updater() *Updater {
	return p.updater
}

// LastSuccessfulUpdate returns the checkpoint of the last applied batch
func (p *Provider) LastSuccessfulUpdate() time.Time {
	return p.updater.LastSuccessfulUpdate()
}

// Define adds or replaces index definitions and opens their indexes in every
// known workspace. An index whose definition changed is destroyed and
// rebuilt empty.
func (p *Provider) Define(defs ...indices.Definition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, def := range defs {
		if def.Provider != "" && def.Provider != p.name {
			p.logger.Debug("Skipping definition of another provider", zap.Stringer("definition", def),
				zap.String("provider", def.Provider))
			continue
		}
		if _, err := def.Validate(); err != nil {
			return err
		}
		if old, ok := p.defs[def.Name]; ok {
			if reflect.DeepEqual(old, def) {
				continue
			}
			p.logger.Info("Index definition changed, rebuilding", zap.Stringer("definition", def))
			if err := p.drop(def.Name); err != nil {
				return err
			}
		}
		p.defs[def.Name] = def
		for ws, idxs := range p.workspaces {
			if !def.AppliesTo(ws) {
				continue
			}
			m, err := p.open(def, ws)
			if err != nil {
				return err
			}
			idxs[def.Name] = m
		}
	}
	return nil
}

// Undefine removes a definition and destroys its indexes
func (p *Provider) Undefine(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drop(name)
}

func (p *Provider) drop(name string) error {
	for _, idxs := range p.workspaces {
		m, ok := idxs[name]
		if !ok {
			continue
		}
		if err := m.Shutdown(true); err != nil {
			return fmt.Errorf("destroying index %s: %w", m.Name(), err)
		}
		delete(idxs, name)
		managedIndexes.Dec()
	}
	delete(p.defs, name)
	return nil
}

func (p *Provider) open(def indices.Definition, workspace string) (*ManagedIndex, error) {
	idx, err := localindex.New(localindex.Config{Store: p.store, Registry: p.registry, Logger: p.logger}, def, workspace)
	if err != nil {
		return nil, fmt.Errorf("opening index %s in workspace %s: %w", def.Name, workspace, err)
	}
	m, err := Manage(idx, p.logger)
	if err != nil {
		_ = idx.Shutdown(false)
		return nil, err
	}
	managedIndexes.Inc()
	p.logger.Info("Index opened", zap.String("index", idx.Name()), zap.Bool("requiresReindexing", idx.RequiresReindexing()))
	return m, nil
}

// Definitions returns the active definitions ordered by name
func (p *Provider) Definitions() []indices.Definition {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := maps.Keys(p.defs)
	slices.Sort(names)
	res := make([]indices.Definition, 0, len(names))
	for _, name := range names {
		res = append(res, p.defs[name])
	}
	return res
}

// Workspaces returns the known workspaces in ascending order
func (p *Provider) Workspaces() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	res := maps.Keys(p.workspaces)
	slices.Sort(res)
	return res
}

// Index returns a managed index of a workspace
func (p *Provider) Index(workspace, name string) (*ManagedIndex, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, ok := p.workspaces[workspace][name]
	return m, ok
}

// Indexes returns the managed indexes of a workspace ordered by name
func (p *Provider) Indexes(workspace string) []*ManagedIndex {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedIndexes(p.workspaces[workspace])
}

func sortedIndexes(idxs map[string]*ManagedIndex) []*ManagedIndex {
	names := maps.Keys(idxs)
	slices.Sort(names)
	res := make([]*ManagedIndex, 0, len(names))
	for _, name := range names {
		res = append(res, idxs[name])
	}
	return res
}

// RequiringReindexing returns the indexes of all workspaces that have to be
// filled from the content
func (p *Provider) RequiringReindexing() []*ManagedIndex {
	var res []*ManagedIndex
	for _, ws := range p.Workspaces() {
		for _, m := range p.Indexes(ws) {
			if m.RequiresReindexing() {
				res = append(res, m)
			}
		}
	}
	return res
}

func checkWorkspace(workspace string) error {
	if workspace == "" || strings.ContainsAny(workspace, "/\x00") {
		return fmt.Errorf("%w: invalid workspace name %q", indexerr.ErrValidation, workspace)
	}
	return nil
}

// AddWorkspace opens the indexes of a workspace that has seen no events yet
func (p *Provider) AddWorkspace(workspace string) error {
	_, err := p.indexesFor(workspace)
	return err
}

// indexesFor returns the indexes of a workspace, opening them when the
// workspace is seen for the first time
func (p *Provider) indexesFor(workspace string) ([]*ManagedIndex, error) {
	p.mu.RLock()
	idxs, ok := p.workspaces[workspace]
	res := sortedIndexes(idxs)
	p.mu.RUnlock()
	if ok {
		return res, nil
	}
	if err := checkWorkspace(workspace); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if idxs, ok := p.workspaces[workspace]; ok {
		return sortedIndexes(idxs), nil
	}
	idxs = map[string]*ManagedIndex{}
	for name, def := range p.defs {
		if !def.AppliesTo(workspace) {
			continue
		}
		m, err := p.open(def, workspace)
		if err != nil {
			return nil, err
		}
		idxs[name] = m
	}
	p.workspaces[workspace] = idxs
	p.logger.Info("Workspace added", zap.String("workspace", workspace), zap.Int("indexes", len(idxs)))
	return sortedIndexes(idxs), nil
}

// AddNode indexes a created node
func (p *Provider) AddNode(n *node.Node) error {
	idxs, err := p.indexesFor(n.Workspace)
	if err != nil {
		return err
	}
	for _, m := range idxs {
		if err := m.adapter.AddNode(n); err != nil {
			return fmt.Errorf("index %s: adding node %s: %w", m.Name(), n.Key, err)
		}
	}
	appliedEvents.WithLabelValues(string(node.NodeAdded)).Inc()
	return nil
}

// ModifyProperties re-indexes the changed properties of a node
func (p *Provider) ModifyProperties(workspace, nodeKey string, changes map[string]*node.Change, queryable bool) error {
	if !queryable {
		return nil
	}
	idxs, err := p.indexesFor(workspace)
	if err != nil {
		return err
	}
	for _, m := range idxs {
		if err := m.adapter.ModifyProperties(nodeKey, changes); err != nil {
			return fmt.Errorf("index %s: modifying node %s: %w", m.Name(), nodeKey, err)
		}
	}
	appliedEvents.WithLabelValues(string(node.PropertiesModified)).Inc()
	return nil
}

// RemoveNode removes a node from the indexes
func (p *Provider) RemoveNode(n *node.Node) error {
	idxs, err := p.indexesFor(n.Workspace)
	if err != nil {
		return err
	}
	for _, m := range idxs {
		if err := m.adapter.RemoveNode(n); err != nil {
			return fmt.Errorf("index %s: removing node %s: %w", m.Name(), n.Key, err)
		}
	}
	appliedEvents.WithLabelValues(string(node.NodeRemoved)).Inc()
	return nil
}

// Apply applies a batch of events in order and, if all of them succeed,
// moves the checkpoint to ts
func (p *Provider) Apply(events []node.Event, ts time.Time) error {
	for i, ev := range events {
		if err := p.apply(ev); err != nil {
			return fmt.Errorf("event %d of %d (%s): %w", i+1, len(events), ev.Kind, err)
		}
	}
	return p.updater.Completed(ts)
}

func (p *Provider) apply(ev node.Event) error {
	switch ev.Kind {
	case node.NodeAdded:
		if ev.Node == nil {
			return fmt.Errorf("%w: event without a node", indexerr.ErrValidation)
		}
		return p.AddNode(ev.Node)
	case node.PropertiesModified:
		return p.ModifyProperties(ev.Workspace, ev.Key, ev.Changes, ev.Queryable)
	case node.NodeRemoved:
		if ev.Node == nil {
			return fmt.Errorf("%w: event without a node", indexerr.ErrValidation)
		}
		return p.RemoveNode(ev.Node)
	default:
		return fmt.Errorf("%w: unknown event kind %q", indexerr.ErrValidation, ev.Kind)
	}
}

// Close shuts every index down, keeping its state, and commits the store.
// The store itself stays open.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, idxs := range p.workspaces {
		for name, m := range idxs {
			if err := m.Shutdown(false); err != nil {
				return fmt.Errorf("shutting down index %s: %w", m.Name(), err)
			}
			delete(idxs, name)
			managedIndexes.Dec()
		}
	}
	return p.store.Commit()
}
