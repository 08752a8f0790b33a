// Package adapters keeps local indexes consistent with node lifecycle
// events.
//
// An Adapter is built once per index. Its strategy is selected from the index
// definition and decides which values of a node the index holds: the first
// value of a property, every value, the node types, or a value derived from
// the node path.
//
// Adapters are not idempotent: adding a node twice without removing it in
// between leaves duplicate or orphaned entries.
package adapters

import (
	"errors"
	"fmt"

	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/localindex"
	"github.com/ridge/repoindex/node"
	"github.com/ridge/repoindex/value"
	"go.uber.org/zap"
)

// Strategy is the way an adapter reads the indexed values of a node
type Strategy int

// Strategies
const (
	// SingleValued indexes the first value of a property
	SingleValued Strategy = iota
	// MultiValued indexes every value of a property
	MultiValued
	// UniqueValued indexes the first value of a property in a unique index
	UniqueValued
	// Enumerated indexes the values of a property in an enumerated index
	Enumerated
	// NodeTypes indexes the primary type and the mixin types
	NodeTypes
	// PseudoProperty indexes a value derived from the node path
	PseudoProperty
)

var strategyNames = map[Strategy]string{
	SingleValued:   "single-valued",
	MultiValued:    "multi-valued",
	UniqueValued:   "unique-valued",
	Enumerated:     "enumerated",
	NodeTypes:      "node-types",
	PseudoProperty: "pseudo-property",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// StrategyFor selects the strategy for an index definition
func StrategyFor(def indices.Definition) (Strategy, indices.Purpose, error) {
	purpose, err := def.Validate()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case def.Kind == indices.KindNodeType:
		return NodeTypes, purpose, nil
	case purpose.PathDerived():
		return PseudoProperty, purpose, nil
	case def.Kind == indices.KindUniqueValue:
		return UniqueValued, purpose, nil
	case def.Kind == indices.KindEnumeratedValue:
		return Enumerated, purpose, nil
	case def.Column().MultiValued || purpose == indices.PurposeMixinTypes:
		return MultiValued, purpose, nil
	default:
		return SingleValued, purpose, nil
	}
}

// Values writes the values of nodes to an index
type Values interface {
	// AddValues indexes the values of a property the strategy selects
	AddValues(nodeKey string, p *node.Property) error
	// AddValue indexes one raw value
	AddValue(nodeKey string, raw any) error
	// RemoveValue removes one raw value
	RemoveValue(nodeKey string, raw any) error
	// RemoveValues removes every value of a node
	RemoveValues(nodeKey string) error
}

type writer struct {
	index   localindex.Index
	factory value.Factory
	every   bool
	logger  *zap.Logger
}

// convert returns nil for values the index cannot hold
func (w writer) convert(nodeKey string, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := w.factory.Create(raw)
	if errors.Is(err, indexerr.ErrConversion) {
		w.logger.Warn("Skipping value of unexpected type", zap.String("node", nodeKey), zap.Any("value", raw),
			zap.Error(err))
		return nil, nil
	}
	return v, err
}

func (w writer) AddValue(nodeKey string, raw any) error {
	v, err := w.convert(nodeKey, raw)
	if err != nil || v == nil {
		return err
	}
	return w.index.Add(nodeKey, v)
}

func (w writer) AddValues(nodeKey string, p *node.Property) error {
	if p == nil || len(p.Values) == 0 {
		return nil
	}
	if !w.every {
		return w.AddValue(nodeKey, p.Values[0])
	}
	for _, raw := range p.Values {
		if err := w.AddValue(nodeKey, raw); err != nil {
			return err
		}
	}
	return nil
}

func (w writer) RemoveValue(nodeKey string, raw any) error {
	v, err := w.convert(nodeKey, raw)
	if err != nil || v == nil {
		return err
	}
	return w.index.RemoveValue(nodeKey, v)
}

func (w writer) RemoveValues(nodeKey string) error {
	return w.index.Remove(nodeKey)
}

// Adapter translates node lifecycle events into mutations of one index
type Adapter struct {
	strategy  Strategy
	purpose   indices.Purpose
	property  string
	rootValue any
	values    Values
}

// New creates the adapter of an index
func New(idx localindex.Index, logger *zap.Logger) (*Adapter, error) {
	def := idx.Definition()
	strategy, purpose, err := StrategyFor(def)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	every := strategy == MultiValued || strategy == NodeTypes ||
		strategy == Enumerated && def.Column().MultiValued
	return &Adapter{
		strategy:  strategy,
		purpose:   purpose,
		property:  def.Column().Property,
		rootValue: def.RootValue,
		values: writer{
			index:   idx,
			factory: idx.Factory(),
			every:   every,
			logger:  logger.With(zap.String("index", idx.Name()), zap.Stringer("strategy", strategy)),
		},
	}, nil
}

// Strategy returns the strategy of the adapter
func (a *Adapter) Strategy() Strategy {
	return a.strategy
}

// AddNode indexes a node as it was created. Non-queryable nodes are skipped.
func (a *Adapter) AddNode(n *node.Node) error {
	if !n.Queryable {
		return nil
	}
	return a.values.AddValues(n.Key, a.indexed(n))
}

// ModifyProperties re-indexes the properties present in the changes
func (a *Adapter) ModifyProperties(nodeKey string, changes map[string]*node.Change) error {
	switch a.strategy {
	case PseudoProperty:
		return nil
	case NodeTypes:
		if err := a.modifyPrimaryType(nodeKey, changes[node.PrimaryType]); err != nil {
			return err
		}
		return a.modifyMixinTypes(nodeKey, changes[node.MixinTypes])
	}

	ch := changes[a.property]
	if ch == nil {
		return nil
	}
	if err := a.values.RemoveValues(nodeKey); err != nil {
		return err
	}
	return a.values.AddValues(nodeKey, ch.New)
}

// RemoveNode removes every entry of a node. Non-queryable nodes are skipped.
func (a *Adapter) RemoveNode(n *node.Node) error {
	if !n.Queryable {
		return nil
	}
	return a.values.RemoveValues(n.Key)
}

func (a *Adapter) modifyPrimaryType(nodeKey string, ch *node.Change) error {
	if ch == nil {
		return nil
	}
	if err := a.values.RemoveValue(nodeKey, ch.Old.First()); err != nil {
		return err
	}
	return a.values.AddValue(nodeKey, ch.New.First())
}

// modifyMixinTypes adds and removes single mixins, leaving the rest of the
// set alone
func (a *Adapter) modifyMixinTypes(nodeKey string, ch *node.Change) error {
	if ch == nil {
		return nil
	}
	before, after := valueSet(ch.Old), valueSet(ch.New)
	for k, raw := range before {
		if _, ok := after[k]; !ok {
			if err := a.values.RemoveValue(nodeKey, raw); err != nil {
				return err
			}
		}
	}
	for k, raw := range after {
		if _, ok := before[k]; !ok {
			if err := a.values.AddValue(nodeKey, raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func valueSet(p *node.Property) map[string]any {
	res := map[string]any{}
	if p != nil {
		for _, raw := range p.Values {
			res[fmt.Sprint(raw)] = raw
		}
	}
	return res
}

// indexed returns the indexed property of a node as it was created
func (a *Adapter) indexed(n *node.Node) *node.Property {
	switch a.purpose {
	case indices.PurposePrimaryType:
		return types(n.PrimaryType, nil)
	case indices.PurposeMixinTypes:
		return types("", n.MixinTypes)
	case indices.PurposeNodeTypes:
		return types(n.PrimaryType, n.MixinTypes)
	case indices.PurposePath, indices.PurposeDepth, indices.PurposeName, indices.PurposeLocalName:
		v := a.derived(n.Path)
		if v == nil {
			return nil
		}
		return &node.Property{Name: a.property, Values: []any{v}}
	default:
		return n.Properties[a.property]
	}
}

func types(primary string, mixins []string) *node.Property {
	p := &node.Property{Name: node.PrimaryType}
	if primary != "" {
		p.Values = append(p.Values, primary)
	}
	for _, m := range mixins {
		p.Values = append(p.Values, m)
	}
	return p
}

// derived computes a path-derived value. The root takes the root value when
// one is configured; otherwise it has no name.
func (a *Adapter) derived(path string) any {
	if node.IsRoot(path) {
		if a.rootValue != nil {
			return a.rootValue
		}
		if a.purpose == indices.PurposeName || a.purpose == indices.PurposeLocalName {
			return nil
		}
	}
	switch a.purpose {
	case indices.PurposePath:
		if node.IsRoot(path) {
			return "/"
		}
		return path
	case indices.PurposeDepth:
		return node.Depth(path)
	case indices.PurposeName:
		return node.Name(path)
	default:
		return node.LocalName(path)
	}
}
