package localindex

import (
	"fmt"
	"sync/atomic"

	"github.com/ridge/repoindex/codec"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/value"
	"go.uber.org/zap"
)

// Collection name suffixes, appended to "<workspace>/<index>"
const (
	inverseSuffix = ".inverse"
	optionsSuffix = ".options"
	valuesSuffix  = ".values"
	membersInfix  = ".v."
)

type base struct {
	def     indices.Definition
	name    string
	store   *kv.Store
	factory value.Factory
	keys    codec.KeySerializer
	values  codec.Serializer
	logger  *zap.Logger
	shut    atomic.Bool
}

func newBase(cfg Config, def indices.Definition, workspace string) (*base, error) {
	col := def.Column()
	factory, err := value.FactoryFor(col.Type)
	if err != nil {
		return nil, err
	}
	keys, err := cfg.Registry.KeySerializerFor(col.Type, nil)
	if err != nil {
		return nil, err
	}
	values, err := cfg.Registry.SerializerFor(col.Type)
	if err != nil {
		return nil, err
	}
	name := workspace + "/" + def.Name
	return &base{
		def:     def,
		name:    name,
		store:   cfg.Store,
		factory: factory,
		keys:    keys,
		values:  values,
		logger:  cfg.Logger.With(zap.String("index", name)),
	}, nil
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Definition() indices.Definition {
	return b.def
}

func (b *base) Factory() value.Factory {
	return b.factory
}

// canonical converts a value given to Add or RemoveValue into the
// representation the key serializer expects
func (b *base) canonical(v any) (any, error) {
	c, err := b.factory.Create(v)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", b.name, err)
	}
	return c, nil
}

func (b *base) collection(suffix string) *kv.Map {
	return b.store.Map(b.name + suffix)
}

func (b *base) check() error {
	if b.shut.Load() {
		return fmt.Errorf("%s: %w", b.name, ErrShutdown)
	}
	return nil
}

func (b *base) counted(operation string) {
	indexOperations.WithLabelValues(b.name, operation).Inc()
}

func (b *base) filter(sp space, c Constraints) (*Results, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	p, err := compile(b.name, sp.converter(), c, b.logger)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", b.name, err)
	}
	cur, err := p.open(sp)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", b.name, err)
	}
	return newResults(b.name, cur), nil
}

func (b *base) estimateCardinality(sp space, c Constraints) (int64, error) {
	r, err := b.filter(sp, c)
	if err != nil {
		return 0, err
	}
	n, err := r.count()
	if err != nil {
		r.Close()
		return 0, err
	}
	return n, nil
}

func (b *base) drop(maps ...*kv.Map) error {
	for _, m := range maps {
		if err := b.store.Drop(m.Name()); err != nil {
			return err
		}
	}
	return nil
}

// opened reports whether a collection existed and registers it if it did not
func (b *base) opened(m *kv.Map) (bool, error) {
	exists, err := b.store.Exists(m.Name())
	if err != nil {
		return false, err
	}
	if !exists {
		if err := m.Create(); err != nil {
			return false, err
		}
	}
	return exists, nil
}
