package localindex

import (
	"fmt"

	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/query"
	"github.com/ridge/repoindex/value"
)

// Converter turns query operands into index key bounds.
//
// Bind variables are resolved from the variables passed to every call, never
// cached. A nil value (a NULL literal or a variable bound to nil) yields no
// bound.
type Converter struct {
	factory value.Factory
	encode  func(v any) (lo, hi []byte)
}

// ToLowerBound returns the lowest index key of the operand value
func (c Converter) ToLowerBound(op query.StaticOperand, variables map[string]any) ([]byte, bool, error) {
	lo, _, ok, err := c.bounds(op, variables)
	return lo, ok, err
}

// ToUpperBound returns the highest index key of the operand value
func (c Converter) ToUpperBound(op query.StaticOperand, variables map[string]any) ([]byte, bool, error) {
	_, hi, ok, err := c.bounds(op, variables)
	return hi, ok, err
}

// Value returns the operand value converted to the index type
func (c Converter) Value(op query.StaticOperand, variables map[string]any) (any, error) {
	var raw any
	switch o := op.(type) {
	case query.Literal:
		raw = o.Value
	case query.BindVariable:
		v, ok := variables[o.Name]
		if !ok {
			return nil, fmt.Errorf("%w: variable %q is not bound", indexerr.ErrConversion, o.Name)
		}
		raw = v
	default:
		return nil, fmt.Errorf("%w: %T", indexerr.ErrUnrecognizedOperand, op)
	}
	if raw == nil {
		return nil, nil
	}
	v, err := c.factory.Create(raw)
	if err != nil {
		return nil, fmt.Errorf("converting operand %v: %w", raw, err)
	}
	return v, nil
}

func (c Converter) bounds(op query.StaticOperand, variables map[string]any) (lo, hi []byte, ok bool, err error) {
	v, err := c.Value(op, variables)
	if err != nil || v == nil {
		return nil, nil, false, err
	}
	lo, hi = c.encode(v)
	return lo, hi, true, nil
}
