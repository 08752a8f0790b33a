package localindex

import (
	"fmt"

	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/query"
	"go.uber.org/zap"
)

// compiler lowers constraint trees into plans.
//
// Negation is pushed down to the leaves: a flag threaded through the descent
// flips comparison operators and set criteria, and swaps AND with OR.
// Constraints the compiler does not understand do not narrow the plan.
type compiler struct {
	index     string
	conv      Converter
	variables map[string]any
	logger    *zap.Logger
}

func compile(index string, conv Converter, c Constraints, logger *zap.Logger) (plan, error) {
	comp := compiler{index: index, conv: conv, variables: c.Variables, logger: logger}
	var p plan = rangePlan{r: kv.All}
	for _, con := range c.Constraints {
		var err error
		if p, err = comp.apply(p, con, false); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (c compiler) apply(p plan, con query.Constraint, negated bool) (plan, error) {
	switch con := con.(type) {
	case query.Comparison:
		return c.comparison(p, con, negated)
	case query.Between:
		return c.between(p, con, negated)
	case query.SetCriteria:
		return c.setCriteria(p, con, negated)
	case query.And:
		if negated {
			return c.either(p, con.Left, con.Right, true)
		}
		return c.both(p, con.Left, con.Right, false)
	case query.Or:
		if negated {
			return c.both(p, con.Left, con.Right, true)
		}
		return c.either(p, con.Left, con.Right, false)
	case query.Not:
		return c.apply(p, con.Constraint, !negated)
	case query.PropertyExistence:
		// every entry has the property
		if negated {
			return nonePlan{}, nil
		}
		return p, nil
	default:
		failOpenConstraints.WithLabelValues(c.index, fmt.Sprintf("%T", con)).Inc()
		c.logger.Warn("Constraint not supported by index, ignoring", zap.Stringer("constraint", con))
		return p, nil
	}
}

func (c compiler) both(p plan, left, right query.Constraint, negated bool) (plan, error) {
	p, err := c.apply(p, left, negated)
	if err != nil {
		return nil, err
	}
	return c.apply(p, right, negated)
}

func (c compiler) either(p plan, left, right query.Constraint, negated bool) (plan, error) {
	l, err := c.apply(p, left, negated)
	if err != nil {
		return nil, err
	}
	r, err := c.apply(p, right, negated)
	if err != nil {
		return nil, err
	}
	return union(l, r), nil
}

func (c compiler) comparison(p plan, con query.Comparison, negated bool) (plan, error) {
	op := con.Operator
	if negated {
		op = op.Negate()
	}
	if op == query.Like {
		c.logger.Debug("LIKE is not supported by index, ignoring", zap.Stringer("constraint", con))
		return p, nil
	}
	lo, hi, ok, err := c.conv.bounds(con.Operand, c.variables)
	if err != nil {
		return nil, err
	}
	if !ok {
		return p, nil
	}
	switch op {
	case query.EqualTo:
		return p.restrict(kv.Exact(lo, hi)), nil
	case query.NotEqualTo:
		return union(p.restrict(kv.To(lo, false)), p.restrict(kv.From(hi, false))), nil
	case query.LessThan:
		return p.restrict(kv.To(lo, false)), nil
	case query.LessThanOrEqualTo:
		return p.restrict(kv.To(hi, true)), nil
	case query.GreaterThan:
		return p.restrict(kv.From(hi, false)), nil
	case query.GreaterThanOrEqualTo:
		return p.restrict(kv.From(lo, true)), nil
	default:
		failOpenConstraints.WithLabelValues(c.index, op.String()).Inc()
		c.logger.Warn("Operator not supported by index, ignoring", zap.Stringer("constraint", con))
		return p, nil
	}
}

func (c compiler) between(p plan, con query.Between, negated bool) (plan, error) {
	lowerLo, lowerHi, lowerOK, err := c.conv.bounds(con.Lower, c.variables)
	if err != nil {
		return nil, err
	}
	upperLo, upperHi, upperOK, err := c.conv.bounds(con.Upper, c.variables)
	if err != nil {
		return nil, err
	}
	if !lowerOK && !upperOK {
		return p, nil
	}

	r := kv.All
	if lowerOK {
		if con.LowerInclusive {
			r = r.Intersect(kv.From(lowerLo, true))
		} else {
			r = r.Intersect(kv.From(lowerHi, false))
		}
	}
	if upperOK {
		if con.UpperInclusive {
			r = r.Intersect(kv.To(upperHi, true))
		} else {
			r = r.Intersect(kv.To(upperLo, false))
		}
	}
	if !negated {
		return p.restrict(r), nil
	}
	// the complement of an empty range is everything; head and tail would
	// overlap
	if r.Empty() {
		return p, nil
	}

	var head, tail plan = nonePlan{}, nonePlan{}
	if lowerOK {
		if con.LowerInclusive {
			head = p.restrict(kv.To(lowerLo, false))
		} else {
			head = p.restrict(kv.To(lowerHi, true))
		}
	}
	if upperOK {
		if con.UpperInclusive {
			tail = p.restrict(kv.From(upperHi, false))
		} else {
			tail = p.restrict(kv.From(upperLo, true))
		}
	}
	return union(head, tail), nil
}

func (c compiler) setCriteria(p plan, con query.SetCriteria, negated bool) (plan, error) {
	exact := make([]kv.Range, 0, len(con.Values))
	for _, v := range con.Values {
		lo, hi, ok, err := c.conv.bounds(v, c.variables)
		if err != nil {
			return nil, err
		}
		if ok {
			exact = append(exact, kv.Exact(lo, hi))
		}
	}

	if con.Negated == negated {
		parts := make([]plan, 0, len(exact))
		for _, r := range exact {
			parts = append(parts, p.restrict(r))
		}
		return in(parts), nil
	}

	if len(exact) == 0 {
		return p, nil
	}
	parts := make([]plan, 0, len(exact))
	for _, r := range exact {
		parts = append(parts, rangePlan{r: r})
	}
	return notInPlan{base: p, excluded: in(parts)}, nil
}
