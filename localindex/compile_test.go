package localindex

import (
	"testing"

	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/query"
	"github.com/ridge/repoindex/value"
	"github.com/stretchr/testify/require"
)

func TestComparisons(t *testing.T) {
	idx := longIndex(t)
	cases := []struct {
		c    query.Constraint
		want []string
	}{
		{cmp(query.EqualTo, int64(7)), nodes(7)},
		{cmp(query.EqualTo, int64(8)), nil},
		{cmp(query.NotEqualTo, int64(7)), nodes(3, 5, 10, 12)},
		{cmp(query.LessThan, int64(7)), nodes(3, 5)},
		{cmp(query.LessThanOrEqualTo, int64(7)), nodes(3, 5, 7)},
		{cmp(query.GreaterThan, int64(7)), nodes(10, 12)},
		{cmp(query.GreaterThanOrEqualTo, int64(7)), nodes(7, 10, 12)},
		{cmp(query.GreaterThan, int64(12)), nil},
		{cmp(query.LessThan, int64(3)), nil},
		{cmp(query.Like, "1%"), nodes(3, 5, 7, 10, 12)},
		// operands are converted to the index type
		{cmp(query.EqualTo, "10"), nodes(10)},
		{cmp(query.GreaterThan, 9.0), nodes(10, 12)},
	}
	for _, c := range cases {
		require.Equal(t, sorted(c.want), filter(t, idx, c.c), c.c.String())
	}
}

func TestRangeScan(t *testing.T) {
	idx := longIndex(t)
	between := func(lo, hi int64, loIncl, hiIncl bool) query.Between {
		return query.Between{Lower: lit(lo), Upper: lit(hi), LowerInclusive: loIncl, UpperInclusive: hiIncl}
	}
	require.Equal(t, sorted(nodes(5, 7, 10)), filter(t, idx, between(5, 10, true, true)))
	require.Equal(t, sorted(nodes(7, 10)), filter(t, idx, between(5, 10, false, true)))
	require.Equal(t, sorted(nodes(5, 7)), filter(t, idx, between(5, 10, true, false)))
	require.Equal(t, sorted(nodes(7)), filter(t, idx, between(5, 10, false, false)))
	require.Empty(t, filter(t, idx, between(10, 5, true, true)))
	require.Empty(t, filter(t, idx, between(7, 7, false, true)))

	require.Equal(t, sorted(nodes(3, 12)), filter(t, idx, query.Not{Constraint: between(5, 10, true, true)}))
	require.Equal(t, sorted(nodes(3, 5, 10, 12)), filter(t, idx, query.Not{Constraint: between(5, 10, false, false)}))

	// range scans return entries in value order
	require.Equal(t, nodes(5, 7, 10), filterOrdered(t, idx, Where(between(4, 11, true, true))))
}

func TestNegatedEmptyRange(t *testing.T) {
	for _, kind := range []indices.Kind{indices.KindValue, indices.KindUniqueValue} {
		t.Run(string(kind), func(t *testing.T) {
			idx := newIndex(t, kind, value.Long)
			for _, v := range []int64{3, 5, 7, 10, 12} {
				require.NoError(t, idx.Add(nodeOf(v), v))
			}
			not := func(lo, hi int64, loIncl, hiIncl bool) Constraints {
				return Where(query.Not{Constraint: query.Between{
					Lower: lit(lo), Upper: lit(hi), LowerInclusive: loIncl, UpperInclusive: hiIncl,
				}})
			}
			// every entry exactly once, in value order
			all := nodes(3, 5, 7, 10, 12)
			require.Equal(t, all, filterOrdered(t, idx, not(10, 5, true, true)))
			require.Equal(t, all, filterOrdered(t, idx, not(7, 7, false, true)))
			require.Equal(t, all, filterOrdered(t, idx, not(7, 7, true, false)))
			require.Equal(t, nodes(3, 5, 10, 12), filterOrdered(t, idx, not(7, 7, true, true)))
		})
	}
}

func TestNegatedComparison(t *testing.T) {
	idx := longIndex(t)
	require.Equal(t, sorted(nodes(3, 5, 7)), filter(t, idx, query.Not{Constraint: cmp(query.GreaterThan, int64(7))}))
	require.Equal(t, sorted(nodes(3, 5)), filter(t, idx, query.Not{Constraint: cmp(query.GreaterThanOrEqualTo, int64(7))}))
	require.Equal(t, sorted(nodes(7, 10, 12)), filter(t, idx, query.Not{Constraint: cmp(query.LessThan, int64(7))}))
	require.Equal(t, sorted(nodes(3, 5, 10, 12)), filter(t, idx, query.Not{Constraint: cmp(query.EqualTo, int64(7))}))
	require.Equal(t, sorted(nodes(7)), filter(t, idx, query.Not{Constraint: cmp(query.NotEqualTo, int64(7))}))
	require.Equal(t, sorted(nodes(7, 10, 12)),
		filter(t, idx, query.Not{Constraint: query.Not{Constraint: cmp(query.GreaterThanOrEqualTo, int64(7))}}))
}

func TestSetCriteria(t *testing.T) {
	idx := longIndex(t)
	set := func(negated bool, vs ...any) query.SetCriteria {
		c := query.SetCriteria{Negated: negated}
		for _, v := range vs {
			c.Values = append(c.Values, lit(v))
		}
		return c
	}
	require.Equal(t, sorted(nodes(5, 10)), filter(t, idx, set(false, int64(5), int64(10))))
	require.Equal(t, sorted(nodes(5)), filter(t, idx, set(false, int64(5), int64(5), int64(6))))
	require.Equal(t, sorted(nodes(3, 7, 12)), filter(t, idx, set(true, int64(5), int64(10))))
	require.Equal(t, sorted(nodes(5, 10)), filter(t, idx, query.Not{Constraint: set(true, int64(5), int64(10))}))
	require.Equal(t, sorted(nodes(3, 7, 12)), filter(t, idx, query.Not{Constraint: set(false, int64(5), int64(10))}))
	require.Empty(t, filter(t, idx, set(false)))
	require.Empty(t, filter(t, idx, set(false, nil)))
	require.Len(t, filter(t, idx, set(true)), 5)

	// NOT IN within a range
	require.Equal(t, sorted(nodes(7)), filter(t, idx, set(true, int64(5), int64(10)), cmp(query.GreaterThan, int64(3)),
		cmp(query.LessThan, int64(12))))
}

func TestAndOr(t *testing.T) {
	idx := longIndex(t)
	gt5 := cmp(query.GreaterThan, int64(5))
	lt12 := cmp(query.LessThan, int64(12))
	eq3 := cmp(query.EqualTo, int64(3))
	eq7 := cmp(query.EqualTo, int64(7))

	require.Equal(t, sorted(nodes(7, 10)), filter(t, idx, query.And{Left: gt5, Right: lt12}))
	require.Equal(t, sorted(nodes(7, 10)), filter(t, idx, gt5, lt12))
	require.Equal(t, sorted(nodes(3, 7)), filter(t, idx, query.Or{Left: eq3, Right: eq7}))
	require.Empty(t, filter(t, idx, query.And{Left: eq3, Right: eq7}))

	// OR is not deduplicated
	require.Equal(t, sorted(nodes(7, 10, 10, 12, 12)), filter(t, idx, query.Or{Left: gt5, Right: cmp(query.GreaterThan, int64(7))}))
	// the left side is exhausted first
	require.Equal(t, nodes(10, 3), filterOrdered(t, idx, Where(query.Or{Left: cmp(query.EqualTo, int64(10)), Right: eq3})))

	// De Morgan
	require.Equal(t, sorted(nodes(3, 5, 12)), filter(t, idx, query.Not{Constraint: query.And{Left: gt5, Right: lt12}}))
	require.Equal(t, sorted(nodes(5, 10, 12)), filter(t, idx, query.Not{Constraint: query.Or{Left: eq3, Right: eq7}}))

	// a union narrowed by a range
	require.Equal(t, sorted(nodes(5, 10)), filter(t, idx,
		cmp(query.NotEqualTo, int64(7)), query.Between{Lower: lit(int64(4)), Upper: lit(int64(11)), LowerInclusive: true}))
	// a union narrowed by a union
	require.Equal(t, sorted(nodes(3, 12)), filter(t, idx, cmp(query.NotEqualTo, int64(7)), cmp(query.NotEqualTo, int64(5)),
		query.Not{Constraint: query.Between{Lower: lit(int64(5)), Upper: lit(int64(10)), LowerInclusive: true, UpperInclusive: true}}))
}

func TestFailOpen(t *testing.T) {
	idx := longIndex(t)
	all := sorted(nodes(3, 5, 7, 10, 12))

	require.Equal(t, all, filter(t, idx, query.PropertyExistence{Property: "prop"}))
	require.Empty(t, filter(t, idx, query.Not{Constraint: query.PropertyExistence{Property: "prop"}}))
	require.Equal(t, all, filter(t, idx, query.FullTextSearch{Property: "prop", Expression: "x"}))
	require.Equal(t, all, filter(t, idx, query.Not{Constraint: query.FullTextSearch{Property: "prop", Expression: "x"}}))
	require.Equal(t, all, filter(t, idx, query.Not{Constraint: cmp(query.Like, "%")}))
	require.Equal(t, sorted(nodes(10, 12)), filter(t, idx, cmp(query.Like, "%"), cmp(query.GreaterThan, int64(7))))
	require.Equal(t, all, filter(t, idx, cmp(query.EqualTo, nil)))
	require.Equal(t, all, filter(t, idx))
}

func TestBindVariables(t *testing.T) {
	idx := longIndex(t)
	c := Constraints{
		Constraints: []query.Constraint{query.Comparison{Operator: query.GreaterThan, Operand: query.BindVariable{Name: "min"}}},
		Variables:   map[string]any{"min": int64(7)},
	}
	require.Equal(t, sorted(nodes(10, 12)), sorted(filterOrdered(t, idx, c)))

	// bindings are resolved at every execution
	c.Variables = map[string]any{"min": int64(10)}
	require.Equal(t, nodes(12), filterOrdered(t, idx, c))

	c.Variables = nil
	_, err := idx.Filter(c)
	require.ErrorIs(t, err, indexerr.ErrConversion)
	_, err = idx.EstimateCardinality(c)
	require.ErrorIs(t, err, indexerr.ErrConversion)

	c.Variables = map[string]any{"min": "not a number"}
	_, err = idx.Filter(c)
	require.ErrorIs(t, err, indexerr.ErrConversion)

	_, err = idx.Filter(Where(query.Comparison{Operator: query.EqualTo, Operand: query.Subquery{Query: "SELECT 1"}}))
	require.ErrorIs(t, err, indexerr.ErrUnrecognizedOperand)
}

func TestConverter(t *testing.T) {
	idx := longIndex(t).(*duplicateIndex)
	conv := idx.converter()

	lo, ok, err := conv.ToLowerBound(lit(int64(7)), nil)
	require.NoError(t, err)
	require.True(t, ok)
	hi, ok, err := conv.ToUpperBound(query.BindVariable{Name: "v"}, map[string]any{"v": int64(7)})
	require.NoError(t, err)
	require.True(t, ok)
	require.Less(t, string(lo), string(hi))

	_, ok, err = conv.ToLowerBound(lit(nil), nil)
	require.NoError(t, err)
	require.False(t, ok)
	_, _, err = conv.ToUpperBound(query.BindVariable{Name: "v"}, nil)
	require.ErrorIs(t, err, indexerr.ErrConversion)
	_, _, err = conv.ToLowerBound(query.Subquery{}, nil)
	require.ErrorIs(t, err, indexerr.ErrUnrecognizedOperand)
}
