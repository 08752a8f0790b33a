package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNegate(t *testing.T) {
	for _, op := range []Operator{EqualTo, NotEqualTo, LessThan, LessThanOrEqualTo, GreaterThan, GreaterThanOrEqualTo} {
		require.NotEqual(t, op, op.Negate())
		require.Equal(t, op, op.Negate().Negate())
	}
	require.Equal(t, LessThanOrEqualTo, GreaterThan.Negate())
	require.Equal(t, Like, Like.Negate())
}

func TestString(t *testing.T) {
	c := Not{Constraint: Or{
		Left:  Comparison{Operator: GreaterThan, Operand: Literal{Value: int64(7)}},
		Right: Between{Lower: BindVariable{Name: "lo"}, Upper: Literal{Value: "z"}, LowerInclusive: true},
	}}
	require.Equal(t, `NOT (value > 7 OR value BETWEEN [$lo, "z"))`, c.String())
	require.Equal(t, `value NOT IN (1, $x)`,
		SetCriteria{Values: []StaticOperand{Literal{Value: 1}, BindVariable{Name: "x"}}, Negated: true}.String())
	require.Equal(t, "Operator(42)", Operator(42).String())
}
