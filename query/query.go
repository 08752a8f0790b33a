// Package query is the constraint model handed to indexes: boolean trees of
// predicates over the single indexed column, with literal or bound-variable
// operands.
package query

import "fmt"

// Operator is a comparison operator
type Operator int

// Operators
const (
	EqualTo Operator = iota
	NotEqualTo
	LessThan
	LessThanOrEqualTo
	GreaterThan
	GreaterThanOrEqualTo
	Like
)

var operatorNames = map[Operator]string{
	EqualTo:              "=",
	NotEqualTo:           "<>",
	LessThan:             "<",
	LessThanOrEqualTo:    "<=",
	GreaterThan:          ">",
	GreaterThanOrEqualTo: ">=",
	Like:                 "LIKE",
}

func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// Negate returns the operator matching exactly the values op does not match.
// LIKE has no such operator and is returned unchanged.
func (op Operator) Negate() Operator {
	switch op {
	case EqualTo:
		return NotEqualTo
	case NotEqualTo:
		return EqualTo
	case LessThan:
		return GreaterThanOrEqualTo
	case LessThanOrEqualTo:
		return GreaterThan
	case GreaterThan:
		return LessThanOrEqualTo
	case GreaterThanOrEqualTo:
		return LessThan
	default:
		return op
	}
}

// StaticOperand is a value known before the query runs
type StaticOperand interface {
	staticOperand()
}

// Subquery is an operand whose values are produced by another query
type Subquery struct {
	Query string
}

// Literal is a constant operand
type Literal struct {
	Value any
}

// BindVariable is an operand resolved from the query variables at each
// execution
type BindVariable struct {
	Name string
}

func (Literal) staticOperand()      {}
func (BindVariable) staticOperand() {}
func (Subquery) staticOperand()     {}

// Constraint is a node of a constraint tree
type Constraint interface {
	fmt.Stringer
	constraint()
}

// Comparison compares the indexed value with an operand
type Comparison struct {
	Operator Operator
	Operand  StaticOperand
}

// Between matches values between two operands
type Between struct {
	Lower          StaticOperand
	Upper          StaticOperand
	LowerInclusive bool
	UpperInclusive bool
}

// SetCriteria matches values equal to any of the operands, or to none of
// them when Negated
type SetCriteria struct {
	Values  []StaticOperand
	Negated bool
}

// And matches when both sides match
type And struct {
	Left, Right Constraint
}

// Or matches when either side matches
type Or struct {
	Left, Right Constraint
}

// Not matches when the inner constraint does not
type Not struct {
	Constraint Constraint
}

// PropertyExistence matches nodes having the property
type PropertyExistence struct {
	Property string
}

// FullTextSearch matches nodes whose text matches a full-text expression
type FullTextSearch struct {
	Property   string
	Expression string
}

func (Comparison) constraint()        {}
func (Between) constraint()           {}
func (SetCriteria) constraint()       {}
func (And) constraint()               {}
func (Or) constraint()                {}
func (Not) constraint()               {}
func (PropertyExistence) constraint() {}
func (FullTextSearch) constraint()    {}

func operandString(o StaticOperand) string {
	switch o := o.(type) {
	case Literal:
		return fmt.Sprintf("%#v", o.Value)
	case BindVariable:
		return "$" + o.Name
	case Subquery:
		return "(" + o.Query + ")"
	default:
		return fmt.Sprintf("%v", o)
	}
}

func (c Comparison) String() string {
	return fmt.Sprintf("value %s %s", c.Operator, operandString(c.Operand))
}

func (c Between) String() string {
	lo, hi := "(", ")"
	if c.LowerInclusive {
		lo = "["
	}
	if c.UpperInclusive {
		hi = "]"
	}
	return fmt.Sprintf("value BETWEEN %s%s, %s%s", lo, operandString(c.Lower), operandString(c.Upper), hi)
}

func (c SetCriteria) String() string {
	s := "value "
	if c.Negated {
		s += "NOT "
	}
	s += "IN ("
	for i, v := range c.Values {
		if i > 0 {
			s += ", "
		}
		s += operandString(v)
	}
	return s + ")"
}

func (c And) String() string {
	return fmt.Sprintf("(%s AND %s)", c.Left, c.Right)
}

func (c Or) String() string {
	return fmt.Sprintf("(%s OR %s)", c.Left, c.Right)
}

func (c Not) String() string {
	return fmt.Sprintf("NOT %s", c.Constraint)
}

func (c PropertyExistence) String() string {
	return fmt.Sprintf("%s IS NOT NULL", c.Property)
}

func (c FullTextSearch) String() string {
	return fmt.Sprintf("CONTAINS(%s, %q)", c.Property, c.Expression)
}
