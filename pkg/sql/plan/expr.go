// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
)

// ExprType identifies the kind of a bound expression. Comparison,
// conjunction and operator expressions share a Go type and are told apart by
// their ExprType.
type ExprType uint8

const (
	unknownExprType ExprType = iota

	BoundRef
	BoundCast
	BoundFunction
	BoundAggregate
	ValueConstant
	ValueParameter

	CompareEqual
	CompareNotEqual
	CompareLessThan
	CompareGreaterThan
	CompareLessThanOrEqualTo
	CompareGreaterThanOrEqualTo
	CompareDistinctFrom
	CompareNotDistinctFrom
	CompareBetween
	CompareIn
	CompareNotIn

	ConjunctionAnd
	ConjunctionOr

	CaseExpr

	OperatorIsNull
	OperatorIsNotNull
	OperatorNot

	// This should be last.
	numExprTypes
)

var exprTypeNames = [numExprTypes]string{
	unknownExprType:             "INVALID",
	BoundRef:                    "BOUND_REF",
	BoundCast:                   "OPERATOR_CAST",
	BoundFunction:               "BOUND_FUNCTION",
	BoundAggregate:              "BOUND_AGGREGATE",
	ValueConstant:               "VALUE_CONSTANT",
	ValueParameter:              "VALUE_PARAMETER",
	CompareEqual:                "COMPARE_EQUAL",
	CompareNotEqual:             "COMPARE_NOTEQUAL",
	CompareLessThan:             "COMPARE_LESSTHAN",
	CompareGreaterThan:          "COMPARE_GREATERTHAN",
	CompareLessThanOrEqualTo:    "COMPARE_LESSTHANOREQUALTO",
	CompareGreaterThanOrEqualTo: "COMPARE_GREATERTHANOREQUALTO",
	CompareDistinctFrom:         "COMPARE_DISTINCT_FROM",
	CompareNotDistinctFrom:      "COMPARE_NOT_DISTINCT_FROM",
	CompareBetween:              "COMPARE_BETWEEN",
	CompareIn:                   "COMPARE_IN",
	CompareNotIn:                "COMPARE_NOT_IN",
	ConjunctionAnd:              "CONJUNCTION_AND",
	ConjunctionOr:               "CONJUNCTION_OR",
	CaseExpr:                    "CASE_EXPR",
	OperatorIsNull:              "OPERATOR_IS_NULL",
	OperatorIsNotNull:           "OPERATOR_IS_NOT_NULL",
	OperatorNot:                 "OPERATOR_NOT",
}

func (t ExprType) String() string {
	if t >= numExprTypes {
		return fmt.Sprintf("ExprType(%d)", t)
	}
	return exprTypeNames[t]
}

// SafeValue implements the redact.SafeValue interface.
func (ExprType) SafeValue() {}

var _ redact.SafeValue = ExprType(0)

var comparisonSymbols = map[ExprType]string{
	CompareEqual:                "=",
	CompareNotEqual:             "!=",
	CompareLessThan:             "<",
	CompareGreaterThan:          ">",
	CompareLessThanOrEqualTo:    "<=",
	CompareGreaterThanOrEqualTo: ">=",
	CompareDistinctFrom:         "IS DISTINCT FROM",
	CompareNotDistinctFrom:      "IS NOT DISTINCT FROM",
}

// ComparisonSymbol returns the SQL spelling of a binary comparison.
func ComparisonSymbol(t ExprType) (string, bool) {
	s, ok := comparisonSymbols[t]
	return s, ok
}

// Expr is a bound, typed scalar expression.
type Expr interface {
	// ExprType returns the kind of the expression.
	ExprType() ExprType
	// ResultType returns the type the expression evaluates to.
	ResultType() *types.T
	// Name returns the display name of the expression: its alias if it has
	// one, otherwise its SQL rendering.
	Name() string
	fmt.Stringer
}

// ColumnRef references a column of the current row by position.
type ColumnRef struct {
	Index int
	Typ   *types.T
	Alias string
}

// Cast converts its input to Typ.
type Cast struct {
	Input Expr
	Typ   *types.T
	Alias string
}

// FunctionCall calls a scalar function.
type FunctionCall struct {
	Func  string
	Args  []Expr
	Typ   *types.T
	Alias string
}

// AggregateCall calls an aggregate function.
type AggregateCall struct {
	Func     string
	Args     []Expr
	Typ      *types.T
	Distinct bool
	Alias    string
}

// Constant is a literal value.
type Constant struct {
	Value Value
	Alias string
}

// Parameter is a prepared-statement placeholder.
type Parameter struct {
	Index int
	Typ   *types.T
	Alias string
}

// Comparison compares two expressions. Op is one of the Compare* types.
type Comparison struct {
	Op          ExprType
	Left, Right Expr
	Alias       string
}

// Conjunction is an AND or OR over two or more expressions.
type Conjunction struct {
	Op       ExprType
	Children []Expr
	Alias    string
}

// Between is Input BETWEEN Lower AND Upper.
type Between struct {
	Input, Lower, Upper Expr
	Alias               string
}

// CaseCheck is one WHEN ... THEN ... arm of a CASE.
type CaseCheck struct {
	When, Then Expr
}

// Case is a searched CASE expression.
type Case struct {
	Checks []CaseCheck
	Else   Expr
	Typ    *types.T
	Alias  string
}

// OperatorExpr is IN, NOT IN, IS NULL, IS NOT NULL or NOT. For IN and NOT
// IN the first child is the probe and the rest are the options.
type OperatorExpr struct {
	Op       ExprType
	Children []Expr
	Typ      *types.T
	Alias    string
}

func (*ColumnRef) ExprType() ExprType     { return BoundRef }
func (*Cast) ExprType() ExprType          { return BoundCast }
func (*FunctionCall) ExprType() ExprType  { return BoundFunction }
func (*AggregateCall) ExprType() ExprType { return BoundAggregate }
func (*Constant) ExprType() ExprType      { return ValueConstant }
func (*Parameter) ExprType() ExprType     { return ValueParameter }
func (e *Comparison) ExprType() ExprType  { return e.Op }
func (e *Conjunction) ExprType() ExprType { return e.Op }
func (*Between) ExprType() ExprType       { return CompareBetween }
func (*Case) ExprType() ExprType          { return CaseExpr }
func (e *OperatorExpr) ExprType() ExprType {
	return e.Op
}

func (e *ColumnRef) ResultType() *types.T     { return e.Typ }
func (e *Cast) ResultType() *types.T          { return e.Typ }
func (e *FunctionCall) ResultType() *types.T  { return e.Typ }
func (e *AggregateCall) ResultType() *types.T { return e.Typ }
func (e *Constant) ResultType() *types.T      { return e.Value.Type() }
func (e *Parameter) ResultType() *types.T     { return e.Typ }
func (*Comparison) ResultType() *types.T      { return types.Bool }
func (*Conjunction) ResultType() *types.T     { return types.Bool }
func (*Between) ResultType() *types.T         { return types.Bool }
func (e *Case) ResultType() *types.T          { return e.Typ }
func (e *OperatorExpr) ResultType() *types.T {
	if e.Typ == nil {
		return types.Bool
	}
	return e.Typ
}

func (e *ColumnRef) Name() string     { return nameOf(e.Alias, e) }
func (e *Cast) Name() string          { return nameOf(e.Alias, e) }
func (e *FunctionCall) Name() string  { return nameOf(e.Alias, e) }
func (e *AggregateCall) Name() string { return nameOf(e.Alias, e) }
func (e *Constant) Name() string      { return nameOf(e.Alias, e) }
func (e *Parameter) Name() string     { return nameOf(e.Alias, e) }
func (e *Comparison) Name() string    { return nameOf(e.Alias, e) }
func (e *Conjunction) Name() string   { return nameOf(e.Alias, e) }
func (e *Between) Name() string       { return nameOf(e.Alias, e) }
func (e *Case) Name() string          { return nameOf(e.Alias, e) }
func (e *OperatorExpr) Name() string  { return nameOf(e.Alias, e) }

func nameOf(alias string, e fmt.Stringer) string {
	if alias != "" {
		return alias
	}
	return e.String()
}

func (e *ColumnRef) String() string {
	if e.Alias != "" {
		return e.Alias
	}
	return fmt.Sprintf("#%d", e.Index)
}

func (e *Cast) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", e.Input, e.Typ)
}

func (e *FunctionCall) String() string {
	return e.Func + "(" + joinExprs(e.Args, ", ") + ")"
}

func (e *AggregateCall) String() string {
	if e.Distinct {
		return e.Func + "(DISTINCT " + joinExprs(e.Args, ", ") + ")"
	}
	return e.Func + "(" + joinExprs(e.Args, ", ") + ")"
}

func (e *Constant) String() string {
	return e.Value.SQLString()
}

func (e *Parameter) String() string {
	return fmt.Sprintf("$%d", e.Index)
}

func (e *Comparison) String() string {
	sym, ok := comparisonSymbols[e.Op]
	if !ok {
		sym = e.Op.String()
	}
	return fmt.Sprintf("(%s %s %s)", e.Left, sym, e.Right)
}

func (e *Conjunction) String() string {
	op := " AND "
	if e.Op == ConjunctionOr {
		op = " OR "
	}
	return "(" + joinExprs(e.Children, op) + ")"
}

func (e *Between) String() string {
	return fmt.Sprintf("(%s BETWEEN %s AND %s)", e.Input, e.Lower, e.Upper)
}

func (e *Case) String() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, c := range e.Checks {
		fmt.Fprintf(&b, " WHEN %s THEN %s", c.When, c.Then)
	}
	if e.Else != nil {
		fmt.Fprintf(&b, " ELSE %s", e.Else)
	}
	b.WriteString(" END")
	return b.String()
}

func (e *OperatorExpr) String() string {
	switch e.Op {
	case CompareIn, CompareNotIn:
		if len(e.Children) == 0 {
			break
		}
		kw := " IN ("
		if e.Op == CompareNotIn {
			kw = " NOT IN ("
		}
		return "(" + e.Children[0].String() + kw + joinExprs(e.Children[1:], ", ") + "))"
	case OperatorIsNull:
		return "(" + joinExprs(e.Children, ", ") + " IS NULL)"
	case OperatorIsNotNull:
		return "(" + joinExprs(e.Children, ", ") + " IS NOT NULL)"
	case OperatorNot:
		return "(NOT " + joinExprs(e.Children, ", ") + ")"
	}
	return e.Op.String() + "(" + joinExprs(e.Children, ", ") + ")"
}

func joinExprs(exprs []Expr, sep string) string {
	var b strings.Builder
	for i, e := range exprs {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(e.String())
	}
	return b.String()
}

// Ref returns a reference to column idx of type typ.
func Ref(idx int, typ *types.T) *ColumnRef {
	return &ColumnRef{Index: idx, Typ: typ}
}

// Const returns a constant expression.
func Const(v Value) *Constant {
	return &Constant{Value: v}
}

// Call returns a scalar function call.
func Call(name string, typ *types.T, args ...Expr) *FunctionCall {
	return &FunctionCall{Func: name, Args: args, Typ: typ}
}

// Cmp returns a comparison.
func Cmp(op ExprType, left, right Expr) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

// And returns the conjunction of the given expressions.
func And(children ...Expr) *Conjunction {
	return &Conjunction{Op: ConjunctionAnd, Children: children}
}

// Or returns the disjunction of the given expressions.
func Or(children ...Expr) *Conjunction {
	return &Conjunction{Op: ConjunctionOr, Children: children}
}
