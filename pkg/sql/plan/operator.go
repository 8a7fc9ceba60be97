// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package plan defines the bound logical plan consumed by plan lowering.
// Plans are built once by a planner and are never mutated afterwards.
package plan

import (
	"fmt"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
)

// LogicalOp identifies the kind of a logical operator.
type LogicalOp uint8

const (
	unknownLogicalOp LogicalOp = iota

	LogicalGet
	LogicalFilter
	LogicalProjection
	LogicalComparisonJoin
	LogicalAggregate
	LogicalOrder
	LogicalLimit
	LogicalTopN
	LogicalCrossProduct
	LogicalUnion
	LogicalExcept
	LogicalIntersect
	LogicalDistinct
	LogicalExpressionGet
	LogicalDummyScan
	LogicalCreateTable
	LogicalInsert
	LogicalWindow

	// This should be last.
	numLogicalOps
)

var logicalOpNames = [numLogicalOps]string{
	unknownLogicalOp:      "UNKNOWN",
	LogicalGet:            "GET",
	LogicalFilter:         "FILTER",
	LogicalProjection:     "PROJECTION",
	LogicalComparisonJoin: "COMPARISON_JOIN",
	LogicalAggregate:      "AGGREGATE_AND_GROUP_BY",
	LogicalOrder:          "ORDER_BY",
	LogicalLimit:          "LIMIT",
	LogicalTopN:           "TOP_N",
	LogicalCrossProduct:   "CROSS_PRODUCT",
	LogicalUnion:          "UNION",
	LogicalExcept:         "EXCEPT",
	LogicalIntersect:      "INTERSECT",
	LogicalDistinct:       "DISTINCT",
	LogicalExpressionGet:  "EXPRESSION_GET",
	LogicalDummyScan:      "DUMMY_SCAN",
	LogicalCreateTable:    "CREATE_TABLE",
	LogicalInsert:         "INSERT",
	LogicalWindow:         "WINDOW",
}

func (op LogicalOp) String() string {
	if op >= numLogicalOps {
		return fmt.Sprintf("LogicalOp(%d)", op)
	}
	return logicalOpNames[op]
}

// SafeValue implements the redact.SafeValue interface.
func (LogicalOp) SafeValue() {}

var _ redact.SafeValue = LogicalOp(0)

// IsSetOp returns true for UNION, EXCEPT and INTERSECT.
func (op LogicalOp) IsSetOp() bool {
	return op == LogicalUnion || op == LogicalExcept || op == LogicalIntersect
}

// Operator is a node of a logical plan.
type Operator interface {
	// Op returns the kind of the operator.
	Op() LogicalOp
	// Children returns the input operators in order.
	Children() []Operator
	// OutputTypes returns the types of the operator's output columns.
	OutputTypes() []*types.T
}

// Get scans a table or a set of files.
type Get struct {
	// Names and ReturnedTypes describe every column the source can produce.
	Names         []string
	ReturnedTypes []*types.T

	// ColumnIDs lists the source columns that are read, as indexes into
	// ReturnedTypes. Empty means every column in order.
	ColumnIDs []int
	// ProjectionIDs, if set, selects the output columns as indexes into
	// ColumnIDs.
	ProjectionIDs []int

	// Filters are predicates pushed into the scan, keyed by source column.
	Filters TableFilterSet

	// Bind describes where the data comes from. A Get without bind
	// information cannot be lowered.
	Bind *BindInfo
	// Statistics optionally returns statistics for a source column.
	Statistics StatisticsFunc
}

// OutputColumns returns the source columns produced by the scan, in output
// order.
func (g *Get) OutputColumns() []int {
	cols := g.ColumnIDs
	if len(cols) == 0 {
		cols = identity(len(g.ReturnedTypes))
	}
	if len(g.ProjectionIDs) == 0 {
		return cols
	}
	out := make([]int, len(g.ProjectionIDs))
	for i, p := range g.ProjectionIDs {
		out[i] = cols[p]
	}
	return out
}

// Filter keeps the rows for which every expression is true.
type Filter struct {
	Input       Operator
	Expressions []Expr
	// ProjectionMap optionally selects and reorders the input columns.
	ProjectionMap []int
}

// Projection computes one output column per expression.
type Projection struct {
	Input       Operator
	Expressions []Expr
}

// JoinType is the type of a join.
type JoinType uint8

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	OuterJoin
	SemiJoin
	AntiJoin
	MarkJoin
	SingleJoin
)

var joinTypeNames = [...]string{
	InnerJoin:  "INNER",
	LeftJoin:   "LEFT",
	RightJoin:  "RIGHT",
	OuterJoin:  "OUTER",
	SemiJoin:   "SEMI",
	AntiJoin:   "ANTI",
	MarkJoin:   "MARK",
	SingleJoin: "SINGLE",
}

func (t JoinType) String() string {
	if int(t) < len(joinTypeNames) {
		return joinTypeNames[t]
	}
	return fmt.Sprintf("JoinType(%d)", t)
}

// SafeValue implements the redact.SafeValue interface.
func (JoinType) SafeValue() {}

// ProducesRightColumns returns false for join types whose output only
// contains columns of the left input.
func (t JoinType) ProducesRightColumns() bool {
	return t != SemiJoin && t != AntiJoin
}

// JoinCondition compares an expression over the left input with an
// expression over the right input. Column references on both sides are
// relative to their own input.
type JoinCondition struct {
	Left, Right Expr
	Comparison  ExprType
}

// ComparisonJoin joins two inputs on a list of comparisons.
type ComparisonJoin struct {
	Left, Right Operator
	Type        JoinType
	Conditions  []JoinCondition

	// LeftProjectionMap and RightProjectionMap select the columns of each
	// input that appear in the output. Empty means every column.
	LeftProjectionMap  []int
	RightProjectionMap []int
}

// ProjectionMaps returns the projection maps with empty maps replaced by
// the identity over the corresponding input.
func (j *ComparisonJoin) ProjectionMaps() (left, right []int) {
	left, right = j.LeftProjectionMap, j.RightProjectionMap
	if len(left) == 0 {
		left = identity(len(j.Left.OutputTypes()))
	}
	if len(right) == 0 {
		right = identity(len(j.Right.OutputTypes()))
	}
	return left, right
}

// Aggregate groups its input and computes aggregates per group.
type Aggregate struct {
	Input      Operator
	Groups     []Expr
	Aggregates []Expr
}

// OrderType is the direction of a sort key.
type OrderType uint8

const (
	OrderDefault OrderType = iota
	OrderAscending
	OrderDescending
)

// NullOrder is the placement of NULLs in a sort key.
type NullOrder uint8

const (
	NullsDefault NullOrder = iota
	NullsFirst
	NullsLast
)

// OrderByNode is one sort key.
type OrderByNode struct {
	Type      OrderType
	NullOrder NullOrder
	Expr      Expr
}

// Order sorts its input.
type Order struct {
	Input  Operator
	Orders []OrderByNode
}

// LimitKind describes how a LIMIT or OFFSET is specified.
type LimitKind uint8

const (
	LimitUnset LimitKind = iota
	LimitConstant
	LimitExpression
	LimitPercentage
)

var limitKindNames = [...]string{
	LimitUnset:      "UNSET",
	LimitConstant:   "CONSTANT_VALUE",
	LimitExpression: "EXPRESSION_VALUE",
	LimitPercentage: "CONSTANT_PERCENTAGE",
}

func (k LimitKind) String() string {
	if int(k) < len(limitKindNames) {
		return limitKindNames[k]
	}
	return fmt.Sprintf("LimitKind(%d)", k)
}

// SafeValue implements the redact.SafeValue interface.
func (LimitKind) SafeValue() {}

// LimitValue is a LIMIT or OFFSET.
type LimitValue struct {
	Kind       LimitKind
	Constant   int64
	Expr       Expr
	Percentage float64
}

// ConstantLimit returns a constant LimitValue.
func ConstantLimit(n int64) LimitValue {
	return LimitValue{Kind: LimitConstant, Constant: n}
}

// Limit returns a window of its input's rows.
type Limit struct {
	Input  Operator
	Limit  LimitValue
	Offset LimitValue
}

// TopN sorts its input and returns a window of the sorted rows.
type TopN struct {
	Input  Operator
	Orders []OrderByNode
	Limit  int64
	Offset int64
}

// CrossProduct returns every combination of rows of its inputs.
type CrossProduct struct {
	Left, Right Operator
}

// SetOperation is a UNION, EXCEPT or INTERSECT.
type SetOperation struct {
	Kind        LogicalOp
	Left, Right Operator
}

// Distinct removes duplicate rows.
type Distinct struct {
	Input   Operator
	Targets []Expr
}

// ExpressionGet produces one row per entry of Rows.
type ExpressionGet struct {
	Types []*types.T
	Rows  [][]Expr
}

// DummyScan produces a single row without columns.
type DummyScan struct{}

// ColumnDefinition is a named, typed table column.
type ColumnDefinition struct {
	Name string
	Type *types.T
}

// CreateTableInfo describes the table created by CREATE TABLE AS.
type CreateTableInfo struct {
	Schema  string
	Table   string
	Columns []ColumnDefinition
}

// CreateTable creates a table and fills it with the rows of its input.
// Inputs holds the single input of CREATE TABLE AS; it is empty for a plain
// CREATE TABLE.
type CreateTable struct {
	Info   *CreateTableInfo
	Inputs []Operator
}

// Insert appends the rows of its input to an existing table.
type Insert struct {
	Table  TableEntry
	Inputs []Operator
}

// Window computes window functions over its input.
type Window struct {
	Input       Operator
	Expressions []Expr
}

func (*Get) Op() LogicalOp            { return LogicalGet }
func (*Filter) Op() LogicalOp         { return LogicalFilter }
func (*Projection) Op() LogicalOp     { return LogicalProjection }
func (*ComparisonJoin) Op() LogicalOp { return LogicalComparisonJoin }
func (*Aggregate) Op() LogicalOp      { return LogicalAggregate }
func (*Order) Op() LogicalOp          { return LogicalOrder }
func (*Limit) Op() LogicalOp          { return LogicalLimit }
func (*TopN) Op() LogicalOp           { return LogicalTopN }
func (*CrossProduct) Op() LogicalOp   { return LogicalCrossProduct }
func (s *SetOperation) Op() LogicalOp { return s.Kind }
func (*Distinct) Op() LogicalOp       { return LogicalDistinct }
func (*ExpressionGet) Op() LogicalOp  { return LogicalExpressionGet }
func (*DummyScan) Op() LogicalOp      { return LogicalDummyScan }
func (*CreateTable) Op() LogicalOp    { return LogicalCreateTable }
func (*Insert) Op() LogicalOp         { return LogicalInsert }
func (*Window) Op() LogicalOp         { return LogicalWindow }

func (*Get) Children() []Operator              { return nil }
func (f *Filter) Children() []Operator         { return []Operator{f.Input} }
func (p *Projection) Children() []Operator     { return []Operator{p.Input} }
func (j *ComparisonJoin) Children() []Operator { return []Operator{j.Left, j.Right} }
func (a *Aggregate) Children() []Operator      { return []Operator{a.Input} }
func (o *Order) Children() []Operator          { return []Operator{o.Input} }
func (l *Limit) Children() []Operator          { return []Operator{l.Input} }
func (t *TopN) Children() []Operator           { return []Operator{t.Input} }
func (c *CrossProduct) Children() []Operator   { return []Operator{c.Left, c.Right} }
func (s *SetOperation) Children() []Operator   { return []Operator{s.Left, s.Right} }
func (d *Distinct) Children() []Operator       { return []Operator{d.Input} }
func (*ExpressionGet) Children() []Operator    { return nil }
func (*DummyScan) Children() []Operator        { return nil }
func (c *CreateTable) Children() []Operator    { return c.Inputs }
func (i *Insert) Children() []Operator         { return i.Inputs }
func (w *Window) Children() []Operator         { return []Operator{w.Input} }

func (g *Get) OutputTypes() []*types.T {
	cols := g.OutputColumns()
	typs := make([]*types.T, len(cols))
	for i, c := range cols {
		typs[i] = g.ReturnedTypes[c]
	}
	return typs
}

func (f *Filter) OutputTypes() []*types.T {
	in := f.Input.OutputTypes()
	if len(f.ProjectionMap) == 0 {
		return in
	}
	return project(in, f.ProjectionMap)
}

func (p *Projection) OutputTypes() []*types.T { return exprTypes(p.Expressions) }

func (j *ComparisonJoin) OutputTypes() []*types.T {
	left, right := j.ProjectionMaps()
	typs := project(j.Left.OutputTypes(), left)
	if j.Type.ProducesRightColumns() {
		typs = append(typs, project(j.Right.OutputTypes(), right)...)
	}
	return typs
}

func (a *Aggregate) OutputTypes() []*types.T {
	return append(exprTypes(a.Groups), exprTypes(a.Aggregates)...)
}

func (o *Order) OutputTypes() []*types.T    { return o.Input.OutputTypes() }
func (l *Limit) OutputTypes() []*types.T    { return l.Input.OutputTypes() }
func (t *TopN) OutputTypes() []*types.T     { return t.Input.OutputTypes() }
func (d *Distinct) OutputTypes() []*types.T { return d.Input.OutputTypes() }

func (c *CrossProduct) OutputTypes() []*types.T {
	l := c.Left.OutputTypes()
	return append(append(make([]*types.T, 0, len(l)), l...), c.Right.OutputTypes()...)
}

func (s *SetOperation) OutputTypes() []*types.T { return s.Left.OutputTypes() }
func (e *ExpressionGet) OutputTypes() []*types.T { return e.Types }
func (*DummyScan) OutputTypes() []*types.T       { return nil }
func (*CreateTable) OutputTypes() []*types.T     { return []*types.T{types.BigInt} }
func (*Insert) OutputTypes() []*types.T          { return []*types.T{types.BigInt} }

func (w *Window) OutputTypes() []*types.T {
	in := w.Input.OutputTypes()
	return append(append(make([]*types.T, 0, len(in)), in...), exprTypes(w.Expressions)...)
}

func identity(n int) []int {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	return m
}

func project(typs []*types.T, m []int) []*types.T {
	out := make([]*types.T, len(m))
	for i, c := range m {
		out[i] = typs[c]
	}
	return out
}

func exprTypes(exprs []Expr) []*types.T {
	typs := make([]*types.T, len(exprs))
	for i, e := range exprs {
		typs[i] = e.ResultType()
	}
	return typs
}
