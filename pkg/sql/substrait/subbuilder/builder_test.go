// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/plan"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
	"github.com/cockroachdb/tosubstrait/pkg/util/log"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	"google.golang.org/protobuf/testing/protocmp"
)

const comparisonURI = "https://github.com/substrait-io/substrait/blob/main/extensions/functions_comparison.yaml"

// testTable is t(a INTEGER NOT NULL, b VARCHAR).
func testTable() *plan.Table {
	return &plan.Table{
		Schema: "main",
		Name:   "t",
		Columns: []plan.ColumnDefinition{
			{Name: "a", Type: types.Int},
			{Name: "b", Type: types.Varchar},
		},
		Constraints: []plan.Constraint{&plan.NotNullConstraint{Column: 0}},
	}
}

// intTable returns a table of n INTEGER columns a0, b0, ...
func intTable(name string, n int) *plan.Table {
	t := &plan.Table{Schema: "main", Name: name}
	for i := 0; i < n; i++ {
		t.Columns = append(t.Columns, plan.ColumnDefinition{
			Name: string(rune('a'+i)) + "0",
			Type: types.Int,
		})
	}
	return t
}

// projectAll projects every column of input, aliased a, b, ...
func projectAll(input plan.Operator) *plan.Projection {
	p := &plan.Projection{Input: input}
	for i, typ := range input.OutputTypes() {
		p.Expressions = append(p.Expressions, &plan.ColumnRef{
			Index: i, Typ: typ, Alias: string(rune('a' + i)),
		})
	}
	return p
}

func newTestBuilder() *Builder {
	return New(context.Background(), nil /* root */, DefaultOptions())
}

func buildPlan(t *testing.T, root plan.Operator, opts Options) *pb.Plan {
	t.Helper()
	p, err := New(context.Background(), root, opts).Build()
	require.NoError(t, err)
	return p.Proto()
}

func rootRel(t *testing.T, p *pb.Plan) *pb.RelRoot {
	t.Helper()
	require.Len(t, p.Relations, 1)
	root := p.Relations[0].GetRoot()
	require.NotNil(t, root)
	return root
}

func fieldIndex(t *testing.T, e *pb.Expression) int32 {
	t.Helper()
	sel := e.GetSelection()
	require.NotNil(t, sel, "expected a field reference, found %v", e)
	return sel.GetDirectReference().GetStructField().GetField()
}

// functionName returns the declared name of the function with the given
// anchor.
func functionName(t *testing.T, p *pb.Plan, anchor uint32) string {
	t.Helper()
	for _, d := range p.Extensions {
		if f := d.GetExtensionFunction(); f.GetFunctionAnchor() == anchor {
			return f.GetName()
		}
	}
	t.Fatalf("no function declared with anchor %d", anchor)
	return ""
}

func argExprs(t *testing.T, fn *pb.Expression_ScalarFunction) []*pb.Expression {
	t.Helper()
	res := make([]*pb.Expression, len(fn.Arguments))
	for i, a := range fn.Arguments {
		res[i] = a.GetValue()
		require.NotNil(t, res[i], "argument %d is not a value", i)
	}
	return res
}

func i32(n pb.Type_Nullability) *pb.Type {
	return &pb.Type{Kind: &pb.Type_I32_{I32: &pb.Type_I32{Nullability: n}}}
}

func str(n pb.Type_Nullability) *pb.Type {
	return &pb.Type{Kind: &pb.Type_String_{String_: &pb.Type_String{Nullability: n}}}
}

func TestLowerLimitOverScan(t *testing.T) {
	root := &plan.Projection{
		Input: &plan.Limit{
			Input: plan.NewTableScan(testTable()),
			Limit: plan.ConstantLimit(2),
		},
		Expressions: []plan.Expr{
			&plan.ColumnRef{Index: 0, Typ: types.Int, Alias: "a"},
			&plan.ColumnRef{Index: 1, Typ: types.Varchar, Alias: "b"},
		},
	}
	p := buildPlan(t, root, DefaultOptions())

	require.Equal(t, uint32(VersionMajor), p.Version.GetMajorNumber())
	require.Equal(t, uint32(VersionMinor), p.Version.GetMinorNumber())
	require.Equal(t, DefaultProducer, p.Version.GetProducer())
	require.Empty(t, p.ExtensionUris)
	require.Empty(t, p.Extensions)

	r := rootRel(t, p)
	require.Equal(t, []string{"a", "b"}, r.Names)

	proj := r.Input.GetProject()
	require.NotNil(t, proj)
	require.Len(t, proj.Expressions, 2)
	for i, e := range proj.Expressions {
		require.Equal(t, int32(i), fieldIndex(t, e))
	}

	fetch := proj.Input.GetFetch()
	require.NotNil(t, fetch)
	require.Equal(t, int64(0), fetch.GetOffset())
	require.Equal(t, int64(2), fetch.GetCount())

	expected := &pb.ReadRel{
		BaseSchema: &pb.NamedStruct{
			Names: []string{"a", "b"},
			Struct: &pb.Type_Struct{
				Types:       []*pb.Type{i32(pb.Type_NULLABILITY_REQUIRED), str(pb.Type_NULLABILITY_NULLABLE)},
				Nullability: pb.Type_NULLABILITY_REQUIRED,
			},
		},
		ReadType: &pb.ReadRel_NamedTable_{NamedTable: &pb.ReadRel_NamedTable{Names: []string{"t"}}},
	}
	require.Empty(t, cmp.Diff(expected, fetch.Input.GetRead(), protocmp.Transform()))
}

func TestLowerBetweenFilter(t *testing.T) {
	scan := plan.NewTableScan(testTable())
	filter := &plan.Filter{
		Input: scan,
		Expressions: []plan.Expr{&plan.Between{
			Input: plan.Ref(0, types.Int),
			Lower: plan.Const(plan.NewInteger(5)),
			Upper: plan.Const(plan.NewInteger(10)),
		}},
	}
	p := buildPlan(t, projectAll(filter), DefaultOptions())

	require.Len(t, p.ExtensionUris, 1)
	require.Equal(t, comparisonURI, p.ExtensionUris[0].GetUri())
	require.Equal(t, uint32(1), p.ExtensionUris[0].GetExtensionUriAnchor())
	require.Len(t, p.Extensions, 1)
	decl := p.Extensions[0].GetExtensionFunction()
	require.Equal(t, "between:i32_i32_i32", decl.GetName())
	require.Equal(t, uint32(1), decl.GetFunctionAnchor())
	require.Equal(t, uint32(1), decl.GetExtensionUriReference())

	f := rootRel(t, p).Input.GetProject().GetInput().GetFilter()
	require.NotNil(t, f)
	fn := f.Condition.GetScalarFunction()
	require.NotNil(t, fn)
	require.Equal(t, uint32(1), fn.FunctionReference)
	args := argExprs(t, fn)
	require.Len(t, args, 3)
	require.Equal(t, int32(0), fieldIndex(t, args[0]))
	require.Equal(t, int32(5), args[1].GetLiteral().GetI32())
	require.Equal(t, int32(10), args[2].GetLiteral().GetI32())
	require.Equal(t, pb.Type_NULLABILITY_NULLABLE, fn.OutputType.GetBool().GetNullability())
	require.NotNil(t, f.Input.GetRead())
}

func TestLowerEqualityFilter(t *testing.T) {
	filter := &plan.Filter{
		Input:       plan.NewTableScan(intTable("t5", 5)),
		Expressions: []plan.Expr{plan.Cmp(plan.CompareEqual, plan.Ref(0, types.Int), plan.Ref(2, types.Int))},
	}
	p := buildPlan(t, projectAll(filter), DefaultOptions())

	r := rootRel(t, p)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, r.Names)
	proj := r.Input.GetProject()
	require.Len(t, proj.Expressions, 5)

	fn := proj.Input.GetFilter().GetCondition().GetScalarFunction()
	require.NotNil(t, fn)
	require.Equal(t, "equal:i32_i32", functionName(t, p, fn.FunctionReference))
	args := argExprs(t, fn)
	require.Equal(t, int32(0), fieldIndex(t, args[0]))
	require.Equal(t, int32(2), fieldIndex(t, args[1]))
}

func TestLowerFilterList(t *testing.T) {
	ref := plan.Ref(0, types.Int)
	filter := &plan.Filter{
		Input: plan.NewTableScan(testTable()),
		Expressions: []plan.Expr{
			plan.Cmp(plan.CompareGreaterThan, ref, plan.Const(plan.NewInteger(1))),
			plan.Cmp(plan.CompareLessThan, ref, plan.Const(plan.NewInteger(9))),
			plan.Cmp(plan.CompareNotEqual, ref, plan.Const(plan.NewInteger(5))),
		},
		ProjectionMap: []int{1},
	}
	b := newTestBuilder()
	rel, err := b.buildRelational(filter)
	require.NoError(t, err)

	// The filter's projection map becomes a projection above it.
	proj := rel.GetProject()
	require.NotNil(t, proj)
	require.Len(t, proj.Expressions, 1)
	require.Equal(t, int32(1), fieldIndex(t, proj.Expressions[0]))

	// and(and(gt, lt), not_equal)
	outer := proj.Input.GetFilter().GetCondition().GetScalarFunction()
	require.NotNil(t, outer)
	args := argExprs(t, outer)
	require.Len(t, args, 2)
	inner := args[0].GetScalarFunction()
	require.NotNil(t, inner)
	require.Equal(t, outer.FunctionReference, inner.FunctionReference)
	require.Len(t, inner.Arguments, 2)

	var names []string
	for _, d := range b.funcs.Declarations() {
		names = append(names, d.GetExtensionFunction().GetName())
	}
	require.Equal(t, []string{"gt:i32_i32", "lt:i32_i32", "and:bool_bool", "not_equal:i32_i32"}, names)
}

func TestConjunctionIsNary(t *testing.T) {
	ref := plan.Ref(0, types.Int)
	cond := plan.Or(
		plan.Cmp(plan.CompareEqual, ref, plan.Const(plan.NewInteger(1))),
		plan.Cmp(plan.CompareEqual, ref, plan.Const(plan.NewInteger(2))),
		plan.Cmp(plan.CompareEqual, ref, plan.Const(plan.NewInteger(3))),
	)
	b := newTestBuilder()
	e, err := b.buildScalar(cond, 0 /* colOffset */)
	require.NoError(t, err)
	fn := e.GetScalarFunction()
	require.Len(t, fn.Arguments, 3)

	decls := b.funcs.Declarations()
	require.Len(t, decls, 2)
	require.Equal(t, "equal:i32_i32", decls[0].GetExtensionFunction().GetName())
	require.Equal(t, "or:bool_bool_bool", decls[1].GetExtensionFunction().GetName())
	require.Equal(t, uint32(2), fn.FunctionReference)
	for _, a := range argExprs(t, fn) {
		require.Equal(t, uint32(1), a.GetScalarFunction().GetFunctionReference())
	}
}

func TestLowerScanPushdown(t *testing.T) {
	tbl := &plan.Table{
		Schema: "main",
		Name:   "s",
		Columns: []plan.ColumnDefinition{
			{Name: "a", Type: types.Int},
			{Name: "b", Type: types.Varchar},
			{Name: "c", Type: types.Int},
		},
		Constraints: []plan.Constraint{
			&plan.NotNullConstraint{Column: 0},
			&plan.UniqueConstraint{Columns: []int{0}, PrimaryKey: true},
		},
	}
	scan := plan.NewTableScan(tbl)
	scan.ColumnIDs = []int{2, 0}
	scan.Filters = plan.TableFilterSet{
		2: &plan.ConstantFilter{Comparison: plan.CompareGreaterThan, Constant: plan.NewInteger(5)},
		0: &plan.IsNotNullFilter{},
	}
	scan.Statistics = func(int) *plan.ColumnStatistics {
		return &plan.ColumnStatistics{CanHaveNull: true, DistinctCount: 3}
	}

	b := newTestBuilder()
	rel, err := b.buildRelational(scan)
	require.NoError(t, err)
	read := rel.GetRead()
	require.NotNil(t, read)

	require.Equal(t, []string{"a", "b", "c"}, read.BaseSchema.Names)
	require.Equal(t, pb.Type_NULLABILITY_REQUIRED, read.BaseSchema.Struct.Nullability)
	require.Equal(t, pb.Type_NULLABILITY_REQUIRED, read.BaseSchema.Struct.Types[0].GetI32().GetNullability())
	require.Equal(t, pb.Type_NULLABILITY_NULLABLE, read.BaseSchema.Struct.Types[1].GetString_().GetNullability())
	require.Equal(t, pb.Type_NULLABILITY_NULLABLE, read.BaseSchema.Struct.Types[2].GetI32().GetNullability())

	var mask []int32
	for _, item := range read.Projection.GetSelect().GetStructItems() {
		mask = append(mask, item.Field)
	}
	require.Equal(t, []int32{2, 0}, mask)
	require.True(t, read.Projection.GetMaintainSingularStruct())

	// and(is_not_null(a), gt(c, 5)), in column order.
	and := read.Filter.GetScalarFunction()
	require.NotNil(t, and)
	args := argExprs(t, and)
	require.Len(t, args, 2)
	isNotNull := args[0].GetScalarFunction()
	require.Equal(t, int32(0), fieldIndex(t, argExprs(t, isNotNull)[0]))
	gt := args[1].GetScalarFunction()
	gtArgs := argExprs(t, gt)
	require.Equal(t, int32(2), fieldIndex(t, gtArgs[0]))
	require.Equal(t, int32(5), gtArgs[1].GetLiteral().GetI32())

	decls := b.funcs.Declarations()
	require.Len(t, decls, 3)
	require.Equal(t, "is_not_null:i32", decls[0].GetExtensionFunction().GetName())
	require.Equal(t, "gt:i32_i32", decls[1].GetExtensionFunction().GetName())
	require.Equal(t, "and:bool_bool", decls[2].GetExtensionFunction().GetName())
}

func TestLowerScanWithoutMask(t *testing.T) {
	scan := plan.NewTableScan(testTable())
	scan.ColumnIDs = []int{0, 1}
	b := newTestBuilder()
	rel, err := b.buildRelational(scan)
	require.NoError(t, err)
	require.Nil(t, rel.GetRead().GetProjection())
	require.Nil(t, rel.GetRead().GetFilter())
}

func TestLowerTableFilterConjunction(t *testing.T) {
	scan := plan.NewTableScan(testTable())
	scan.Filters = plan.TableFilterSet{
		0: &plan.ConjunctionAndFilter{Children: []plan.TableFilter{
			&plan.ConstantFilter{Comparison: plan.CompareGreaterThanOrEqualTo, Constant: plan.NewInteger(1)},
			&plan.ConstantFilter{Comparison: plan.CompareLessThanOrEqualTo, Constant: plan.NewInteger(3)},
		}},
	}
	b := newTestBuilder()
	rel, err := b.buildRelational(scan)
	require.NoError(t, err)
	and := rel.GetRead().GetFilter().GetScalarFunction()
	require.Len(t, and.Arguments, 2)

	scan.Filters = plan.TableFilterSet{0: &plan.ConjunctionOrFilter{}}
	_, err = newTestBuilder().buildRelational(scan)
	require.True(t, errors.HasUnimplementedError(err), "%+v", err)
}

func TestLowerParquetScan(t *testing.T) {
	b := newTestBuilder()
	scan := &plan.Get{
		Names:         []string{"x", "y"},
		ReturnedTypes: []*types.T{types.BigInt, types.Varchar},
		Bind: &plan.BindInfo{
			Kind:    plan.ParquetScan,
			Options: map[string][]string{plan.FilePathOption: {"/data/a.parquet", "/data/b.parquet"}},
		},
	}
	rel, err := b.buildRelational(scan)
	require.NoError(t, err)
	read := rel.GetRead()
	require.Equal(t, []string{"x", "y"}, read.BaseSchema.Names)
	require.Equal(t, pb.Type_NULLABILITY_NULLABLE, read.BaseSchema.Struct.Types[0].GetI64().GetNullability())
	require.Equal(t, pb.Type_NULLABILITY_NULLABLE, read.BaseSchema.Struct.Types[1].GetString_().GetNullability())
	files := read.GetLocalFiles()
	require.NotNil(t, files)
	require.Len(t, files.Items, 2)
	for i, path := range []string{"/data/a.parquet", "/data/b.parquet"} {
		require.Equal(t, path, files.Items[i].GetUriFile())
		require.NotNil(t, files.Items[i].GetParquet())
	}
}

func TestLowerDummyScan(t *testing.T) {
	b := newTestBuilder()
	rel, err := b.buildRelational(&plan.DummyScan{})
	require.NoError(t, err)
	read := rel.GetRead()
	require.Equal(t, []string{"dummy"}, read.BaseSchema.Names)
	require.Equal(t, pb.Type_NULLABILITY_REQUIRED, read.BaseSchema.Struct.Types[0].GetI32().GetNullability())
	rows := read.GetVirtualTable().GetValues()
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Fields, 1)
	require.Equal(t, int32(42), rows[0].Fields[0].GetI32())
}

func TestLowerExpressionGet(t *testing.T) {
	get := &plan.ExpressionGet{
		Types: []*types.T{types.Int, types.Varchar},
		Rows: [][]plan.Expr{
			{plan.Const(plan.NewInteger(1)), plan.Const(plan.NewVarchar("one"))},
			{plan.Const(plan.NewInteger(2)), plan.Const(plan.NewNull(types.Varchar))},
		},
	}
	b := newTestBuilder()
	rel, err := b.buildRelational(get)
	require.NoError(t, err)
	read := rel.GetRead()
	require.Equal(t, []string{"col0", "col1"}, read.BaseSchema.Names)
	require.Equal(t, pb.Type_NULLABILITY_NULLABLE, read.BaseSchema.Struct.Types[0].GetI32().GetNullability())
	rows := read.GetVirtualTable().GetValues()
	require.Len(t, rows, 2)
	require.Equal(t, "one", rows[0].Fields[1].GetString_())
	require.Equal(t, int32(2), rows[1].Fields[0].GetI32())
	require.NotNil(t, rows[1].Fields[1].GetNull())
}

func TestLowerJoinOffsets(t *testing.T) {
	eq := func(l, r int) []plan.JoinCondition {
		return []plan.JoinCondition{{
			Left:       plan.Ref(l, types.Int),
			Right:      plan.Ref(r, types.Int),
			Comparison: plan.CompareEqual,
		}}
	}
	l2 := func() plan.Operator { return plan.NewTableScan(intTable("l", 2)) }
	r3 := func() plan.Operator { return plan.NewTableScan(intTable("r", 3)) }

	testCases := []struct {
		name      string
		join      *plan.ComparisonJoin
		leftCount int
		project   []int32
	}{
		{
			name:      "plain",
			join:      &plan.ComparisonJoin{Left: l2(), Right: r3(), Type: plan.InnerJoin, Conditions: eq(0, 1)},
			leftCount: 2,
			project:   []int32{0, 1, 2, 3, 4},
		},
		{
			name: "nested inner",
			join: &plan.ComparisonJoin{
				Left: &plan.ComparisonJoin{
					Left: l2(), Right: r3(), Type: plan.InnerJoin, Conditions: eq(0, 0),
					RightProjectionMap: []int{2},
				},
				Right:      r3(),
				Type:       plan.LeftJoin,
				Conditions: eq(2, 0),
			},
			leftCount: 3,
			project:   []int32{0, 1, 2, 3, 4, 5},
		},
		{
			name: "nested semi",
			join: &plan.ComparisonJoin{
				Left: &plan.ComparisonJoin{
					Left: l2(), Right: r3(), Type: plan.SemiJoin, Conditions: eq(0, 0),
				},
				Right:      r3(),
				Type:       plan.InnerJoin,
				Conditions: eq(1, 2),
			},
			leftCount: 2,
			project:   []int32{0, 1, 2, 3, 4},
		},
		{
			name: "semi",
			join: &plan.ComparisonJoin{
				Left: l2(), Right: r3(), Type: plan.SemiJoin, Conditions: eq(1, 2),
				LeftProjectionMap: []int{1},
			},
			leftCount: 2,
			project:   []int32{1},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.leftCount, leftColumnCount(tc.join))

			b := newTestBuilder()
			rel, err := b.buildRelational(tc.join)
			require.NoError(t, err)
			proj := rel.GetProject()
			require.NotNil(t, proj)
			var got []int32
			for _, e := range proj.Expressions {
				got = append(got, fieldIndex(t, e))
			}
			require.Equal(t, tc.project, got)

			join := proj.Input.GetJoin()
			require.NotNil(t, join)
			require.Equal(t, joinTypes[tc.join.Type], join.Type)
			args := argExprs(t, join.Expression.GetScalarFunction())
			cond := tc.join.Conditions[0]
			require.Equal(t, int32(cond.Left.(*plan.ColumnRef).Index), fieldIndex(t, args[0]))
			require.Equal(t, int32(cond.Right.(*plan.ColumnRef).Index+tc.leftCount), fieldIndex(t, args[1]))
		})
	}
}

func TestLowerJoinUnsupported(t *testing.T) {
	join := &plan.ComparisonJoin{
		Left:  plan.NewTableScan(intTable("l", 1)),
		Right: plan.NewTableScan(intTable("r", 1)),
		Type:  plan.InnerJoin,
		Conditions: []plan.JoinCondition{{
			Left: plan.Ref(0, types.Int), Right: plan.Ref(0, types.Int), Comparison: plan.CompareDistinctFrom,
		}},
	}
	_, err := newTestBuilder().buildRelational(join)
	require.True(t, errors.HasUnimplementedError(err))
	require.ErrorContains(t, err, "unsupported join comparison")

	join.Conditions[0].Comparison = plan.CompareEqual
	join.Type = plan.AntiJoin
	_, err = newTestBuilder().buildRelational(join)
	require.True(t, errors.HasUnimplementedError(err))
}

func TestLowerAggregate(t *testing.T) {
	agg := &plan.Aggregate{
		Input:  plan.NewTableScan(intTable("t", 2)),
		Groups: []plan.Expr{plan.Ref(1, types.Int)},
		Aggregates: []plan.Expr{
			&plan.AggregateCall{Func: "sum", Args: []plan.Expr{plan.Ref(0, types.Int)}, Typ: types.BigInt},
			&plan.AggregateCall{Func: "count", Args: []plan.Expr{plan.Ref(0, types.Int)}, Typ: types.BigInt, Distinct: true},
		},
	}
	b := newTestBuilder()
	rel, err := b.buildRelational(agg)
	require.NoError(t, err)
	a := rel.GetAggregate()
	require.NotNil(t, a)
	require.Len(t, a.Groupings, 1)
	require.Len(t, a.Groupings[0].GroupingExpressions, 1)
	require.Equal(t, int32(1), fieldIndex(t, a.Groupings[0].GroupingExpressions[0]))
	require.Len(t, a.Measures, 2)
	require.Equal(t, pb.AggregateFunction_AGGREGATION_INVOCATION_UNSPECIFIED, a.Measures[0].Measure.Invocation)
	require.Equal(t, pb.AggregateFunction_AGGREGATION_INVOCATION_DISTINCT, a.Measures[1].Measure.Invocation)
	require.Equal(t, pb.Type_NULLABILITY_NULLABLE, a.Measures[0].Measure.OutputType.GetI64().GetNullability())

	agg.Groups = []plan.Expr{plan.Call("abs", types.Int, plan.Ref(1, types.Int))}
	_, err = newTestBuilder().buildRelational(agg)
	require.True(t, errors.HasUnimplementedError(err))
	require.ErrorContains(t, err, "no expressions in groupings yet")

	agg.Groups = nil
	agg.Aggregates = []plan.Expr{plan.Ref(0, types.Int)}
	_, err = newTestBuilder().buildRelational(agg)
	require.ErrorContains(t, err, "no non-aggregate expressions in measures yet")
}

func TestLowerTopNUnderProjection(t *testing.T) {
	inner := &plan.Projection{
		Input: plan.NewTableScan(testTable()),
		Expressions: []plan.Expr{
			&plan.ColumnRef{Index: 0, Typ: types.Int, Alias: "p"},
			&plan.ColumnRef{Index: 1, Typ: types.Varchar, Alias: "q"},
		},
	}
	topN := &plan.TopN{
		Input: inner,
		Orders: []plan.OrderByNode{{
			Type: plan.OrderDescending, NullOrder: plan.NullsLast, Expr: plan.Ref(0, types.Int),
		}},
		Limit:  10,
		Offset: 5,
	}
	root := &plan.Projection{
		Input: topN,
		Expressions: []plan.Expr{
			&plan.ColumnRef{Index: 1, Typ: types.Varchar, Alias: "ignored"},
			&plan.ColumnRef{Index: 0, Typ: types.Int},
		},
	}
	p := buildPlan(t, root, DefaultOptions())
	r := rootRel(t, p)
	require.Equal(t, []string{"q", "p"}, r.Names)

	fetch := r.Input.GetProject().GetInput().GetFetch()
	require.NotNil(t, fetch)
	require.Equal(t, int64(5), fetch.GetOffset())
	require.Equal(t, int64(10), fetch.GetCount())
	sort := fetch.Input.GetSort()
	require.NotNil(t, sort)
	require.Len(t, sort.Sorts, 1)
	require.Equal(t, pb.SortField_SORT_DIRECTION_DESC_NULLS_LAST, sort.Sorts[0].GetDirection())
	require.NotNil(t, sort.Input.GetProject())

	// Expressions above the TopN must be column references.
	root.Expressions = []plan.Expr{plan.Const(plan.NewInteger(1))}
	_, err := Lower(context.Background(), root)
	require.True(t, errors.HasAssertionFailure(err), "%+v", err)
}

func TestLowerOrderDefaults(t *testing.T) {
	order := &plan.Order{
		Input:  plan.NewTableScan(testTable()),
		Orders: []plan.OrderByNode{{Type: plan.OrderAscending, NullOrder: plan.NullsFirst, Expr: plan.Ref(0, types.Int)}},
	}
	rel, err := newTestBuilder().buildRelational(order)
	require.NoError(t, err)
	require.Equal(t, pb.SortField_SORT_DIRECTION_ASC_NULLS_FIRST, rel.GetSort().Sorts[0].GetDirection())

	order.Orders[0].NullOrder = plan.NullsDefault
	_, err = newTestBuilder().buildRelational(order)
	require.True(t, errors.HasAssertionFailure(err))
}

func TestRootNames(t *testing.T) {
	pt := types.MakeStruct(
		types.StructField{Name: "x", Type: types.Int},
		types.StructField{Name: "y", Type: types.MakeStruct(types.StructField{Name: "z", Type: types.Int})},
	)
	proj := &plan.Projection{
		Input: &plan.DummyScan{},
		Expressions: []plan.Expr{
			&plan.Constant{Value: plan.NewNull(pt), Alias: "s"},
			&plan.Constant{Value: plan.NewInteger(1), Alias: "n"},
		},
	}
	names, err := rootNames(proj)
	require.NoError(t, err)
	require.Equal(t, []string{"s", "x", "y", "z", "n"}, names)

	// Single-input operators are looked through.
	names, err = rootNames(&plan.Limit{Input: &plan.Filter{Input: proj}})
	require.NoError(t, err)
	require.Equal(t, []string{"s", "x", "y", "z", "n"}, names)

	// Set operations are named after their right input.
	left := &plan.Projection{Input: &plan.DummyScan{}, Expressions: []plan.Expr{
		&plan.Constant{Value: plan.NewInteger(1), Alias: "l"},
	}}
	right := &plan.Projection{Input: &plan.DummyScan{}, Expressions: []plan.Expr{
		&plan.Constant{Value: plan.NewInteger(2), Alias: "r"},
	}}
	names, err = rootNames(&plan.SetOperation{Kind: plan.LogicalUnion, Left: left, Right: right})
	require.NoError(t, err)
	require.Equal(t, []string{"r"}, names)

	_, err = rootNames(plan.NewTableScan(testTable()))
	require.True(t, errors.HasAssertionFailure(err))
	require.ErrorContains(t, err, "root node has 0 children up to reaching a projection node")

	_, err = rootNames(&plan.CrossProduct{Left: left, Right: right})
	require.ErrorContains(t, err, "root node has 2 children")
}

func TestLowerSetOperations(t *testing.T) {
	mk := func(kind plan.LogicalOp) *plan.SetOperation {
		return &plan.SetOperation{
			Kind:  kind,
			Left:  projectAll(plan.NewTableScan(testTable())),
			Right: projectAll(plan.NewTableScan(testTable())),
		}
	}
	for kind, op := range setOps {
		rel, err := newTestBuilder().buildRelational(mk(kind))
		require.NoError(t, err)
		require.Equal(t, op, rel.GetSet().GetOp())
		require.Len(t, rel.GetSet().GetInputs(), 2)
	}

	// DISTINCT over EXCEPT and INTERSECT is the set relation itself.
	for _, kind := range []plan.LogicalOp{plan.LogicalExcept, plan.LogicalIntersect} {
		rel, err := newTestBuilder().buildRelational(&plan.Distinct{Input: mk(kind)})
		require.NoError(t, err)
		require.Equal(t, setOps[kind], rel.GetSet().GetOp())
	}
	_, err := newTestBuilder().buildRelational(&plan.Distinct{Input: mk(plan.LogicalUnion)})
	require.True(t, errors.HasUnimplementedError(err))
}

func TestLowerCrossProduct(t *testing.T) {
	rel, err := newTestBuilder().buildRelational(&plan.CrossProduct{
		Left:  plan.NewTableScan(testTable()),
		Right: &plan.DummyScan{},
	})
	require.NoError(t, err)
	cross := rel.GetCross()
	require.NotNil(t, cross.GetLeft().GetRead().GetNamedTable())
	require.NotNil(t, cross.GetRight().GetRead().GetVirtualTable())
}

func TestLowerCreateTableAs(t *testing.T) {
	st := types.MakeStruct(
		types.StructField{Name: "x", Type: types.Int},
		types.StructField{Name: "y", Type: types.Varchar},
	)
	ctas := &plan.CreateTable{
		Info: &plan.CreateTableInfo{
			Schema: "main",
			Table:  "u",
			Columns: []plan.ColumnDefinition{
				{Name: "id", Type: types.Int},
				{Name: "s", Type: st},
			},
		},
		Inputs: []plan.Operator{projectAll(plan.NewTableScan(testTable()))},
	}
	p := buildPlan(t, ctas, DefaultOptions())
	r := rootRel(t, p)
	require.Equal(t, []string{"id", "s", "x", "y"}, r.Names)

	w := r.Input.GetWrite()
	require.NotNil(t, w)
	require.Equal(t, pb.WriteRel_WRITE_OP_CTAS, w.Op)
	require.Equal(t, []string{"main", "u"}, w.GetNamedTable().GetNames())
	require.Equal(t, []string{"id", "s", "x", "y"}, w.TableSchema.Names)
	require.Equal(t, pb.Type_NULLABILITY_REQUIRED, w.TableSchema.Struct.Types[0].GetI32().GetNullability())
	stType := w.TableSchema.Struct.Types[1].GetStruct()
	require.Equal(t, pb.Type_NULLABILITY_REQUIRED, stType.GetNullability())
	require.Equal(t, pb.Type_NULLABILITY_REQUIRED, stType.Types[1].GetString_().GetNullability())
	require.NotNil(t, w.Input.GetProject())

	ctas.Inputs = nil
	_, err := Lower(context.Background(), ctas)
	require.True(t, errors.HasUnimplementedError(err), "%+v", err)

	ctas.Inputs = []plan.Operator{&plan.DummyScan{}, &plan.DummyScan{}}
	_, err = Lower(context.Background(), ctas)
	require.True(t, errors.HasAssertionFailure(err), "%+v", err)
}

func TestLowerInsert(t *testing.T) {
	ins := &plan.Insert{
		Table:  testTable(),
		Inputs: []plan.Operator{projectAll(plan.NewTableScan(testTable()))},
	}
	p := buildPlan(t, ins, DefaultOptions())
	r := rootRel(t, p)
	require.Equal(t, []string{"a", "b"}, r.Names)
	w := r.Input.GetWrite()
	require.Equal(t, pb.WriteRel_WRITE_OP_INSERT, w.Op)
	require.Equal(t, []string{"main", "t"}, w.GetNamedTable().GetNames())
	require.Equal(t, pb.Type_NULLABILITY_REQUIRED, w.TableSchema.Struct.Types[0].GetI32().GetNullability())
	require.Equal(t, pb.Type_NULLABILITY_NULLABLE, w.TableSchema.Struct.Types[1].GetString_().GetNullability())

	ins.Inputs = nil
	_, err := Lower(context.Background(), ins)
	require.Error(t, err)
}

func TestLowerUnsupported(t *testing.T) {
	scan := func() *plan.Get { return plan.NewTableScan(testTable()) }
	testCases := []struct {
		name string
		op   plan.Operator
		msg  string
	}{
		{
			name: "distinct over scan",
			op:   &plan.Distinct{Input: scan()},
			msg:  "found unexpected child type in Distinct operator",
		},
		{
			name: "window",
			op:   &plan.Window{Input: scan()},
			msg:  "logical operator",
		},
		{
			name: "scan without bind info",
			op:   &plan.Get{Names: []string{"a"}, ReturnedTypes: []*types.T{types.Int}},
			msg:  "get bind info is not yet implemented",
		},
		{
			name: "csv scan",
			op: &plan.Get{
				Names: []string{"a"}, ReturnedTypes: []*types.T{types.Int},
				Bind: &plan.BindInfo{Kind: plan.CSVScan},
			},
			msg: "scan type read_csv is not yet implemented",
		},
		{
			name: "non-literal values",
			op: &plan.ExpressionGet{
				Types: []*types.T{types.Int},
				Rows:  [][]plan.Expr{{plan.Ref(0, types.Int)}},
			},
			msg: "unimplemented type of expression to fetch literal",
		},
		{
			name: "not in",
			op: &plan.Projection{Input: scan(), Expressions: []plan.Expr{&plan.OperatorExpr{
				Op:       plan.CompareNotIn,
				Children: []plan.Expr{plan.Ref(0, types.Int), plan.Const(plan.NewInteger(1))},
				Typ:      types.Bool,
			}}},
			msg: "expression type COMPARE_NOT_IN not supported",
		},
		{
			name: "parameter",
			op: &plan.Projection{Input: scan(), Expressions: []plan.Expr{
				&plan.Parameter{Index: 1, Typ: types.Int},
			}},
			msg: "not supported",
		},
		{
			name: "decimal without physical width",
			op: &plan.Projection{Input: scan(), Expressions: []plan.Expr{
				plan.Const(mustDecimal(t, "1", 0, 0)),
			}},
			msg: "unsupported internal decimal width 0",
		},
		{
			name: "limit expression",
			op: &plan.Limit{
				Input: scan(),
				Limit: plan.LimitValue{Kind: plan.LimitExpression, Expr: plan.Const(plan.NewBigInt(1))},
			},
			msg: "unsupported limit value type",
		},
		{
			name: "bit type",
			op: &plan.Projection{Input: scan(), Expressions: []plan.Expr{
				&plan.Cast{Input: plan.Ref(0, types.Int), Typ: types.Bit},
			}},
			msg: "not implemented as Substrait schema result",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestBuilder().buildRelational(tc.op)
			require.True(t, errors.HasUnimplementedError(err), "%+v", err)
			require.ErrorContains(t, err, tc.msg)
		})
	}
}

func TestStrictMode(t *testing.T) {
	root := &plan.Projection{
		Input: plan.NewTableScan(testTable()),
		Expressions: []plan.Expr{
			plan.Call("mystery_fn", types.Int, plan.Ref(0, types.Int)),
			plan.Call("mystery_fn", types.Int, plan.Ref(0, types.Int)),
			plan.Call("other_fn", types.Int, plan.Ref(1, types.Varchar)),
		},
	}

	m := NewMetrics()
	_, err := New(context.Background(), root, Options{Strict: true, Metrics: m}).Build()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrStrictMode))
	require.True(t, strings.HasPrefix(err.Error(),
		"Strict Mode is set to true, and the following warnings/errors happened:\n"), err.Error())
	require.Contains(t, err.Error(), `Could not find function "mystery_fn" with argument types: ('i32?')`)
	require.Contains(t, err.Error(), `Could not find function "other_fn" with argument types: ('string?')`)
	require.Len(t, errors.GetAllDetails(err), 2)
	require.Equal(t, 1.0, testutil.ToFloat64(m.StrictFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(m.BuildFailures))
	require.Equal(t, 0, testutil.CollectAndCount(m.Relations))
	require.Equal(t, 0.0, testutil.ToFloat64(m.PlansBuilt))
	require.Equal(t, 2.0, testutil.ToFloat64(m.UnknownFunctions))

	// Without strict mode the functions are declared without a URI.
	p := buildPlan(t, root, DefaultOptions())
	require.Empty(t, p.ExtensionUris)
	require.Len(t, p.Extensions, 2)
	for _, d := range p.Extensions {
		require.Equal(t, uint32(0), d.GetExtensionFunction().GetExtensionUriReference())
	}
	exprs := rootRel(t, p).Input.GetProject().Expressions
	require.Equal(t, "mystery_fn", functionName(t, p, exprs[0].GetScalarFunction().FunctionReference))
	require.Equal(t, exprs[0].GetScalarFunction().FunctionReference, exprs[1].GetScalarFunction().FunctionReference)
	require.Equal(t, "other_fn", functionName(t, p, exprs[2].GetScalarFunction().FunctionReference))
}

func TestAnchorsAreStable(t *testing.T) {
	ref := plan.Ref(0, types.Int)
	five := plan.Const(plan.NewInteger(5))
	root := &plan.Projection{
		Input: plan.NewTableScan(testTable()),
		Expressions: []plan.Expr{
			plan.Cmp(plan.CompareEqual, ref, five),
			plan.Call("+", types.Int, ref, five),
			plan.Cmp(plan.CompareEqual, ref, five),
			plan.Call("add", types.Int, ref, five),
		},
	}
	p := buildPlan(t, root, DefaultOptions())
	require.Len(t, p.Extensions, 2)
	require.Len(t, p.ExtensionUris, 2)
	for i, d := range p.Extensions {
		require.Equal(t, uint32(i+1), d.GetExtensionFunction().GetFunctionAnchor())
	}
	exprs := rootRel(t, p).Input.GetProject().Expressions
	anchor := func(i int) uint32 { return exprs[i].GetScalarFunction().GetFunctionReference() }
	require.Equal(t, anchor(0), anchor(2))
	require.Equal(t, anchor(1), anchor(3))
	require.Equal(t, "add:i32_i32", functionName(t, p, anchor(1)))
}

func TestLowerScalars(t *testing.T) {
	ref := plan.Ref(0, types.Int)
	b := newTestBuilder()

	t.Run("case", func(t *testing.T) {
		e, err := b.buildScalar(&plan.Case{
			Checks: []plan.CaseCheck{{
				When: plan.Cmp(plan.CompareGreaterThan, ref, plan.Const(plan.NewInteger(0))),
				Then: plan.Const(plan.NewInteger(1)),
			}},
			Typ: types.BigInt,
		}, 0 /* colOffset */)
		require.NoError(t, err)
		ifThen := e.GetIfThen()
		require.Len(t, ifThen.Ifs, 1)
		require.NotNil(t, ifThen.Ifs[0].If.GetScalarFunction())
		then := ifThen.Ifs[0].Then.GetCast()
		require.NotNil(t, then.GetType().GetI64())
		els := ifThen.Else.GetCast()
		require.NotNil(t, els.GetType().GetI64())
		require.NotNil(t, els.Input.GetLiteral().GetNull().GetI64())
	})

	t.Run("in", func(t *testing.T) {
		e, err := b.buildScalar(&plan.OperatorExpr{
			Op:       plan.CompareIn,
			Children: []plan.Expr{ref, plan.Const(plan.NewInteger(1)), plan.Const(plan.NewInteger(2))},
			Typ:      types.Bool,
		}, 3 /* colOffset */)
		require.NoError(t, err)
		in := e.GetSingularOrList()
		require.Equal(t, int32(3), fieldIndex(t, in.Value))
		require.Len(t, in.Options, 2)
	})

	t.Run("unary", func(t *testing.T) {
		for op, name := range map[plan.ExprType]string{
			plan.OperatorIsNull:    "is_null:i32",
			plan.OperatorIsNotNull: "is_not_null:i32",
		} {
			b := newTestBuilder()
			e, err := b.buildScalar(&plan.OperatorExpr{Op: op, Children: []plan.Expr{ref}, Typ: types.Bool}, 0)
			require.NoError(t, err)
			fn := e.GetScalarFunction()
			require.Equal(t, name, b.funcs.Declarations()[fn.FunctionReference-1].GetExtensionFunction().GetName())
		}
		_, err := b.buildScalar(&plan.OperatorExpr{Op: plan.OperatorNot, Typ: types.Bool}, 0)
		require.True(t, errors.HasAssertionFailure(err))
	})

	t.Run("extract", func(t *testing.T) {
		b := newTestBuilder()
		e, err := b.buildScalar(plan.Call("year", types.BigInt, plan.Ref(0, types.Date)), 0)
		require.NoError(t, err)
		fn := e.GetScalarFunction()
		require.Len(t, fn.Arguments, 2)
		require.Equal(t, "year", fn.Arguments[0].GetEnum())
		require.Empty(t, b.funcs.Diagnostics())
		require.Equal(t, "extract:req_date", b.funcs.Declarations()[0].GetExtensionFunction().GetName())
	})

	t.Run("nested", func(t *testing.T) {
		st := types.MakeStruct(types.StructField{Name: "v", Type: types.Int})
		e, err := b.buildScalar(plan.Call("struct_pack", st, ref), 0)
		require.NoError(t, err)
		require.Len(t, e.GetNested().GetStruct().GetFields(), 1)

		e, err = b.buildScalar(plan.Call("list_value", types.MakeList(types.Int), ref, ref), 0)
		require.NoError(t, err)
		require.Len(t, e.GetNested().GetList().GetValues(), 2)

		e, err = b.buildScalar(plan.Call("map", types.MakeMap(types.Int, types.Int), ref, ref), 0)
		require.NoError(t, err)
		require.Len(t, e.GetNested().GetMap().GetKeyValues(), 1)

		_, err = b.buildScalar(plan.Call("map", types.MakeMap(types.Int, types.Int), ref), 0)
		require.True(t, errors.HasAssertionFailure(err))
	})

	t.Run("cast", func(t *testing.T) {
		e, err := b.buildScalar(&plan.Cast{Input: ref, Typ: types.Double}, 1)
		require.NoError(t, err)
		require.NotNil(t, e.GetCast().GetType().GetFp64())
		require.Equal(t, int32(1), fieldIndex(t, e.GetCast().Input))
	})
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewPedanticRegistry()
	for _, c := range m.Collectors() {
		require.NoError(t, reg.Register(c))
	}

	root := &plan.Projection{
		Input:       &plan.Limit{Input: plan.NewTableScan(testTable()), Limit: plan.ConstantLimit(1)},
		Expressions: []plan.Expr{plan.Ref(0, types.Int)},
	}
	_, err := New(context.Background(), root, Options{Metrics: m}).Build()
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.PlansBuilt))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Relations.WithLabelValues("read")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Relations.WithLabelValues("fetch")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Relations.WithLabelValues("project")))

	_, err = New(context.Background(), &plan.Projection{Input: &plan.Window{Input: &plan.DummyScan{}}},
		Options{Metrics: m}).Build()
	require.Error(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.BuildFailures))
	require.Equal(t, 0.0, testutil.ToFloat64(m.StrictFailures))

	// The scan is lowered before the parameter fails; failed builds emit no
	// relations.
	_, err = New(context.Background(), &plan.Projection{
		Input:       plan.NewTableScan(testTable()),
		Expressions: []plan.Expr{&plan.Parameter{Index: 1, Typ: types.Int}},
	}, Options{Metrics: m}).Build()
	require.Error(t, err)
	require.Equal(t, 2.0, testutil.ToFloat64(m.BuildFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Relations.WithLabelValues("read")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Relations.WithLabelValues("project")))

	_, err = New(context.Background(), nil, Options{Metrics: m}).Build()
	require.True(t, errors.HasAssertionFailure(err))
	require.Equal(t, 3.0, testutil.ToFloat64(m.BuildFailures))

	n, err := testutil.GatherAndCount(reg, "substrait_plans_built_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestProducer(t *testing.T) {
	root := projectAll(&plan.DummyScan{})
	root.Expressions = []plan.Expr{plan.Const(plan.NewInteger(1))}
	p := buildPlan(t, root, Options{Producer: "tester"})
	require.Equal(t, "tester", p.Version.GetProducer())
	p = buildPlan(t, root, Options{})
	require.Equal(t, DefaultProducer, p.Version.GetProducer())
}

func TestUnknownFunctionWarning(t *testing.T) {
	var buf bytes.Buffer
	defer log.SetOutput(&buf)()
	defer log.SetVerbosity(1)()

	root := &plan.Projection{
		Input:       plan.NewTableScan(testTable()),
		Expressions: []plan.Expr{plan.Call("mystery_fn", types.Int, plan.Ref(0, types.Int))},
	}
	buildPlan(t, root, DefaultOptions())
	out := buf.String()
	require.Contains(t, out, "level=warning")
	require.Contains(t, out, `Could not find function "mystery_fn"`)
	require.Contains(t, out, "substrait")
	require.Contains(t, out, "lowered plan: 2 relations")
}
