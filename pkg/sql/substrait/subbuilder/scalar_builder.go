// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/plan"
	"github.com/cockroachdb/tosubstrait/pkg/sql/substrait/funcreg"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
)

// comparisonFuncs maps comparison expression types to Substrait functions.
var comparisonFuncs = map[plan.ExprType]string{
	plan.CompareEqual:                "equal",
	plan.CompareNotEqual:             "not_equal",
	plan.CompareLessThan:             "lt",
	plan.CompareLessThanOrEqualTo:    "lte",
	plan.CompareGreaterThan:          "gt",
	plan.CompareGreaterThanOrEqualTo: "gte",
	plan.CompareNotDistinctFrom:      "is_not_distinct_from",
}

var conjunctionFuncs = map[plan.ExprType]string{
	plan.ConjunctionAnd: "and",
	plan.ConjunctionOr:  "or",
}

// fieldRef references column idx of the input of the current relation.
func fieldRef(idx int) *pb.Expression {
	return &pb.Expression{RexType: &pb.Expression_Selection{
		Selection: &pb.Expression_FieldReference{
			ReferenceType: &pb.Expression_FieldReference_DirectReference{
				DirectReference: &pb.Expression_ReferenceSegment{
					ReferenceType: &pb.Expression_ReferenceSegment_StructField_{
						StructField: &pb.Expression_ReferenceSegment_StructField{Field: int32(idx)},
					},
				},
			},
			RootType: &pb.Expression_FieldReference_RootReference_{
				RootReference: &pb.Expression_FieldReference_RootReference{},
			},
		},
	}}
}

func valueArg(e *pb.Expression) *pb.FunctionArgument {
	return &pb.FunctionArgument{ArgType: &pb.FunctionArgument_Value{Value: e}}
}

// scalarCall calls the function with the given anchor.
func scalarCall(anchor uint32, out *pb.Type, args ...*pb.Expression) *pb.Expression {
	fn := &pb.Expression_ScalarFunction{
		FunctionReference: anchor,
		Arguments:         make([]*pb.FunctionArgument, len(args)),
		OutputType:        out,
	}
	for i, a := range args {
		fn.Arguments[i] = valueArg(a)
	}
	return &pb.Expression{RexType: &pb.Expression_ScalarFunction_{ScalarFunction: fn}}
}

func literalExpr(lit *pb.Expression_Literal) *pb.Expression {
	return &pb.Expression{RexType: &pb.Expression_Literal_{Literal: lit}}
}

func castExpr(input *pb.Expression, typ *pb.Type) *pb.Expression {
	return &pb.Expression{RexType: &pb.Expression_Cast_{Cast: &pb.Expression_Cast{
		Type:  typ,
		Input: input,
	}}}
}

// argTypes lowers the result types of exprs, as used to resolve a function
// over them.
func argTypes(exprs ...plan.Expr) ([]*pb.Type, error) {
	typs := make([]*pb.Type, len(exprs))
	for i, e := range exprs {
		t, err := buildType(e.ResultType(), false /* notNull */)
		if err != nil {
			return nil, err
		}
		typs[i] = t
	}
	return typs, nil
}

// buildScalar lowers e. colOffset is added to every column reference in e;
// it is non-zero when e references the right input of a join.
func (b *Builder) buildScalar(e plan.Expr, colOffset int) (*pb.Expression, error) {
	switch t := e.(type) {
	case *plan.ColumnRef:
		return fieldRef(t.Index + colOffset), nil

	case *plan.Cast:
		return b.buildCast(t, colOffset)

	case *plan.FunctionCall:
		return b.buildFunction(t, colOffset)

	case *plan.Constant:
		lit, err := buildLiteral(t.Value)
		if err != nil {
			return nil, err
		}
		return literalExpr(lit), nil

	case *plan.Comparison:
		return b.buildComparison(t, colOffset)

	case *plan.Conjunction:
		return b.buildConjunction(t, colOffset)

	case *plan.Between:
		return b.buildBetween(t, colOffset)

	case *plan.Case:
		return b.buildCase(t, colOffset)

	case *plan.OperatorExpr:
		switch t.Op {
		case plan.CompareIn:
			return b.buildIn(t, colOffset)
		case plan.OperatorIsNull:
			return b.buildUnaryOperator("is_null", t, colOffset)
		case plan.OperatorIsNotNull:
			return b.buildUnaryOperator("is_not_null", t, colOffset)
		case plan.OperatorNot:
			return b.buildUnaryOperator("not", t, colOffset)
		}
	}
	return nil, unimplementedf("expression type %s not supported", e.ExprType())
}

// buildScalars lowers each of exprs.
func (b *Builder) buildScalars(exprs []plan.Expr, colOffset int) ([]*pb.Expression, error) {
	res := make([]*pb.Expression, len(exprs))
	for i, e := range exprs {
		s, err := b.buildScalar(e, colOffset)
		if err != nil {
			return nil, err
		}
		res[i] = s
	}
	return res, nil
}

func (b *Builder) buildCast(c *plan.Cast, colOffset int) (*pb.Expression, error) {
	input, err := b.buildScalar(c.Input, colOffset)
	if err != nil {
		return nil, err
	}
	typ, err := buildType(c.Typ, false /* notNull */)
	if err != nil {
		return nil, err
	}
	return castExpr(input, typ), nil
}

// buildFunction lowers a scalar function call. The constructors of nested
// values become nested expressions rather than calls, and date/time field
// accessors become calls to extract.
func (b *Builder) buildFunction(fn *plan.FunctionCall, colOffset int) (*pb.Expression, error) {
	switch fn.Func {
	case "row", "struct_pack":
		fields, err := b.buildScalars(fn.Args, colOffset)
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_Nested_{Nested: &pb.Expression_Nested{
			NestedType: &pb.Expression_Nested_Struct_{
				Struct: &pb.Expression_Nested_Struct{Fields: fields},
			},
		}}}, nil

	case "list_value", "list_pack":
		values, err := b.buildScalars(fn.Args, colOffset)
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_Nested_{Nested: &pb.Expression_Nested{
			NestedType: &pb.Expression_Nested_List_{
				List: &pb.Expression_Nested_List{Values: values},
			},
		}}}, nil

	case "map":
		if len(fn.Args) != 2 {
			return nil, errors.AssertionFailedf("map constructor with %d arguments", len(fn.Args))
		}
		kv, err := b.buildScalars(fn.Args, colOffset)
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_Nested_{Nested: &pb.Expression_Nested{
			NestedType: &pb.Expression_Nested_Map_{Map: &pb.Expression_Nested_Map{
				KeyValues: []*pb.Expression_Nested_Map_KeyValue{{Key: kv[0], Value: kv[1]}},
			}},
		}}}, nil
	}

	name := fn.Func
	var args []*pb.FunctionArgument
	var typs []*pb.Type
	if field, ok := funcreg.ExtractField(name); ok {
		name = funcreg.ExtractName
		args = append(args, &pb.FunctionArgument{ArgType: &pb.FunctionArgument_Enum{Enum: field}})
		typs = append(typs, funcreg.EnumArg)
	}
	for _, a := range fn.Args {
		arg, err := b.buildScalar(a, colOffset)
		if err != nil {
			return nil, err
		}
		typ, err := buildType(a.ResultType(), false /* notNull */)
		if err != nil {
			return nil, err
		}
		args = append(args, valueArg(arg))
		typs = append(typs, typ)
	}
	out, err := buildType(fn.Typ, false /* notNull */)
	if err != nil {
		return nil, err
	}
	return &pb.Expression{RexType: &pb.Expression_ScalarFunction_{
		ScalarFunction: &pb.Expression_ScalarFunction{
			FunctionReference: b.funcs.Resolve(name, typs),
			Arguments:         args,
			OutputType:        out,
		},
	}}, nil
}

func (b *Builder) buildComparison(c *plan.Comparison, colOffset int) (*pb.Expression, error) {
	name, ok := comparisonFuncs[c.Op]
	if !ok {
		return nil, unimplementedf("comparison %s not supported", c.Op)
	}
	typs, err := argTypes(c.Left, c.Right)
	if err != nil {
		return nil, err
	}
	anchor := b.funcs.Resolve(name, typs)
	left, err := b.buildScalar(c.Left, colOffset)
	if err != nil {
		return nil, err
	}
	right, err := b.buildScalar(c.Right, colOffset)
	if err != nil {
		return nil, err
	}
	return scalarCall(anchor, boolType(), left, right), nil
}

func (b *Builder) buildConjunction(c *plan.Conjunction, colOffset int) (*pb.Expression, error) {
	name, ok := conjunctionFuncs[c.Op]
	if !ok {
		return nil, unimplementedf("conjunction %s not supported", c.Op)
	}
	args, err := b.buildScalars(c.Children, colOffset)
	if err != nil {
		return nil, err
	}
	typs, err := argTypes(c.Children...)
	if err != nil {
		return nil, err
	}
	return scalarCall(b.funcs.Resolve(name, typs), boolType(), args...), nil
}

// buildBetween lowers BETWEEN to between(input, lower, upper).
func (b *Builder) buildBetween(bt *plan.Between, colOffset int) (*pb.Expression, error) {
	typs, err := argTypes(bt.Input, bt.Lower, bt.Upper)
	if err != nil {
		return nil, err
	}
	anchor := b.funcs.Resolve("between", typs)
	args, err := b.buildScalars([]plan.Expr{bt.Input, bt.Lower, bt.Upper}, colOffset)
	if err != nil {
		return nil, err
	}
	return scalarCall(anchor, boolType(), args...), nil
}

// buildCase lowers CASE to an if-then chain. Every branch result is cast to
// the type of the CASE.
func (b *Builder) buildCase(c *plan.Case, colOffset int) (*pb.Expression, error) {
	typ, err := buildType(c.Typ, false /* notNull */)
	if err != nil {
		return nil, err
	}
	ifThen := &pb.Expression_IfThen{Ifs: make([]*pb.Expression_IfThen_IfClause, len(c.Checks))}
	for i, check := range c.Checks {
		when, err := b.buildScalar(check.When, colOffset)
		if err != nil {
			return nil, err
		}
		then, err := b.buildScalar(check.Then, colOffset)
		if err != nil {
			return nil, err
		}
		ifThen.Ifs[i] = &pb.Expression_IfThen_IfClause{If: when, Then: castExpr(then, typ)}
	}
	elseExpr := c.Else
	if elseExpr == nil {
		elseExpr = plan.Const(plan.NewNull(c.Typ))
	}
	els, err := b.buildScalar(elseExpr, colOffset)
	if err != nil {
		return nil, err
	}
	ifThen.Else = castExpr(els, typ)
	return &pb.Expression{RexType: &pb.Expression_IfThen_{IfThen: ifThen}}, nil
}

// buildIn lowers IN to a singular-or-list over the probe and the options.
func (b *Builder) buildIn(op *plan.OperatorExpr, colOffset int) (*pb.Expression, error) {
	if len(op.Children) == 0 {
		return nil, errors.AssertionFailedf("IN without probe")
	}
	probe, err := b.buildScalar(op.Children[0], colOffset)
	if err != nil {
		return nil, err
	}
	options, err := b.buildScalars(op.Children[1:], colOffset)
	if err != nil {
		return nil, err
	}
	return &pb.Expression{RexType: &pb.Expression_SingularOrList_{
		SingularOrList: &pb.Expression_SingularOrList{Value: probe, Options: options},
	}}, nil
}

// buildUnaryOperator lowers IS NULL, IS NOT NULL and NOT to a call of name
// over the single child of op.
func (b *Builder) buildUnaryOperator(
	name string, op *plan.OperatorExpr, colOffset int,
) (*pb.Expression, error) {
	if len(op.Children) != 1 {
		return nil, errors.AssertionFailedf("%s with %d arguments", op.Op, len(op.Children))
	}
	typs, err := argTypes(op.Children[0])
	if err != nil {
		return nil, err
	}
	anchor := b.funcs.Resolve(name, typs)
	arg, err := b.buildScalar(op.Children[0], colOffset)
	if err != nil {
		return nil, err
	}
	out, err := buildType(op.ResultType(), false /* notNull */)
	if err != nil {
		return nil, err
	}
	return scalarCall(anchor, out, arg), nil
}

// foldConjunction combines n predicates into and(and(p0, p1), p2)...; a
// single predicate is returned as is. build lowers predicate i.
func (b *Builder) foldConjunction(
	n int, build func(i int) (*pb.Expression, error),
) (*pb.Expression, error) {
	if n == 0 {
		return nil, errors.AssertionFailedf("conjunction of no predicates")
	}
	res, err := build(0)
	if err != nil {
		return nil, err
	}
	for i := 1; i < n; i++ {
		next, err := build(i)
		if err != nil {
			return nil, err
		}
		anchor := b.funcs.Resolve("and", []*pb.Type{boolType(), boolType()})
		res = scalarCall(anchor, boolType(), res, next)
	}
	return res, nil
}
