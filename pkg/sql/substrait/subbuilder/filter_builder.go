// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"github.com/cockroachdb/tosubstrait/pkg/sql/plan"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
)

// tableFilterFuncs lists the comparisons a constant table filter may use.
var tableFilterFuncs = map[plan.ExprType]string{
	plan.CompareEqual:                "equal",
	plan.CompareLessThan:             "lt",
	plan.CompareLessThanOrEqualTo:    "lte",
	plan.CompareGreaterThan:          "gt",
	plan.CompareGreaterThanOrEqualTo: "gte",
}

// buildTableFilters lowers the filters pushed into a scan into one
// predicate over the scan's base schema, in ascending column order.
func (b *Builder) buildTableFilters(scan *plan.Get) (*pb.Expression, error) {
	cols := scan.Filters.Columns()
	return b.foldConjunction(len(cols), func(i int) (*pb.Expression, error) {
		col := cols[i]
		return b.buildTableFilter(col, scan.ReturnedTypes[col], scan.Filters[col])
	})
}

// buildTableFilter lowers filter f on column col of type colType.
func (b *Builder) buildTableFilter(
	col int, colType *types.T, f plan.TableFilter,
) (*pb.Expression, error) {
	switch t := f.(type) {
	case *plan.IsNotNullFilter:
		typ, err := buildType(colType, false /* notNull */)
		if err != nil {
			return nil, err
		}
		anchor := b.funcs.Resolve("is_not_null", []*pb.Type{typ})
		return scalarCall(anchor, boolType(), fieldRef(col)), nil

	case *plan.ConjunctionAndFilter:
		return b.foldConjunction(len(t.Children), func(i int) (*pb.Expression, error) {
			return b.buildTableFilter(col, colType, t.Children[i])
		})

	case *plan.ConstantFilter:
		name, ok := tableFilterFuncs[t.Comparison]
		if !ok {
			return nil, unimplementedf("table filter comparison %s not supported", t.Comparison)
		}
		lit, err := buildLiteral(t.Constant)
		if err != nil {
			return nil, err
		}
		colTyp, err := buildType(colType, false /* notNull */)
		if err != nil {
			return nil, err
		}
		constTyp, err := buildType(t.Constant.Type(), false /* notNull */)
		if err != nil {
			return nil, err
		}
		anchor := b.funcs.Resolve(name, []*pb.Type{colTyp, constTyp})
		return scalarCall(anchor, boolType(), fieldRef(col), literalExpr(lit)), nil
	}
	return nil, unimplementedf("table filter type %s not supported", f.FilterType())
}
