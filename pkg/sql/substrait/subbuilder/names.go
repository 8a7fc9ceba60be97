// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/plan"
)

// rootNames returns the output column names of the plan rooted at root,
// each followed by the depth-first names of its nested fields.
//
// The names are taken from the first projection found by descending from
// the root through single-input operators and the right input of set
// operations. A plan writing to a table is named after the table's columns.
//
// The planner may place a projection directly over a TopN while the
// aliases stay on a projection below the TopN. In that case the root's
// column references are resolved against the lower projection.
func rootNames(root plan.Operator) ([]string, error) {
	cur := root
	top, ok := root.(*plan.Projection)
	aliasesBelowTopN := ok && top.Input.Op() == plan.LogicalTopN
	if aliasesBelowTopN {
		cur = top.Input
	}

	var proj *plan.Projection
	for proj == nil {
		switch t := cur.(type) {
		case *plan.Projection:
			proj = t
			continue
		case *plan.CreateTable:
			return columnNames(t.Info.Columns), nil
		case *plan.Insert:
			return columnNames(t.Table.ColumnDefinitions()), nil
		}
		children := cur.Children()
		if cur.Op().IsSetOp() {
			cur = children[1]
			continue
		}
		if len(children) != 1 {
			return nil, errors.AssertionFailedf(
				"root node has %d children up to reaching a projection node: %s", len(children), cur.Op())
		}
		cur = children[0]
	}

	var names []string
	if !aliasesBelowTopN {
		for _, e := range proj.Expressions {
			names = append(names, e.Name())
			names = append(names, depthFirstNames(e.ResultType())...)
		}
		return names, nil
	}
	for _, e := range top.Expressions {
		ref, ok := e.(*plan.ColumnRef)
		if !ok {
			return nil, errors.AssertionFailedf("expected column reference above TopN, found %s", e.ExprType())
		}
		if ref.Index < 0 || ref.Index >= len(proj.Expressions) {
			return nil, errors.AssertionFailedf("column reference #%d out of range", ref.Index)
		}
		names = append(names, proj.Expressions[ref.Index].Name())
		names = append(names, depthFirstNames(ref.ResultType())...)
	}
	return names, nil
}

func columnNames(cols []plan.ColumnDefinition) []string {
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
		names = append(names, depthFirstNames(c.Type)...)
	}
	return names
}
