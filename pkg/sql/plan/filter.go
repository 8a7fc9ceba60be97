// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/redact"
	"golang.org/x/exp/maps"
)

// TableFilterType identifies the kind of a filter pushed into a scan.
type TableFilterType uint8

const (
	FilterConstantComparison TableFilterType = iota
	FilterIsNull
	FilterIsNotNull
	FilterConjunctionOr
	FilterConjunctionAnd
)

var tableFilterTypeNames = [...]string{
	FilterConstantComparison: "CONSTANT_COMPARISON",
	FilterIsNull:             "IS_NULL",
	FilterIsNotNull:          "IS_NOT_NULL",
	FilterConjunctionOr:      "CONJUNCTION_OR",
	FilterConjunctionAnd:     "CONJUNCTION_AND",
}

func (t TableFilterType) String() string {
	if int(t) < len(tableFilterTypeNames) {
		return tableFilterTypeNames[t]
	}
	return fmt.Sprintf("TableFilterType(%d)", t)
}

// SafeValue implements the redact.SafeValue interface.
func (TableFilterType) SafeValue() {}

var _ redact.SafeValue = TableFilterType(0)

// TableFilter is a predicate over a single scan column. Unlike Expr it does
// not reference its column; the column is implied by its position in a
// TableFilterSet.
type TableFilter interface {
	FilterType() TableFilterType
	// Format renders the filter applied to the named column.
	Format(column string) string
}

// ConstantFilter compares the column with a constant.
type ConstantFilter struct {
	Comparison ExprType
	Constant   Value
}

// IsNullFilter matches NULL values.
type IsNullFilter struct{}

// IsNotNullFilter matches non-NULL values.
type IsNotNullFilter struct{}

// ConjunctionAndFilter matches values that match every child.
type ConjunctionAndFilter struct {
	Children []TableFilter
}

// ConjunctionOrFilter matches values that match any child.
type ConjunctionOrFilter struct {
	Children []TableFilter
}

func (*ConstantFilter) FilterType() TableFilterType       { return FilterConstantComparison }
func (*IsNullFilter) FilterType() TableFilterType         { return FilterIsNull }
func (*IsNotNullFilter) FilterType() TableFilterType      { return FilterIsNotNull }
func (*ConjunctionAndFilter) FilterType() TableFilterType { return FilterConjunctionAnd }
func (*ConjunctionOrFilter) FilterType() TableFilterType  { return FilterConjunctionOr }

func (f *ConstantFilter) Format(column string) string {
	sym, ok := ComparisonSymbol(f.Comparison)
	if !ok {
		sym = f.Comparison.String()
	}
	return column + " " + sym + " " + f.Constant.SQLString()
}

func (*IsNullFilter) Format(column string) string    { return column + " IS NULL" }
func (*IsNotNullFilter) Format(column string) string { return column + " IS NOT NULL" }

func (f *ConjunctionAndFilter) Format(column string) string {
	return formatFilters(f.Children, column, " AND ")
}

func (f *ConjunctionOrFilter) Format(column string) string {
	return formatFilters(f.Children, column, " OR ")
}

func formatFilters(filters []TableFilter, column, sep string) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.Format(column)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// TableFilterSet maps source column indexes to the filter on that column.
type TableFilterSet map[int]TableFilter

// Columns returns the filtered columns in ascending order.
func (s TableFilterSet) Columns() []int {
	cols := maps.Keys(s)
	slices.Sort(cols)
	return cols
}
