// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"fmt"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
)

// ScanKind identifies the function that produces the rows of a Get.
type ScanKind uint8

const (
	UnknownScan ScanKind = iota
	TableScan
	ParquetScan
	CSVScan
)

var scanKindNames = [...]string{
	UnknownScan: "unknown",
	TableScan:   "seq_scan",
	ParquetScan: "parquet_scan",
	CSVScan:     "read_csv",
}

func (k ScanKind) String() string {
	if int(k) < len(scanKindNames) {
		return scanKindNames[k]
	}
	return fmt.Sprintf("ScanKind(%d)", k)
}

// SafeValue implements the redact.SafeValue interface.
func (ScanKind) SafeValue() {}

var _ redact.SafeValue = ScanKind(0)

// FilePathOption is the option that lists the files of a file scan.
const FilePathOption = "file_path"

// BindInfo is the bind-time description of a scan.
type BindInfo struct {
	Kind ScanKind
	// Table is set for TableScan.
	Table TableEntry
	// Options holds the named options of a file scan.
	Options map[string][]string
}

// OptionList returns the values of a named option in order.
func (b *BindInfo) OptionList(name string) []string {
	return b.Options[name]
}

// ConstraintType identifies the kind of a table constraint.
type ConstraintType uint8

const (
	NotNullConstraintType ConstraintType = iota
	UniqueConstraintType
	CheckConstraintType
)

// Constraint is a table constraint.
type Constraint interface {
	ConstraintType() ConstraintType
}

// NotNullConstraint declares that a column never holds NULL.
type NotNullConstraint struct {
	Column int
}

// UniqueConstraint declares that a set of columns is unique.
type UniqueConstraint struct {
	Columns    []int
	PrimaryKey bool
}

// CheckConstraint is a CHECK constraint.
type CheckConstraint struct {
	Expr string
}

func (*NotNullConstraint) ConstraintType() ConstraintType { return NotNullConstraintType }
func (*UniqueConstraint) ConstraintType() ConstraintType  { return UniqueConstraintType }
func (*CheckConstraint) ConstraintType() ConstraintType   { return CheckConstraintType }

// TableEntry is the catalog view of a table.
type TableEntry interface {
	SchemaName() string
	TableName() string
	ColumnDefinitions() []ColumnDefinition
	TableConstraints() []Constraint
}

// Table is a TableEntry backed by plain data.
type Table struct {
	Schema      string
	Name        string
	Columns     []ColumnDefinition
	Constraints []Constraint
}

var _ TableEntry = (*Table)(nil)

func (t *Table) SchemaName() string                    { return t.Schema }
func (t *Table) TableName() string                     { return t.Name }
func (t *Table) ColumnDefinitions() []ColumnDefinition { return t.Columns }
func (t *Table) TableConstraints() []Constraint        { return t.Constraints }

// ColumnStatistics summarizes the values of a column.
type ColumnStatistics struct {
	CanHaveNull   bool
	CanHaveNoNull bool
	DistinctCount uint64
}

// StatisticsFunc returns the statistics of a source column, or nil if none
// are available.
type StatisticsFunc func(column int) *ColumnStatistics

// NewTableScan returns a Get over every column of t.
func NewTableScan(t TableEntry) *Get {
	cols := t.ColumnDefinitions()
	g := &Get{
		Names:         make([]string, len(cols)),
		ReturnedTypes: make([]*types.T, len(cols)),
		Bind:          &BindInfo{Kind: TableScan, Table: t},
	}
	for i, c := range cols {
		g.Names[i] = c.Name
		g.ReturnedTypes[i] = c.Type
	}
	return g
}
