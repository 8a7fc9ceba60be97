// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/parquet"
	"github.com/apache/arrow/go/v11/parquet/file"
	"github.com/apache/arrow/go/v11/parquet/pqarrow"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
)

// NewFileScan returns a Get of the given kind over paths, whose columns are
// described by schema.
func NewFileScan(kind ScanKind, schema *arrow.Schema, paths ...string) (*Get, error) {
	if len(paths) == 0 {
		return nil, errors.New("file scan requires at least one path")
	}
	names, typs, err := types.FromArrowSchema(schema)
	if err != nil {
		return nil, err
	}
	return &Get{
		Names:         names,
		ReturnedTypes: typs,
		Bind: &BindInfo{
			Kind:    kind,
			Options: map[string][]string{FilePathOption: paths},
		},
	}, nil
}

// NewParquetScan returns a parquet Get over paths. The columns are read from
// the footer of r, which holds the contents of the first file.
func NewParquetScan(r parquet.ReaderAtSeeker, paths ...string) (*Get, error) {
	reader, err := file.NewParquetReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading parquet footer")
	}
	defer reader.Close()
	md := reader.MetaData()
	schema, err := pqarrow.FromParquet(md.Schema, &pqarrow.ArrowReadProperties{}, md.KeyValueMetadata())
	if err != nil {
		return nil, errors.Wrap(err, "converting parquet schema")
	}
	return NewFileScan(ParquetScan, schema, paths...)
}
