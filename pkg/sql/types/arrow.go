// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package types

import (
	"github.com/apache/arrow/go/v11/arrow"
	"github.com/cockroachdb/errors"
)

// FromArrow returns the logical type that a columnar reader produces for a
// column of the given Arrow type.
func FromArrow(dt arrow.DataType) (*T, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return Bool, nil
	case arrow.INT8:
		return TinyInt, nil
	case arrow.INT16:
		return SmallInt, nil
	case arrow.INT32:
		return Int, nil
	case arrow.INT64:
		return BigInt, nil
	case arrow.UINT8:
		return UTinyInt, nil
	case arrow.UINT16:
		return USmallInt, nil
	case arrow.UINT32:
		return UInt, nil
	case arrow.UINT64:
		return UBigInt, nil
	case arrow.FLOAT16, arrow.FLOAT32:
		return Float, nil
	case arrow.FLOAT64:
		return Double, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return Varchar, nil
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return Blob, nil
	case arrow.DATE32, arrow.DATE64:
		return Date, nil
	case arrow.TIME32, arrow.TIME64:
		return Time, nil
	case arrow.TIMESTAMP:
		ts := dt.(*arrow.TimestampType)
		if ts.TimeZone != "" {
			return TimestampTZ, nil
		}
		switch ts.Unit {
		case arrow.Second:
			return TimestampS, nil
		case arrow.Millisecond:
			return TimestampMs, nil
		case arrow.Nanosecond:
			return TimestampNs, nil
		default:
			return Timestamp, nil
		}
	case arrow.INTERVAL_MONTHS, arrow.INTERVAL_DAY_TIME, arrow.INTERVAL_MONTH_DAY_NANO:
		return Interval, nil
	case arrow.DECIMAL128:
		dec := dt.(*arrow.Decimal128Type)
		return MakeDecimal(int(dec.Precision), int(dec.Scale)), nil
	case arrow.STRUCT:
		st := dt.(*arrow.StructType)
		fields := make([]StructField, len(st.Fields()))
		for i, f := range st.Fields() {
			typ, err := FromArrow(f.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", f.Name)
			}
			fields[i] = StructField{Name: f.Name, Type: typ}
		}
		return MakeStruct(fields...), nil
	case arrow.LIST:
		elem, err := FromArrow(dt.(*arrow.ListType).Elem())
		if err != nil {
			return nil, err
		}
		return MakeList(elem), nil
	case arrow.MAP:
		m := dt.(*arrow.MapType)
		key, err := FromArrow(m.KeyType())
		if err != nil {
			return nil, err
		}
		value, err := FromArrow(m.ItemType())
		if err != nil {
			return nil, err
		}
		return MakeMap(key, value), nil
	case arrow.DICTIONARY:
		return FromArrow(dt.(*arrow.DictionaryType).ValueType)
	}
	return nil, errors.Newf("unsupported arrow type %s", dt.Name())
}

// FromArrowSchema converts every field of s, returning the column names and
// types in order.
func FromArrowSchema(s *arrow.Schema) (names []string, typs []*T, _ error) {
	for _, f := range s.Fields() {
		typ, err := FromArrow(f.Type)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "column %q", f.Name)
		}
		names = append(names, f.Name)
		typs = append(typs, typ)
	}
	return names, typs, nil
}
