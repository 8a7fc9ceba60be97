// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
)

func nullability(notNull bool) pb.Type_Nullability {
	if notNull {
		return pb.Type_NULLABILITY_REQUIRED
	}
	return pb.Type_NULLABILITY_NULLABLE
}

// timestampPrecision returns the number of fractional second digits of a
// timestamp type without time zone.
func timestampPrecision(typ *types.T) (int32, error) {
	switch typ.ID() {
	case types.TimestampSecID:
		return 0, nil
	case types.TimestampMsID:
		return 3, nil
	case types.TimestampID:
		return 6, nil
	case types.TimestampNsID:
		return 9, nil
	}
	return 0, errors.AssertionFailedf("%s has no timestamp precision", typ.ID())
}

// buildType lowers typ. Unsigned integers are widened to the next signed
// type; HUGEINT and UBIGINT become DECIMAL(38, 0). notNull applies to nested
// types as well.
func buildType(typ *types.T, notNull bool) (*pb.Type, error) {
	n := nullability(notNull)
	switch typ.ID() {
	case types.BooleanID:
		return &pb.Type{Kind: &pb.Type_Bool{Bool: &pb.Type_Boolean{Nullability: n}}}, nil

	case types.TinyIntID:
		return &pb.Type{Kind: &pb.Type_I8_{I8: &pb.Type_I8{Nullability: n}}}, nil

	case types.UTinyIntID, types.SmallIntID:
		return &pb.Type{Kind: &pb.Type_I16_{I16: &pb.Type_I16{Nullability: n}}}, nil

	case types.USmallIntID, types.IntegerID:
		return &pb.Type{Kind: &pb.Type_I32_{I32: &pb.Type_I32{Nullability: n}}}, nil

	case types.UIntegerID, types.BigIntID:
		return &pb.Type{Kind: &pb.Type_I64_{I64: &pb.Type_I64{Nullability: n}}}, nil

	case types.UBigIntID, types.HugeIntID:
		return decimalType(types.MaxDecimalWidth, 0, n), nil

	case types.FloatID:
		return &pb.Type{Kind: &pb.Type_Fp32{Fp32: &pb.Type_FP32{Nullability: n}}}, nil

	case types.DoubleID:
		return &pb.Type{Kind: &pb.Type_Fp64{Fp64: &pb.Type_FP64{Nullability: n}}}, nil

	case types.DecimalID:
		return decimalType(typ.Width(), typ.Scale(), n), nil

	case types.DateID:
		return &pb.Type{Kind: &pb.Type_Date_{Date: &pb.Type_Date{Nullability: n}}}, nil

	case types.TimeID, types.TimeTZID:
		return &pb.Type{Kind: &pb.Type_Time_{Time: &pb.Type_Time{Nullability: n}}}, nil

	case types.TimestampSecID, types.TimestampMsID, types.TimestampID, types.TimestampNsID:
		precision, err := timestampPrecision(typ)
		if err != nil {
			return nil, err
		}
		return &pb.Type{Kind: &pb.Type_PrecisionTimestamp_{
			PrecisionTimestamp: &pb.Type_PrecisionTimestamp{Precision: precision, Nullability: n},
		}}, nil

	case types.TimestampTZID:
		// Timestamps with time zone are always stored in microseconds.
		return &pb.Type{Kind: &pb.Type_PrecisionTimestampTz{
			PrecisionTimestampTz: &pb.Type_PrecisionTimestampTZ{Precision: 6, Nullability: n},
		}}, nil

	case types.IntervalID:
		return &pb.Type{Kind: &pb.Type_IntervalDay_{IntervalDay: &pb.Type_IntervalDay{Nullability: n}}}, nil

	case types.VarcharID:
		return &pb.Type{Kind: &pb.Type_String_{String_: &pb.Type_String{Nullability: n}}}, nil

	case types.BlobID:
		return &pb.Type{Kind: &pb.Type_Binary_{Binary: &pb.Type_Binary{Nullability: n}}}, nil

	case types.UUIDID:
		return &pb.Type{Kind: &pb.Type_Uuid{Uuid: &pb.Type_UUID{Nullability: n}}}, nil

	case types.EnumID:
		return &pb.Type{Kind: &pb.Type_UserDefined_{UserDefined: &pb.Type_UserDefined{Nullability: n}}}, nil

	case types.StructID:
		fields := typ.Fields()
		st := &pb.Type_Struct{Types: make([]*pb.Type, len(fields)), Nullability: n}
		for i, f := range fields {
			ft, err := buildType(f.Type, notNull)
			if err != nil {
				return nil, err
			}
			st.Types[i] = ft
		}
		return &pb.Type{Kind: &pb.Type_Struct_{Struct: st}}, nil

	case types.ListID:
		elem, err := buildType(typ.Elem(), notNull)
		if err != nil {
			return nil, err
		}
		return &pb.Type{Kind: &pb.Type_List_{List: &pb.Type_List{Type: elem, Nullability: n}}}, nil

	case types.MapID:
		key, err := buildType(typ.Key(), notNull)
		if err != nil {
			return nil, err
		}
		val, err := buildType(typ.Value(), notNull)
		if err != nil {
			return nil, err
		}
		return &pb.Type{Kind: &pb.Type_Map_{Map: &pb.Type_Map{Key: key, Value: val, Nullability: n}}}, nil
	}
	return nil, unimplementedf("logical type %s not implemented as Substrait schema result", typ)
}

func decimalType(width, scale int, n pb.Type_Nullability) *pb.Type {
	return &pb.Type{Kind: &pb.Type_Decimal_{Decimal: &pb.Type_Decimal{
		Precision:   int32(width),
		Scale:       int32(scale),
		Nullability: n,
	}}}
}

// boolType is the type of predicates.
func boolType() *pb.Type {
	return &pb.Type{Kind: &pb.Type_Bool{Bool: &pb.Type_Boolean{Nullability: pb.Type_NULLABILITY_NULLABLE}}}
}

// depthFirstNames returns the names of the fields nested in typ, each
// followed by the names nested in its own type. Non-struct types have no
// nested names.
func depthFirstNames(typ *types.T) []string {
	var names []string
	var walk func(t *types.T)
	walk = func(t *types.T) {
		if t.ID() != types.StructID {
			return
		}
		for _, f := range t.Fields() {
			names = append(names, f.Name)
			walk(f.Type)
		}
	}
	walk(typ)
	return names
}
