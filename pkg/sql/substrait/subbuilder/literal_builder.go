// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"math"
	"math/big"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/plan"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
	"github.com/cockroachdb/tosubstrait/pkg/util/hugeint"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
)

const (
	microsPerSecond = 1_000_000
	microsPerDay    = 24 * 60 * 60 * microsPerSecond
)

// buildLiteral lowers a constant value.
func buildLiteral(v plan.Value) (*pb.Expression_Literal, error) {
	if v.IsNull() {
		typ, err := buildType(v.Type(), false /* notNull */)
		if err != nil {
			return nil, err
		}
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Null{Null: typ}}, nil
	}

	typ := v.Type()
	switch typ.ID() {
	case types.BooleanID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Boolean{Boolean: v.Bool()}}, nil

	case types.TinyIntID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I8{I8: int32(v.Int64())}}, nil

	case types.SmallIntID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I16{I16: int32(v.Int64())}}, nil

	case types.UTinyIntID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I16{I16: int32(v.Uint64())}}, nil

	case types.IntegerID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I32{I32: int32(v.Int64())}}, nil

	case types.USmallIntID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I32{I32: int32(v.Uint64())}}, nil

	case types.BigIntID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I64{I64: v.Int64()}}, nil

	case types.UIntegerID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I64{I64: int64(v.Uint64())}}, nil

	case types.UBigIntID:
		return decimalLiteral(hugeint.FromUint64(v.Uint64()), types.MaxDecimalWidth, 0), nil

	case types.HugeIntID:
		return decimalLiteral(v.HugeInt(), types.MaxDecimalWidth, 0), nil

	case types.FloatID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Fp32{Fp32: float32(v.Float64())}}, nil

	case types.DoubleID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Fp64{Fp64: v.Float64()}}, nil

	case types.DecimalID:
		coeff, err := decimalCoefficient(v.Decimal(), typ)
		if err != nil {
			return nil, err
		}
		return decimalLiteral(coeff, typ.Width(), typ.Scale()), nil

	case types.DateID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Date{Date: int32(v.Int64())}}, nil

	case types.TimeID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Time{Time: v.Int64()}}, nil

	case types.TimestampSecID, types.TimestampMsID, types.TimestampID, types.TimestampNsID,
		types.TimestampTZID:
		// Timestamps are emitted in their display form.
		return stringLiteral(v.String()), nil

	case types.IntervalID:
		return intervalLiteral(v.Interval())

	case types.VarcharID:
		return stringLiteral(v.Str()), nil

	case types.EnumID:
		return stringLiteral(v.String()), nil

	case types.BlobID:
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Binary{Binary: []byte(v.Str())}}, nil

	case types.UUIDID:
		id := v.UUID()
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Uuid{Uuid: id[:]}}, nil

	case types.StructID:
		fields := v.Fields()
		st := &pb.Expression_Literal_Struct{Fields: make([]*pb.Expression_Literal, len(fields))}
		for i, f := range fields {
			lit, err := buildLiteral(f)
			if err != nil {
				return nil, err
			}
			st.Fields[i] = lit
		}
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Struct_{Struct: st}}, nil
	}
	return nil, unimplementedf("consuming a value of type %s is not supported yet", typ)
}

func stringLiteral(s string) *pb.Expression_Literal {
	return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_String_{String_: s}}
}

// decimalLiteral encodes a 128-bit unscaled value as a Substrait decimal:
// 16 little-endian two's complement bytes.
func decimalLiteral(coeff hugeint.Int128, width, scale int) *pb.Expression_Literal {
	return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Decimal_{
		Decimal: &pb.Expression_Literal_Decimal{
			Value:     coeff.Bytes(),
			Precision: int32(width),
			Scale:     int32(scale),
		},
	}}
}

// decimalCoefficient returns the unscaled integer of d at the scale of typ.
// It fails if typ has no physical representation or if d does not fit in
// typ's precision.
func decimalCoefficient(d *apd.Decimal, typ *types.T) (hugeint.Int128, error) {
	if typ.PhysicalWidth() == 0 {
		return hugeint.Int128{}, unimplementedf("unsupported internal decimal width %d", typ.Width())
	}
	var q apd.Decimal
	ctx := apd.BaseContext.WithPrecision(types.MaxDecimalWidth)
	if _, err := ctx.Quantize(&q, d, -int32(typ.Scale())); err != nil {
		return hugeint.Int128{}, errors.Wrapf(err, "scaling %s to %s", d, typ)
	}
	coeff := q.Coeff.MathBigInt()
	if q.Negative {
		coeff.Neg(coeff)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(typ.Width())), nil)
	if new(big.Int).Abs(coeff).Cmp(limit) >= 0 {
		return hugeint.Int128{}, errors.Newf("value %s out of range for %s", d, typ)
	}
	return hugeint.FromBig(coeff)
}

// intervalLiteral lowers an interval. Substrait splits intervals into a
// year-to-month and a day-to-second kind; an interval with a month component
// keeps only its months, any other keeps only its days and microseconds.
// Whole days in the microsecond part are carried into the days, so the
// seconds always fit in an int32.
func intervalLiteral(iv plan.Interval) (*pb.Expression_Literal, error) {
	if iv.Months != 0 {
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_IntervalYearToMonth_{
			IntervalYearToMonth: &pb.Expression_Literal_IntervalYearToMonth{Months: iv.Months},
		}}, nil
	}
	days := int64(iv.Days) + iv.Micros/microsPerDay
	if days < math.MinInt32 || days > math.MaxInt32 {
		return nil, errors.Newf("interval of %d days and %d microseconds out of range", iv.Days, iv.Micros)
	}
	micros := iv.Micros % microsPerDay
	return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_IntervalDayToSecond_{
		IntervalDayToSecond: &pb.Expression_Literal_IntervalDayToSecond{
			Days:       int32(days),
			Seconds:    int32(micros / microsPerSecond),
			Subseconds: micros % microsPerSecond,
			PrecisionMode: &pb.Expression_Literal_IntervalDayToSecond_Precision{
				Precision: 6,
			},
		},
	}}, nil
}
