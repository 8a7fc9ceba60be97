// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package funcreg

import (
	"fmt"
	"strings"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
)

// EnumArg stands for an enumeration argument in a signature passed to
// Registry.Resolve. Enumeration arguments have no type.
var EnumArg *pb.Type

// TypeName returns the short signature name of t, as used in compound
// function names ("i32", "dec", "pts", ...). EnumArg renders as "req".
func TypeName(t *pb.Type) string {
	if t == nil {
		return "req"
	}
	switch t.GetKind().(type) {
	case *pb.Type_Bool:
		return "bool"
	case *pb.Type_I8_:
		return "i8"
	case *pb.Type_I16_:
		return "i16"
	case *pb.Type_I32_:
		return "i32"
	case *pb.Type_I64_:
		return "i64"
	case *pb.Type_Fp32:
		return "fp32"
	case *pb.Type_Fp64:
		return "fp64"
	case *pb.Type_String_:
		return "str"
	case *pb.Type_Binary_:
		return "vbin"
	case *pb.Type_Timestamp_:
		return "ts"
	case *pb.Type_TimestampTz:
		return "tstz"
	case *pb.Type_Date_:
		return "date"
	case *pb.Type_Time_:
		return "time"
	case *pb.Type_IntervalYear_:
		return "iyear"
	case *pb.Type_IntervalDay_:
		return "iday"
	case *pb.Type_Uuid:
		return "uuid"
	case *pb.Type_FixedChar_:
		return "fchar"
	case *pb.Type_Varchar:
		return "vchar"
	case *pb.Type_FixedBinary_:
		return "fbin"
	case *pb.Type_Decimal_:
		return "dec"
	case *pb.Type_PrecisionTimestamp_:
		return "pts"
	case *pb.Type_PrecisionTimestampTz:
		return "ptstz"
	case *pb.Type_Struct_:
		return "struct"
	case *pb.Type_List_:
		return "list"
	case *pb.Type_Map_:
		return "map"
	case *pb.Type_UserDefined_:
		return "u!udt"
	}
	return "unknown"
}

type nullable interface {
	GetNullability() pb.Type_Nullability
}

// TypeString renders t in the Substrait type syntax, e.g. "i32?",
// "decimal<38,0>" or "struct?<i32, string>". A trailing "?" marks a
// nullable type.
func TypeString(t *pb.Type) string {
	if t == nil {
		return "enum"
	}
	var (
		name   string
		n      nullable
		params string
	)
	switch k := t.GetKind().(type) {
	case *pb.Type_Bool:
		name, n = "boolean", k.Bool
	case *pb.Type_I8_:
		name, n = "i8", k.I8
	case *pb.Type_I16_:
		name, n = "i16", k.I16
	case *pb.Type_I32_:
		name, n = "i32", k.I32
	case *pb.Type_I64_:
		name, n = "i64", k.I64
	case *pb.Type_Fp32:
		name, n = "fp32", k.Fp32
	case *pb.Type_Fp64:
		name, n = "fp64", k.Fp64
	case *pb.Type_String_:
		name, n = "string", k.String_
	case *pb.Type_Binary_:
		name, n = "binary", k.Binary
	case *pb.Type_Date_:
		name, n = "date", k.Date
	case *pb.Type_Time_:
		name, n = "time", k.Time
	case *pb.Type_IntervalYear_:
		name, n = "interval_year", k.IntervalYear
	case *pb.Type_IntervalDay_:
		name, n = "interval_day", k.IntervalDay
	case *pb.Type_Uuid:
		name, n = "uuid", k.Uuid
	case *pb.Type_Decimal_:
		name, n = "decimal", k.Decimal
		params = fmt.Sprintf("<%d,%d>", k.Decimal.GetPrecision(), k.Decimal.GetScale())
	case *pb.Type_PrecisionTimestamp_:
		name, n = "precision_timestamp", k.PrecisionTimestamp
		params = fmt.Sprintf("<%d>", k.PrecisionTimestamp.GetPrecision())
	case *pb.Type_PrecisionTimestampTz:
		name, n = "precision_timestamp_tz", k.PrecisionTimestampTz
		params = fmt.Sprintf("<%d>", k.PrecisionTimestampTz.GetPrecision())
	case *pb.Type_Struct_:
		name, n = "struct", k.Struct
		params = "<" + joinTypes(k.Struct.GetTypes()) + ">"
	case *pb.Type_List_:
		name, n = "list", k.List
		params = "<" + TypeString(k.List.GetType()) + ">"
	case *pb.Type_Map_:
		name, n = "map", k.Map
		params = "<" + joinTypes([]*pb.Type{k.Map.GetKey(), k.Map.GetValue()}) + ">"
	case *pb.Type_UserDefined_:
		name, n = fmt.Sprintf("u!%d", k.UserDefined.GetTypeReference()), k.UserDefined
	default:
		return TypeName(t)
	}
	if n.GetNullability() == pb.Type_NULLABILITY_NULLABLE {
		name += "?"
	}
	return name + params
}

func joinTypes(typs []*pb.Type) string {
	parts := make([]string, len(typs))
	for i, t := range typs {
		parts[i] = TypeString(t)
	}
	return strings.Join(parts, ", ")
}
