// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package types defines the logical column types carried by bound plans.
package types

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/redact"
)

// ID identifies a logical type.
type ID uint8

const (
	// InvalidID is the zero value and is never a valid column type.
	InvalidID ID = iota
	BooleanID
	TinyIntID
	SmallIntID
	IntegerID
	BigIntID
	HugeIntID
	UTinyIntID
	USmallIntID
	UIntegerID
	UBigIntID
	FloatID
	DoubleID
	DecimalID
	DateID
	TimeID
	TimeTZID
	TimestampSecID
	TimestampMsID
	TimestampID
	TimestampNsID
	TimestampTZID
	IntervalID
	VarcharID
	BlobID
	UUIDID
	EnumID
	StructID
	ListID
	MapID
	BitID
	UnionID
)

var idNames = [...]string{
	InvalidID:      "INVALID",
	BooleanID:      "BOOLEAN",
	TinyIntID:      "TINYINT",
	SmallIntID:     "SMALLINT",
	IntegerID:      "INTEGER",
	BigIntID:       "BIGINT",
	HugeIntID:      "HUGEINT",
	UTinyIntID:     "UTINYINT",
	USmallIntID:    "USMALLINT",
	UIntegerID:     "UINTEGER",
	UBigIntID:      "UBIGINT",
	FloatID:        "FLOAT",
	DoubleID:       "DOUBLE",
	DecimalID:      "DECIMAL",
	DateID:         "DATE",
	TimeID:         "TIME",
	TimeTZID:       "TIME WITH TIME ZONE",
	TimestampSecID: "TIMESTAMP_S",
	TimestampMsID:  "TIMESTAMP_MS",
	TimestampID:    "TIMESTAMP",
	TimestampNsID:  "TIMESTAMP_NS",
	TimestampTZID:  "TIMESTAMP WITH TIME ZONE",
	IntervalID:     "INTERVAL",
	VarcharID:      "VARCHAR",
	BlobID:         "BLOB",
	UUIDID:         "UUID",
	EnumID:         "ENUM",
	StructID:       "STRUCT",
	ListID:         "LIST",
	MapID:          "MAP",
	BitID:          "BIT",
	UnionID:        "UNION",
}

func (id ID) String() string {
	if int(id) < len(idNames) {
		return idNames[id]
	}
	return fmt.Sprintf("ID(%d)", id)
}

// SafeValue implements the redact.SafeValue interface.
func (ID) SafeValue() {}

var _ redact.SafeValue = ID(0)

// MaxDecimalWidth is the largest decimal precision that fits the 128-bit
// physical representation.
const MaxDecimalWidth = 38

// StructField is a named member of a STRUCT or UNION type.
type StructField struct {
	Name string
	Type *T
}

// T is a logical type. Values are immutable once constructed and may be
// shared freely.
type T struct {
	id ID

	// width and scale are set for DECIMAL.
	width, scale uint8

	// fields is set for STRUCT and UNION.
	fields []StructField
	// elem is set for LIST.
	elem *T
	// key and value are set for MAP.
	key, value *T
	// enumValues is set for ENUM, in dictionary order.
	enumValues []string
}

// Singletons for the types without parameters.
var (
	Bool        = &T{id: BooleanID}
	TinyInt     = &T{id: TinyIntID}
	SmallInt    = &T{id: SmallIntID}
	Int         = &T{id: IntegerID}
	BigInt      = &T{id: BigIntID}
	HugeInt     = &T{id: HugeIntID}
	UTinyInt    = &T{id: UTinyIntID}
	USmallInt   = &T{id: USmallIntID}
	UInt        = &T{id: UIntegerID}
	UBigInt     = &T{id: UBigIntID}
	Float       = &T{id: FloatID}
	Double      = &T{id: DoubleID}
	Date        = &T{id: DateID}
	Time        = &T{id: TimeID}
	TimeTZ      = &T{id: TimeTZID}
	TimestampS  = &T{id: TimestampSecID}
	TimestampMs = &T{id: TimestampMsID}
	Timestamp   = &T{id: TimestampID}
	TimestampNs = &T{id: TimestampNsID}
	TimestampTZ = &T{id: TimestampTZID}
	Interval    = &T{id: IntervalID}
	Varchar     = &T{id: VarcharID}
	Blob        = &T{id: BlobID}
	UUID        = &T{id: UUIDID}
	Bit         = &T{id: BitID}
)

// MakeDecimal constructs a DECIMAL(width, scale). The arguments are not
// validated; lowering rejects widths without a physical representation.
func MakeDecimal(width, scale int) *T {
	return &T{id: DecimalID, width: uint8(width), scale: uint8(scale)}
}

// MakeStruct constructs a STRUCT with the given fields in order.
func MakeStruct(fields ...StructField) *T {
	return &T{id: StructID, fields: fields}
}

// MakeUnion constructs a UNION over the given members.
func MakeUnion(members ...StructField) *T {
	return &T{id: UnionID, fields: members}
}

// MakeList constructs a LIST of elem.
func MakeList(elem *T) *T {
	return &T{id: ListID, elem: elem}
}

// MakeMap constructs a MAP from key to value.
func MakeMap(key, value *T) *T {
	return &T{id: MapID, key: key, value: value}
}

// MakeEnum constructs an ENUM over the given dictionary.
func MakeEnum(values ...string) *T {
	return &T{id: EnumID, enumValues: values}
}

// ID returns the type's identifier.
func (t *T) ID() ID { return t.id }

// Width returns the decimal precision. It is zero for other types.
func (t *T) Width() int { return int(t.width) }

// Scale returns the decimal scale. It is zero for other types.
func (t *T) Scale() int { return int(t.scale) }

// Fields returns the members of a STRUCT or UNION.
func (t *T) Fields() []StructField { return t.fields }

// Elem returns the element type of a LIST.
func (t *T) Elem() *T { return t.elem }

// Key returns the key type of a MAP.
func (t *T) Key() *T { return t.key }

// Value returns the value type of a MAP.
func (t *T) Value() *T { return t.value }

// EnumValues returns the dictionary of an ENUM.
func (t *T) EnumValues() []string { return t.enumValues }

// PhysicalWidth returns the number of bits of the integer that stores a
// DECIMAL of this width, or 0 if the width has no physical representation.
func (t *T) PhysicalWidth() int {
	switch {
	case t.width == 0:
		return 0
	case t.width <= 4:
		return 16
	case t.width <= 9:
		return 32
	case t.width <= 18:
		return 64
	case t.width <= MaxDecimalWidth:
		return 128
	default:
		return 0
	}
}

// IsTimestamp returns true for the timestamp types of every granularity,
// with or without time zone.
func (t *T) IsTimestamp() bool {
	switch t.id {
	case TimestampSecID, TimestampMsID, TimestampID, TimestampNsID, TimestampTZID:
		return true
	}
	return false
}

// Identical returns true if t and o describe the same type.
func (t *T) Identical(o *T) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.id != o.id || t.width != o.width || t.scale != o.scale {
		return false
	}
	switch t.id {
	case StructID, UnionID:
		if len(t.fields) != len(o.fields) {
			return false
		}
		for i := range t.fields {
			if t.fields[i].Name != o.fields[i].Name || !t.fields[i].Type.Identical(o.fields[i].Type) {
				return false
			}
		}
	case ListID:
		return t.elem.Identical(o.elem)
	case MapID:
		return t.key.Identical(o.key) && t.value.Identical(o.value)
	case EnumID:
		if len(t.enumValues) != len(o.enumValues) {
			return false
		}
		for i := range t.enumValues {
			if t.enumValues[i] != o.enumValues[i] {
				return false
			}
		}
	}
	return true
}

// String returns the SQL spelling of the type, which Parse accepts.
func (t *T) String() string {
	var b strings.Builder
	t.format(&b)
	return b.String()
}

func (t *T) format(b *strings.Builder) {
	switch t.id {
	case DecimalID:
		fmt.Fprintf(b, "DECIMAL(%d,%d)", t.width, t.scale)
	case StructID, UnionID:
		b.WriteString(t.id.String())
		b.WriteByte('(')
		for i, f := range t.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteByte(' ')
			f.Type.format(b)
		}
		b.WriteByte(')')
	case ListID:
		t.elem.format(b)
		b.WriteString("[]")
	case MapID:
		b.WriteString("MAP(")
		t.key.format(b)
		b.WriteString(", ")
		t.value.format(b)
		b.WriteByte(')')
	case EnumID:
		b.WriteString("ENUM(")
		for i, v := range t.enumValues {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('\'')
			b.WriteString(strings.ReplaceAll(v, "'", "''"))
			b.WriteByte('\'')
		}
		b.WriteByte(')')
	default:
		b.WriteString(t.id.String())
	}
}
