// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/types"
	"github.com/cockroachdb/tosubstrait/pkg/util/hugeint"
	"github.com/google/uuid"
)

// Interval is a calendar interval. The components are independent: a month
// does not have a fixed number of days.
type Interval struct {
	Months int32
	Days   int32
	Micros int64
}

// Value is a typed scalar value. The zero Value is invalid; use one of the
// constructors.
type Value struct {
	typ  *types.T
	null bool

	// i holds booleans, signed integers, dates (days since the epoch), times
	// (microseconds since midnight) and enum dictionary indexes.
	i int64
	u uint64
	h hugeint.Int128
	f float64
	// s holds strings, blob bytes and enum labels.
	s      string
	d      *apd.Decimal
	ts     time.Time
	iv     Interval
	id     uuid.UUID
	fields []Value
}

// NewNull returns the NULL value of the given type.
func NewNull(typ *types.T) Value { return Value{typ: typ, null: true} }

// NewBool returns a BOOLEAN value.
func NewBool(b bool) Value {
	v := Value{typ: types.Bool}
	if b {
		v.i = 1
	}
	return v
}

func NewTinyInt(i int8) Value   { return Value{typ: types.TinyInt, i: int64(i)} }
func NewSmallInt(i int16) Value { return Value{typ: types.SmallInt, i: int64(i)} }
func NewInteger(i int32) Value  { return Value{typ: types.Int, i: int64(i)} }
func NewBigInt(i int64) Value   { return Value{typ: types.BigInt, i: i} }

// NewHugeInt returns a HUGEINT value.
func NewHugeInt(h hugeint.Int128) Value { return Value{typ: types.HugeInt, h: h} }

func NewUTinyInt(u uint8) Value   { return Value{typ: types.UTinyInt, u: uint64(u)} }
func NewUSmallInt(u uint16) Value { return Value{typ: types.USmallInt, u: uint64(u)} }
func NewUInteger(u uint32) Value  { return Value{typ: types.UInt, u: uint64(u)} }
func NewUBigInt(u uint64) Value   { return Value{typ: types.UBigInt, u: u} }

func NewFloat(f float32) Value  { return Value{typ: types.Float, f: float64(f)} }
func NewDouble(f float64) Value { return Value{typ: types.Double, f: f} }

// NewDecimal returns a DECIMAL(width, scale) value. d is copied.
func NewDecimal(d *apd.Decimal, width, scale int) Value {
	return Value{typ: types.MakeDecimal(width, scale), d: new(apd.Decimal).Set(d)}
}

// ParseDecimal parses s as a DECIMAL(width, scale) value.
func ParseDecimal(s string, width, scale int) (Value, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Value{}, errors.Wrapf(err, "parsing decimal %q", s)
	}
	return Value{typ: types.MakeDecimal(width, scale), d: d}, nil
}

// NewDate returns a DATE value from a day count since 1970-01-01.
func NewDate(days int32) Value { return Value{typ: types.Date, i: int64(days)} }

// NewTime returns a TIME value from microseconds since midnight.
func NewTime(micros int64) Value { return Value{typ: types.Time, i: micros} }

// NewTimestamp returns a timestamp of the given type, truncated to the
// type's granularity.
func NewTimestamp(typ *types.T, t time.Time) Value {
	t = t.UTC()
	switch typ.ID() {
	case types.TimestampSecID:
		t = t.Truncate(time.Second)
	case types.TimestampMsID:
		t = t.Truncate(time.Millisecond)
	case types.TimestampID, types.TimestampTZID:
		t = t.Truncate(time.Microsecond)
	case types.TimestampNsID:
	default:
		panic(errors.AssertionFailedf("%s is not a timestamp type", typ.ID()))
	}
	return Value{typ: typ, ts: t}
}

// NewInterval returns an INTERVAL value.
func NewInterval(iv Interval) Value { return Value{typ: types.Interval, iv: iv} }

// NewVarchar returns a VARCHAR value.
func NewVarchar(s string) Value { return Value{typ: types.Varchar, s: s} }

// NewBlob returns a BLOB value. b is copied.
func NewBlob(b []byte) Value { return Value{typ: types.Blob, s: string(b)} }

// NewUUID returns a UUID value.
func NewUUID(id uuid.UUID) Value { return Value{typ: types.UUID, id: id} }

// NewEnum returns the value of an ENUM type at the given dictionary index.
func NewEnum(typ *types.T, idx int) Value {
	if typ.ID() != types.EnumID || idx < 0 || idx >= len(typ.EnumValues()) {
		panic(errors.AssertionFailedf("invalid enum index %d for %s", idx, typ))
	}
	return Value{typ: typ, i: int64(idx), s: typ.EnumValues()[idx]}
}

// NewStruct returns a STRUCT value with one value per field of typ.
func NewStruct(typ *types.T, fields ...Value) Value {
	if typ.ID() != types.StructID || len(fields) != len(typ.Fields()) {
		panic(errors.AssertionFailedf("%d values for %s", len(fields), typ))
	}
	return Value{typ: typ, fields: fields}
}

// Type returns the value's type.
func (v Value) Type() *types.T { return v.typ }

// IsNull returns true for NULL.
func (v Value) IsNull() bool { return v.null }

// Bool returns a BOOLEAN value.
func (v Value) Bool() bool { return v.i != 0 }

// Int64 returns a signed integer value, the day count of a DATE, the
// microseconds of a TIME or the dictionary index of an ENUM.
func (v Value) Int64() int64 { return v.i }

// Uint64 returns an unsigned integer value.
func (v Value) Uint64() uint64 { return v.u }

// HugeInt returns a HUGEINT value.
func (v Value) HugeInt() hugeint.Int128 { return v.h }

// Float64 returns a FLOAT or DOUBLE value.
func (v Value) Float64() float64 { return v.f }

// Str returns a VARCHAR value, the bytes of a BLOB or the label of an ENUM.
func (v Value) Str() string { return v.s }

// Decimal returns a DECIMAL value. The result must not be modified.
func (v Value) Decimal() *apd.Decimal { return v.d }

// Time returns a timestamp value in UTC.
func (v Value) Time() time.Time { return v.ts }

// Interval returns an INTERVAL value.
func (v Value) Interval() Interval { return v.iv }

// UUID returns a UUID value.
func (v Value) UUID() uuid.UUID { return v.id }

// Fields returns the members of a STRUCT value.
func (v Value) Fields() []Value { return v.fields }

// String returns the display form of the value.
func (v Value) String() string {
	if v.null {
		return "NULL"
	}
	switch v.typ.ID() {
	case types.BooleanID:
		return strconv.FormatBool(v.Bool())
	case types.TinyIntID, types.SmallIntID, types.IntegerID, types.BigIntID:
		return strconv.FormatInt(v.i, 10)
	case types.UTinyIntID, types.USmallIntID, types.UIntegerID, types.UBigIntID:
		return strconv.FormatUint(v.u, 10)
	case types.HugeIntID:
		return v.h.String()
	case types.FloatID:
		return formatFloat(v.f, 32)
	case types.DoubleID:
		return formatFloat(v.f, 64)
	case types.DecimalID:
		return v.d.Text('f')
	case types.DateID:
		return time.Unix(v.i*secondsPerDay, 0).UTC().Format("2006-01-02")
	case types.TimeID:
		return formatTimeOfDay(time.Duration(v.i) * time.Microsecond)
	case types.TimestampSecID, types.TimestampMsID, types.TimestampID, types.TimestampNsID:
		return v.ts.Format("2006-01-02 15:04:05.999999999")
	case types.TimestampTZID:
		return v.ts.Format("2006-01-02 15:04:05.999999") + "+00"
	case types.IntervalID:
		return formatInterval(v.iv)
	case types.VarcharID, types.EnumID:
		return v.s
	case types.BlobID:
		return formatBlob(v.s)
	case types.UUIDID:
		return v.id.String()
	case types.StructID:
		var b strings.Builder
		b.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "'%s': %s", v.typ.Fields()[i].Name, f.SQLString())
		}
		b.WriteByte('}')
		return b.String()
	}
	return fmt.Sprintf("<%s>", v.typ)
}

// SQLString returns the value as it would be written in a SQL statement:
// character data is quoted and other values are bare.
func (v Value) SQLString() string {
	if v.null {
		return "NULL"
	}
	switch v.typ.ID() {
	case types.VarcharID, types.EnumID, types.BlobID, types.UUIDID, types.DateID,
		types.TimeID, types.IntervalID:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'"
	}
	if v.typ.IsTimestamp() {
		return "'" + v.String() + "'"
	}
	return v.String()
}

const secondsPerDay = 24 * 60 * 60

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func formatTimeOfDay(d time.Duration) string {
	t := time.Unix(0, 0).UTC().Add(d)
	return t.Format("15:04:05.999999")
}

func formatInterval(iv Interval) string {
	var parts []string
	plural := func(n int64, unit string) {
		if n == 0 {
			return
		}
		s := strconv.FormatInt(n, 10) + " " + unit
		if n != 1 && n != -1 {
			s += "s"
		}
		parts = append(parts, s)
	}
	plural(int64(iv.Months/12), "year")
	plural(int64(iv.Months%12), "month")
	plural(int64(iv.Days), "day")
	if iv.Micros != 0 {
		micros := iv.Micros
		sign := ""
		if micros < 0 {
			sign = "-"
			micros = -micros
		}
		hours := micros / int64(time.Hour/time.Microsecond)
		rest := time.Duration(micros%int64(time.Hour/time.Microsecond)) * time.Microsecond
		parts = append(parts, fmt.Sprintf("%s%02d:%s", sign, hours, formatTimeOfDay(rest)[3:]))
	}
	if len(parts) == 0 {
		return "00:00:00"
	}
	return strings.Join(parts, " ")
}

func formatBlob(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '\\' && c != '\'' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "\\x%02X", c)
		}
	}
	return b.String()
}
