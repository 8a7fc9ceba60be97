// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package types

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var simpleTypes = map[string]*T{
	"BOOLEAN":      Bool,
	"BOOL":         Bool,
	"LOGICAL":      Bool,
	"TINYINT":      TinyInt,
	"INT1":         TinyInt,
	"SMALLINT":     SmallInt,
	"INT2":         SmallInt,
	"SHORT":        SmallInt,
	"INTEGER":      Int,
	"INT":          Int,
	"INT4":         Int,
	"SIGNED":       Int,
	"BIGINT":       BigInt,
	"INT8":         BigInt,
	"LONG":         BigInt,
	"HUGEINT":      HugeInt,
	"INT128":       HugeInt,
	"UTINYINT":     UTinyInt,
	"USMALLINT":    USmallInt,
	"UINTEGER":     UInt,
	"UBIGINT":      UBigInt,
	"FLOAT":        Float,
	"FLOAT4":       Float,
	"REAL":         Float,
	"FLOAT8":       Double,
	"DATE":         Date,
	"TIMETZ":       TimeTZ,
	"TIMESTAMP_S":  TimestampS,
	"TIMESTAMP_MS": TimestampMs,
	"DATETIME":     Timestamp,
	"TIMESTAMP_US": Timestamp,
	"TIMESTAMP_NS": TimestampNs,
	"TIMESTAMPTZ":  TimestampTZ,
	"INTERVAL":     Interval,
	"VARCHAR":      Varchar,
	"STRING":       Varchar,
	"TEXT":         Varchar,
	"CHAR":         Varchar,
	"BPCHAR":       Varchar,
	"BLOB":         Blob,
	"BYTEA":        Blob,
	"BINARY":       Blob,
	"VARBINARY":    Blob,
	"UUID":         UUID,
	"BIT":          Bit,
	"BITSTRING":    Bit,
}

// Parse parses the SQL spelling of a type, as produced by T.String. Common
// aliases (INT, TEXT, TIMESTAMPTZ, ...) are accepted and type names are
// case-insensitive.
//
// Parse is the public entry point for callers that assemble plans from
// textual schemas, such as catalog dumps or column lists written by hand;
// the lowering itself only ever sees constructed types.
func Parse(s string) (*T, error) {
	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	p := parser{toks: toks}
	t, err := p.parseType()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing type %q", s)
	}
	if !p.done() {
		return nil, errors.Newf("parsing type %q: unexpected %q", s, p.toks[p.pos].text)
	}
	return t, nil
}

// MustParse is like Parse but panics on error. It is intended for tests and
// static initialization.
func MustParse(s string) *T {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

type tokenKind uint8

const (
	identTok tokenKind = iota
	numberTok
	stringTok
	punctTok
)

type token struct {
	kind tokenKind
	text string
}

func lex(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && (isIdentStart(s[j]) || isDigit(s[j])) {
				j++
			}
			toks = append(toks, token{kind: identTok, text: s[i:j]})
			i = j
		case isDigit(c):
			j := i + 1
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			toks = append(toks, token{kind: numberTok, text: s[i:j]})
			i = j
		case c == '\'' || c == '"':
			var b strings.Builder
			j := i + 1
			for {
				if j >= len(s) {
					return nil, errors.Newf("unterminated quote in %q", s)
				}
				if s[j] == c {
					if j+1 < len(s) && s[j+1] == c {
						b.WriteByte(c)
						j += 2
						continue
					}
					break
				}
				b.WriteByte(s[j])
				j++
			}
			kind := stringTok
			if c == '"' {
				kind = identTok
			}
			toks = append(toks, token{kind: kind, text: b.String()})
			i = j + 1
		case strings.IndexByte("(),[]", c) >= 0:
			toks = append(toks, token{kind: punctTok, text: s[i : i+1]})
			i++
		default:
			return nil, errors.Newf("unexpected character %q in %q", c, s)
		}
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool {
	return p.pos >= len(p.toks)
}

func (p *parser) peekPunct(text string) bool {
	return !p.done() && p.toks[p.pos].kind == punctTok && p.toks[p.pos].text == text
}

func (p *parser) peekKeyword(words ...string) bool {
	if p.pos+len(words) > len(p.toks) {
		return false
	}
	for i, w := range words {
		tok := p.toks[p.pos+i]
		if tok.kind != identTok || !strings.EqualFold(tok.text, w) {
			return false
		}
	}
	return true
}

func (p *parser) next(kind tokenKind, what string) (string, error) {
	if p.done() {
		return "", errors.Newf("expected %s, found end of input", what)
	}
	tok := p.toks[p.pos]
	if tok.kind != kind {
		return "", errors.Newf("expected %s, found %q", what, tok.text)
	}
	p.pos++
	return tok.text, nil
}

func (p *parser) expect(punct string) error {
	if !p.peekPunct(punct) {
		if p.done() {
			return errors.Newf("expected %q, found end of input", punct)
		}
		return errors.Newf("expected %q, found %q", punct, p.toks[p.pos].text)
	}
	p.pos++
	return nil
}

func (p *parser) number() (int, error) {
	s, err := p.next(numberTok, "number")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (p *parser) parseType() (*T, error) {
	name, err := p.next(identTok, "type name")
	if err != nil {
		return nil, err
	}
	var t *T
	switch upper := strings.ToUpper(name); upper {
	case "DECIMAL", "NUMERIC":
		t, err = p.parseDecimal()
	case "STRUCT", "ROW":
		var fields []StructField
		fields, err = p.parseFields()
		t = MakeStruct(fields...)
	case "UNION":
		var fields []StructField
		fields, err = p.parseFields()
		t = MakeUnion(fields...)
	case "MAP":
		t, err = p.parseMap()
	case "ENUM":
		t, err = p.parseEnum()
	case "LIST":
		if err = p.expect("("); err != nil {
			return nil, err
		}
		var elem *T
		if elem, err = p.parseType(); err != nil {
			return nil, err
		}
		t, err = MakeList(elem), p.expect(")")
	case "TIMESTAMP", "TIME":
		if p.peekKeyword("WITH", "TIME", "ZONE") {
			p.pos += 3
			t = TimestampTZ
			if upper == "TIME" {
				t = TimeTZ
			}
		} else if upper == "TIME" {
			t = Time
		} else {
			t = Timestamp
		}
	case "DOUBLE":
		if p.peekKeyword("PRECISION") {
			p.pos++
		}
		t = Double
	default:
		var ok bool
		if t, ok = simpleTypes[upper]; !ok {
			return nil, errors.Newf("unknown type %q", name)
		}
	}
	if err != nil {
		return nil, err
	}
	for p.peekPunct("[") {
		p.pos++
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		t = MakeList(t)
	}
	return t, nil
}

func (p *parser) parseDecimal() (*T, error) {
	// DECIMAL without modifiers is DECIMAL(18,3).
	width, scale := 18, 3
	if !p.peekPunct("(") {
		return MakeDecimal(width, scale), nil
	}
	p.pos++
	var err error
	if width, err = p.number(); err != nil {
		return nil, err
	}
	scale = 0
	if p.peekPunct(",") {
		p.pos++
		if scale, err = p.number(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if width < 1 || width > 255 || scale > width {
		return nil, errors.Newf("invalid decimal modifiers (%d,%d)", width, scale)
	}
	return MakeDecimal(width, scale), nil
}

func (p *parser) parseFields() ([]StructField, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var fields []StructField
	for {
		name, err := p.next(identTok, "field name")
		if err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, StructField{Name: name, Type: typ})
		if !p.peekPunct(",") {
			break
		}
		p.pos++
	}
	return fields, p.expect(")")
}

func (p *parser) parseMap() (*T, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	key, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	value, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return MakeMap(key, value), p.expect(")")
}

func (p *parser) parseEnum() (*T, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var values []string
	for {
		v, err := p.next(stringTok, "enum label")
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if !p.peekPunct(",") {
			break
		}
		p.pos++
	}
	return MakeEnum(values...), p.expect(")")
}
