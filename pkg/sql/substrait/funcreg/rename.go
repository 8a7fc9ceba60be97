// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package funcreg

import "strings"

// renames maps function spellings of the planner to their Substrait names.
var renames = map[string]string{
	"mod":             "modulus",
	"stddev":          "std_dev",
	"prefix":          "starts_with",
	"suffix":          "ends_with",
	"substr":          "substring",
	"length":          "char_length",
	"isnan":           "is_nan",
	"isfinite":        "is_finite",
	"isinf":           "is_infinite",
	"sum_no_overflow": "sum",
	"count_star":      "count",
	"~~":              "like",
	"*":               "multiply",
	"-":               "subtract",
	"+":               "add",
	"/":               "divide",
	"first":           "any_value",
	"!~~":             "not_equal",
	"&":               "bitwise_and",
	"|":               "bitwise_or",
	"xor":             "bitwise_xor",
	"strlen":          "octet_length",
}

// Rename returns the Substrait name of a function. Names without an entry
// are returned unchanged.
func Rename(name string) string {
	if r, ok := renames[name]; ok {
		return r
	}
	return name
}

var extractFields = map[string]struct{}{
	"year":         {},
	"month":        {},
	"day":          {},
	"decade":       {},
	"century":      {},
	"millenium":    {},
	"quarter":      {},
	"microsecond":  {},
	"milliseconds": {},
	"second":       {},
	"minute":       {},
	"hour":         {},
}

// ExtractName is the generic date/time field extraction function.
const ExtractName = "extract"

// ExtractField reports whether name is a date/time field accessor such as
// year() or hour(). Such calls are lowered to ExtractName with the field as
// a leading enumeration argument. The field is returned in lower case.
func ExtractField(name string) (field string, ok bool) {
	field = strings.ToLower(name)
	_, ok = extractFields[field]
	return field, ok
}
