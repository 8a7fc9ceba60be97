// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/substrait/funcreg"
)

// ErrStrictMode marks the error returned by Build in strict mode when some
// function calls could not be resolved. Use errors.Is to test for it.
var ErrStrictMode = errors.New("substrait strict mode violation")

// unimplementedf reports a construct that has no Substrait lowering.
func unimplementedf(format string, args ...interface{}) error {
	return errors.UnimplementedErrorf(errors.IssueLink{}, format, args...)
}

// strictModeError aggregates the diagnostics of a pass into one error. Each
// diagnostic is also attached as a detail.
func strictModeError(diags []funcreg.Diagnostic) error {
	var msg strings.Builder
	for _, d := range diags {
		msg.WriteString(d.String())
		msg.WriteByte('\n')
	}
	err := errors.Newf(
		"Strict Mode is set to true, and the following warnings/errors happened:\n%s", msg.String())
	for _, d := range diags {
		err = errors.WithDetail(err, d.String())
	}
	return errors.Mark(err, ErrStrictMode)
}
