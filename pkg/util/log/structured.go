// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import "github.com/cockroachdb/redact"

// formatArgs formats the message. Redaction markers are *not* kept; the
// resulting string is generally unsafe for reporting.
func formatArgs(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return redact.Sprintf(format, args...).StripMarkers()
}
