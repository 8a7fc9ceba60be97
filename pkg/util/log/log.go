// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log is a thin structured-logging layer. Messages are formatted
// with redact, prefixed with the logging tags carried by the context, and
// emitted through a logrus logger.
package log

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/logtags"
	"github.com/sirupsen/logrus"
)

var logger = newLogger(os.Stderr)

// verbosity is the global V level. VEventf messages at or below it are
// emitted at debug severity.
var verbosity atomic.Int32

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return l
}

// SetOutput redirects all log output to w. It returns a function that
// restores the previous destination.
func SetOutput(w io.Writer) (restore func()) {
	prev := logger.Out
	logger.SetOutput(w)
	return func() { logger.SetOutput(prev) }
}

// SetVerbosity sets the global verbosity level and returns a function that
// restores the previous one.
func SetVerbosity(level int32) (restore func()) {
	prev := verbosity.Swap(level)
	return func() { verbosity.Store(prev) }
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return verbosity.Load() >= level
}

// ExpensiveLogEnabled is used to test whether effort should be used to
// produce log messages whose construction has a measurable cost.
func ExpensiveLogEnabled(ctx context.Context, level int32) bool {
	return V(level)
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Info(formatArgs(format, args))
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Warn(formatArgs(format, args))
}

// VEventf logs at debug severity if the verbosity is at least level.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if !V(level) {
		return
	}
	entry(ctx).WithField("v", level).Debug(formatArgs(format, args))
}

func entry(ctx context.Context) *logrus.Entry {
	tags := logtags.FromContext(ctx)
	if tags == nil {
		return logrus.NewEntry(logger)
	}
	fields := make(logrus.Fields, len(tags.Get()))
	for _, t := range tags.Get() {
		fields[t.Key()] = t.ValueStr()
	}
	return logger.WithFields(fields)
}
