// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package subbuilder lowers a bound logical plan (plan.Operator) into a
// Substrait plan.
//
// A Builder walks the operator tree bottom-up. Each operator lowers its
// inputs first, then its own expressions, then assembles its relation. The
// function registry of the pass hands out the extension anchors referenced
// by the lowered expressions; once the whole tree is lowered the registry's
// declarations are attached to the plan.
package subbuilder

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/tosubstrait/pkg/sql/plan"
	"github.com/cockroachdb/tosubstrait/pkg/sql/substrait/funcreg"
	"github.com/cockroachdb/tosubstrait/pkg/util/log"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
)

// Version of the Substrait specification the produced plans conform to.
const (
	VersionMajor = 0
	VersionMinor = 53
	VersionPatch = 0
)

// DefaultProducer is the producer recorded in plans when Options.Producer
// is empty.
const DefaultProducer = "DuckDB"

// Options configures a Builder.
type Options struct {
	// Strict fails the build if any function call does not resolve to a
	// function of the catalog. Otherwise such calls are declared without an
	// extension URI.
	Strict bool
	// Producer is recorded in the plan version. Empty means DefaultProducer.
	Producer string
	// Catalog resolves function signatures. Nil means the embedded catalog.
	Catalog *funcreg.Catalog
	// Metrics, if set, is updated by every build.
	Metrics *Metrics
}

// DefaultOptions returns the options used by Lower.
func DefaultOptions() Options {
	return Options{Producer: DefaultProducer}
}

// unknownFunctionEvery limits the rate of warnings about unresolved
// functions in non-strict mode.
var unknownFunctionEvery = log.Every(10 * time.Second)

// Builder lowers one logical plan. A Builder is used for a single call to
// Build and is not safe for concurrent use; concurrent lowerings must use
// distinct Builders.
type Builder struct {
	ctx  context.Context
	opts Options
	root plan.Operator

	// funcs hands out the function anchors of this pass and accumulates the
	// extension declarations of the plan.
	funcs *funcreg.Registry

	// relations holds the kind of every relation emitted so far. They are
	// only counted in the metrics once the build succeeds.
	relations []string
}

// New constructs a Builder for the plan rooted at root. The Build method
// will lower it.
func New(ctx context.Context, root plan.Operator, opts Options) *Builder {
	if opts.Producer == "" {
		opts.Producer = DefaultProducer
	}
	return &Builder{
		ctx:   logtags.AddTag(ctx, "substrait", nil),
		opts:  opts,
		root:  root,
		funcs: funcreg.NewRegistry(opts.Catalog),
	}
}

// Lower lowers the plan rooted at root with DefaultOptions.
func Lower(ctx context.Context, root plan.Operator) (*Plan, error) {
	return New(ctx, root, DefaultOptions()).Build()
}

// Build lowers the plan and returns it if no error occurred. No partial plan
// is returned on error.
func (b *Builder) Build() (_ *Plan, err error) {
	defer func() {
		b.opts.Metrics.recordBuild(err)
	}()
	if b.root == nil {
		return nil, errors.AssertionFailedf("no plan to lower")
	}

	root, err := b.buildRoot(b.root)
	if err != nil {
		return nil, err
	}

	if diags := b.funcs.Diagnostics(); len(diags) > 0 {
		b.opts.Metrics.recordUnknownFunctions(len(diags))
		if b.opts.Strict {
			return nil, strictModeError(diags)
		}
		if log.V(1) || unknownFunctionEvery.ShouldLog() {
			for _, d := range diags {
				log.Warningf(b.ctx, "%s", d)
			}
		}
	}

	p := &pb.Plan{
		Version: &pb.Version{
			MajorNumber: VersionMajor,
			MinorNumber: VersionMinor,
			PatchNumber: VersionPatch,
			Producer:    b.opts.Producer,
		},
		ExtensionUris: b.funcs.URIs(),
		Extensions:    b.funcs.Declarations(),
		Relations: []*pb.PlanRel{{
			RelType: &pb.PlanRel_Root{Root: root},
		}},
	}
	b.opts.Metrics.recordRelations(b.relations)
	if log.V(1) {
		log.Infof(b.ctx, "lowered plan: %d relations, %d extension URIs, %d functions",
			len(b.relations), len(p.ExtensionUris), len(p.Extensions))
	}
	return &Plan{proto: p}, nil
}

// buildRoot lowers the tree rooted at op and names its output columns.
func (b *Builder) buildRoot(op plan.Operator) (*pb.RelRoot, error) {
	names, err := rootNames(op)
	if err != nil {
		return nil, err
	}
	input, err := b.buildRelational(op)
	if err != nil {
		return nil, err
	}
	return &pb.RelRoot{Input: input, Names: names}, nil
}
