// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package funcreg assigns the extension anchors of a plan. A Registry is
// created per lowering pass; it resolves function signatures against a
// Catalog and accumulates the extension URI and function declarations that
// the resulting plan must carry.
package funcreg

import (
	"fmt"
	"strings"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	"github.com/substrait-io/substrait-protobuf/go/substraitpb/extensions"
)

// Diagnostic describes a call to a function the catalog does not know.
type Diagnostic struct {
	Name     string
	ArgTypes []string
}

func (d Diagnostic) String() string {
	quoted := make([]string, len(d.ArgTypes))
	for i, a := range d.ArgTypes {
		quoted[i] = "'" + a + "'"
	}
	return fmt.Sprintf("Could not find function %q with argument types: (%s)",
		d.Name, strings.Join(quoted, ", "))
}

// Registry hands out function anchors. Anchors are assigned in order of first
// use starting at 1, separately for URIs and functions; URI anchor 0 means
// the function has no extension URI.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	catalog *Catalog

	uris       []*extensions.SimpleExtensionURI
	uriAnchors map[string]uint32

	decls       []*extensions.SimpleExtensionDeclaration
	funcAnchors map[funcKey]uint32

	diagnostics []Diagnostic
	seenDiags   map[string]struct{}
}

type funcKey struct {
	uri  string
	name string
}

// NewRegistry returns an empty registry resolving against catalog. A nil
// catalog means DefaultCatalog.
func NewRegistry(catalog *Catalog) *Registry {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Registry{
		catalog:     catalog,
		uriAnchors:  make(map[string]uint32),
		funcAnchors: make(map[funcKey]uint32),
		seenDiags:   make(map[string]struct{}),
	}
}

// Resolve returns the anchor of the function name applied to arguments of
// the given types, declaring the function (and its extension URI) on first
// use. name is first mapped through Rename.
//
// A signature the catalog knows is declared under its compound name, e.g.
// "add:i32_i32". An unknown one is declared under its bare name without a
// URI and recorded as a Diagnostic.
func (r *Registry) Resolve(name string, args []*pb.Type) uint32 {
	name = Rename(name)
	argNames := make([]string, len(args))
	for i, a := range args {
		argNames[i] = TypeName(a)
	}

	key := funcKey{name: name}
	if uri, ok := r.catalog.Lookup(name, args); ok {
		key = funcKey{uri: uri, name: name + ":" + strings.Join(argNames, "_")}
	} else {
		r.addDiagnostic(name, args)
	}
	if anchor, ok := r.funcAnchors[key]; ok {
		return anchor
	}

	var uriRef uint32
	if key.uri != "" {
		uriRef = r.uriAnchor(key.uri)
	}
	anchor := uint32(len(r.decls) + 1)
	r.decls = append(r.decls, &extensions.SimpleExtensionDeclaration{
		MappingType: &extensions.SimpleExtensionDeclaration_ExtensionFunction_{
			ExtensionFunction: &extensions.SimpleExtensionDeclaration_ExtensionFunction{
				ExtensionUriReference: uriRef,
				FunctionAnchor:        anchor,
				Name:                  key.name,
			},
		},
	})
	r.funcAnchors[key] = anchor
	return anchor
}

func (r *Registry) uriAnchor(uri string) uint32 {
	if anchor, ok := r.uriAnchors[uri]; ok {
		return anchor
	}
	anchor := uint32(len(r.uris) + 1)
	r.uris = append(r.uris, &extensions.SimpleExtensionURI{
		ExtensionUriAnchor: anchor,
		Uri:                uri,
	})
	r.uriAnchors[uri] = anchor
	return anchor
}

func (r *Registry) addDiagnostic(name string, args []*pb.Type) {
	d := Diagnostic{Name: name, ArgTypes: make([]string, len(args))}
	for i, a := range args {
		d.ArgTypes[i] = TypeString(a)
	}
	s := d.String()
	if _, ok := r.seenDiags[s]; ok {
		return
	}
	r.seenDiags[s] = struct{}{}
	r.diagnostics = append(r.diagnostics, d)
}

// URIs returns the extension URI declarations in anchor order.
func (r *Registry) URIs() []*extensions.SimpleExtensionURI {
	return r.uris
}

// Declarations returns the extension function declarations in anchor order.
func (r *Registry) Declarations() []*extensions.SimpleExtensionDeclaration {
	return r.decls
}

// Diagnostics returns one entry per distinct unknown signature, in order of
// first use.
func (r *Registry) Diagnostics() []Diagnostic {
	return r.diagnostics
}
