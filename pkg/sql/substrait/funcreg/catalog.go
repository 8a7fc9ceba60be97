// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package funcreg

import (
	"bytes"
	_ "embed"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog lists the functions declared by extension documents, with the
// argument signatures each one accepts.
type Catalog struct {
	// funcs maps a function name to its implementations in document order.
	funcs map[string][]impl
	uris  []string
}

type impl struct {
	uri      string
	args     []string
	variadic bool
}

type catalogDoc struct {
	Extensions []struct {
		URI       string `yaml:"uri"`
		Functions []struct {
			Name  string   `yaml:"name"`
			Impls []string `yaml:"impls"`
		} `yaml:"functions"`
	} `yaml:"extensions"`
}

// LoadCatalog parses a catalog document.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc catalogDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "parsing function catalog")
	}
	c := &Catalog{funcs: make(map[string][]impl)}
	for _, ext := range doc.Extensions {
		if ext.URI == "" {
			return nil, errors.New("function catalog: extension without uri")
		}
		c.uris = append(c.uris, ext.URI)
		for _, fn := range ext.Functions {
			if fn.Name == "" {
				return nil, errors.Newf("function catalog: unnamed function in %s", ext.URI)
			}
			for _, sig := range fn.Impls {
				im, err := parseImpl(ext.URI, sig)
				if err != nil {
					return nil, errors.Wrapf(err, "function catalog: %s", fn.Name)
				}
				c.funcs[fn.Name] = append(c.funcs[fn.Name], im)
			}
		}
	}
	return c, nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := LoadCatalog(bytes.NewReader(defaultCatalogYAML))
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "embedded function catalog"))
	}
	return c
})

// DefaultCatalog returns the catalog of the standard Substrait extension
// documents. It is parsed once and shared.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

func parseImpl(uri, sig string) (impl, error) {
	im := impl{uri: uri}
	if sig == "" {
		return im, nil
	}
	if strings.HasSuffix(sig, "...") {
		im.variadic = true
		sig = strings.TrimSuffix(sig, "...")
	}
	im.args = strings.Split(sig, "_")
	for _, a := range im.args {
		if a == "" {
			return impl{}, errors.Newf("malformed signature %q", sig)
		}
	}
	return im, nil
}

// Lookup returns the URI of the first extension that declares name with a
// signature accepting args.
func (c *Catalog) Lookup(name string, args []*pb.Type) (uri string, ok bool) {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = TypeName(a)
	}
	for _, im := range c.funcs[name] {
		if im.matches(names) {
			return im.uri, true
		}
	}
	return "", false
}

// URIs returns the extension URIs of the catalog in document order.
func (c *Catalog) URIs() []string {
	return c.uris
}

func (im impl) matches(args []string) bool {
	if im.variadic {
		if len(args) < len(im.args) {
			return false
		}
	} else if len(args) != len(im.args) {
		return false
	}
	bound := make(map[string]string)
	for i, a := range args {
		tok := im.args[min(i, len(im.args)-1)]
		switch {
		case tok == a:
		case strings.HasPrefix(tok, "any") && a != "req":
			if tok == "any" {
				continue
			}
			if prev, ok := bound[tok]; ok && prev != a {
				return false
			}
			bound[tok] = a
		default:
			return false
		}
	}
	return true
}
