// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"bufio"
	"io"

	"github.com/cockroachdb/errors"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Plan is a lowered Substrait plan.
type Plan struct {
	proto *pb.Plan
}

// Proto returns the plan's protobuf message. It must not be modified.
func (p *Plan) Proto() *pb.Plan {
	return p.proto
}

// Marshal returns the binary protobuf encoding of the plan.
func (p *Plan) Marshal() ([]byte, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(p.proto)
	return b, errors.Wrap(err, "serializing substrait plan")
}

// MarshalJSON returns the canonical JSON encoding of the plan.
func (p *Plan) MarshalJSON() ([]byte, error) {
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(p.proto)
	return b, errors.Wrap(err, "serializing substrait plan to JSON")
}

// WriteDelimited writes the plan to w, prefixed by its varint-encoded
// length.
func (p *Plan) WriteDelimited(w io.Writer) error {
	_, err := protodelim.MarshalTo(w, p.proto)
	return errors.Wrap(err, "writing substrait plan")
}

// Unmarshal decodes a plan from its binary encoding.
func Unmarshal(b []byte) (*Plan, error) {
	var m pb.Plan
	if err := proto.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "parsing substrait plan")
	}
	return &Plan{proto: &m}, nil
}

// UnmarshalJSON decodes a plan from its JSON encoding.
func UnmarshalJSON(b []byte) (*Plan, error) {
	var m pb.Plan
	if err := protojson.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "parsing substrait plan from JSON")
	}
	return &Plan{proto: &m}, nil
}

// ReadDelimited reads one length-prefixed plan from r.
func ReadDelimited(r *bufio.Reader) (*Plan, error) {
	var m pb.Plan
	if err := protodelim.UnmarshalFrom(r, &m); err != nil {
		return nil, errors.Wrap(err, "reading substrait plan")
	}
	return &Plan{proto: &m}, nil
}
