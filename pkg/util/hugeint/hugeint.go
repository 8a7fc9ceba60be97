// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package hugeint implements a signed 128-bit integer with the little-endian
// two's-complement byte layout used by decimal literals in plan
// serialization.
package hugeint

import (
	"encoding/binary"
	"math/big"

	"github.com/cockroachdb/errors"
)

// Size is the length of the encoded form in bytes.
const Size = 16

// Int128 is a signed 128-bit integer. The value is Hi*2^64 + Lo.
type Int128 struct {
	Lo uint64
	Hi int64
}

var (
	maxBig = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minBig = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	two128 = new(big.Int).Lsh(big.NewInt(1), 128)
	mask64 = new(big.Int).SetUint64(^uint64(0))
)

// Max and Min are the extreme representable values.
var (
	Max = Int128{Lo: ^uint64(0), Hi: 1<<63 - 1}
	Min = Int128{Lo: 0, Hi: -1 << 63}
)

// FromInt64 sign-extends v.
func FromInt64(v int64) Int128 {
	return Int128{Lo: uint64(v), Hi: v >> 63}
}

// FromUint64 zero-extends v.
func FromUint64(v uint64) Int128 {
	return Int128{Lo: v}
}

// FromBig converts v, returning an error if it does not fit in 128 bits.
func FromBig(v *big.Int) (Int128, error) {
	if v.Cmp(maxBig) > 0 || v.Cmp(minBig) < 0 {
		return Int128{}, errors.Newf("value %s out of range for a 128-bit integer", v)
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}
	lo := new(big.Int).And(u, mask64).Uint64()
	hi := new(big.Int).Rsh(u, 64).Uint64()
	return Int128{Lo: lo, Hi: int64(hi)}, nil
}

// FromBytes decodes the little-endian form produced by Bytes.
func FromBytes(b []byte) (Int128, error) {
	if len(b) != Size {
		return Int128{}, errors.Newf("expected %d bytes, found %d", Size, len(b))
	}
	return Int128{
		Lo: binary.LittleEndian.Uint64(b[:8]),
		Hi: int64(binary.LittleEndian.Uint64(b[8:])),
	}, nil
}

// Bytes returns the 16-byte little-endian encoding: the low 64 bits followed
// by the high 64 bits.
func (h Int128) Bytes() []byte {
	b := make([]byte, Size)
	binary.LittleEndian.PutUint64(b[:8], h.Lo)
	binary.LittleEndian.PutUint64(b[8:], uint64(h.Hi))
	return b
}

// Big returns h as a big.Int.
func (h Int128) Big() *big.Int {
	r := new(big.Int).Lsh(big.NewInt(h.Hi), 64)
	return r.Add(r, new(big.Int).SetUint64(h.Lo))
}

// Sign returns -1, 0 or +1.
func (h Int128) Sign() int {
	switch {
	case h.Hi < 0:
		return -1
	case h.Hi == 0 && h.Lo == 0:
		return 0
	default:
		return 1
	}
}

func (h Int128) String() string {
	return h.Big().String()
}
