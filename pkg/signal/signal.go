// Copyright 2018 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package signal provides types for working with coverage features.
package signal

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Feature is an abstract unit of observed coverage.
// The two top bits hold the kind, the rest is kind-specific.
type Feature uint64

type Kind uint8

const (
	EdgeKind Kind = iota
	CmpKind
	IndirKind
)

const (
	kindShift   = 62
	payloadMask = 1<<kindShift - 1
)

func (k Kind) String() string {
	switch k {
	case EdgeKind:
		return "edge"
	case CmpKind:
		return "cmp"
	case IndirKind:
		return "indir"
	}
	return fmt.Sprintf("kind%d", uint8(k))
}

// CounterBucket maps a hit count to one of 8 buckets: 1, 2, 3, 4-7, 8-15, 16-31, 32-127, 128+.
// A feature changes only when the count moves to another bucket.
func CounterBucket(count uint8) uint8 {
	switch {
	case count <= 3:
		return max(count, 1) - 1
	case count <= 31:
		return uint8(bits.Len8(count)) // 4-7 -> 3, 8-15 -> 4, 16-31 -> 5
	case count <= 127:
		return 6
	}
	return 7
}

// Edge is the feature of a coverage guard hit count times.
func Edge(guard uint32, count uint8) Feature {
	return Feature(EdgeKind)<<kindShift | Feature(guard)<<8 | Feature(CounterBucket(count))
}

// Cmp is the feature of a comparison at pc. Only the number of differing bits
// of the operands is taken into account, so that comparisons getting closer
// to equality produce new features.
func Cmp(pc uintptr, arg1, arg2 uint64) Feature {
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(pc))
	buf[8] = uint8(bits.OnesCount64(arg1 ^ arg2))
	return Feature(CmpKind)<<kindShift | Feature(xxhash.Sum64(buf[:])&payloadMask)
}

// Indir is the feature of an indirect call from caller to callee.
func Indir(caller, callee uintptr) Feature {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(caller))
	binary.LittleEndian.PutUint64(buf[8:], uint64(callee))
	return Feature(IndirKind)<<kindShift | Feature(xxhash.Sum64(buf[:])&payloadMask)
}

func (f Feature) Kind() Kind {
	return Kind(f >> kindShift)
}

// Guard returns the guard id of an edge feature.
func (f Feature) Guard() uint32 {
	return uint32((f & payloadMask) >> 8)
}

func (f Feature) String() string {
	if f.Kind() == EdgeKind {
		return fmt.Sprintf("edge:%v/%v", f.Guard(), uint8(f))
	}
	return fmt.Sprintf("%v:%x", f.Kind(), uint64(f&payloadMask))
}

type Signal map[Feature]struct{}

func (s Signal) Len() int {
	return len(s)
}

func (s Signal) Empty() bool {
	return len(s) == 0
}

func (s Signal) Copy() Signal {
	c := make(Signal, len(s))
	for e := range s {
		c[e] = struct{}{}
	}
	return c
}

func (s Signal) Add(f Feature) {
	s[f] = struct{}{}
}

// FromRaw returns a signal of the features, or nil if there are none.
func FromRaw(raw []Feature) Signal {
	if len(raw) == 0 {
		return nil
	}
	s := make(Signal, len(raw))
	for _, e := range raw {
		s[e] = struct{}{}
	}
	return s
}

// ToRaw returns the features in increasing order.
func (s Signal) ToRaw() []Feature {
	res := make([]Feature, 0, len(s))
	for e := range s {
		res = append(res, e)
	}
	slices.Sort(res)
	return res
}

// Diff returns the features of s1 that are not in s.
func (s Signal) Diff(s1 Signal) Signal {
	if s1.Empty() {
		return nil
	}
	var res Signal
	for e := range s1 {
		if _, ok := s[e]; ok {
			continue
		}
		if res == nil {
			res = make(Signal)
		}
		res[e] = struct{}{}
	}
	return res
}

// Merge adds the features of s1 to s.
func (s *Signal) Merge(s1 Signal) {
	if s1.Empty() {
		return
	}
	s0 := *s
	if s0 == nil {
		s0 = make(Signal, len(s1))
		*s = s0
	}
	for e := range s1 {
		s0[e] = struct{}{}
	}
}
