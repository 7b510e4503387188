// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

var seedCounter atomic.Int64

func init() {
	seedCounter.Store(time.Now().UnixNano())
}

// SetSeed makes mutators created after the call deterministic.
func SetSeed(seed int64) {
	seedCounter.Store(seed)
}

// randGen is owned by a single mutator and must not be shared between goroutines.
type randGen struct {
	*rand.Rand
}

func newRand() *randGen {
	return &randGen{rand.New(rand.NewSource(seedCounter.Add(1)))}
}

func (r *randGen) bin() bool {
	return r.Intn(2) == 0
}

func (r *randGen) oneOf(n int) bool {
	return r.Intn(n) == 0
}

func (r *randGen) nOutOf(n, outOf int) bool {
	if n <= 0 || n >= outOf {
		panic("bad probability")
	}
	return r.Intn(outOf) < n
}

// intRange returns a number in [begin, end).
func (r *randGen) intRange(begin, end int) int {
	if begin >= end {
		return begin
	}
	return begin + r.Intn(end-begin)
}

// floatRange returns a number in [begin, end).
func (r *randGen) floatRange(begin, end float64) float64 {
	if !(begin < end) {
		return begin
	}
	if math.IsInf(end, 1) {
		end = begin + 1e6
	}
	return begin + r.Float64()*(end-begin)
}

// biasedRand returns a random int in range [0..n),
// probability of n-1 is k times higher than probability of 0.
func (r *randGen) biasedRand(n, k int) int {
	nf, kf := float64(n), float64(k)
	rf := nf * (kf/2 + 1) * r.Float64()
	bf := (-1 + math.Sqrt(1+2*kf*rf/nf)) * nf / kf
	return min(int(bf), n-1)
}

func (r *randGen) rand64() uint64 {
	v := uint64(r.Int63())
	if r.bin() {
		v |= 1 << 63
	}
	return v
}

var (
	// Some potentially interesting integers.
	specialInts = []uint64{
		0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
		64, 127, 128, 129, 255, 256, 257, 511, 512,
		1023, 1024, 1025, 2047, 2048, 4095, 4096,
		(1 << 15) - 1, (1 << 15), (1 << 15) + 1,
		(1 << 16) - 1, (1 << 16), (1 << 16) + 1,
		(1 << 31) - 1, (1 << 31), (1 << 31) + 1,
		(1 << 32) - 1, (1 << 32), (1 << 32) + 1,
		(1 << 63) - 1, (1 << 63), (1 << 63) + 1,
		(1 << 64) - 1,
	}
	// The indexes (exclusive) for the maximum specialInts values that fit in 1, 2, ... 8 bytes.
	specialIntIndex [9]int
)

func init() {
	sort.Slice(specialInts, func(i, j int) bool {
		return specialInts[i] < specialInts[j]
	})
	for i := range specialIntIndex {
		bitSize := uint64(8 * i)
		specialIntIndex[i] = sort.Search(len(specialInts), func(i int) bool {
			return specialInts[i]>>bitSize != 0
		})
	}
}

func (r *randGen) randInt(bits uint64) uint64 {
	v := r.rand64()
	switch {
	case r.nOutOf(100, 182):
		v %= 10
	case bits >= 8 && r.nOutOf(50, 82):
		v = specialInts[r.Intn(specialIntIndex[bits/8])]
	case r.nOutOf(10, 32):
		v %= 256
	case r.nOutOf(10, 22):
		v %= 4 << 10
	case r.nOutOf(10, 12):
		v %= 64 << 10
	default:
		v %= 1 << 31
	}
	switch {
	case r.nOutOf(100, 107):
	case r.nOutOf(5, 7):
		v = uint64(-int64(v))
	default:
		v <<= uint(r.Intn(int(bits)))
	}
	return truncateToBitSize(v, bits)
}

func truncateToBitSize(v, bitSize uint64) uint64 {
	if bitSize == 0 || bitSize > 64 {
		panic(fmt.Sprintf("invalid bitSize value: %d", bitSize))
	}
	if bitSize == 64 {
		return v
	}
	return v & uint64(1<<bitSize-1)
}

// uniqueStep is the arbitrary step of mutators whose domain is too large to enumerate.
// Values are sampled at random and those seen before are skipped.
type uniqueStep struct {
	seen map[uint64]struct{}
}

const maxUniqueAttempts = 100

func newUniqueStep() *uniqueStep {
	return &uniqueStep{seen: make(map[uint64]struct{})}
}

// nextUnique returns false if it could not find a new value in maxUniqueAttempts samples.
func nextUnique[T any](s *uniqueStep, gen func() (T, float64)) (T, float64, bool) {
	for i := 0; i < maxUniqueAttempts; i++ {
		v, cplx := gen()
		fp := fingerprint(v)
		if _, ok := s.seen[fp]; ok {
			continue
		}
		s.seen[fp] = struct{}{}
		return v, cplx, true
	}
	var zero T
	return zero, 0, false
}

func fingerprint(v any) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%#v", v))
}
