// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/bits"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// IntegerMutator mutates any integer type. The complexity of a value is its bit size.
type IntegerMutator[T constraints.Integer] struct {
	noPaths[T]
	bits uint64
	rnd  *randGen
}

func Integer[T constraints.Integer]() *IntegerMutator[T] {
	var zero T
	return &IntegerMutator[T]{
		bits: uint64(unsafe.Sizeof(zero)) * 8,
		rnd:  newRand(),
	}
}

type integerStep struct {
	next uint64
	done bool
}

func (m *IntegerMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return &integerStep{}
}

func (m *IntegerMutator[T]) ValidateValue(value T) (Cache, bool) {
	return nil, true
}

func (m *IntegerMutator[T]) DefaultMutationStep(value T, cache Cache) MutationStep {
	return &integerStep{next: 1}
}

func (m *IntegerMutator[T]) MinComplexity() float64 { return float64(m.bits) }
func (m *IntegerMutator[T]) MaxComplexity() float64 { return float64(m.bits) }

func (m *IntegerMutator[T]) Complexity(value T, cache Cache) float64 {
	return float64(m.bits)
}

// permute maps a counter to a value so that consecutive counters produce
// values that are spread over the whole range (0, 2^(bits-1), 2^(bits-2), ...).
func (m *IntegerMutator[T]) permute(k uint64) uint64 {
	return bits.Reverse64(k) >> (64 - m.bits)
}

func (m *IntegerMutator[T]) advance(step *integerStep) (uint64, bool) {
	if step.done {
		return 0, false
	}
	k := step.next
	step.next++
	if step.next == 0 || (m.bits < 64 && step.next == 1<<m.bits) {
		step.done = true
	}
	return k, true
}

func (m *IntegerMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool) {
	if maxCplx < m.MinComplexity() {
		return 0, 0, false
	}
	k, ok := m.advance(step.(*integerStep))
	if !ok {
		return 0, 0, false
	}
	return T(m.permute(k)), float64(m.bits), true
}

func (m *IntegerMutator[T]) RandomArbitrary(maxCplx float64) (T, float64) {
	return T(m.rnd.randInt(m.bits)), float64(m.bits)
}

func (m *IntegerMutator[T]) OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	if maxCplx < m.MinComplexity() {
		return nil, 0, false
	}
	k, ok := m.advance(step.(*integerStep))
	if !ok {
		return nil, 0, false
	}
	old := *value
	*value = T(truncateToBitSize(uint64(old)+m.permute(k), m.bits))
	return old, float64(m.bits), true
}

func (m *IntegerMutator[T]) RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	old := *value
	v := uint64(old)
	switch {
	case m.rnd.bin():
		v = m.rnd.randInt(m.bits)
	case m.rnd.nOutOf(1, 3):
		v += uint64(m.rnd.Intn(4)) + 1
	case m.rnd.nOutOf(1, 2):
		v -= uint64(m.rnd.Intn(4)) + 1
	default:
		v ^= 1 << uint64(m.rnd.Intn(int(m.bits)))
	}
	*value = T(truncateToBitSize(v, m.bits))
	return old, float64(m.bits)
}

func (m *IntegerMutator[T]) Unmutate(value *T, cache Cache, token UnmutateToken) {
	*value = token.(T)
}
