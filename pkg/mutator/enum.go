// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"fmt"
	"reflect"
)

// EnumMutator chooses between a fixed list of values.
// A value's complexity is the number of bits needed to identify it among the others.
type EnumMutator[T comparable] struct {
	noPaths[T]
	values []T
	index  map[T]int
	cplx   float64
	rnd    *randGen
}

func Enum[T comparable](values ...T) *EnumMutator[T] {
	if len(values) == 0 {
		panic("enum mutator needs at least one value")
	}
	m := &EnumMutator[T]{
		values: values,
		index:  make(map[T]int),
		cplx:   SizeToComplexity(len(values)),
		rnd:    newRand(),
	}
	for i, v := range values {
		if _, ok := m.index[v]; ok {
			panic(fmt.Sprintf("duplicate enum value %v", v))
		}
		m.index[v] = i
	}
	return m
}

// Bool is an enum of false and true.
func Bool() *EnumMutator[bool] {
	return Enum(false, true)
}

type enumStep struct {
	next int
}

func (m *EnumMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return &enumStep{}
}

func (m *EnumMutator[T]) ValidateValue(value T) (Cache, bool) {
	_, ok := m.index[value]
	return nil, ok
}

func (m *EnumMutator[T]) DefaultMutationStep(value T, cache Cache) MutationStep {
	return &enumStep{next: 1}
}

func (m *EnumMutator[T]) MinComplexity() float64 { return m.cplx }
func (m *EnumMutator[T]) MaxComplexity() float64 { return m.cplx }

func (m *EnumMutator[T]) Complexity(value T, cache Cache) float64 {
	return m.cplx
}

func (m *EnumMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool) {
	s := step.(*enumStep)
	if maxCplx < m.cplx || s.next >= len(m.values) {
		var zero T
		return zero, 0, false
	}
	s.next++
	return m.values[s.next-1], m.cplx, true
}

func (m *EnumMutator[T]) RandomArbitrary(maxCplx float64) (T, float64) {
	return m.values[m.rnd.Intn(len(m.values))], m.cplx
}

// OrderedMutate moves the value by 1, 2, ..., n-1 positions.
func (m *EnumMutator[T]) OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	s := step.(*enumStep)
	if maxCplx < m.cplx || s.next >= len(m.values) {
		return nil, 0, false
	}
	old := *value
	*value = m.values[(m.index[old]+s.next)%len(m.values)]
	s.next++
	return old, m.cplx, true
}

func (m *EnumMutator[T]) RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	old := *value
	if len(m.values) > 1 {
		idx := m.index[old] + 1 + m.rnd.Intn(len(m.values)-1)
		*value = m.values[idx%len(m.values)]
	}
	return old, m.cplx
}

func (m *EnumMutator[T]) Unmutate(value *T, cache Cache, token UnmutateToken) {
	*value = token.(T)
}

// UnitMutator always produces the same value.
type UnitMutator[T any] struct {
	noPaths[T]
	value T
}

func Unit[T any](value T) *UnitMutator[T] {
	return &UnitMutator[T]{value: value}
}

type unitStep struct {
	done bool
}

func (m *UnitMutator[T]) DefaultArbitraryStep() ArbitraryStep { return &unitStep{} }
func (m *UnitMutator[T]) ValidateValue(value T) (Cache, bool) {
	return nil, reflect.DeepEqual(value, m.value)
}
func (m *UnitMutator[T]) DefaultMutationStep(value T, cache Cache) MutationStep { return nil }
func (m *UnitMutator[T]) MinComplexity() float64 { return 0 }
func (m *UnitMutator[T]) MaxComplexity() float64 { return 0 }
func (m *UnitMutator[T]) Complexity(value T, cache Cache) float64 { return 0 }

func (m *UnitMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool) {
	s := step.(*unitStep)
	if s.done {
		var zero T
		return zero, 0, false
	}
	s.done = true
	return m.value, 0, true
}

func (m *UnitMutator[T]) RandomArbitrary(maxCplx float64) (T, float64) {
	return m.value, 0
}

func (m *UnitMutator[T]) OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	return nil, 0, false
}

func (m *UnitMutator[T]) RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	return nil, 0
}

func (m *UnitMutator[T]) Unmutate(value *T, cache Cache, token UnmutateToken) {}
