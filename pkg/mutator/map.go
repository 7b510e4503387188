// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"reflect"
)

// MapMutator produces values of type To by mutating values of type From
// and converting them with format. parse converts a To value back
// and is used to validate values that come from outside (e.g. a corpus on disk).
type MapMutator[From, To any] struct {
	m      Mutator[From]
	parse  func(To) (From, bool)
	format func(From) To
}

func Map[From, To any](m Mutator[From], parse func(To) (From, bool), format func(From) To) *MapMutator[From, To] {
	return &MapMutator[From, To]{
		m:      m,
		parse:  parse,
		format: format,
	}
}

type mapCache[From any] struct {
	source From
	inner  Cache
}

type mapToken[To any] struct {
	inner UnmutateToken
	old   To
}

func (m *MapMutator[From, To]) DefaultArbitraryStep() ArbitraryStep {
	return m.m.DefaultArbitraryStep()
}

func (m *MapMutator[From, To]) ValidateValue(value To) (Cache, bool) {
	source, ok := m.parse(value)
	if !ok {
		return nil, false
	}
	inner, ok := m.m.ValidateValue(source)
	if !ok {
		return nil, false
	}
	return &mapCache[From]{source: source, inner: inner}, true
}

func (m *MapMutator[From, To]) DefaultMutationStep(value To, cache Cache) MutationStep {
	c := cache.(*mapCache[From])
	return m.m.DefaultMutationStep(c.source, c.inner)
}

func (m *MapMutator[From, To]) MinComplexity() float64 { return m.m.MinComplexity() }
func (m *MapMutator[From, To]) MaxComplexity() float64 { return m.m.MaxComplexity() }

func (m *MapMutator[From, To]) Complexity(value To, cache Cache) float64 {
	c := cache.(*mapCache[From])
	return m.m.Complexity(c.source, c.inner)
}

func (m *MapMutator[From, To]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (To, float64, bool) {
	source, cplx, ok := m.m.OrderedArbitrary(step, maxCplx)
	if !ok {
		var zero To
		return zero, 0, false
	}
	return m.format(source), cplx, true
}

func (m *MapMutator[From, To]) RandomArbitrary(maxCplx float64) (To, float64) {
	source, cplx := m.m.RandomArbitrary(maxCplx)
	return m.format(source), cplx
}

func (m *MapMutator[From, To]) OrderedMutate(value *To, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	c := cache.(*mapCache[From])
	inner, cplx, ok := m.m.OrderedMutate(&c.source, c.inner, step, sub, maxCplx)
	if !ok {
		return nil, 0, false
	}
	old := *value
	*value = m.format(c.source)
	return mapToken[To]{inner: inner, old: old}, cplx, true
}

func (m *MapMutator[From, To]) RandomMutate(value *To, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	c := cache.(*mapCache[From])
	inner, cplx := m.m.RandomMutate(&c.source, c.inner, maxCplx)
	old := *value
	*value = m.format(c.source)
	return mapToken[To]{inner: inner, old: old}, cplx
}

func (m *MapMutator[From, To]) Unmutate(value *To, cache Cache, token UnmutateToken) {
	c := cache.(*mapCache[From])
	t := token.(mapToken[To])
	m.m.Unmutate(&c.source, c.inner, t.inner)
	*value = t.old
}

func (m *MapMutator[From, To]) Lens(value To, cache Cache, path LensPath) any {
	c := cache.(*mapCache[From])
	return m.m.Lens(c.source, c.inner, path)
}

func (m *MapMutator[From, To]) AllPaths(value To, cache Cache, register func(reflect.Type, LensPath, float64)) {
	c := cache.(*mapCache[From])
	m.m.AllPaths(c.source, c.inner, register)
}
