// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"reflect"
)

// FilterMutator only produces values for which keep returns true.
// Generation and mutation are retried until keep holds, so a predicate that
// is rarely satisfied makes them slow. There is no bound on the number of retries.
type FilterMutator[T any] struct {
	m    Mutator[T]
	keep func(T) bool
}

func Filter[T any](m Mutator[T], keep func(T) bool) *FilterMutator[T] {
	return &FilterMutator[T]{m: m, keep: keep}
}

func (f *FilterMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return f.m.DefaultArbitraryStep()
}

func (f *FilterMutator[T]) ValidateValue(value T) (Cache, bool) {
	cache, ok := f.m.ValidateValue(value)
	if !ok || !f.keep(value) {
		return nil, false
	}
	return cache, true
}

func (f *FilterMutator[T]) DefaultMutationStep(value T, cache Cache) MutationStep {
	return f.m.DefaultMutationStep(value, cache)
}

func (f *FilterMutator[T]) MinComplexity() float64 { return f.m.MinComplexity() }
func (f *FilterMutator[T]) MaxComplexity() float64 { return f.m.MaxComplexity() }

func (f *FilterMutator[T]) Complexity(value T, cache Cache) float64 {
	return f.m.Complexity(value, cache)
}

func (f *FilterMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool) {
	for {
		v, cplx, ok := f.m.OrderedArbitrary(step, maxCplx)
		if !ok || f.keep(v) {
			return v, cplx, ok
		}
	}
}

func (f *FilterMutator[T]) RandomArbitrary(maxCplx float64) (T, float64) {
	for {
		v, cplx := f.m.RandomArbitrary(maxCplx)
		if f.keep(v) {
			return v, cplx
		}
	}
}

func (f *FilterMutator[T]) OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	for {
		token, cplx, ok := f.m.OrderedMutate(value, cache, step, sub, maxCplx)
		if !ok {
			return nil, 0, false
		}
		if f.keep(*value) {
			return token, cplx, true
		}
		f.m.Unmutate(value, cache, token)
	}
}

func (f *FilterMutator[T]) RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	for {
		token, cplx := f.m.RandomMutate(value, cache, maxCplx)
		if f.keep(*value) {
			return token, cplx
		}
		f.m.Unmutate(value, cache, token)
	}
}

func (f *FilterMutator[T]) Unmutate(value *T, cache Cache, token UnmutateToken) {
	f.m.Unmutate(value, cache, token)
}

func (f *FilterMutator[T]) Lens(value T, cache Cache, path LensPath) any {
	return f.m.Lens(value, cache, path)
}

func (f *FilterMutator[T]) AllPaths(value T, cache Cache, register func(reflect.Type, LensPath, float64)) {
	f.m.AllPaths(value, cache, register)
}
