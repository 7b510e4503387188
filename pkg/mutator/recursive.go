// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"reflect"
)

// RecursiveMutator is a mutator that refers to itself, e.g. for tree-shaped values.
// build receives a reference to the mutator under construction and must use it
// for the recursive parts of the value.
//
//	tree := mutator.Recursive(func(self mutator.Mutator[Tree]) mutator.Mutator[Tree] {
//		return mutator.Map(mutator.Vector(self), parseTree, formatTree)
//	})
//
// The recursion is only bounded by the complexity budget, so every cycle
// must have a non-recursive way out (an empty vector, an alternative).
type RecursiveMutator[T any] struct {
	inner   Mutator[T]
	minCplx float64
}

func Recursive[T any](build func(self Mutator[T]) Mutator[T]) *RecursiveMutator[T] {
	r := &RecursiveMutator[T]{minCplx: math.Inf(1)}
	r.inner = build(&RecurToMutator[T]{target: r})
	// Minimal complexity is the least fixed point of the definition.
	for i := 0; i < 1000; i++ {
		next := r.inner.MinComplexity()
		if next == r.minCplx {
			break
		}
		r.minCplx = next
	}
	if math.IsInf(r.minCplx, 1) {
		panic("recursive mutator can't produce a value of finite complexity")
	}
	return r
}

func (r *RecursiveMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return r.inner.DefaultArbitraryStep()
}

func (r *RecursiveMutator[T]) ValidateValue(value T) (Cache, bool) {
	return r.inner.ValidateValue(value)
}

func (r *RecursiveMutator[T]) DefaultMutationStep(value T, cache Cache) MutationStep {
	return r.inner.DefaultMutationStep(value, cache)
}

func (r *RecursiveMutator[T]) MinComplexity() float64 { return r.minCplx }
func (r *RecursiveMutator[T]) MaxComplexity() float64 { return r.inner.MaxComplexity() }

func (r *RecursiveMutator[T]) Complexity(value T, cache Cache) float64 {
	return r.inner.Complexity(value, cache)
}

func (r *RecursiveMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool) {
	return r.inner.OrderedArbitrary(step, maxCplx)
}

func (r *RecursiveMutator[T]) RandomArbitrary(maxCplx float64) (T, float64) {
	return r.inner.RandomArbitrary(maxCplx)
}

func (r *RecursiveMutator[T]) OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	return r.inner.OrderedMutate(value, cache, step, sub, maxCplx)
}

func (r *RecursiveMutator[T]) RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	return r.inner.RandomMutate(value, cache, maxCplx)
}

func (r *RecursiveMutator[T]) Unmutate(value *T, cache Cache, token UnmutateToken) {
	r.inner.Unmutate(value, cache, token)
}

func (r *RecursiveMutator[T]) Lens(value T, cache Cache, path LensPath) any {
	return r.inner.Lens(value, cache, path)
}

func (r *RecursiveMutator[T]) AllPaths(value T, cache Cache, register func(reflect.Type, LensPath, float64)) {
	r.inner.AllPaths(value, cache, register)
}

// RecurToMutator is the reference to the enclosing RecursiveMutator.
// Its maximum complexity is infinite since it can recurse any number of times.
type RecurToMutator[T any] struct {
	target *RecursiveMutator[T]
}

// recurStep is created lazily, otherwise creating the step of an alternation
// that contains the reference would never terminate.
type recurStep struct {
	inner ArbitraryStep
}

func (r *RecurToMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return &recurStep{}
}

func (r *RecurToMutator[T]) ValidateValue(value T) (Cache, bool) {
	return r.target.inner.ValidateValue(value)
}

func (r *RecurToMutator[T]) DefaultMutationStep(value T, cache Cache) MutationStep {
	return r.target.inner.DefaultMutationStep(value, cache)
}

func (r *RecurToMutator[T]) MinComplexity() float64 { return r.target.minCplx }
func (r *RecurToMutator[T]) MaxComplexity() float64 { return math.Inf(1) }

func (r *RecurToMutator[T]) Complexity(value T, cache Cache) float64 {
	return r.target.inner.Complexity(value, cache)
}

func (r *RecurToMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool) {
	s := step.(*recurStep)
	if maxCplx < r.target.minCplx {
		var zero T
		return zero, 0, false
	}
	if s.inner == nil {
		s.inner = r.target.inner.DefaultArbitraryStep()
	}
	return r.target.inner.OrderedArbitrary(s.inner, maxCplx)
}

func (r *RecurToMutator[T]) RandomArbitrary(maxCplx float64) (T, float64) {
	return r.target.inner.RandomArbitrary(maxCplx)
}

func (r *RecurToMutator[T]) OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	return r.target.inner.OrderedMutate(value, cache, step, sub, maxCplx)
}

func (r *RecurToMutator[T]) RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	return r.target.inner.RandomMutate(value, cache, maxCplx)
}

func (r *RecurToMutator[T]) Unmutate(value *T, cache Cache, token UnmutateToken) {
	r.target.inner.Unmutate(value, cache, token)
}

func (r *RecurToMutator[T]) Lens(value T, cache Cache, path LensPath) any {
	return r.target.inner.Lens(value, cache, path)
}

func (r *RecurToMutator[T]) AllPaths(value T, cache Cache, register func(reflect.Type, LensPath, float64)) {
	r.target.inner.AllPaths(value, cache, register)
}
