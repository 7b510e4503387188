// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"reflect"
)

type Side int

const (
	LeftSide Side = iota
	RightSide
)

// EitherMutator is one of two mutators of the same type, chosen at construction.
// All operations go to the chosen side, so caches, steps and tokens always belong to it.
type EitherMutator[T any] struct {
	side Side
	m    Mutator[T]
}

func Left[T any](m Mutator[T]) *EitherMutator[T] {
	return &EitherMutator[T]{side: LeftSide, m: m}
}

func Right[T any](m Mutator[T]) *EitherMutator[T] {
	return &EitherMutator[T]{side: RightSide, m: m}
}

func (e *EitherMutator[T]) Side() Side {
	return e.side
}

func (e *EitherMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return e.m.DefaultArbitraryStep()
}

func (e *EitherMutator[T]) ValidateValue(value T) (Cache, bool) {
	return e.m.ValidateValue(value)
}

func (e *EitherMutator[T]) DefaultMutationStep(value T, cache Cache) MutationStep {
	return e.m.DefaultMutationStep(value, cache)
}

func (e *EitherMutator[T]) MinComplexity() float64 { return e.m.MinComplexity() }
func (e *EitherMutator[T]) MaxComplexity() float64 { return e.m.MaxComplexity() }

func (e *EitherMutator[T]) Complexity(value T, cache Cache) float64 {
	return e.m.Complexity(value, cache)
}

func (e *EitherMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool) {
	return e.m.OrderedArbitrary(step, maxCplx)
}

func (e *EitherMutator[T]) RandomArbitrary(maxCplx float64) (T, float64) {
	return e.m.RandomArbitrary(maxCplx)
}

func (e *EitherMutator[T]) OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	return e.m.OrderedMutate(value, cache, step, sub, maxCplx)
}

func (e *EitherMutator[T]) RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	return e.m.RandomMutate(value, cache, maxCplx)
}

func (e *EitherMutator[T]) Unmutate(value *T, cache Cache, token UnmutateToken) {
	e.m.Unmutate(value, cache, token)
}

func (e *EitherMutator[T]) Lens(value T, cache Cache, path LensPath) any {
	return e.m.Lens(value, cache, path)
}

func (e *EitherMutator[T]) AllPaths(value T, cache Cache, register func(reflect.Type, LensPath, float64)) {
	e.m.AllPaths(value, cache, register)
}
