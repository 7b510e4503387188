// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package mutator defines the contract shared by all value generators/mutators
// and a library of combinators built on top of it.
//
// A mutator for values of type T can:
//   - enumerate values in a deterministic non-repeating order (OrderedArbitrary),
//   - sample values at random (RandomArbitrary),
//   - apply one structural change to a value and undo it exactly (OrderedMutate/RandomMutate/Unmutate),
//   - report the complexity of a value, which bounds the search space,
//   - expose typed sub-values of a value for crossover (Lens/AllPaths).
//
// Every value handed to a mutator must first be validated with ValidateValue,
// which returns the Cache that has to accompany the value in all subsequent calls.
// Caches, steps and tokens are opaque to callers; a mutator only ever receives
// the ones it produced itself.
package mutator

import (
	"reflect"
)

type (
	Cache         = any
	ArbitraryStep = any
	MutationStep  = any
	UnmutateToken = any
	LensPath      = any
)

type Mutator[T any] interface {
	DefaultArbitraryStep() ArbitraryStep
	// ValidateValue returns false if the value can't be produced by the mutator.
	// It must not have side effects.
	ValidateValue(value T) (Cache, bool)
	DefaultMutationStep(value T, cache Cache) MutationStep

	MinComplexity() float64
	MaxComplexity() float64
	Complexity(value T, cache Cache) float64

	// OrderedArbitrary returns the next value of the enumeration described by step,
	// or false once the enumeration is exhausted. Values are never repeated for the same step.
	OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool)
	// RandomArbitrary never fails. The returned complexity does not exceed maxCplx
	// as long as MinComplexity() <= maxCplx.
	RandomArbitrary(maxCplx float64) (T, float64)

	// OrderedMutate applies the next mutation described by step to value and cache.
	// It returns false if there are no more mutations for the value.
	// sub may provide values taken from other inputs for crossover.
	OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider, maxCplx float64) (
		UnmutateToken, float64, bool)
	RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64)
	// Unmutate restores value and cache to their exact state before the mutation that produced token.
	Unmutate(value *T, cache Cache, token UnmutateToken)

	Lens(value T, cache Cache, path LensPath) any
	AllPaths(value T, cache Cache, register func(typ reflect.Type, path LensPath, cplx float64))
}

// SubValueProvider gives access to typed parts of other inputs.
type SubValueProvider interface {
	// SubValue returns the index-th sub-value of type typ whose complexity is at most maxCplx.
	SubValue(typ reflect.Type, index int, maxCplx float64) (any, float64, bool)
}

// NoSubValues is a SubValueProvider that never provides anything.
type NoSubValues struct{}

func (NoSubValues) SubValue(typ reflect.Type, index int, maxCplx float64) (any, float64, bool) {
	return nil, 0, false
}

// Generate returns a random value together with its cache.
func Generate[T any](m Mutator[T], maxCplx float64) (T, Cache, float64) {
	v, cplx := m.RandomArbitrary(maxCplx)
	cache, ok := m.ValidateValue(v)
	if !ok {
		panic("mutator generated a value it does not accept")
	}
	return v, cache, cplx
}

// noPaths can be embedded by mutators of values without sub-values.
type noPaths[T any] struct{}

func (noPaths[T]) Lens(value T, cache Cache, path LensPath) any {
	panic("value has no sub-values")
}

func (noPaths[T]) AllPaths(value T, cache Cache, register func(reflect.Type, LensPath, float64)) {}
