// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"reflect"
)

// TupleMutator mutates slices of a fixed length where element i is handled by ms[i].
// The complexity of a value is the sum of its element complexities.
type TupleMutator[T any] struct {
	ms       []Mutator[T]
	elemType reflect.Type
	rnd      *randGen
}

func Tuple[T any](ms ...Mutator[T]) *TupleMutator[T] {
	return &TupleMutator[T]{
		ms:       ms,
		elemType: reflect.TypeFor[T](),
		rnd:      newRand(),
	}
}

type tupleCache struct {
	inner   []Cache
	sumCplx float64
}

type tupleStep struct {
	inner   []MutationStep
	done    []bool
	numDone int
	next    int
}

type tupleToken struct {
	idx     int
	inner   UnmutateToken
	sumCplx float64
}

func (t *TupleMutator[T]) sum(value []T, caches []Cache) float64 {
	res := 0.0
	for i, m := range t.ms {
		res += m.Complexity(value[i], caches[i])
	}
	return res
}

func (t *TupleMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return newUniqueStep()
}

func (t *TupleMutator[T]) ValidateValue(value []T) (Cache, bool) {
	if len(value) != len(t.ms) {
		return nil, false
	}
	c := &tupleCache{inner: make([]Cache, len(value))}
	for i, m := range t.ms {
		inner, ok := m.ValidateValue(value[i])
		if !ok {
			return nil, false
		}
		c.inner[i] = inner
	}
	c.sumCplx = t.sum(value, c.inner)
	return c, true
}

func (t *TupleMutator[T]) DefaultMutationStep(value []T, cache Cache) MutationStep {
	c := cache.(*tupleCache)
	s := &tupleStep{
		inner: make([]MutationStep, len(t.ms)),
		done:  make([]bool, len(t.ms)),
	}
	for i, m := range t.ms {
		s.inner[i] = m.DefaultMutationStep(value[i], c.inner[i])
	}
	return s
}

func (t *TupleMutator[T]) MinComplexity() float64 {
	res := 0.0
	for _, m := range t.ms {
		res += m.MinComplexity()
	}
	return res
}

func (t *TupleMutator[T]) MaxComplexity() float64 {
	res := 0.0
	for _, m := range t.ms {
		res += m.MaxComplexity()
	}
	return res
}

func (t *TupleMutator[T]) Complexity(value []T, cache Cache) float64 {
	return cache.(*tupleCache).sumCplx
}

func (t *TupleMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) ([]T, float64, bool) {
	if len(t.ms) != 0 && maxCplx < t.MinComplexity() {
		return nil, 0, false
	}
	return nextUnique(step.(*uniqueStep), func() ([]T, float64) {
		return t.RandomArbitrary(maxCplx)
	})
}

// RandomArbitrary gives every element its minimum complexity plus a random share of the spare budget.
func (t *TupleMutator[T]) RandomArbitrary(maxCplx float64) ([]T, float64) {
	mins := make([]float64, len(t.ms))
	spare := maxCplx
	for i, m := range t.ms {
		mins[i] = m.MinComplexity()
		spare -= mins[i]
	}
	spare = max(spare, 0)
	value := make([]T, len(t.ms))
	cplxs := make([]float64, len(t.ms))
	for _, i := range t.rnd.Perm(len(t.ms)) {
		share := spare
		if !math.IsInf(spare, 1) && t.rnd.bin() {
			share = t.rnd.floatRange(0, spare)
		}
		value[i], cplxs[i] = t.ms[i].RandomArbitrary(mins[i] + share)
		spare = max(spare-max(cplxs[i]-mins[i], 0), 0)
	}
	total := 0.0
	for _, cplx := range cplxs {
		total += cplx
	}
	return value, total
}

func (t *TupleMutator[T]) OrderedMutate(value *[]T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	c := cache.(*tupleCache)
	s := step.(*tupleStep)
	for s.numDone < len(t.ms) {
		idx := s.next % len(t.ms)
		s.next++
		if s.done[idx] {
			continue
		}
		el := &(*value)[idx]
		budget := maxCplx - c.sumCplx + t.ms[idx].Complexity(*el, c.inner[idx])
		inner, _, ok := t.ms[idx].OrderedMutate(el, c.inner[idx], s.inner[idx], sub, budget)
		if !ok {
			s.done[idx] = true
			s.numDone++
			continue
		}
		token := tupleToken{idx: idx, inner: inner, sumCplx: c.sumCplx}
		c.sumCplx = t.sum(*value, c.inner)
		return token, c.sumCplx, true
	}
	return nil, 0, false
}

func (t *TupleMutator[T]) RandomMutate(value *[]T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	c := cache.(*tupleCache)
	if len(t.ms) == 0 {
		return tupleToken{idx: -1, sumCplx: c.sumCplx}, c.sumCplx
	}
	idx := t.rnd.Intn(len(t.ms))
	el := &(*value)[idx]
	budget := maxCplx - c.sumCplx + t.ms[idx].Complexity(*el, c.inner[idx])
	inner, _ := t.ms[idx].RandomMutate(el, c.inner[idx], budget)
	token := tupleToken{idx: idx, inner: inner, sumCplx: c.sumCplx}
	c.sumCplx = t.sum(*value, c.inner)
	return token, c.sumCplx
}

func (t *TupleMutator[T]) Unmutate(value *[]T, cache Cache, token UnmutateToken) {
	c := cache.(*tupleCache)
	tok := token.(tupleToken)
	if tok.idx >= 0 {
		t.ms[tok.idx].Unmutate(&(*value)[tok.idx], c.inner[tok.idx], tok.inner)
	}
	c.sumCplx = tok.sumCplx
}

func (t *TupleMutator[T]) Lens(value []T, cache Cache, path LensPath) any {
	c := cache.(*tupleCache)
	p := path.(vectorPath)
	if !p.deep {
		return value[p.idx]
	}
	return t.ms[p.idx].Lens(value[p.idx], c.inner[p.idx], p.inner)
}

func (t *TupleMutator[T]) AllPaths(value []T, cache Cache, register func(reflect.Type, LensPath, float64)) {
	c := cache.(*tupleCache)
	for i, m := range t.ms {
		register(t.elemType, vectorPath{idx: i}, m.Complexity(value[i], c.inner[i]))
		m.AllPaths(value[i], c.inner[i], func(typ reflect.Type, path LensPath, cplx float64) {
			register(typ, vectorPath{idx: i, deep: true, inner: path}, cplx)
		})
	}
}
