// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"reflect"
)

// AlternationMutator produces values from any of several mutators of the same type.
// The cache of a value records which mutator it belongs to.
// Choosing among n alternatives costs SizeToComplexity(n).
type AlternationMutator[T any] struct {
	ms   []Mutator[T]
	cplx float64
	rnd  *randGen
}

func Alternation[T any](ms ...Mutator[T]) *AlternationMutator[T] {
	if len(ms) == 0 {
		panic("alternation needs at least one mutator")
	}
	return &AlternationMutator[T]{
		ms:   ms,
		cplx: SizeToComplexity(len(ms)),
		rnd:  newRand(),
	}
}

type altCache struct {
	idx   int
	inner Cache
}

type altArbitraryStep struct {
	steps []ArbitraryStep
	done  []bool
	next  int
	seen  *uniqueStep
}

type altMutationStep struct {
	inner     MutationStep
	innerDone bool
	arbitrary *altArbitraryStep
	count     int
}

type altToken struct {
	inner    UnmutateToken
	replaced bool
	old      any
	oldIdx   int
	oldInner Cache
}

// Every swapPeriod steps the mutation step replaces the value with one from another alternative.
const swapPeriod = 8

func (a *AlternationMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return a.newArbitraryStep()
}

func (a *AlternationMutator[T]) newArbitraryStep() *altArbitraryStep {
	s := &altArbitraryStep{
		steps: make([]ArbitraryStep, len(a.ms)),
		done:  make([]bool, len(a.ms)),
		seen:  newUniqueStep(),
	}
	for i, m := range a.ms {
		s.steps[i] = m.DefaultArbitraryStep()
	}
	return s
}

func (a *AlternationMutator[T]) ValidateValue(value T) (Cache, bool) {
	for i, m := range a.ms {
		if inner, ok := m.ValidateValue(value); ok {
			return &altCache{idx: i, inner: inner}, true
		}
	}
	return nil, false
}

func (a *AlternationMutator[T]) DefaultMutationStep(value T, cache Cache) MutationStep {
	c := cache.(*altCache)
	s := &altMutationStep{
		inner:     a.ms[c.idx].DefaultMutationStep(value, c.inner),
		arbitrary: a.newArbitraryStep(),
	}
	s.arbitrary.done[c.idx] = true
	return s
}

func (a *AlternationMutator[T]) MinComplexity() float64 {
	res := math.Inf(1)
	for _, m := range a.ms {
		res = min(res, m.MinComplexity())
	}
	return a.cplx + res
}

func (a *AlternationMutator[T]) MaxComplexity() float64 {
	res := 0.0
	for _, m := range a.ms {
		res = max(res, m.MaxComplexity())
	}
	return a.cplx + res
}

func (a *AlternationMutator[T]) Complexity(value T, cache Cache) float64 {
	c := cache.(*altCache)
	return a.cplx + a.ms[c.idx].Complexity(value, c.inner)
}

// orderedFrom returns the next value of the round-robin enumeration over all alternatives.
func (a *AlternationMutator[T]) orderedFrom(s *altArbitraryStep, maxCplx float64) (T, int, float64, bool) {
	for {
		remaining := 0
		for i := range a.ms {
			idx := (s.next + i) % len(a.ms)
			if s.done[idx] {
				continue
			}
			remaining++
			v, cplx, ok := a.ms[idx].OrderedArbitrary(s.steps[idx], maxCplx-a.cplx)
			if !ok {
				s.done[idx] = true
				continue
			}
			s.next = idx + 1
			fp := fingerprint(v)
			if _, dup := s.seen.seen[fp]; dup {
				break
			}
			s.seen.seen[fp] = struct{}{}
			return v, idx, a.cplx + cplx, true
		}
		if remaining == 0 {
			var zero T
			return zero, 0, 0, false
		}
	}
}

func (a *AlternationMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (T, float64, bool) {
	v, _, cplx, ok := a.orderedFrom(step.(*altArbitraryStep), maxCplx)
	return v, cplx, ok
}

// choose picks a random alternative that fits into maxCplx,
// or the simplest one if none fits.
func (a *AlternationMutator[T]) choose(maxCplx float64, exclude int) (int, bool) {
	var fitting []int
	best, bestCplx := -1, math.Inf(1)
	for i, m := range a.ms {
		if i == exclude {
			continue
		}
		cplx := m.MinComplexity()
		if cplx <= maxCplx {
			fitting = append(fitting, i)
		}
		if cplx < bestCplx {
			best, bestCplx = i, cplx
		}
	}
	if len(fitting) != 0 {
		return fitting[a.rnd.Intn(len(fitting))], true
	}
	return best, best != -1
}

func (a *AlternationMutator[T]) RandomArbitrary(maxCplx float64) (T, float64) {
	idx, _ := a.choose(maxCplx-a.cplx, -1)
	v, cplx := a.ms[idx].RandomArbitrary(maxCplx - a.cplx)
	return v, a.cplx + cplx
}

func (a *AlternationMutator[T]) replace(value *T, c *altCache, v T, idx int) altToken {
	inner, ok := a.ms[idx].ValidateValue(v)
	if !ok {
		panic("alternative generated a value it does not accept")
	}
	token := altToken{replaced: true, old: *value, oldIdx: c.idx, oldInner: c.inner}
	*value = v
	c.idx, c.inner = idx, inner
	return token
}

func (a *AlternationMutator[T]) OrderedMutate(value *T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	c := cache.(*altCache)
	s := step.(*altMutationStep)
	s.count++
	if !s.innerDone && s.count%swapPeriod != 0 {
		inner, cplx, ok := a.ms[c.idx].OrderedMutate(value, c.inner, s.inner, sub, maxCplx-a.cplx)
		if ok {
			return altToken{inner: inner}, a.cplx + cplx, true
		}
		s.innerDone = true
	}
	v, idx, cplx, ok := a.orderedFrom(s.arbitrary, maxCplx)
	if !ok {
		if s.innerDone {
			return nil, 0, false
		}
		inner, cplx, ok := a.ms[c.idx].OrderedMutate(value, c.inner, s.inner, sub, maxCplx-a.cplx)
		if !ok {
			s.innerDone = true
			return nil, 0, false
		}
		return altToken{inner: inner}, a.cplx + cplx, true
	}
	return a.replace(value, c, v, idx), cplx, true
}

func (a *AlternationMutator[T]) RandomMutate(value *T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	c := cache.(*altCache)
	if len(a.ms) > 1 && a.rnd.oneOf(swapPeriod) {
		if idx, ok := a.choose(maxCplx-a.cplx, c.idx); ok && a.ms[idx].MinComplexity() <= maxCplx-a.cplx {
			v, cplx := a.ms[idx].RandomArbitrary(maxCplx - a.cplx)
			return a.replace(value, c, v, idx), a.cplx + cplx
		}
	}
	inner, cplx := a.ms[c.idx].RandomMutate(value, c.inner, maxCplx-a.cplx)
	return altToken{inner: inner}, a.cplx + cplx
}

func (a *AlternationMutator[T]) Unmutate(value *T, cache Cache, token UnmutateToken) {
	c := cache.(*altCache)
	t := token.(altToken)
	if t.replaced {
		*value = t.old.(T)
		c.idx, c.inner = t.oldIdx, t.oldInner
		return
	}
	a.ms[c.idx].Unmutate(value, c.inner, t.inner)
}

func (a *AlternationMutator[T]) Lens(value T, cache Cache, path LensPath) any {
	c := cache.(*altCache)
	return a.ms[c.idx].Lens(value, c.inner, path)
}

func (a *AlternationMutator[T]) AllPaths(value T, cache Cache, register func(reflect.Type, LensPath, float64)) {
	c := cache.(*altCache)
	a.ms[c.idx].AllPaths(value, c.inner, register)
}
