// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"reflect"
	"slices"
)

// DefaultMaxGeneratedLen is the default limit on the number of elements
// inserted or generated at once.
const DefaultMaxGeneratedLen = 10_000

// VectorMutator mutates slices of T.
//
// The complexity of a slice is 1 + sum of the element complexities + SizeToComplexity(len+1),
// so that long slices of trivial elements are not free.
//
// Mutations alternate between two categories: mutating one element in place,
// and changing the structure of the slice (remove one element, insert one element,
// remove a range, insert repeated copies of one element).
type VectorMutator[T any] struct {
	m      Mutator[T]
	minLen int
	maxLen int
	// MaxGeneratedLen caps the number of elements generated at once,
	// which matters for elements of (near) zero complexity.
	MaxGeneratedLen int
	elemType        reflect.Type
	rnd             *randGen
}

func Vector[T any](m Mutator[T]) *VectorMutator[T] {
	return VectorWithLen(m, 0, math.MaxInt)
}

// VectorWithLen creates a mutator of slices whose length is within [minLen, maxLen].
func VectorWithLen[T any](m Mutator[T], minLen, maxLen int) *VectorMutator[T] {
	if minLen < 0 || maxLen < minLen {
		panic("bad vector length bounds")
	}
	return &VectorMutator[T]{
		m:               m,
		minLen:          minLen,
		maxLen:          maxLen,
		MaxGeneratedLen: DefaultMaxGeneratedLen,
		elemType:        reflect.TypeFor[T](),
		rnd:             newRand(),
	}
}

type vectorCache struct {
	inner   []Cache
	sumCplx float64
}

type vectorCategory int

const (
	elementCategory vectorCategory = iota
	structureCategory
)

type vectorStep struct {
	inner       []MutationStep
	elementDone []bool
	numDone     int
	elementStep int
	vectorStep  int
	category    vectorCategory
	crossover   int
}

func (s *vectorStep) incrementElement() {
	s.elementStep++
	if s.elementStep%50 == 0 || s.numDone == len(s.inner) {
		s.category = structureCategory
	}
}

func (s *vectorStep) incrementVector() {
	s.vectorStep++
	if s.vectorStep%5 == 0 && len(s.inner) != 0 && s.numDone != len(s.inner) {
		s.category = elementCategory
	}
}

type vectorOp int

const (
	opRemove vectorOp = iota
	opInsert
	opRemoveMany
	opInsertRepeated
	numVectorOps
)

type vectorTokenKind int

const (
	tokenNothing vectorTokenKind = iota
	tokenElement
	tokenRemove
	tokenRemoveMany
	tokenInsert
	tokenInsertMany
	tokenReplace
)

// vectorToken undoes one operation.
// Remove/RemoveMany undo insertions, Insert/InsertMany undo removals.
type vectorToken[T any] struct {
	kind    vectorTokenKind
	idx     int
	n       int
	inner   UnmutateToken
	els     []T
	caches  []Cache
	sumCplx float64
}

type vectorPath struct {
	idx   int
	deep  bool
	inner LensPath
}

func (v *VectorMutator[T]) complexity(n int, sumCplx float64) float64 {
	return 1 + sumCplx + SizeToComplexity(n+1)
}

func (v *VectorMutator[T]) sum(value []T, caches []Cache) float64 {
	res := 0.0
	for i := range value {
		res += v.m.Complexity(value[i], caches[i])
	}
	return res
}

func (v *VectorMutator[T]) DefaultArbitraryStep() ArbitraryStep {
	return newUniqueStep()
}

func (v *VectorMutator[T]) ValidateValue(value []T) (Cache, bool) {
	if len(value) < v.minLen || len(value) > v.maxLen {
		return nil, false
	}
	c := &vectorCache{inner: make([]Cache, len(value))}
	for i, el := range value {
		inner, ok := v.m.ValidateValue(el)
		if !ok {
			return nil, false
		}
		c.inner[i] = inner
	}
	c.sumCplx = v.sum(value, c.inner)
	return c, true
}

func (v *VectorMutator[T]) DefaultMutationStep(value []T, cache Cache) MutationStep {
	c := cache.(*vectorCache)
	s := &vectorStep{category: structureCategory}
	v.resetSteps(value, c, s)
	return s
}

func (v *VectorMutator[T]) resetSteps(value []T, c *vectorCache, s *vectorStep) {
	s.inner = make([]MutationStep, len(value))
	s.elementDone = make([]bool, len(value))
	s.numDone = 0
	for i, el := range value {
		s.inner[i] = v.m.DefaultMutationStep(el, c.inner[i])
	}
}

func (v *VectorMutator[T]) MinComplexity() float64 {
	if v.minLen == 0 {
		return 1
	}
	return v.complexity(v.minLen, float64(v.minLen)*v.m.MinComplexity())
}

func (v *VectorMutator[T]) MaxComplexity() float64 {
	elMax := v.m.MaxComplexity()
	if v.maxLen == math.MaxInt || math.IsInf(elMax, 1) {
		return math.Inf(1)
	}
	return v.complexity(v.maxLen, float64(v.maxLen)*elMax)
}

func (v *VectorMutator[T]) Complexity(value []T, cache Cache) float64 {
	return v.complexity(len(value), cache.(*vectorCache).sumCplx)
}

// chooseSliceLength returns a range of lengths [lo, hi] of slices that
// could reach complexity target given the element complexity bounds.
func (v *VectorMutator[T]) chooseSliceLength(target float64) (int, int) {
	elMin := v.m.MinComplexity()
	hi := 0
	if elMin <= 0 {
		hi = ComplexityToSize(target)
	} else if x := target / elMin; x > 2 {
		// Slight underestimate of the max length (the length itself costs complexity).
		hi = int(x - math.Log2(x))
	} else {
		hi = int(x)
	}
	hi = min(hi, v.MaxGeneratedLen)
	lo := 0
	if elMax := v.m.MaxComplexity(); elMax > 0 && !math.IsInf(elMax, 1) {
		if y := target / elMax; y > 2 {
			lo = int(y - math.Log2(y))
		}
	}
	return min(lo, hi), hi
}

func (v *VectorMutator[T]) generate(n int, target float64) ([]T, *vectorCache) {
	value := make([]T, 0, n)
	c := &vectorCache{inner: make([]Cache, 0, n)}
	elMin := v.m.MinComplexity()
	remaining := target - v.complexity(n, 0)
	for i := 0; i < n; i++ {
		budget := remaining / float64(n-i)
		if budget < elMin {
			if len(value) >= v.minLen {
				break
			}
			budget = elMin
		}
		el, _ := v.m.RandomArbitrary(v.rnd.floatRange(elMin, budget))
		inner, ok := v.m.ValidateValue(el)
		if !ok {
			panic("element mutator generated a value it does not accept")
		}
		elCplx := v.m.Complexity(el, inner)
		value = append(value, el)
		c.inner = append(c.inner, inner)
		remaining -= elCplx
	}
	c.sumCplx = v.sum(value, c.inner)
	return value, c
}

func (v *VectorMutator[T]) RandomArbitrary(maxCplx float64) ([]T, float64) {
	if v.minLen == 0 && maxCplx <= 4 {
		return []T{}, v.complexity(0, 0)
	}
	maxCplx = min(maxCplx, 1e4)
	target := v.rnd.Float64() * v.rnd.floatRange(0, maxCplx)
	if v.minLen != 0 {
		target = max(target, v.MinComplexity())
	}
	lo, hi := v.chooseSliceLength(target)
	lo, hi = min(max(lo, v.minLen), v.maxLen), min(hi, v.maxLen)
	if hi < lo {
		hi = lo
	}
	value, c := v.generate(v.rnd.intRange(lo, hi+1), target)
	for len(value) > v.minLen && v.complexity(len(value), c.sumCplx) > maxCplx {
		value = value[:len(value)-1]
		c.inner = c.inner[:len(c.inner)-1]
		c.sumCplx = v.sum(value, c.inner)
	}
	return value, v.complexity(len(value), c.sumCplx)
}

func (v *VectorMutator[T]) OrderedArbitrary(step ArbitraryStep, maxCplx float64) ([]T, float64, bool) {
	if maxCplx < v.MinComplexity() {
		return nil, 0, false
	}
	return nextUnique(step.(*uniqueStep), func() ([]T, float64) {
		return v.RandomArbitrary(maxCplx)
	})
}

func (v *VectorMutator[T]) mutateElement(value *[]T, c *vectorCache, s *vectorStep, idx int,
	sub SubValueProvider, maxCplx float64) vectorToken[T] {
	if s.elementDone[idx] {
		return vectorToken[T]{}
	}
	el := &(*value)[idx]
	budget := maxCplx - v.complexity(len(*value), c.sumCplx) + v.m.Complexity(*el, c.inner[idx])
	inner, _, ok := v.m.OrderedMutate(el, c.inner[idx], s.inner[idx], sub, budget)
	if !ok {
		s.elementDone[idx] = true
		s.numDone++
		return vectorToken[T]{}
	}
	token := vectorToken[T]{kind: tokenElement, idx: idx, inner: inner, sumCplx: c.sumCplx}
	c.sumCplx = v.sum(*value, c.inner)
	return token
}

func (v *VectorMutator[T]) randomMutateElement(value *[]T, c *vectorCache, maxCplx float64) vectorToken[T] {
	idx := v.rnd.Intn(len(*value))
	el := &(*value)[idx]
	budget := maxCplx - v.complexity(len(*value), c.sumCplx) + v.m.Complexity(*el, c.inner[idx])
	if budget < v.m.MinComplexity() {
		return vectorToken[T]{}
	}
	inner, _ := v.m.RandomMutate(el, c.inner[idx], budget)
	token := vectorToken[T]{kind: tokenElement, idx: idx, inner: inner, sumCplx: c.sumCplx}
	c.sumCplx = v.sum(*value, c.inner)
	return token
}

func (v *VectorMutator[T]) insertElement(value *[]T, c *vectorCache, s *vectorStep, sub SubValueProvider,
	maxCplx float64) vectorToken[T] {
	n := len(*value)
	if n >= v.maxLen {
		return vectorToken[T]{}
	}
	budget := maxCplx - v.complexity(n+1, c.sumCplx)
	if budget < v.m.MinComplexity() {
		return vectorToken[T]{}
	}
	var el T
	found := false
	if sub != nil && s != nil && s.vectorStep%8 == 1 {
		if x, _, ok := sub.SubValue(v.elemType, s.crossover, budget); ok {
			// The provider may hand out the same value again.
			s.crossover++
			el, found = clone(x.(T)), true
		}
	}
	if !found {
		el, _ = v.m.RandomArbitrary(budget)
	}
	inner, ok := v.m.ValidateValue(el)
	if !ok {
		return vectorToken[T]{}
	}
	idx := v.rnd.intRange(0, n+1)
	token := vectorToken[T]{kind: tokenRemove, idx: idx, sumCplx: c.sumCplx}
	*value = slices.Insert(*value, idx, el)
	c.inner = slices.Insert(c.inner, idx, inner)
	c.sumCplx = v.sum(*value, c.inner)
	if v.complexity(len(*value), c.sumCplx) > maxCplx {
		v.Unmutate(value, c, token)
		return vectorToken[T]{}
	}
	return token
}

func (v *VectorMutator[T]) removeElement(value *[]T, c *vectorCache) vectorToken[T] {
	n := len(*value)
	if n == 0 || n <= v.minLen {
		return vectorToken[T]{}
	}
	idx := v.rnd.Intn(n)
	token := vectorToken[T]{
		kind:    tokenInsert,
		idx:     idx,
		els:     []T{(*value)[idx]},
		caches:  []Cache{c.inner[idx]},
		sumCplx: c.sumCplx,
	}
	*value = slices.Delete(*value, idx, idx+1)
	c.inner = slices.Delete(c.inner, idx, idx+1)
	c.sumCplx = v.sum(*value, c.inner)
	return token
}

func (v *VectorMutator[T]) removeManyElements(value *[]T, c *vectorCache) vectorToken[T] {
	n := len(*value)
	if n < 2 || n <= v.minLen {
		return vectorToken[T]{}
	}
	start := v.rnd.Intn(n)
	count := 1 + v.rnd.Intn(min(n-start, n-v.minLen))
	token := vectorToken[T]{
		kind:    tokenInsertMany,
		idx:     start,
		els:     slices.Clone((*value)[start : start+count]),
		caches:  slices.Clone(c.inner[start : start+count]),
		sumCplx: c.sumCplx,
	}
	*value = slices.Delete(*value, start, start+count)
	c.inner = slices.Delete(c.inner, start, start+count)
	c.sumCplx = v.sum(*value, c.inner)
	return token
}

func (v *VectorMutator[T]) insertRepeatedElements(value *[]T, c *vectorCache, maxCplx float64) vectorToken[T] {
	n := len(*value)
	spare := maxCplx - v.complexity(n, c.sumCplx)
	room := v.maxLen - n
	if spare < 0.01 || room <= 0 {
		return vectorToken[T]{}
	}
	target := v.rnd.floatRange(0, spare)
	lo, hi := v.chooseSliceLength(target)
	count := min(v.rnd.intRange(lo, hi), room)
	if count == 0 {
		return vectorToken[T]{}
	}
	el, elCplx := v.m.RandomArbitrary(target / float64(count))
	for count > 0 && v.complexity(n+count, c.sumCplx+float64(count)*elCplx) > maxCplx {
		count--
	}
	if count == 0 {
		return vectorToken[T]{}
	}
	els := make([]T, count)
	caches := make([]Cache, count)
	for i := range els {
		// Copies must not share memory, otherwise mutating one element changes the others.
		if i != 0 {
			el = clone(el)
		}
		inner, ok := v.m.ValidateValue(el)
		if !ok {
			return vectorToken[T]{}
		}
		els[i], caches[i] = el, inner
	}
	idx := v.rnd.intRange(0, n+1)
	token := vectorToken[T]{kind: tokenRemoveMany, idx: idx, n: count, sumCplx: c.sumCplx}
	*value = slices.Insert(*value, idx, els...)
	c.inner = slices.Insert(c.inner, idx, caches...)
	c.sumCplx = v.sum(*value, c.inner)
	return token
}

func (v *VectorMutator[T]) structural(op vectorOp, value *[]T, c *vectorCache, s *vectorStep,
	sub SubValueProvider, maxCplx float64) vectorToken[T] {
	switch op {
	case opRemove:
		return v.removeElement(value, c)
	case opInsert:
		return v.insertElement(value, c, s, sub, maxCplx)
	case opRemoveMany:
		return v.removeManyElements(value, c)
	case opInsertRepeated:
		return v.insertRepeatedElements(value, c, maxCplx)
	}
	panic("unknown vector operation")
}

const maxVectorAttempts = 64

func (v *VectorMutator[T]) OrderedMutate(value *[]T, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	c := cache.(*vectorCache)
	s := step.(*vectorStep)
	if len(s.inner) != len(*value) {
		v.resetSteps(*value, c, s)
	}
	for attempt := 0; attempt < maxVectorAttempts; attempt++ {
		var token vectorToken[T]
		switch s.category {
		case elementCategory:
			if len(*value) == 0 || s.numDone == len(*value) {
				s.category = structureCategory
				continue
			}
			idx := s.elementStep % len(*value)
			token = v.mutateElement(value, c, s, idx, sub, maxCplx)
			s.incrementElement()
		case structureCategory:
			op := vectorOp(s.vectorStep % int(numVectorOps))
			token = v.structural(op, value, c, s, sub, maxCplx)
			s.incrementVector()
		}
		if token.kind != tokenNothing {
			return token, v.Complexity(*value, c), true
		}
	}
	return nil, 0, false
}

func (v *VectorMutator[T]) RandomMutate(value *[]T, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	c := cache.(*vectorCache)
	for attempt := 0; attempt < maxVectorAttempts; attempt++ {
		var token vectorToken[T]
		if len(*value) != 0 && v.rnd.bin() {
			token = v.randomMutateElement(value, c, maxCplx)
		} else {
			token = v.structural(vectorOp(v.rnd.Intn(int(numVectorOps))), value, c, nil, nil, maxCplx)
		}
		if token.kind != tokenNothing {
			return token, v.Complexity(*value, c)
		}
	}
	return v.replace(value, c, maxCplx)
}

func (v *VectorMutator[T]) replace(value *[]T, c *vectorCache, maxCplx float64) (UnmutateToken, float64) {
	token := vectorToken[T]{kind: tokenReplace, els: *value, caches: c.inner, sumCplx: c.sumCplx}
	nv, cplx := v.RandomArbitrary(maxCplx)
	nc, ok := v.ValidateValue(nv)
	if !ok {
		panic("vector mutator generated a value it does not accept")
	}
	*value = nv
	c.inner, c.sumCplx = nc.(*vectorCache).inner, nc.(*vectorCache).sumCplx
	return token, cplx
}

func (v *VectorMutator[T]) Unmutate(value *[]T, cache Cache, token UnmutateToken) {
	c := cache.(*vectorCache)
	t := token.(vectorToken[T])
	switch t.kind {
	case tokenNothing:
		return
	case tokenElement:
		v.m.Unmutate(&(*value)[t.idx], c.inner[t.idx], t.inner)
	case tokenRemove:
		*value = slices.Delete(*value, t.idx, t.idx+1)
		c.inner = slices.Delete(c.inner, t.idx, t.idx+1)
	case tokenRemoveMany:
		*value = slices.Delete(*value, t.idx, t.idx+t.n)
		c.inner = slices.Delete(c.inner, t.idx, t.idx+t.n)
	case tokenInsert, tokenInsertMany:
		*value = slices.Insert(*value, t.idx, t.els...)
		c.inner = slices.Insert(c.inner, t.idx, t.caches...)
	case tokenReplace:
		*value = t.els
		c.inner = t.caches
	}
	c.sumCplx = t.sumCplx
}

func (v *VectorMutator[T]) Lens(value []T, cache Cache, path LensPath) any {
	c := cache.(*vectorCache)
	p := path.(vectorPath)
	if !p.deep {
		return value[p.idx]
	}
	return v.m.Lens(value[p.idx], c.inner[p.idx], p.inner)
}

func (v *VectorMutator[T]) AllPaths(value []T, cache Cache, register func(reflect.Type, LensPath, float64)) {
	c := cache.(*vectorCache)
	for i, el := range value {
		register(v.elemType, vectorPath{idx: i}, v.m.Complexity(el, c.inner[i]))
		v.m.AllPaths(el, c.inner[i], func(typ reflect.Type, path LensPath, cplx float64) {
			register(typ, vectorPath{idx: i, deep: true, inner: path}, cplx)
		})
	}
}
