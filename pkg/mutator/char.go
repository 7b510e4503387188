// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"fmt"
)

// CharRange is an inclusive range of runes.
type CharRange struct {
	Lo, Hi rune
}

// CharMutator produces runes from a set of ranges. Every rune has complexity 1.
type CharMutator struct {
	noPaths[rune]
	ranges []CharRange
	total  int
	rnd    *randGen
}

func Char(ranges ...CharRange) *CharMutator {
	m := &CharMutator{
		ranges: ranges,
		rnd:    newRand(),
	}
	for _, r := range ranges {
		if r.Hi < r.Lo {
			panic(fmt.Sprintf("bad char range %q-%q", r.Lo, r.Hi))
		}
		m.total += int(r.Hi-r.Lo) + 1
	}
	if m.total == 0 {
		panic("char mutator needs at least one range")
	}
	return m
}

func (m *CharMutator) indexOf(c rune) (int, bool) {
	idx := 0
	for _, r := range m.ranges {
		if c >= r.Lo && c <= r.Hi {
			return idx + int(c-r.Lo), true
		}
		idx += int(r.Hi-r.Lo) + 1
	}
	return 0, false
}

func (m *CharMutator) at(idx int) rune {
	for _, r := range m.ranges {
		n := int(r.Hi-r.Lo) + 1
		if idx < n {
			return r.Lo + rune(idx)
		}
		idx -= n
	}
	panic(fmt.Sprintf("char index %v out of range", idx))
}

type charStep struct {
	next int
}

func (m *CharMutator) DefaultArbitraryStep() ArbitraryStep {
	return &charStep{}
}

func (m *CharMutator) ValidateValue(value rune) (Cache, bool) {
	_, ok := m.indexOf(value)
	return nil, ok
}

func (m *CharMutator) DefaultMutationStep(value rune, cache Cache) MutationStep {
	return &charStep{next: 1}
}

func (m *CharMutator) MinComplexity() float64 { return 1 }
func (m *CharMutator) MaxComplexity() float64 { return 1 }

func (m *CharMutator) Complexity(value rune, cache Cache) float64 {
	return 1
}

func (m *CharMutator) OrderedArbitrary(step ArbitraryStep, maxCplx float64) (rune, float64, bool) {
	s := step.(*charStep)
	if maxCplx < 1 || s.next >= m.total {
		return 0, 0, false
	}
	s.next++
	return m.at(s.next - 1), 1, true
}

func (m *CharMutator) RandomArbitrary(maxCplx float64) (rune, float64) {
	return m.at(m.rnd.Intn(m.total)), 1
}

func (m *CharMutator) OrderedMutate(value *rune, cache Cache, step MutationStep, sub SubValueProvider,
	maxCplx float64) (UnmutateToken, float64, bool) {
	s := step.(*charStep)
	if maxCplx < 1 || s.next >= m.total {
		return nil, 0, false
	}
	old := *value
	idx, _ := m.indexOf(old)
	*value = m.at((idx + s.next) % m.total)
	s.next++
	return old, 1, true
}

func (m *CharMutator) RandomMutate(value *rune, cache Cache, maxCplx float64) (UnmutateToken, float64) {
	old := *value
	if m.total > 1 {
		idx, _ := m.indexOf(old)
		*value = m.at((idx + 1 + m.rnd.Intn(m.total-1)) % m.total)
	}
	return old, 1
}

func (m *CharMutator) Unmutate(value *rune, cache Cache, token UnmutateToken) {
	*value = token.(rune)
}
