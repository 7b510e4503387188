// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package grammar

import (
	"fmt"
	"math"
	"reflect"

	"github.com/google/structfuzz/pkg/mutator"
)

// ASTMutator generates and mutates syntax trees whose String() matches the grammar.
type ASTMutator struct {
	mutator.Mutator[AST]
	arena *arena
}

// arena holds the mutators of all Recursive nodes of a grammar.
// Recurse nodes refer to them by index, so the mutator graph has no pointer cycles.
type arena struct {
	nodes []mutator.Mutator[AST]
	min   []float64
}

const maxFixpointIterations = 1000

// NewASTMutator builds a mutator for the grammar. It panics if the grammar
// contains a Recurse outside of its Recursive node, or if some recursive
// part of the grammar can't derive a finite string.
func NewASTMutator(g *Grammar) *ASTMutator {
	a := &arena{}
	root := a.build(g, make(map[*Grammar]int))
	for iter := 0; ; iter++ {
		if iter == maxFixpointIterations {
			panic("grammar complexity does not converge")
		}
		changed := false
		for i, node := range a.nodes {
			if next := node.MinComplexity(); next != a.min[i] {
				a.min[i] = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	for i, v := range a.min {
		if math.IsInf(v, 1) {
			panic(fmt.Sprintf("recursive grammar node %v can't derive a finite string", i))
		}
	}
	if math.IsInf(root.MinComplexity(), 1) {
		panic("grammar can't derive a finite string")
	}
	return &ASTMutator{Mutator: root, arena: a}
}

// NewStringMutator returns a mutator of strings matching the grammar.
// Strings are parsed into syntax trees on validation, so the grammar should be unambiguous.
func NewStringMutator(g *Grammar) *mutator.MapMutator[AST, string] {
	m := NewASTMutator(g)
	return mutator.Map[AST, string](m,
		func(s string) (AST, bool) { return Parse(g, s) },
		func(a AST) string { return a.String() })
}

func (a *arena) build(g *Grammar, scope map[*Grammar]int) mutator.Mutator[AST] {
	switch g.Kind {
	case LiteralKind:
		return mutator.Map[rune, AST](mutator.Char(g.Ranges...), parseToken, formatToken)
	case AlternationKind:
		ms := make([]mutator.Mutator[AST], len(g.Kids))
		for i, kid := range g.Kids {
			ms[i] = a.build(kid, scope)
		}
		return mutator.Alternation(ms...)
	case ConcatenationKind:
		ms := make([]mutator.Mutator[AST], len(g.Kids))
		for i, kid := range g.Kids {
			ms[i] = a.build(kid, scope)
		}
		return mutator.Map[[]AST, AST](mutator.Tuple(ms...), parseSeq, formatSeq)
	case RepetitionKind:
		elem := a.build(g.Kids[0], scope)
		return mutator.Map[[]AST, AST](mutator.VectorWithLen(elem, g.Min, g.Max), parseSeq, formatSeq)
	case RecursiveKind:
		idx := len(a.nodes)
		a.nodes = append(a.nodes, nil)
		a.min = append(a.min, math.Inf(1))
		scope[g] = idx
		a.nodes[idx] = a.build(g.Kids[0], scope)
		delete(scope, g)
		return &ref{arena: a, idx: idx}
	case RecurseKind:
		idx, ok := scope[g.Target]
		if !ok {
			panic("recurse refers to a grammar node that does not enclose it")
		}
		return &ref{arena: a, idx: idx}
	}
	panic(fmt.Sprintf("unknown grammar node kind %v", g.Kind))
}

// ref forwards everything to an arena node.
type ref struct {
	arena *arena
	idx   int
}

type refStep struct {
	inner mutator.ArbitraryStep
}

func (r *ref) node() mutator.Mutator[AST] {
	return r.arena.nodes[r.idx]
}

// DefaultArbitraryStep creates the node's step lazily: building it eagerly
// would recurse forever for a node that contains a reference to itself.
func (r *ref) DefaultArbitraryStep() mutator.ArbitraryStep {
	return &refStep{}
}

func (r *ref) ValidateValue(value AST) (mutator.Cache, bool) {
	return r.node().ValidateValue(value)
}

func (r *ref) DefaultMutationStep(value AST, cache mutator.Cache) mutator.MutationStep {
	return r.node().DefaultMutationStep(value, cache)
}

func (r *ref) MinComplexity() float64 { return r.arena.min[r.idx] }
func (r *ref) MaxComplexity() float64 { return math.Inf(1) }

func (r *ref) Complexity(value AST, cache mutator.Cache) float64 {
	return r.node().Complexity(value, cache)
}

func (r *ref) OrderedArbitrary(step mutator.ArbitraryStep, maxCplx float64) (AST, float64, bool) {
	s := step.(*refStep)
	if maxCplx < r.MinComplexity() {
		return AST{}, 0, false
	}
	if s.inner == nil {
		s.inner = r.node().DefaultArbitraryStep()
	}
	return r.node().OrderedArbitrary(s.inner, maxCplx)
}

func (r *ref) RandomArbitrary(maxCplx float64) (AST, float64) {
	return r.node().RandomArbitrary(maxCplx)
}

func (r *ref) OrderedMutate(value *AST, cache mutator.Cache, step mutator.MutationStep,
	sub mutator.SubValueProvider, maxCplx float64) (mutator.UnmutateToken, float64, bool) {
	return r.node().OrderedMutate(value, cache, step, sub, maxCplx)
}

func (r *ref) RandomMutate(value *AST, cache mutator.Cache, maxCplx float64) (mutator.UnmutateToken, float64) {
	return r.node().RandomMutate(value, cache, maxCplx)
}

func (r *ref) Unmutate(value *AST, cache mutator.Cache, token mutator.UnmutateToken) {
	r.node().Unmutate(value, cache, token)
}

func (r *ref) Lens(value AST, cache mutator.Cache, path mutator.LensPath) any {
	return r.node().Lens(value, cache, path)
}

func (r *ref) AllPaths(value AST, cache mutator.Cache, register func(reflect.Type, mutator.LensPath, float64)) {
	r.node().AllPaths(value, cache, register)
}
