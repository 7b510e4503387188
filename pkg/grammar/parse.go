// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package grammar

import (
	"slices"
)

// Parse returns the syntax tree of s under the grammar in the shape produced by NewASTMutator.
// The parser backtracks, so for ambiguous grammars the first derivation found is returned.
// Left-recursive derivations that don't consume input are cut off.
func Parse(g *Grammar, s string) (AST, bool) {
	p := &parser{
		input:  []rune(s),
		active: make(map[activeKey]int),
	}
	var res AST
	ok := p.parse(g, 0, func(a AST, pos int) bool {
		if pos != len(p.input) {
			return false
		}
		res = a
		return true
	})
	return res, ok
}

// Matches reports whether s can be derived from the grammar.
func Matches(g *Grammar, s string) bool {
	_, ok := Parse(g, s)
	return ok
}

type parser struct {
	input  []rune
	active map[activeKey]int
}

type activeKey struct {
	g   *Grammar
	pos int
}

// cont receives a parsed subtree and the position after it.
// It returns true to stop the search.
type cont func(a AST, pos int) bool

func (p *parser) parse(g *Grammar, pos int, k cont) bool {
	switch g.Kind {
	case LiteralKind:
		if pos >= len(p.input) {
			return false
		}
		c := p.input[pos]
		for _, r := range g.Ranges {
			if c >= r.Lo && c <= r.Hi {
				return k(Token(c), pos+1)
			}
		}
		return false
	case AlternationKind:
		for _, kid := range g.Kids {
			if p.parse(kid, pos, k) {
				return true
			}
		}
		return false
	case ConcatenationKind:
		return p.sequence(g.Kids, 0, pos, nil, k)
	case RepetitionKind:
		return p.repetition(g, pos, nil, k)
	case RecursiveKind:
		return p.guarded(g, pos, func(pos int, k cont) bool { return p.parse(g.Kids[0], pos, k) }, k)
	case RecurseKind:
		return p.guarded(g.Target, pos, func(pos int, k cont) bool { return p.parse(g.Target.Kids[0], pos, k) }, k)
	}
	return false
}

// guarded fails if the recursive node is already being parsed at the same position.
func (p *parser) guarded(g *Grammar, pos int, f func(int, cont) bool, k cont) bool {
	key := activeKey{g, pos}
	if p.active[key] != 0 {
		return false
	}
	p.active[key]++
	res := f(pos, func(a AST, end int) bool {
		// The continuation parses what follows this node, which may legitimately
		// recurse into the same node at the same position again.
		p.active[key]--
		defer func() { p.active[key]++ }()
		return k(a, end)
	})
	p.active[key]--
	return res
}

func (p *parser) sequence(kids []*Grammar, i, pos int, acc []AST, k cont) bool {
	if i == len(kids) {
		return k(Sequence(slices.Clone(acc)...), pos)
	}
	return p.parse(kids[i], pos, func(a AST, end int) bool {
		return p.sequence(kids, i+1, end, append(slices.Clone(acc), a), k)
	})
}

// repetition tries longer matches first.
func (p *parser) repetition(g *Grammar, pos int, acc []AST, k cont) bool {
	if len(acc) < g.Max {
		more := p.parse(g.Kids[0], pos, func(a AST, end int) bool {
			if end == pos && len(acc) >= g.Min {
				// An empty match can be repeated forever without changing anything.
				return false
			}
			return p.repetition(g, end, append(slices.Clone(acc), a), k)
		})
		if more {
			return true
		}
	}
	if len(acc) < g.Min {
		return false
	}
	return k(Sequence(slices.Clone(acc)...), pos)
}
