// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package grammar describes context-free grammars and builds mutators
// that generate and mutate syntax trees matching them.
//
// A grammar is built from Literal (character classes), Concatenation, Alternation
// and Repetition nodes. Recursive grammars are written with Recursive and Recurse:
//
//	expr := grammar.Recursive(func(expr *grammar.Grammar) *grammar.Grammar {
//		return grammar.Alternation(
//			grammar.LiteralRange('0', '9'),
//			grammar.Concatenation(grammar.Literal('('), grammar.Recurse(expr), grammar.Literal(')')),
//		)
//	})
package grammar

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/structfuzz/pkg/mutator"
)

type Kind int

const (
	LiteralKind Kind = iota
	AlternationKind
	ConcatenationKind
	RepetitionKind
	RecurseKind
	RecursiveKind
)

// Grammar is a node of a grammar. Nodes are compared by identity:
// Recurse refers to a particular Recursive node.
type Grammar struct {
	Kind   Kind
	Ranges []mutator.CharRange
	Kids   []*Grammar
	// Repetition bounds, inclusive. Max is math.MaxInt for unbounded repetitions.
	Min, Max int
	// Target is the Recursive node a Recurse node refers to.
	Target *Grammar
}

func Literal(c rune) *Grammar {
	return LiteralRange(c, c)
}

func LiteralRange(lo, hi rune) *Grammar {
	return LiteralRanges(mutator.CharRange{Lo: lo, Hi: hi})
}

func LiteralRanges(ranges ...mutator.CharRange) *Grammar {
	if len(ranges) == 0 {
		panic("literal needs at least one character range")
	}
	for _, r := range ranges {
		if r.Hi < r.Lo {
			panic(fmt.Sprintf("bad literal range %q-%q", r.Lo, r.Hi))
		}
	}
	return &Grammar{Kind: LiteralKind, Ranges: ranges}
}

// String is a concatenation of literals for every character of s.
func String(s string) *Grammar {
	var kids []*Grammar
	for _, c := range s {
		kids = append(kids, Literal(c))
	}
	return Concatenation(kids...)
}

func Alternation(gs ...*Grammar) *Grammar {
	if len(gs) == 0 {
		panic("alternation needs at least one alternative")
	}
	return &Grammar{Kind: AlternationKind, Kids: gs}
}

func Concatenation(gs ...*Grammar) *Grammar {
	return &Grammar{Kind: ConcatenationKind, Kids: gs}
}

// Repetition matches g repeated between min and max times (inclusive).
func Repetition(g *Grammar, min, max int) *Grammar {
	if min < 0 || max < min {
		panic(fmt.Sprintf("bad repetition bounds [%v, %v]", min, max))
	}
	return &Grammar{Kind: RepetitionKind, Kids: []*Grammar{g}, Min: min, Max: max}
}

// Many is an unbounded repetition with at least min elements.
func Many(g *Grammar, min int) *Grammar {
	return Repetition(g, min, math.MaxInt)
}

// Recursive creates a node that can be referred to with Recurse from within build.
func Recursive(build func(self *Grammar) *Grammar) *Grammar {
	g := &Grammar{Kind: RecursiveKind}
	g.Kids = []*Grammar{build(g)}
	return g
}

// Recurse refers back to an enclosing Recursive node.
func Recurse(g *Grammar) *Grammar {
	if g == nil || g.Kind != RecursiveKind {
		panic("recurse must refer to a recursive grammar")
	}
	return &Grammar{Kind: RecurseKind, Target: g}
}

func (g *Grammar) String() string {
	var b strings.Builder
	g.format(&b, make(map[*Grammar]int))
	return b.String()
}

func (g *Grammar) format(b *strings.Builder, names map[*Grammar]int) {
	switch g.Kind {
	case LiteralKind:
		b.WriteByte('[')
		for _, r := range g.Ranges {
			if r.Lo == r.Hi {
				fmt.Fprintf(b, "%q", r.Lo)
			} else {
				fmt.Fprintf(b, "%q-%q", r.Lo, r.Hi)
			}
		}
		b.WriteByte(']')
	case AlternationKind, ConcatenationKind:
		sep := " "
		if g.Kind == AlternationKind {
			sep = " | "
		}
		b.WriteByte('(')
		for i, kid := range g.Kids {
			if i != 0 {
				b.WriteString(sep)
			}
			kid.format(b, names)
		}
		b.WriteByte(')')
	case RepetitionKind:
		g.Kids[0].format(b, names)
		if g.Max == math.MaxInt {
			fmt.Fprintf(b, "{%v,}", g.Min)
		} else {
			fmt.Fprintf(b, "{%v,%v}", g.Min, g.Max)
		}
	case RecursiveKind:
		id := len(names)
		names[g] = id
		fmt.Fprintf(b, "rec%v=", id)
		g.Kids[0].format(b, names)
	case RecurseKind:
		if id, ok := names[g.Target]; ok {
			fmt.Fprintf(b, "rec%v", id)
		} else {
			b.WriteString("rec?")
		}
	}
}
