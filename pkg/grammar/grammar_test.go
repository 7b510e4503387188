// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package grammar

import (
	"math"
	"os"
	"regexp"
	"testing"

	"github.com/google/structfuzz/pkg/mutator"
	"github.com/google/structfuzz/pkg/mutator/mutatortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	mutator.SetSeed(1)
	os.Exit(m.Run())
}

func exprGrammar() *Grammar {
	return Recursive(func(expr *Grammar) *Grammar {
		return Alternation(
			LiteralRange('0', '9'),
			Concatenation(Literal('('), Recurse(expr), Literal('+'), Recurse(expr), Literal(')')),
		)
	})
}

func listGrammar() *Grammar {
	return Recursive(func(list *Grammar) *Grammar {
		return Concatenation(
			Literal('['),
			Repetition(Alternation(LiteralRange('a', 'c'), Recurse(list)), 0, 4),
			Literal(']'),
		)
	})
}

func TestGrammarString(t *testing.T) {
	g := Concatenation(Literal('a'), Many(LiteralRange('0', '9'), 0), Repetition(Literal('z'), 1, 2))
	assert.Equal(t, `(['a'] ['0'-'9']{0,} ['z']{1,2})`, g.String())
	assert.Equal(t, `rec0=(['0'-'9'] | (['('] rec0 ['+'] rec0 [')']))`, exprGrammar().String())
}

func TestParse(t *testing.T) {
	g := exprGrammar()
	for _, s := range []string{"1", "(1+2)", "((1+2)+3)", "(0+(9+9))"} {
		assert.True(t, Matches(g, s), "%q", s)
	}
	for _, s := range []string{"", "12", "(1+2", "(1-2)", "1+2", "(1+2))"} {
		assert.False(t, Matches(g, s), "%q", s)
	}
	ast, ok := Parse(g, "(1+2)")
	require.True(t, ok)
	assert.Equal(t, Sequence(Token('('), Token('1'), Token('+'), Token('2'), Token(')')), ast)

	rep := Concatenation(Many(Literal('a'), 0), Literal('a'))
	ast, ok = Parse(rep, "aaa")
	require.True(t, ok)
	assert.Equal(t, Sequence(Sequence(Token('a'), Token('a')), Token('a')), ast)
	assert.False(t, Matches(Repetition(Literal('a'), 1, 2), "aaa"))
	assert.True(t, Matches(Many(Concatenation(), 0), ""))
}

func TestParseLeftRecursion(t *testing.T) {
	g := Recursive(func(e *Grammar) *Grammar {
		return Alternation(Concatenation(Recurse(e), Literal('+')), Literal('x'))
	})
	assert.True(t, Matches(g, "x"))
	assert.False(t, Matches(g, "y"))
}

func TestMinComplexity(t *testing.T) {
	// A digit costs 1 for the alternation and 1 for the character.
	assert.Equal(t, 2.0, NewASTMutator(exprGrammar()).MinComplexity())
	// Brackets cost 1 each, the empty repetition 1.
	m := NewASTMutator(listGrammar())
	assert.Equal(t, 3.0, m.MinComplexity())
	assert.True(t, math.IsInf(m.MaxComplexity(), 1))
	assert.Equal(t, 3.0, NewASTMutator(String("abc")).MaxComplexity())
}

func TestBadGrammars(t *testing.T) {
	outer := Recursive(func(self *Grammar) *Grammar { return Literal('x') })
	assert.Panics(t, func() { NewASTMutator(Concatenation(Recurse(outer))) })
	assert.Panics(t, func() {
		NewASTMutator(Recursive(func(self *Grammar) *Grammar {
			return Concatenation(Literal('a'), Recurse(self))
		}))
	})
	assert.Panics(t, func() { Recurse(Literal('a')) })
	assert.Panics(t, func() { Repetition(Literal('a'), 2, 1) })
	assert.Panics(t, func() { Alternation() })
	assert.Panics(t, func() { LiteralRange('z', 'a') })
}

func TestGeneratedStringsMatch(t *testing.T) {
	for _, g := range []*Grammar{exprGrammar(), listGrammar(), String("hello")} {
		m := NewASTMutator(g)
		for i := 0; i < 200; i++ {
			ast, cplx := m.RandomArbitrary(50)
			assert.LessOrEqual(t, cplx, 50.0)
			parsed, ok := Parse(g, ast.String())
			require.True(t, ok, "%q does not match %v", ast.String(), g)
			assert.Equal(t, ast, parsed)
		}
	}
}

// matching returns a check that the value is a syntax tree of g.
func matching(g *Grammar) func(any) bool {
	return func(v any) bool { return Matches(g, v.(AST).String()) }
}

func TestASTMutator(t *testing.T) {
	for _, g := range []*Grammar{exprGrammar(), listGrammar(), String("abc")} {
		opts := mutatortest.Options{MaxCplx: 60, Mutations: 50, Random: true, Valid: matching(g)}
		mutatortest.Check[AST](t, NewASTMutator(g), opts)
	}
	assert.Greater(t, mutatortest.CheckUnique[AST](t, NewASTMutator(exprGrammar()), 20, 50), 10)
}

func TestStringMutator(t *testing.T) {
	g := exprGrammar()
	m := NewStringMutator(g)
	mutatortest.Check[string](t, m, mutatortest.Options{
		MaxCplx:   60,
		Mutations: 50,
		Random:    true,
		Valid:     func(v any) bool { return Matches(g, v.(string)) },
	})
	cache, ok := m.ValidateValue("(1+2)")
	require.True(t, ok)
	// 1 + (1 + 1) + 1 + (1 + 1) + 1 for the sequence, plus 1 for the alternation.
	assert.Equal(t, 8.0, m.Complexity("(1+2)", cache))
	_, ok = m.ValidateValue("(1+")
	assert.False(t, ok)
	for i := 0; i < 100; i++ {
		s, _ := m.RandomArbitrary(40)
		assert.True(t, Matches(g, s), "%q", s)
	}
}

// Bounded repetitions must stay within their bounds for any budget,
// including budgets far above the maximal complexity of the grammar.
func TestRepetitionLargeBudget(t *testing.T) {
	number := Repetition(LiteralRange('0', '9'), 1, 3)
	letters, err := FromRegexp(`[a-c]{2,3}x?`)
	require.NoError(t, err)
	for _, g := range []*Grammar{number, letters, Concatenation(number, Literal('+'), number)} {
		m := NewStringMutator(g)
		for i := 0; i < 2000; i++ {
			maxCplx := float64(i % 400)
			s, _ := m.RandomArbitrary(maxCplx)
			require.True(t, Matches(g, s), "%v: budget %v: %q", g, maxCplx, s)
		}
		mutatortest.Check[string](t, m, mutatortest.Options{
			MaxCplx:   200,
			Mutations: 50,
			Random:    true,
			Valid:     func(v any) bool { return Matches(g, v.(string)) },
		})
	}
}

func TestFromRegexp(t *testing.T) {
	for _, expr := range []string{
		`[a-c]{2,3}x?`,
		`(foo|ba+r)*`,
		`^\d+(\.\d{1,2})?$`,
		`(?i)ab`,
		`.x.`,
	} {
		g, err := FromRegexp(expr)
		require.NoError(t, err, expr)
		re := regexp.MustCompile(`^(?:` + expr + `)$`)
		m := NewASTMutator(g)
		for i := 0; i < 100; i++ {
			ast, _ := m.RandomArbitrary(40)
			assert.True(t, re.MatchString(ast.String()), "%v: %q", expr, ast.String())
		}
	}
	_, err := FromRegexp(`(`)
	assert.Error(t, err)
}
