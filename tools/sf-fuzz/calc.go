// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/google/structfuzz/pkg/grammar"
	"github.com/google/structfuzz/pkg/sensor"
)

// The calculator is the built-in fuzz target. It is instrumented by hand
// the same way the compiler instruments code: every basic block hits a guard
// and interesting comparisons are reported to the sensor.

const (
	guardEval = iota
	guardNumber
	guardBigNumber
	guardParen
	guardAdd
	guardSub
	guardMul
	guardDiv
	guardNegative
	guardHuge
	numGuards
)

var guards [numGuards]uint32

func init() {
	sensor.PCGuardInit(guards[:])
}

func cover(guard int) {
	sensor.TracePCGuard(&guards[guard])
}

const (
	pcNumber uintptr = iota + 1
	pcResult
)

// magicResult makes the target fail. Division by zero makes it panic.
const magicResult = 1337

// calcGrammar is expr := number | "(" expr op expr ")", numbers have up to 3 digits.
func calcGrammar() *grammar.Grammar {
	number := grammar.Repetition(grammar.LiteralRange('0', '9'), 1, 3)
	op := grammar.Alternation(grammar.Literal('+'), grammar.Literal('-'), grammar.Literal('*'), grammar.Literal('/'))
	return grammar.Recursive(func(expr *grammar.Grammar) *grammar.Grammar {
		return grammar.Alternation(
			number,
			grammar.Concatenation(grammar.Literal('('), grammar.Recurse(expr), op,
				grammar.Recurse(expr), grammar.Literal(')')),
		)
	})
}

// calcTarget evaluates an expression matching calcGrammar.
func calcTarget(expr string) bool {
	res := eval(expr)
	sensor.TraceCmp(pcResult, uint64(res), magicResult)
	if res < 0 {
		cover(guardNegative)
	}
	if res > 1<<20 {
		cover(guardHuge)
	}
	return res != magicResult
}

type calc struct {
	s     string
	pos   int
	depth uint32
}

func eval(expr string) int64 {
	cover(guardEval)
	c := &calc{s: expr}
	return c.expr()
}

func (c *calc) expr() int64 {
	if c.s[c.pos] != '(' {
		return c.number()
	}
	cover(guardParen)
	c.depth++
	defer func() { c.depth-- }()
	sensor.TraceStackDepth(c.depth)
	c.pos++
	a := c.expr()
	op := c.s[c.pos]
	c.pos++
	b := c.expr()
	c.pos++
	switch op {
	case '+':
		cover(guardAdd)
		return a + b
	case '-':
		cover(guardSub)
		return a - b
	case '*':
		cover(guardMul)
		return a * b
	case '/':
		cover(guardDiv)
		return a / b
	}
	panic(fmt.Sprintf("unknown operator %q at %v in %q", op, c.pos-1, c.s))
}

func (c *calc) number() int64 {
	cover(guardNumber)
	var v int64
	for c.pos < len(c.s) && c.s[c.pos] >= '0' && c.s[c.pos] <= '9' {
		v = v*10 + int64(c.s[c.pos]-'0')
		c.pos++
	}
	sensor.TraceCmp(pcNumber, uint64(v), 100)
	if v >= 100 {
		cover(guardBigNumber)
	}
	return v
}
