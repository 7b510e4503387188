// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package grammar

import (
	"slices"
	"strings"
)

// AST is a syntax tree: either a single character or a sequence of subtrees.
type AST struct {
	IsToken bool
	Token   rune
	Seq     []AST
}

func Token(c rune) AST {
	return AST{IsToken: true, Token: c}
}

func Sequence(seq ...AST) AST {
	if seq == nil {
		seq = []AST{}
	}
	return AST{Seq: seq}
}

// String concatenates all tokens of the tree.
func (a AST) String() string {
	var b strings.Builder
	a.write(&b)
	return b.String()
}

func (a AST) write(b *strings.Builder) {
	if a.IsToken {
		b.WriteRune(a.Token)
		return
	}
	for _, kid := range a.Seq {
		kid.write(b)
	}
}

func parseToken(a AST) (rune, bool) {
	return a.Token, a.IsToken
}

func formatToken(c rune) AST {
	return Token(c)
}

func parseSeq(a AST) ([]AST, bool) {
	if a.IsToken {
		return nil, false
	}
	return slices.Clone(a.Seq), true
}

func formatSeq(seq []AST) AST {
	return Sequence(slices.Clone(seq)...)
}
