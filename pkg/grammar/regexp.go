// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package grammar

import (
	"fmt"
	"math"
	"regexp/syntax"
	"unicode"

	"github.com/google/structfuzz/pkg/mutator"
)

// FromRegexp converts a regular expression (Go syntax) into a grammar.
// Anchors and word boundaries match the empty string.
func FromRegexp(expr string) (*Grammar, error) {
	re, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", expr, err)
	}
	return fromRegexp(re.Simplify())
}

var anyChar = []mutator.CharRange{{Lo: 0, Hi: 0xd7ff}, {Lo: 0xe000, Hi: unicode.MaxRune}}

func fromRegexp(re *syntax.Regexp) (*Grammar, error) {
	switch re.Op {
	case syntax.OpNoMatch:
		return nil, fmt.Errorf("regexp %v matches nothing", re)
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText,
		syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return Concatenation(), nil
	case syntax.OpLiteral:
		var kids []*Grammar
		for _, c := range re.Rune {
			if re.Flags&syntax.FoldCase != 0 && unicode.ToLower(c) != unicode.ToUpper(c) {
				kids = append(kids, Alternation(Literal(unicode.ToLower(c)), Literal(unicode.ToUpper(c))))
			} else {
				kids = append(kids, Literal(c))
			}
		}
		if len(kids) == 1 {
			return kids[0], nil
		}
		return Concatenation(kids...), nil
	case syntax.OpCharClass:
		var ranges []mutator.CharRange
		for i := 0; i+1 < len(re.Rune); i += 2 {
			ranges = append(ranges, mutator.CharRange{Lo: re.Rune[i], Hi: re.Rune[i+1]})
		}
		if len(ranges) == 0 {
			return nil, fmt.Errorf("empty character class in %v", re)
		}
		return LiteralRanges(ranges...), nil
	case syntax.OpAnyChar:
		return LiteralRanges(anyChar...), nil
	case syntax.OpAnyCharNotNL:
		return LiteralRanges(
			mutator.CharRange{Lo: 0, Hi: '\n' - 1},
			mutator.CharRange{Lo: '\n' + 1, Hi: 0xd7ff},
			anyChar[1],
		), nil
	case syntax.OpCapture:
		return fromRegexp(re.Sub[0])
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		sub, err := fromRegexp(re.Sub[0])
		if err != nil {
			return nil, err
		}
		switch re.Op {
		case syntax.OpStar:
			return Many(sub, 0), nil
		case syntax.OpPlus:
			return Many(sub, 1), nil
		case syntax.OpQuest:
			return Repetition(sub, 0, 1), nil
		}
		max := re.Max
		if max < 0 {
			max = math.MaxInt
		}
		return Repetition(sub, re.Min, max), nil
	case syntax.OpConcat, syntax.OpAlternate:
		kids := make([]*Grammar, len(re.Sub))
		for i, sub := range re.Sub {
			kid, err := fromRegexp(sub)
			if err != nil {
				return nil, err
			}
			kids[i] = kid
		}
		if re.Op == syntax.OpConcat {
			return Concatenation(kids...), nil
		}
		return Alternation(kids...), nil
	}
	return nil, fmt.Errorf("unsupported regexp operation %v in %v", re.Op, re)
}
