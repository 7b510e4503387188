// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"math/bits"
)

// SizeToComplexity returns the number of bits needed to distinguish between n choices.
func SizeToComplexity(n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(bits.Len(uint(n - 1)))
}

// ComplexityToSize is the inverse of SizeToComplexity: the number of choices
// that can be distinguished with cplx bits.
func ComplexityToSize(cplx float64) int {
	if cplx <= 0 {
		return 1
	}
	if cplx >= 62 {
		return math.MaxInt
	}
	return int(math.Round(math.Exp2(cplx)))
}
