// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"os"
	"testing"

	"github.com/google/structfuzz/pkg/grammar"
	"github.com/google/structfuzz/pkg/mutator"
	"github.com/google/structfuzz/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	mutator.SetSeed(1)
	os.Exit(m.Run())
}

// Guards are initialized when the package is loaded, before any sensor is installed.
func TestGuardsInitialized(t *testing.T) {
	assert.Nil(t, sensor.Installed())
	assert.GreaterOrEqual(t, sensor.NumGuards(), int(numGuards))
	seen := make(map[uint32]bool)
	for _, g := range guards {
		require.NotZero(t, g)
		require.False(t, seen[g])
		seen[g] = true
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		res  int64
	}{
		{"0", 0},
		{"7", 7},
		{"123", 123},
		{"(1+2)", 3},
		{"(1-20)", -19},
		{"((3*4)/2)", 6},
		{"(999*(999*999))", 997002999},
	}
	g := calcGrammar()
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			assert.True(t, grammar.Matches(g, test.expr))
			assert.Equal(t, test.res, eval(test.expr))
		})
	}
}

func TestCalcGrammar(t *testing.T) {
	g := calcGrammar()
	for _, s := range []string{"", "1234", "(1+2", "1+2", "(1%2)", "(()+1)"} {
		assert.False(t, grammar.Matches(g, s), "%q", s)
	}
	m := grammar.NewStringMutator(g)
	for i := 0; i < 100; i++ {
		value, _, cplx := mutator.Generate[string](m, 50)
		assert.LessOrEqual(t, cplx, 50.0)
		require.True(t, grammar.Matches(g, value), "%q", value)
		func() {
			defer func() {
				if r := recover(); r != nil {
					assert.Contains(t, value, "/", "%q panicked: %v", value, r)
				}
			}()
			eval(value)
		}()
	}
}

func TestCalcTarget(t *testing.T) {
	assert.True(t, calcTarget("(1+2)"))
	assert.False(t, calcTarget("(999+338)"))
	assert.False(t, calcTarget("(7*191)"))
	assert.Panics(t, func() { calcTarget("(1/(2-2))") })
}
