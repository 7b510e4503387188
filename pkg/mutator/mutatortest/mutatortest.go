// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package mutatortest checks that a mutator obeys the mutator contract.
package mutatortest

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/structfuzz/pkg/mutator"
	"github.com/google/structfuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Options struct {
	// MaxCplx is the complexity budget for generation and mutation.
	MaxCplx float64
	// Values is the number of generated values.
	Values int
	// Mutations is the number of mutations applied to every generated value.
	Mutations int
	// Random additionally checks RandomMutate, including chains of random
	// mutations that are undone in reverse order.
	Random bool
	// Valid is an additional check for every generated, mutated and restored value.
	Valid func(value any) bool
}

var dumper = spew.ConfigState{
	Indent:                  " ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders a value and its cache including all nested state,
// so that two dumps are equal only if the states are identical.
func Dump(v ...any) string {
	return dumper.Sdump(v...)
}

// Check generates values, mutates them and verifies that:
//   - generated and mutated values are accepted by ValidateValue,
//   - reported complexities match Complexity and respect the bounds,
//   - Unmutate restores the exact previous value and cache,
//   - values satisfy opts.Valid if it is set.
func Check[T any](t *testing.T, m mutator.Mutator[T], opts Options) {
	if opts.Values == 0 {
		opts.Values = testutil.IterCount() / 10
	}
	if opts.Mutations == 0 {
		opts.Mutations = 20
	}
	minCplx, maxCplx := m.MinComplexity(), m.MaxComplexity()
	require.LessOrEqual(t, minCplx, maxCplx)
	for i := 0; i < opts.Values; i++ {
		value, cplx := m.RandomArbitrary(opts.MaxCplx)
		if minCplx <= opts.MaxCplx {
			require.LessOrEqual(t, cplx, opts.MaxCplx, "generated %v", Dump(value))
		}
		cache, ok := m.ValidateValue(value)
		require.True(t, ok, "generated value is invalid: %v", Dump(value))
		require.Equal(t, cplx, m.Complexity(value, cache))
		checkBounds(t, m, cplx)
		checkValid(t, opts, value)
		step := m.DefaultMutationStep(value, cache)
		for j := 0; j < opts.Mutations; j++ {
			before := Dump(value, cache)
			var token mutator.UnmutateToken
			var newCplx float64
			if opts.Random && j%2 == 1 {
				token, newCplx = m.RandomMutate(&value, cache, opts.MaxCplx)
			} else {
				token, newCplx, ok = m.OrderedMutate(&value, cache, step, mutator.NoSubValues{}, opts.MaxCplx)
				if !ok {
					require.Equal(t, before, Dump(value, cache), "exhausted mutation changed the value")
					break
				}
			}
			if cplx <= opts.MaxCplx {
				require.LessOrEqual(t, newCplx, opts.MaxCplx, "mutated %v", Dump(value))
			}
			assert.Equal(t, newCplx, m.Complexity(value, cache))
			checkBounds(t, m, newCplx)
			fresh, ok := m.ValidateValue(value)
			require.True(t, ok, "mutated value is invalid: %v", Dump(value))
			assert.Equal(t, newCplx, m.Complexity(value, fresh))
			checkValid(t, opts, value)
			m.Unmutate(&value, cache, token)
			require.Equal(t, before, Dump(value, cache), "unmutate did not restore the value")
			require.Equal(t, cplx, m.Complexity(value, cache))
			checkValid(t, opts, value)
		}
		if opts.Random {
			checkChain(t, m, opts, value, cache)
		}
	}
}

// checkChain applies several random mutations on top of each other and then
// undoes them in reverse order. Mutations that leave parts of the value
// sharing memory show up here, since later mutations then corrupt the state
// saved by earlier ones.
func checkChain[T any](t *testing.T, m mutator.Mutator[T], opts Options, value T, cache mutator.Cache) {
	var states []string
	var tokens []mutator.UnmutateToken
	for j := 0; j < opts.Mutations; j++ {
		states = append(states, Dump(value, cache))
		token, cplx := m.RandomMutate(&value, cache, opts.MaxCplx)
		tokens = append(tokens, token)
		assert.Equal(t, cplx, m.Complexity(value, cache))
		checkBounds(t, m, cplx)
		fresh, ok := m.ValidateValue(value)
		require.True(t, ok, "mutated value is invalid after %v mutations: %v", j+1, Dump(value))
		assert.Equal(t, cplx, m.Complexity(value, fresh), "cache diverged after %v mutations", j+1)
		checkValid(t, opts, value)
	}
	for j := len(tokens) - 1; j >= 0; j-- {
		m.Unmutate(&value, cache, tokens[j])
		require.Equal(t, states[j], Dump(value, cache), "unmutate %v of a chain did not restore the value", j)
	}
}

func checkValid[T any](t *testing.T, opts Options, value T) {
	if opts.Valid != nil {
		require.True(t, opts.Valid(value), "value does not satisfy the check: %v", Dump(value))
	}
}

func checkBounds[T any](t *testing.T, m mutator.Mutator[T], cplx float64) {
	assert.GreaterOrEqual(t, cplx, m.MinComplexity())
	assert.LessOrEqual(t, cplx, m.MaxComplexity())
}

// CheckUnique verifies that OrderedArbitrary never yields the same value twice
// and returns the number of produced values.
func CheckUnique[T any](t *testing.T, m mutator.Mutator[T], maxCplx float64, limit int) int {
	seen := make(map[string]bool)
	step := m.DefaultArbitraryStep()
	for i := 0; i < limit; i++ {
		value, cplx, ok := m.OrderedArbitrary(step, maxCplx)
		if !ok {
			return i
		}
		assert.LessOrEqual(t, cplx, maxCplx)
		key := Dump(value)
		require.False(t, seen[key], "value %v generated twice", key)
		seen[key] = true
	}
	return limit
}
