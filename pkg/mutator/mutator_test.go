// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator_test

import (
	"encoding/json"
	"math"
	"os"
	"reflect"
	"slices"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/structfuzz/pkg/mutator"
	"github.com/google/structfuzz/pkg/mutator/mutatortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	mutator.SetSeed(1)
	os.Exit(m.Run())
}

func TestComplexityHelpers(t *testing.T) {
	for n, cplx := range map[int]float64{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 256: 8, 257: 9} {
		assert.Equal(t, cplx, mutator.SizeToComplexity(n), "n=%v", n)
	}
	for cplx, n := range map[float64]int{-1: 1, 0: 1, 1: 2, 3: 8, 8: 256} {
		assert.Equal(t, n, mutator.ComplexityToSize(cplx), "cplx=%v", cplx)
	}
	assert.Equal(t, math.MaxInt, mutator.ComplexityToSize(100))
}

func TestInteger(t *testing.T) {
	mutatortest.Check[uint8](t, mutator.Integer[uint8](), mutatortest.Options{MaxCplx: 100, Random: true})
	mutatortest.Check[int32](t, mutator.Integer[int32](), mutatortest.Options{MaxCplx: 100, Random: true})
	mutatortest.Check[uint64](t, mutator.Integer[uint64](), mutatortest.Options{MaxCplx: 100, Random: true})
	assert.Equal(t, 256, mutatortest.CheckUnique[uint8](t, mutator.Integer[uint8](), 100, 1000))
	assert.Equal(t, 0, mutatortest.CheckUnique[uint16](t, mutator.Integer[uint16](), 10, 1000))
}

func TestIntegerOrder(t *testing.T) {
	m := mutator.Integer[uint8]()
	step := m.DefaultArbitraryStep()
	var got []uint8
	for i := 0; i < 4; i++ {
		v, cplx, ok := m.OrderedArbitrary(step, 8)
		require.True(t, ok)
		assert.Equal(t, 8.0, cplx)
		got = append(got, v)
	}
	assert.Equal(t, []uint8{0, 128, 64, 192}, got)
}

func TestEnum(t *testing.T) {
	values := make([]int, 1000)
	for i := range values {
		values[i] = i * 7
	}
	m := mutator.Enum(values...)
	assert.Equal(t, 10.0, m.MinComplexity())
	assert.Equal(t, 1000, mutatortest.CheckUnique[int](t, m, 100, 2000))
	mutatortest.Check[int](t, m, mutatortest.Options{MaxCplx: 100, Random: true})

	b := mutator.Bool()
	assert.Equal(t, 1.0, b.MaxComplexity())
	assert.Equal(t, 2, mutatortest.CheckUnique[bool](t, b, 10, 10))
	mutatortest.Check[bool](t, b, mutatortest.Options{MaxCplx: 10, Random: true})

	assert.Panics(t, func() { mutator.Enum[int]() })
	assert.Panics(t, func() { mutator.Enum(1, 2, 1) })
}

func TestUnit(t *testing.T) {
	m := mutator.Unit("x")
	assert.Equal(t, 1, mutatortest.CheckUnique[string](t, m, 0, 10))
	mutatortest.Check[string](t, m, mutatortest.Options{MaxCplx: 10, Random: true})
}

func TestChar(t *testing.T) {
	m := mutator.Char(mutator.CharRange{Lo: 'a', Hi: 'z'}, mutator.CharRange{Lo: '0', Hi: '9'})
	assert.Equal(t, 36, mutatortest.CheckUnique[rune](t, m, 1, 100))
	mutatortest.Check[rune](t, m, mutatortest.Options{MaxCplx: 10, Random: true})
	_, ok := m.ValidateValue('A')
	assert.False(t, ok)
	assert.Panics(t, func() { mutator.Char(mutator.CharRange{Lo: 'z', Hi: 'a'}) })
}

func TestEither(t *testing.T) {
	left := mutator.Left[uint8](mutator.Integer[uint8]())
	right := mutator.Right[uint8](mutator.Enum[uint8](1, 2, 3))
	assert.Equal(t, mutator.LeftSide, left.Side())
	assert.Equal(t, mutator.RightSide, right.Side())
	mutatortest.Check[uint8](t, left, mutatortest.Options{MaxCplx: 100, Random: true})
	mutatortest.Check[uint8](t, right, mutatortest.Options{MaxCplx: 100, Random: true})
	assert.Equal(t, 3, mutatortest.CheckUnique[uint8](t, right, 100, 10))
}

func TestFilter(t *testing.T) {
	even := func(v uint8) bool { return v%2 == 0 }
	m := mutator.Filter[uint8](mutator.Integer[uint8](), even)
	mutatortest.Check[uint8](t, m, mutatortest.Options{MaxCplx: 100, Random: true})
	assert.Equal(t, 128, mutatortest.CheckUnique[uint8](t, m, 100, 1000))
	for i := 0; i < 100; i++ {
		v, _ := m.RandomArbitrary(100)
		assert.True(t, even(v))
	}
	_, ok := m.ValidateValue(3)
	assert.False(t, ok)
}

func TestMap(t *testing.T) {
	m := mutator.Map[uint8, string](mutator.Integer[uint8](),
		func(s string) (uint8, bool) {
			v, err := strconv.ParseUint(s, 10, 8)
			return uint8(v), err == nil
		},
		func(v uint8) string { return strconv.Itoa(int(v)) })
	mutatortest.Check[string](t, m, mutatortest.Options{MaxCplx: 100, Random: true})
	assert.Equal(t, 256, mutatortest.CheckUnique[string](t, m, 100, 1000))
	_, ok := m.ValidateValue("256")
	assert.False(t, ok)
	cache, ok := m.ValidateValue("42")
	require.True(t, ok)
	assert.Equal(t, 8.0, m.Complexity("42", cache))
}

func TestAlternation(t *testing.T) {
	m := mutator.Alternation[rune](
		mutator.Char(mutator.CharRange{Lo: 'a', Hi: 'z'}),
		mutator.Char(mutator.CharRange{Lo: '0', Hi: '9'}),
		mutator.Char(mutator.CharRange{Lo: '+', Hi: '+'}),
	)
	assert.Equal(t, 3.0, m.MinComplexity())
	assert.Equal(t, 3.0, m.MaxComplexity())
	assert.Equal(t, 37, mutatortest.CheckUnique[rune](t, m, 10, 100))
	assert.Equal(t, 0, mutatortest.CheckUnique[rune](t, m, 2, 100))
	mutatortest.Check[rune](t, m, mutatortest.Options{MaxCplx: 10, Random: true})
	assert.Panics(t, func() { mutator.Alternation[int]() })
}

func TestAlternationOfVectors(t *testing.T) {
	short := mutator.VectorWithLen[uint8](mutator.Integer[uint8](), 0, 2)
	long := mutator.VectorWithLen[uint8](mutator.Integer[uint8](), 3, 6)
	m := mutator.Alternation[[]uint8](short, long)
	mutatortest.Check[[]uint8](t, m, mutatortest.Options{MaxCplx: 60, Random: true})
}

func TestVector(t *testing.T) {
	mutatortest.Check[[]uint8](t, mutator.Vector[uint8](mutator.Integer[uint8]()),
		mutatortest.Options{MaxCplx: 100, Random: true})
	mutatortest.Check[[]rune](t, mutator.Vector[rune](mutator.Char(mutator.CharRange{Lo: 'a', Hi: 'c'})),
		mutatortest.Options{MaxCplx: 50, Mutations: 100, Random: true})
	assert.Greater(t, mutatortest.CheckUnique[[]uint8](t, mutator.Vector[uint8](mutator.Integer[uint8]()), 40, 50), 10)
}

func TestVectorOfUnits(t *testing.T) {
	m := mutator.Vector[struct{}](mutator.Unit(struct{}{}))
	m.MaxGeneratedLen = 100
	mutatortest.Check[[]struct{}](t, m, mutatortest.Options{MaxCplx: 10, Random: true})
	for i := 0; i < 100; i++ {
		v, cplx := m.RandomArbitrary(1000)
		assert.LessOrEqual(t, len(v), 100)
		assert.Equal(t, 1+mutator.SizeToComplexity(len(v)+1), cplx)
	}
}

func TestVectorWithLen(t *testing.T) {
	m := mutator.VectorWithLen[uint8](mutator.Integer[uint8](), 2, 5)
	assert.Equal(t, 19.0, m.MinComplexity())
	assert.Equal(t, 44.0, m.MaxComplexity())
	mutatortest.Check[[]uint8](t, m, mutatortest.Options{MaxCplx: 100, Mutations: 50, Random: true})
	for i := 0; i < 100; i++ {
		v, _ := m.RandomArbitrary(100)
		assert.GreaterOrEqual(t, len(v), 2)
		assert.LessOrEqual(t, len(v), 5)
	}
	_, ok := m.ValidateValue([]uint8{1})
	assert.False(t, ok)
	assert.Panics(t, func() { mutator.VectorWithLen[uint8](mutator.Integer[uint8](), 3, 2) })
}

func TestVectorRandomArbitraryBudget(t *testing.T) {
	m := mutator.Vector[uint8](mutator.Integer[uint8]())
	for i := 0; i < 10000; i++ {
		v, cplx := m.RandomArbitrary(10)
		require.LessOrEqual(t, cplx, 10.0, "%v", v)
		require.LessOrEqual(t, len(v), 1)
	}
}

// Budgets above the maximal complexity of a bounded vector must not
// produce vectors longer than the bound.
func TestVectorWithLenLargeBudget(t *testing.T) {
	digits := mutator.VectorWithLen[rune](mutator.Char(mutator.CharRange{Lo: '0', Hi: '9'}), 1, 3)
	bytes := mutator.VectorWithLen[uint8](mutator.Integer[uint8](), 2, 5)
	for i := 0; i < 5000; i++ {
		maxCplx := float64(i % 500)
		v, cplx := digits.RandomArbitrary(maxCplx)
		require.GreaterOrEqual(t, len(v), 1, "budget %v", maxCplx)
		require.LessOrEqual(t, len(v), 3, "budget %v: %q", maxCplx, string(v))
		cache, ok := digits.ValidateValue(v)
		require.True(t, ok)
		assert.Equal(t, cplx, digits.Complexity(v, cache))

		b, _ := bytes.RandomArbitrary(maxCplx)
		require.GreaterOrEqual(t, len(b), 2, "budget %v", maxCplx)
		require.LessOrEqual(t, len(b), 5, "budget %v: %v", maxCplx, b)
	}
}

func TestVectorOfVectors(t *testing.T) {
	m := mutator.Vector[[]uint8](mutator.VectorWithLen[uint8](mutator.Integer[uint8](), 1, 4))
	mutatortest.Check[[][]uint8](t, m, mutatortest.Options{MaxCplx: 150, Mutations: 100, Random: true})
}

func TestVectorComplexity(t *testing.T) {
	m := mutator.Vector[uint8](mutator.Integer[uint8]())
	for _, test := range []struct {
		value []uint8
		cplx  float64
	}{
		{[]uint8{}, 1},
		{[]uint8{1}, 1 + 8 + 1},
		{[]uint8{1, 2}, 1 + 16 + 2},
		{[]uint8{1, 2, 3, 4}, 1 + 32 + 3},
	} {
		cache, ok := m.ValidateValue(test.value)
		require.True(t, ok)
		assert.Equal(t, test.cplx, m.Complexity(test.value, cache), "%v", test.value)
	}
}

type fixedSubValues struct {
	typ   reflect.Type
	value any
	cplx  float64
}

func (p *fixedSubValues) SubValue(typ reflect.Type, index int, maxCplx float64) (any, float64, bool) {
	if typ != p.typ || p.cplx > maxCplx {
		return nil, 0, false
	}
	return p.value, p.cplx, true
}

func TestVectorCrossover(t *testing.T) {
	m := mutator.Vector[uint16](mutator.Integer[uint16]())
	value := []uint16{}
	cache, ok := m.ValidateValue(value)
	require.True(t, ok)
	step := m.DefaultMutationStep(value, cache)
	sub := &fixedSubValues{typ: reflect.TypeFor[uint16](), value: uint16(0xabcd), cplx: 16}
	token, cplx, ok := m.OrderedMutate(&value, cache, step, sub, 100)
	require.True(t, ok)
	assert.Equal(t, []uint16{0xabcd}, value)
	assert.Equal(t, 1+16+1.0, cplx)
	m.Unmutate(&value, cache, token)
	assert.Empty(t, value)
	assert.Equal(t, 1.0, m.Complexity(value, cache))
}

func TestTuple(t *testing.T) {
	m := mutator.Tuple[uint8](mutator.Integer[uint8](), mutator.Enum[uint8](1, 2, 3, 4), mutator.Unit[uint8](7))
	assert.Equal(t, 10.0, m.MinComplexity())
	assert.Equal(t, 10.0, m.MaxComplexity())
	mutatortest.Check[[]uint8](t, m, mutatortest.Options{MaxCplx: 100, Random: true})
	for i := 0; i < 100; i++ {
		v, _ := m.RandomArbitrary(100)
		require.Len(t, v, 3)
		assert.Equal(t, uint8(7), v[2])
	}
	_, ok := m.ValidateValue([]uint8{1, 2})
	assert.False(t, ok)
	_, ok = m.ValidateValue([]uint8{1, 5, 7})
	assert.False(t, ok)
}

func TestPaths(t *testing.T) {
	inner := mutator.Vector[uint16](mutator.Integer[uint16]())
	m := mutator.Tuple[[]uint16](inner, inner)
	value := [][]uint16{{1, 2}, {3}}
	cache, ok := m.ValidateValue(value)
	require.True(t, ok)
	type path struct {
		typ  reflect.Type
		path mutator.LensPath
		cplx float64
	}
	var paths []path
	m.AllPaths(value, cache, func(typ reflect.Type, p mutator.LensPath, cplx float64) {
		paths = append(paths, path{typ, p, cplx})
	})
	var got []any
	var ints []any
	for _, p := range paths {
		sub := m.Lens(value, cache, p.path)
		got = append(got, sub)
		if p.typ == reflect.TypeFor[uint16]() {
			assert.Equal(t, 16.0, p.cplx)
			ints = append(ints, sub)
		}
	}
	assert.Len(t, paths, 5)
	assert.Equal(t, []any{uint16(1), uint16(2), uint16(3)}, ints)
	assert.Contains(t, got, any([]uint16{1, 2}))
}

type tree []tree

func treeMutator() *mutator.RecursiveMutator[tree] {
	return mutator.Recursive(func(self mutator.Mutator[tree]) mutator.Mutator[tree] {
		return mutator.Map[[]tree, tree](mutator.Vector[tree](self),
			func(v tree) ([]tree, bool) { return slices.Clone(v), true },
			func(v []tree) tree { return slices.Clone(v) })
	})
}

func (t tree) size() int {
	n := 1
	for _, kid := range t {
		n += kid.size()
	}
	return n
}

func TestRecursive(t *testing.T) {
	m := treeMutator()
	assert.Equal(t, 1.0, m.MinComplexity())
	assert.True(t, math.IsInf(m.MaxComplexity(), 1))
	mutatortest.Check[tree](t, m, mutatortest.Options{MaxCplx: 40, Random: true})
	maxSize := 0
	for i := 0; i < 200; i++ {
		v, cplx := m.RandomArbitrary(40)
		assert.LessOrEqual(t, cplx, 40.0)
		maxSize = max(maxSize, v.size())
	}
	assert.Greater(t, maxSize, 1)
	value := tree{{}, {{}}}
	cache, ok := m.ValidateValue(value)
	require.True(t, ok)
	// Leaves cost 1, a node with one child 1+1+1, the root 1+(1+3)+2.
	assert.Equal(t, 7.0, m.Complexity(value, cache))
}

func TestRecursiveUnproductive(t *testing.T) {
	assert.Panics(t, func() {
		mutator.Recursive(func(self mutator.Mutator[int]) mutator.Mutator[int] {
			return self
		})
	})
}

func TestGenerate(t *testing.T) {
	m := mutator.Vector[uint8](mutator.Integer[uint8]())
	value, cache, cplx := mutator.Generate[[]uint8](m, 50)
	assert.Equal(t, cplx, m.Complexity(value, cache))
	fresh, ok := m.ValidateValue(value)
	require.True(t, ok)
	if diff := cmp.Diff(mutatortest.Dump(cache), mutatortest.Dump(fresh)); diff != "" {
		t.Fatal(diff)
	}
}

func TestJSONValue(t *testing.T) {
	m := mutator.JSONValue()
	assert.Equal(t, 3.0, m.MinComplexity())
	roundTrips := func(v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return false
		}
		var res any
		if err := json.Unmarshal(data, &res); err != nil {
			return false
		}
		return reflect.DeepEqual(v, res)
	}
	mutatortest.Check[any](t, m, mutatortest.Options{MaxCplx: 200, Mutations: 50, Random: true, Valid: roundTrips})
	kinds := make(map[reflect.Kind]bool)
	for i := 0; i < 500; i++ {
		v, _ := m.RandomArbitrary(100)
		kinds[reflect.ValueOf(v).Kind()] = true
	}
	for _, kind := range []reflect.Kind{reflect.Invalid, reflect.Bool, reflect.Float64,
		reflect.String, reflect.Slice, reflect.Map} {
		assert.True(t, kinds[kind], "no values of kind %v", kind)
	}

	var doc any
	require.NoError(t, json.Unmarshal([]byte(`{"b": [1, "x y", null], "a": {"c": true}}`), &doc))
	cache, ok := m.ValidateValue(doc)
	require.True(t, ok)
	cplx := m.Complexity(doc, cache)
	assert.Greater(t, cplx, 3.0)
	for _, src := range []string{`1.5`, `"\u00e9"`, `4294967296`, `{"": 1}`} {
		var v any
		require.NoError(t, json.Unmarshal([]byte(src), &v))
		_, ok := m.ValidateValue(v)
		assert.False(t, ok, "%v", src)
	}
	// Member order does not matter.
	var same any
	require.NoError(t, json.Unmarshal([]byte(`{"a": {"c": true}, "b": [1, "x y", null]}`), &same))
	cache, ok = m.ValidateValue(same)
	require.True(t, ok)
	assert.Equal(t, cplx, m.Complexity(same, cache))
}
