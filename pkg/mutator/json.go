// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"slices"
)

// JSONValue returns a mutator of JSON documents in the form produced by
// encoding/json when decoding into any: nil, bool, float64, string,
// []any and map[string]any.
//
// Numbers are integers that fit into int32, strings and object keys use
// letters, digits, '_' and ' '. Values outside of this subset are rejected
// by ValidateValue. Object keys are unique, so every object keeps all of
// its members after a mutation.
func JSONValue() *RecursiveMutator[any] {
	return Recursive(func(self Mutator[any]) Mutator[any] {
		str := jsonString(0)
		member := Tuple[any](jsonString(1), self)
		object := Filter[[][]any](Vector[[]any](member), uniqueKeys)
		return Alternation[any](
			Unit[any](nil),
			toAny[bool](Bool()),
			Map[int32, any](Integer[int32](), parseNumber, formatNumber),
			str,
			Map[[]any, any](Vector[any](self), parseArray, formatArray),
			Map[[][]any, any](object, parseObject, formatObject),
		)
	})
}

// Characters are a power of two, so all complexities in a document are integral
// and don't depend on the order of object members.
var jsonChars = []CharRange{{'a', 'z'}, {'A', 'Z'}, {'0', '9'}, {'_', '_'}, {' ', ' '}}

func jsonString(minLen int) Mutator[any] {
	runes := VectorWithLen[rune](Char(jsonChars...), minLen, math.MaxInt)
	return Map[[]rune, any](runes,
		func(v any) ([]rune, bool) {
			s, ok := v.(string)
			return []rune(s), ok
		},
		func(r []rune) any { return string(r) })
}

func toAny[T any](m Mutator[T]) Mutator[any] {
	return Map[T, any](m,
		func(v any) (T, bool) {
			x, ok := v.(T)
			return x, ok
		},
		func(v T) any { return v })
}

func parseNumber(v any) (int32, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int32(f), true
}

func formatNumber(v int32) any {
	return float64(v)
}

func parseArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	if !ok {
		return nil, false
	}
	return slices.Clone(a), true
}

// formatArray never returns a nil slice, it would be encoded as null.
func formatArray(v []any) any {
	res := make([]any, len(v))
	copy(res, v)
	return res
}

func parseObject(v any) ([][]any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	res := make([][]any, len(keys))
	for i, k := range keys {
		res[i] = []any{k, obj[k]}
	}
	return res, true
}

func formatObject(members [][]any) any {
	res := make(map[string]any, len(members))
	for _, kv := range members {
		res[kv[0].(string)] = kv[1]
	}
	return res
}

func uniqueKeys(members [][]any) bool {
	seen := make(map[string]bool, len(members))
	for _, kv := range members {
		k := kv[0].(string)
		if seen[k] {
			return false
		}
		seen[k] = true
	}
	return true
}
