// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"reflect"

	"github.com/google/structfuzz/pkg/mutator"
)

// donor provides sub-values of one stored input for crossover.
// It works on a private copy of the input, so the values it hands out
// may be changed by mutators without affecting the pool.
type donor[T any] struct {
	m     mutator.Mutator[T]
	ser   Serializer[T]
	data  []byte
	value T
	cache mutator.Cache
	paths map[reflect.Type][]subPath
	err   bool
}

type subPath struct {
	path mutator.LensPath
	cplx float64
}

func newDonor[T any](m mutator.Mutator[T], ser Serializer[T], data []byte) *donor[T] {
	return &donor[T]{m: m, ser: ser, data: data}
}

func (d *donor[T]) init() bool {
	if d.paths != nil || d.err {
		return !d.err
	}
	value, err := d.ser.Deserialize(d.data)
	if err != nil {
		d.err = true
		return false
	}
	cache, ok := d.m.ValidateValue(value)
	if !ok {
		d.err = true
		return false
	}
	d.value, d.cache = value, cache
	d.paths = make(map[reflect.Type][]subPath)
	d.m.AllPaths(value, cache, func(typ reflect.Type, path mutator.LensPath, cplx float64) {
		d.paths[typ] = append(d.paths[typ], subPath{path, cplx})
	})
	return true
}

func (d *donor[T]) SubValue(typ reflect.Type, index int, maxCplx float64) (any, float64, bool) {
	if !d.init() {
		return nil, 0, false
	}
	for _, p := range d.paths[typ] {
		if p.cplx > maxCplx {
			continue
		}
		if index == 0 {
			return d.m.Lens(d.value, d.cache, p.path), p.cplx, true
		}
		index--
	}
	return nil, 0, false
}
