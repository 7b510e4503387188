// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"github.com/google/structfuzz/pkg/signal"
)

// UnitPool always offers the same single input until it becomes a dead end.
type UnitPool struct {
	idx     StorageIndex
	deadEnd bool
}

func NewUnitPool(idx StorageIndex) *UnitPool {
	return &UnitPool{idx: idx}
}

func (pool *UnitPool) Name() string { return "unit" }
func (pool *UnitPool) Len() int     { return 1 }

func (pool *UnitPool) GetRandomIndex() (StorageIndex, bool) {
	return pool.idx, !pool.deadEnd
}

func (pool *UnitPool) MarkTestCaseAsDeadEnd(idx StorageIndex) {
	pool.deadEnd = true
}

func (pool *UnitPool) Process(idx StorageIndex, features signal.Signal, cplx float64) []CorpusDelta {
	return nil
}

func (pool *UnitPool) Minify(targetLen int, onDelta func(CorpusDelta) error) error {
	return nil
}

func (pool *UnitPool) Stats() Stats {
	return Stats{Name: pool.Name(), Size: 1}
}
