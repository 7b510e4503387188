// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"math/rand"

	"github.com/google/structfuzz/pkg/signal"
)

// AndPool runs two pools side by side. Every input is processed by both,
// and selection picks one of them with probability proportional to its weight.
type AndPool struct {
	first, second    Pool
	weight1, weight2 float64
	rnd              *rand.Rand
}

func NewAndPool(first, second Pool, weight1, weight2 float64, rnd *rand.Rand) *AndPool {
	if weight1 < 0 || weight2 < 0 || weight1+weight2 == 0 {
		panic("bad pool weights")
	}
	return &AndPool{
		first:   first,
		second:  second,
		weight1: weight1,
		weight2: weight2,
		rnd:     rnd,
	}
}

func (pool *AndPool) Name() string {
	return pool.first.Name() + "+" + pool.second.Name()
}

// Len counts inputs of both pools, an input kept by both is counted twice.
func (pool *AndPool) Len() int {
	return pool.first.Len() + pool.second.Len()
}

func (pool *AndPool) GetRandomIndex() (StorageIndex, bool) {
	a, b := pool.first, pool.second
	if pool.rnd.Float64()*(pool.weight1+pool.weight2) >= pool.weight1 {
		a, b = b, a
	}
	if idx, ok := a.GetRandomIndex(); ok {
		return idx, true
	}
	return b.GetRandomIndex()
}

func (pool *AndPool) MarkTestCaseAsDeadEnd(idx StorageIndex) {
	pool.first.MarkTestCaseAsDeadEnd(idx)
	pool.second.MarkTestCaseAsDeadEnd(idx)
}

func (pool *AndPool) Process(idx StorageIndex, features signal.Signal, cplx float64) []CorpusDelta {
	res := pool.first.Process(idx, features, cplx)
	return append(res, pool.second.Process(idx, features, cplx)...)
}

func (pool *AndPool) Minify(targetLen int, onDelta func(CorpusDelta) error) error {
	// Each pool gets a share of the target proportional to its current size.
	total := pool.Len()
	if total <= targetLen {
		return nil
	}
	target1 := targetLen * pool.first.Len() / total
	if err := pool.first.Minify(target1, onDelta); err != nil {
		return err
	}
	return pool.second.Minify(targetLen-target1, onDelta)
}

func (pool *AndPool) Stats() Stats {
	s1, s2 := pool.first.Stats(), pool.second.Stats()
	res := Stats{
		Name:     pool.Name(),
		Size:     s1.Size + s2.Size,
		Features: s1.Features + s2.Features,
		Score:    s1.Score + s2.Score,
	}
	if res.Size != 0 {
		res.AvgCplx = (s1.AvgCplx*float64(s1.Size) + s2.AvgCplx*float64(s2.Size)) / float64(res.Size)
	}
	return res
}
