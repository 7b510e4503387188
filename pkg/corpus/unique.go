// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"fmt"
	"math/rand"
	"slices"
	"sort"

	"github.com/google/structfuzz/pkg/signal"
)

// UniqueCoveragePool keeps, for every feature ever observed, the least complex input that has it.
// An input stays in the pool while it is the best holder of at least one feature.
//
// Inputs are selected with probability proportional to the rarity of the features they hold:
// every feature contributes 1/hits, where hits is the number of processed inputs that had it.
type UniqueCoveragePool struct {
	name     string
	rnd      *rand.Rand
	inputs   map[StorageIndex]*poolInput
	features map[signal.Feature]*featureState

	// Selection state is rebuilt lazily after the pool changes and periodically
	// to account for changing hit counts.
	list      []StorageIndex
	accPrios  []float64
	sumPrios  float64
	dirty     bool
	processed int
}

type poolInput struct {
	idx      StorageIndex
	cplx     float64
	features signal.Signal
	best     signal.Signal
	deadEnd  bool
}

type featureState struct {
	holder *poolInput
	hits   uint64
}

const reweighPeriod = 1000

func NewUniqueCoveragePool(name string, rnd *rand.Rand) *UniqueCoveragePool {
	return &UniqueCoveragePool{
		name:     name,
		rnd:      rnd,
		inputs:   make(map[StorageIndex]*poolInput),
		features: make(map[signal.Feature]*featureState),
	}
}

func (pool *UniqueCoveragePool) Name() string { return pool.name }
func (pool *UniqueCoveragePool) Len() int     { return len(pool.inputs) }

// BestHolder returns the input that currently holds feature f.
func (pool *UniqueCoveragePool) BestHolder(f signal.Feature) (StorageIndex, float64, bool) {
	st := pool.features[f]
	if st == nil || st.holder == nil {
		return 0, 0, false
	}
	return st.holder.idx, st.holder.cplx, true
}

func (pool *UniqueCoveragePool) Process(idx StorageIndex, features signal.Signal, cplx float64) []CorpusDelta {
	if _, ok := pool.inputs[idx]; ok {
		panic(fmt.Sprintf("input %v is processed twice", idx))
	}
	pool.processed++
	var won []signal.Feature
	for _, f := range features.ToRaw() {
		st := pool.features[f]
		if st == nil {
			st = new(featureState)
			pool.features[f] = st
		}
		st.hits++
		// Ties keep the older input.
		if st.holder == nil || cplx < st.holder.cplx {
			won = append(won, f)
		}
	}
	if len(won) == 0 {
		return nil
	}
	inp := &poolInput{
		idx:      idx,
		cplx:     cplx,
		features: features.Copy(),
		best:     make(signal.Signal, len(won)),
	}
	var losers []*poolInput
	for _, f := range won {
		st := pool.features[f]
		if old := st.holder; old != nil {
			delete(old.best, f)
			if len(old.best) == 0 {
				losers = append(losers, old)
			}
		}
		st.holder = inp
		inp.best.Add(f)
	}
	var remove []StorageIndex
	for _, old := range losers {
		delete(pool.inputs, old.idx)
		remove = append(remove, old.idx)
	}
	slices.Sort(remove)
	pool.inputs[idx] = inp
	pool.dirty = true
	return []CorpusDelta{{
		Pool:     pool.name,
		Add:      true,
		Remove:   remove,
		Features: won,
	}}
}

func (pool *UniqueCoveragePool) GetRandomIndex() (StorageIndex, bool) {
	if pool.dirty || pool.processed >= reweighPeriod {
		pool.rebuild()
	}
	if len(pool.list) == 0 {
		return 0, false
	}
	randVal := pool.rnd.Float64() * pool.sumPrios
	idx := sort.Search(len(pool.accPrios), func(i int) bool {
		return pool.accPrios[i] > randVal
	})
	if idx == len(pool.list) {
		idx--
	}
	return pool.list[idx], true
}

func (pool *UniqueCoveragePool) weight(inp *poolInput) float64 {
	w := 0.0
	for f := range inp.best {
		w += 1 / float64(pool.features[f].hits)
	}
	return w
}

func (pool *UniqueCoveragePool) rebuild() {
	pool.list = pool.list[:0]
	pool.accPrios = pool.accPrios[:0]
	pool.sumPrios = 0
	for _, idx := range pool.sortedIndices() {
		inp := pool.inputs[idx]
		if inp.deadEnd {
			continue
		}
		pool.sumPrios += pool.weight(inp)
		pool.list = append(pool.list, idx)
		pool.accPrios = append(pool.accPrios, pool.sumPrios)
	}
	pool.dirty = false
	pool.processed = 0
}

func (pool *UniqueCoveragePool) sortedIndices() []StorageIndex {
	res := make([]StorageIndex, 0, len(pool.inputs))
	for idx := range pool.inputs {
		res = append(res, idx)
	}
	slices.Sort(res)
	return res
}

func (pool *UniqueCoveragePool) MarkTestCaseAsDeadEnd(idx StorageIndex) {
	if inp := pool.inputs[idx]; inp != nil && !inp.deadEnd {
		inp.deadEnd = true
		pool.dirty = true
	}
}

// Minify tries to drop the most complex inputs first. An input is dropped only if
// every feature it holds is also present in another input, which becomes the new holder.
func (pool *UniqueCoveragePool) Minify(targetLen int, onDelta func(CorpusDelta) error) error {
	cover := make(map[signal.Feature][]*poolInput)
	var cands []*poolInput
	for _, idx := range pool.sortedIndices() {
		inp := pool.inputs[idx]
		cands = append(cands, inp)
		for f := range inp.features {
			cover[f] = append(cover[f], inp)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].cplx > cands[j].cplx
	})
	for _, inp := range cands {
		if len(pool.inputs) <= targetLen {
			break
		}
		repl := pool.replacements(inp, cover)
		if repl == nil {
			continue
		}
		moved := make([]signal.Feature, 0, len(repl))
		for f, holder := range repl {
			pool.features[f].holder = holder
			holder.best.Add(f)
			moved = append(moved, f)
		}
		slices.Sort(moved)
		delete(pool.inputs, inp.idx)
		pool.dirty = true
		err := onDelta(CorpusDelta{
			Pool:     pool.name,
			Remove:   []StorageIndex{inp.idx},
			Features: moved,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// replacements finds the least complex remaining holder for every feature held by inp.
// It returns nil if inp is the only input with one of them.
func (pool *UniqueCoveragePool) replacements(inp *poolInput,
	cover map[signal.Feature][]*poolInput) map[signal.Feature]*poolInput {
	res := make(map[signal.Feature]*poolInput, len(inp.best))
	for f := range inp.best {
		var best *poolInput
		for _, other := range cover[f] {
			if other == inp || pool.inputs[other.idx] != other {
				continue
			}
			if best == nil || other.cplx < best.cplx {
				best = other
			}
		}
		if best == nil {
			return nil
		}
		res[f] = best
	}
	return res
}

func (pool *UniqueCoveragePool) Stats() Stats {
	total := 0.0
	for _, inp := range pool.inputs {
		total += inp.cplx
	}
	avg := 0.0
	if len(pool.inputs) != 0 {
		avg = total / float64(len(pool.inputs))
	}
	return Stats{
		Name:     pool.name,
		Size:     len(pool.inputs),
		Features: len(pool.features),
		Score:    float64(len(pool.features)),
		AvgCplx:  avg,
	}
}
