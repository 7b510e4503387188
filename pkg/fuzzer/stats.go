// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"sync"
	"time"

	"github.com/google/structfuzz/pkg/corpus"
	"github.com/google/structfuzz/pkg/signal"
	"github.com/google/structfuzz/pkg/stat"
)

// Stats is a snapshot of the fuzzer state.
type Stats struct {
	TotalRuns      uint64
	RunsSinceReset uint64
	// Score is the total coverage of the pool.
	Score         float64
	PoolSize      int
	ExecPerSec    float64
	AvgComplexity float64
}

type fuzzerStats struct {
	set *stat.Set

	statExecs     *stat.Val
	statGenerated *stat.Val
	statMutated   *stat.Val
	statDeadEnds  *stat.Val
	statFailures  *stat.Val
	statCplx      *stat.Val
	statExecTime  stat.AverageValue[time.Duration]

	mu        sync.Mutex
	totalRuns uint64
	resetRuns uint64
	resetTime time.Time
	pool      corpus.Stats
	// All features seen in any execution, kept or not.
	maxSignal signal.Signal
}

func newStats() *fuzzerStats {
	s := &fuzzerStats{
		set:       stat.NewSet(),
		resetTime: time.Now(),
	}
	s.statExecs = s.set.New("exec total", "Total number of target executions",
		stat.Console, stat.Rate{}, stat.Prometheus("structfuzz_execs_total"))
	s.statGenerated = s.set.New("exec gen", "Executions of generated inputs", stat.Rate{})
	s.statMutated = s.set.New("exec fuzz", "Executions of mutated inputs", stat.Rate{})
	s.statDeadEnds = s.set.New("dead ends", "Inputs with no mutations left",
		stat.Prometheus("structfuzz_dead_ends"))
	s.statFailures = s.set.New("failures", "Number of failing inputs",
		stat.Console, stat.Prometheus("structfuzz_failures"))
	s.statCplx = s.set.New("complexity", "Complexity of executed inputs", stat.Distribution{})
	s.set.New("pool size", "Number of inputs in the pool", stat.Console,
		stat.Prometheus("structfuzz_pool_size"), func() int {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.pool.Size
		})
	s.set.New("features", "Number of features covered by the pool", stat.Console,
		stat.Prometheus("structfuzz_features"), func() int {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.pool.Features
		})
	s.set.New("max signal", "Number of features seen in all executions",
		stat.Prometheus("structfuzz_max_signal"), func() int {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.maxSignal.Len()
		})
	s.set.New("exec time", "Average target execution time in microseconds", func() int {
		return int(s.statExecTime.Value() / time.Microsecond)
	})
	return s
}

func (s *fuzzerStats) executed(cplx float64, dur time.Duration) {
	s.statExecs.Add(1)
	s.statCplx.Add(int(cplx))
	s.statExecTime.Save(dur)
	s.mu.Lock()
	s.totalRuns++
	s.mu.Unlock()
}

// observe records the features of one execution and returns the never seen ones.
func (s *fuzzerStats) observe(features signal.Signal) signal.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	diff := s.maxSignal.Diff(features)
	s.maxSignal.Merge(diff)
	return diff
}

func (s *fuzzerStats) setPool(pool corpus.Stats) {
	s.mu.Lock()
	s.pool = pool
	s.mu.Unlock()
}

func (s *fuzzerStats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := Stats{
		TotalRuns:      s.totalRuns,
		RunsSinceReset: s.totalRuns - s.resetRuns,
		Score:          s.pool.Score,
		PoolSize:       s.pool.Size,
		AvgComplexity:  s.pool.AvgCplx,
	}
	if secs := time.Since(s.resetTime).Seconds(); secs > 0 {
		res.ExecPerSec = float64(res.RunsSinceReset) / secs
	}
	return res
}

func (s *fuzzerStats) reset() {
	s.mu.Lock()
	s.resetRuns = s.totalRuns
	s.resetTime = time.Now()
	s.mu.Unlock()
	s.statExecTime.Reset()
	s.set.ResetPeriod()
}
