// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sensor turns instrumentation callbacks of one target execution into coverage features.
package sensor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/structfuzz/pkg/signal"
)

// MaxNumGuards is the maximum number of coverage guards in the process.
const MaxNumGuards = 1 << 21

var ErrTooManyGuards = errors.New("too many coverage guards")

// Sensor accumulates edge hit counts, comparisons and indirect calls.
// Callbacks are ignored unless the sensor is recording.
type Sensor struct {
	mu        sync.Mutex
	recording bool
	counters  map[uint32]uint16
	features  signal.Signal
	// Deepest stack reached in the current run.
	depth uint32
}

func New() *Sensor {
	return &Sensor{
		counters: make(map[uint32]uint16),
		features: make(signal.Signal),
	}
}

// Guard ids are process-wide: instrumented code is initialized once,
// usually before any sensor exists, and the ids stay valid for every sensor
// installed later.
var guardIDs struct {
	mu sync.Mutex
	n  int
}

// InitGuards assigns increasing process-wide ids starting from 1 to the guards.
// Buffers that are empty or were already initialized are left as is.
func InitGuards(guards []uint32) error {
	if len(guards) == 0 || guards[0] != 0 {
		return nil
	}
	guardIDs.mu.Lock()
	defer guardIDs.mu.Unlock()
	if guardIDs.n+len(guards) >= MaxNumGuards {
		return fmt.Errorf("%w: %v+%v guards, max %v", ErrTooManyGuards, guardIDs.n, len(guards), MaxNumGuards)
	}
	for i := range guards {
		guardIDs.n++
		guards[i] = uint32(guardIDs.n)
	}
	return nil
}

// NumGuards returns the number of guards initialized in the process.
func NumGuards() int {
	guardIDs.mu.Lock()
	defer guardIDs.mu.Unlock()
	return guardIDs.n
}

// HandlePCGuard records one hit of the guard. Counters saturate.
func (s *Sensor) HandlePCGuard(guard uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording || guard == 0 {
		return
	}
	if c := s.counters[guard]; c != ^uint16(0) {
		s.counters[guard] = c + 1
	}
}

func (s *Sensor) HandleTraceCmp(pc uintptr, arg1, arg2 uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return
	}
	s.features.Add(signal.Cmp(pc, arg1, arg2))
}

func (s *Sensor) HandleTraceIndir(caller, callee uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return
	}
	s.features.Add(signal.Indir(caller, callee))
}

// HandleStackDepth records the stack depth reached by the target.
// Depth is an observation and not a feature: deeper stacks don't make inputs interesting on their own.
func (s *Sensor) HandleStackDepth(depth uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		s.depth = max(s.depth, depth)
	}
}

// StackDepth returns the deepest stack reached since the last Clear.
func (s *Sensor) StackDepth() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth
}

func (s *Sensor) StartRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = true
}

func (s *Sensor) StopRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
}

// IterateOverCollectedFeatures calls fn with an edge feature for every hit guard
// and with every recorded comparison and indirect call feature.
func (s *Sensor) IterateOverCollectedFeatures(fn func(signal.Feature)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for guard, count := range s.counters {
		fn(signal.Edge(guard, uint8(min(count, 255))))
	}
	for f := range s.features {
		fn(f)
	}
}

// Features returns the collected features as a signal.
func (s *Sensor) Features() signal.Signal {
	var raw []signal.Feature
	s.IterateOverCollectedFeatures(func(f signal.Feature) {
		raw = append(raw, f)
	})
	return signal.FromRaw(raw)
}

// Clear resets the counters, features and stack depth of the current run.
func (s *Sensor) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counters)
	clear(s.features)
	s.depth = 0
}
