// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package corpus decides which inputs are worth keeping and which ones are mutated next.
// Pools never own the inputs themselves, they refer to them with StorageIndex handles
// handed out by the fuzzer's storage.
package corpus

import (
	"fmt"

	"github.com/google/structfuzz/pkg/signal"
)

// StorageIndex identifies one stored input.
type StorageIndex int

// CorpusDelta describes how a pool changed after processing one input or during minification.
type CorpusDelta struct {
	Pool string
	// Add is set if the processed input must be kept.
	Add bool
	// Remove lists inputs that the pool no longer needs.
	Remove []StorageIndex
	// Features are the features the input became the best holder of,
	// or that were moved to another holder during minification.
	Features []signal.Feature
}

func (d CorpusDelta) String() string {
	return fmt.Sprintf("%v: add=%v remove=%v features=%v", d.Pool, d.Add, d.Remove, len(d.Features))
}

type Stats struct {
	Name     string
	Size     int
	Features int
	// Score measures the total coverage reached by the pool.
	Score   float64
	AvgCplx float64
}

type Pool interface {
	Name() string
	Len() int
	// GetRandomIndex returns false if there is no input that can be mutated.
	GetRandomIndex() (StorageIndex, bool)
	// MarkTestCaseAsDeadEnd excludes the input from future selection.
	MarkTestCaseAsDeadEnd(idx StorageIndex)
	Process(idx StorageIndex, features signal.Signal, cplx float64) []CorpusDelta
	// Minify drops inputs until the pool has at most targetLen of them
	// or nothing can be dropped without losing a feature.
	Minify(targetLen int, onDelta func(CorpusDelta) error) error
	Stats() Stats
}
