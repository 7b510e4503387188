// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzer implements the coverage-guided fuzzing loop:
// select an input from the pool, mutate it, run the target with the sensor recording,
// let the pool decide whether the input is interesting and undo the mutation.
package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/structfuzz/pkg/corpus"
	"github.com/google/structfuzz/pkg/hash"
	"github.com/google/structfuzz/pkg/mutator"
	"github.com/google/structfuzz/pkg/sensor"
	"github.com/google/structfuzz/pkg/signal"
	"github.com/google/structfuzz/pkg/stat"
	"github.com/google/uuid"
)

// Target is the code under test. It returns false if the input makes it fail.
// Panics are treated as failures.
type Target[T any] func(value T) bool

type Fuzzer[T any] struct {
	Config *Config
	// RunID identifies this run in logs.
	RunID string

	m       mutator.Mutator[T]
	ser     Serializer[T]
	target  Target[T]
	pool    corpus.Pool
	sensor  *sensor.Sensor
	rnd     *rand.Rand
	storage *storage[T]
	stats   *fuzzerStats

	start      time.Time
	corpusRead bool
	// Stack depth of the last execution and the deepest one of all stored inputs.
	depth    uint32
	maxDepth uint32
	signal     atomic.Pointer[string]
	failures   []string
}

// ErrFailure is returned by Run when StopAfterFirstFailure is set and the target failed.
var ErrFailure = errors.New("target failed")

// New creates a fuzzer for target. If pool is nil, a UniqueCoveragePool is used.
func New[T any](cfg *Config, m mutator.Mutator[T], ser Serializer[T], target Target[T],
	pool corpus.Pool) (*Fuzzer[T], error) {
	if err := cfg.Complete(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))
	if pool == nil {
		pool = corpus.NewUniqueCoveragePool("unique", rnd)
	}
	f := &Fuzzer[T]{
		Config: cfg,
		RunID:  uuid.New().String(),
		m:      m,
		ser:    ser,
		target: target,
		pool:   pool,
		sensor: sensor.New(),
		rnd:    rnd,
		stats:  newStats(),
	}
	st, err := newStorage(cfg, m, ser, f.Logf)
	if err != nil {
		return nil, err
	}
	f.storage = st
	f.Logf(0, "run %v: seed %v, pool %v, max complexity %v", f.RunID, seed, pool.Name(), cfg.MaxComplexity)
	return f, nil
}

func (f *Fuzzer[T]) Pool() corpus.Pool {
	return f.pool
}

// StatSet gives access to the fuzzer metrics, including the Prometheus registry.
func (f *Fuzzer[T]) StatSet() *stat.Set {
	return f.stats.set
}

// Stats can be called concurrently with Run.
func (f *Fuzzer[T]) Stats() Stats {
	return f.stats.snapshot()
}

// ResetStats restarts the period for RunsSinceReset and ExecPerSec.
func (f *Fuzzer[T]) ResetStats() {
	f.stats.reset()
}

// Failures returns paths of the stored failing inputs.
func (f *Fuzzer[T]) Failures() []string {
	return f.failures
}

// CaughtSignal asks a running fuzzer to stop. It can be called from any goroutine.
func (f *Fuzzer[T]) CaughtSignal(name string) {
	f.signal.Store(&name)
}

func (f *Fuzzer[T]) Logf(level int, msg string, args ...any) {
	if f.Config.Logf == nil {
		return
	}
	f.Config.Logf(level, msg, args...)
}

func (f *Fuzzer[T]) event(ev Event) {
	level := 1
	if f.Config.Debug {
		level = 0
	}
	f.Logf(level, "event: %v", ev)
	if f.Config.OnEvent != nil {
		f.Config.OnEvent(ev, f.stats.snapshot())
	}
}

// Run reads the persisted corpus and fuzzes until a termination condition is met.
// It returns ErrFailure if it stopped at a failing input.
func (f *Fuzzer[T]) Run(ctx context.Context) (err error) {
	defer f.installSensor()()
	defer func() {
		if err1 := f.storage.flush(); err == nil && err1 != nil {
			err = fmt.Errorf("failed to flush corpus db: %w", err1)
		}
	}()
	defer f.trapCrash(&err)
	f.start = time.Now()
	f.Logf(0, "%v coverage guards", sensor.NumGuards())
	f.event(Event{Kind: EventStart})
	if err := f.readCorpus(); err != nil {
		return err
	}
	for {
		if ev, stop := f.shouldStop(ctx); stop {
			if ev.Kind == EventCaughtSignal {
				f.event(ev)
				ev = Event{Kind: EventEnd}
			}
			f.event(ev)
			return nil
		}
		failed, err := f.iteration()
		if err != nil {
			return err
		}
		if failed && f.Config.StopAfterFirstFailure {
			f.event(Event{Kind: EventEnd})
			return ErrFailure
		}
	}
}

func (f *Fuzzer[T]) installSensor() func() {
	sensor.Install(f.sensor)
	return func() { sensor.Uninstall(f.sensor) }
}

// trapCrash converts a panic outside of the target into an error.
func (f *Fuzzer[T]) trapCrash(err *error) {
	if r := recover(); r != nil {
		f.Logf(0, "fuzzer crashed: %v\n%s", r, debug.Stack())
		f.event(Event{Kind: EventCrashNoInput})
		*err = fmt.Errorf("fuzzer crashed: %v", r)
	}
}

func (f *Fuzzer[T]) shouldStop(ctx context.Context) (Event, bool) {
	if name := f.signal.Load(); name != nil {
		return Event{Kind: EventCaughtSignal, Signal: *name}, true
	}
	select {
	case <-ctx.Done():
		return Event{Kind: EventEnd}, true
	default:
	}
	if f.Config.MaxIterations != 0 && f.stats.snapshot().TotalRuns >= uint64(f.Config.MaxIterations) {
		return Event{Kind: EventDone}, true
	}
	if f.Config.maxDuration != 0 && time.Since(f.start) >= f.Config.maxDuration {
		return Event{Kind: EventDone}, true
	}
	return Event{}, false
}

// iteration mutates or generates one input and runs it. It reports whether the target failed.
func (f *Fuzzer[T]) iteration() (bool, error) {
	idx, ok := f.pool.GetRandomIndex()
	if !ok || f.rnd.Float64() < f.Config.GenerationRate {
		return f.generate()
	}
	e := f.storage.get(idx)
	sub := f.randomDonor(idx)
	token, cplx, ok := f.m.OrderedMutate(&e.value, e.cache, e.step, sub, f.Config.MaxComplexity)
	if !ok {
		f.Logf(2, "input %v has no mutations left", idx)
		f.pool.MarkTestCaseAsDeadEnd(idx)
		f.stats.statDeadEnds.Add(1)
		return false, nil
	}
	defer f.m.Unmutate(&e.value, e.cache, token)
	f.stats.statMutated.Add(1)
	return f.test(e.value, cplx)
}

func (f *Fuzzer[T]) generate() (bool, error) {
	value, cplx := f.m.RandomArbitrary(f.Config.MaxComplexity)
	if _, ok := f.m.ValidateValue(value); !ok {
		panic("mutator generated a value it does not accept")
	}
	f.stats.statGenerated.Add(1)
	return f.test(value, cplx)
}

// randomDonor picks another stored input for crossover.
func (f *Fuzzer[T]) randomDonor(base corpus.StorageIndex) mutator.SubValueProvider {
	idx, ok := f.pool.GetRandomIndex()
	if !ok || idx == base {
		return mutator.NoSubValues{}
	}
	return newDonor(f.m, f.ser, f.storage.get(idx).data)
}

// test runs the target on value and updates the pool. It reports whether the target failed.
func (f *Fuzzer[T]) test(value T, cplx float64) (bool, error) {
	data, err := f.ser.Serialize(value)
	if err != nil {
		return false, fmt.Errorf("failed to serialize input: %w", err)
	}
	ok, features := f.execute(value, cplx)
	if !ok {
		return true, f.failure(data)
	}
	idx := f.storage.reserve()
	deltas := f.pool.Process(idx, features, cplx)
	return false, f.apply(deltas, data)
}

func (f *Fuzzer[T]) execute(value T, cplx float64) (bool, signal.Signal) {
	f.sensor.Clear()
	f.sensor.StartRecording()
	start := time.Now()
	ok := f.runTarget(value)
	f.stats.executed(cplx, time.Since(start))
	f.sensor.StopRecording()
	features := f.sensor.Features()
	f.depth = f.sensor.StackDepth()
	f.sensor.Clear()
	if fresh := f.stats.observe(features); !fresh.Empty() {
		f.Logf(2, "%v new features", fresh.Len())
	}
	return ok, features
}

func (f *Fuzzer[T]) runTarget(value T) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f.Logf(1, "target panicked: %v\n%s", r, debug.Stack())
			ok = false
		}
	}()
	return f.target(value)
}

func (f *Fuzzer[T]) failure(data []byte) error {
	f.stats.statFailures.Add(1)
	file, err := f.storage.saveArtifact(data)
	if err != nil {
		return fmt.Errorf("failed to save failing input: %w", err)
	}
	if file == "" {
		file = hash.String(data)
	}
	f.Logf(0, "run %v: test failure, input saved as %v", f.RunID, file)
	f.failures = append(f.failures, file)
	f.event(Event{Kind: EventTestFailure, Artifact: file})
	return nil
}

// apply stores the new input if a pool wants it and drops inputs that no pool needs anymore.
func (f *Fuzzer[T]) apply(deltas []corpus.CorpusDelta, data []byte) error {
	if len(deltas) == 0 {
		return nil
	}
	adds, removed := 0, 0
	for _, d := range deltas {
		if d.Add {
			adds++
		}
	}
	if adds != 0 {
		if _, err := f.storage.add(data, adds); err != nil {
			return fmt.Errorf("failed to store input: %w", err)
		}
	}
	for _, d := range deltas {
		for _, idx := range d.Remove {
			if err := f.storage.release(idx); err != nil {
				return fmt.Errorf("failed to remove input: %w", err)
			}
			removed++
		}
	}
	f.stats.setPool(f.pool.Stats())
	deeper := adds != 0 && f.depth > f.maxDepth
	if deeper {
		f.maxDepth = f.depth
	}
	switch {
	case adds != 0 && removed == 0:
		f.event(Event{Kind: EventNew})
	case deeper:
		f.event(Event{Kind: EventReplaceLowestStack, Count: removed})
	case adds != 0:
		f.event(Event{Kind: EventReplace, Count: removed})
	case removed != 0:
		f.event(Event{Kind: EventRemove, Count: removed})
	}
	return nil
}

// ReadCorpus runs all persisted inputs and keeps the ones the pool finds interesting.
// Inputs that are not kept are removed from disk. Run calls it if it was not called before.
func (f *Fuzzer[T]) ReadCorpus() (err error) {
	defer f.installSensor()()
	defer f.trapCrash(&err)
	return f.readCorpus()
}

func (f *Fuzzer[T]) readCorpus() error {
	if f.corpusRead {
		return nil
	}
	f.corpusRead = true
	inputs, err := f.storage.load()
	if err != nil {
		return fmt.Errorf("failed to read corpus: %w", err)
	}
	kept := 0
	for _, data := range inputs {
		value, err := f.ser.Deserialize(data)
		if err != nil {
			f.Logf(0, "dropping corpus input %v: %v", hash.String(data), err)
			if err := f.storage.forget(data); err != nil {
				return err
			}
			continue
		}
		cache, ok := f.m.ValidateValue(value)
		if !ok {
			f.Logf(0, "dropping corpus input %v: not accepted by the mutator", hash.String(data))
			if err := f.storage.forget(data); err != nil {
				return err
			}
			continue
		}
		cplx := f.m.Complexity(value, cache)
		ok, features := f.execute(value, cplx)
		if !ok {
			if err := f.failure(data); err != nil {
				return err
			}
			if err := f.storage.forget(data); err != nil {
				return err
			}
			if f.Config.StopAfterFirstFailure {
				return ErrFailure
			}
			continue
		}
		deltas := f.pool.Process(f.storage.reserve(), features, cplx)
		if !hasAdd(deltas) {
			if err := f.storage.forget(data); err != nil {
				return err
			}
		}
		if err := f.apply(deltas, data); err != nil {
			return err
		}
		if hasAdd(deltas) {
			kept++
		}
	}
	f.Logf(0, "read %v corpus inputs, kept %v", len(inputs), kept)
	f.event(Event{Kind: EventDidReadCorpus})
	return nil
}

func hasAdd(deltas []corpus.CorpusDelta) bool {
	for _, d := range deltas {
		if d.Add {
			return true
		}
	}
	return false
}

// MinifyCorpus reads the corpus and shrinks the pool to at most targetLen inputs
// without losing coverage, removing dropped inputs from disk.
func (f *Fuzzer[T]) MinifyCorpus(targetLen int) (err error) {
	defer f.installSensor()()
	defer func() {
		if err1 := f.storage.flush(); err == nil && err1 != nil {
			err = fmt.Errorf("failed to flush corpus db: %w", err1)
		}
	}()
	defer f.trapCrash(&err)
	if err := f.readCorpus(); err != nil {
		return err
	}
	before := f.pool.Len()
	err = f.pool.Minify(targetLen, func(d corpus.CorpusDelta) error {
		return f.apply([]corpus.CorpusDelta{d}, nil)
	})
	if err != nil {
		return err
	}
	f.Logf(0, "minified the pool from %v to %v inputs", before, f.pool.Len())
	f.event(Event{Kind: EventDone})
	return nil
}
