// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sensor

import (
	"sync/atomic"

	"github.com/google/structfuzz/pkg/log"
)

// Instrumented code has no way to receive a sensor, so the callbacks below
// forward to the one installed with Install. The fuzzer installs its sensor
// before running the target and uninstalls it when done.
// Trace callbacks without an installed sensor are dropped,
// guard initialization does not need a sensor.
var installed atomic.Pointer[Sensor]

func Install(s *Sensor) {
	if !installed.CompareAndSwap(nil, s) {
		panic("another sensor is already installed")
	}
}

func Uninstall(s *Sensor) {
	installed.CompareAndSwap(s, nil)
}

func Installed() *Sensor {
	return installed.Load()
}

// PCGuardInit is called once for every block of guards before instrumented code runs.
// Running out of guard ids is a build problem and terminates the process.
func PCGuardInit(guards []uint32) {
	if err := InitGuards(guards); err != nil {
		log.Fatalf("coverage instrumentation: %v", err)
	}
}

func TracePCGuard(guard *uint32) {
	if s := installed.Load(); s != nil {
		s.HandlePCGuard(*guard)
	}
}

func TraceCmp(pc uintptr, arg1, arg2 uint64) {
	if s := installed.Load(); s != nil {
		s.HandleTraceCmp(pc, arg1, arg2)
	}
}

func TraceIndir(caller, callee uintptr) {
	if s := installed.Load(); s != nil {
		s.HandleTraceIndir(caller, callee)
	}
}

func TraceStackDepth(depth uint32) {
	if s := installed.Load(); s != nil {
		s.HandleStackDepth(depth)
	}
}
