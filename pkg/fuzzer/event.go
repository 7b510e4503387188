// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"fmt"
)

type EventKind int

const (
	EventStart EventKind = iota
	// The loop stopped because of cancellation or a failure.
	EventEnd
	// A panic happened outside of the target function.
	EventCrashNoInput
	// The loop stopped because the iteration or time budget is used up.
	EventDone
	// A new input was added to the pool.
	EventNew
	// A new input replaced Count inputs in the pool.
	EventReplace
	// Same as EventReplace, but the new input also reached a deeper stack
	// than all stored inputs (see sensor.TraceStackDepth).
	EventReplaceLowestStack
	// Inputs were removed without adding one, e.g. during minification.
	EventRemove
	EventDidReadCorpus
	EventCaughtSignal
	EventTestFailure
)

var eventNames = [...]string{
	EventStart:              "start",
	EventEnd:                "end",
	EventCrashNoInput:       "crash without input",
	EventDone:               "done",
	EventNew:                "new",
	EventReplace:            "replace",
	EventReplaceLowestStack: "replace lowest stack",
	EventRemove:             "remove",
	EventDidReadCorpus:      "read corpus",
	EventCaughtSignal:       "caught signal",
	EventTestFailure:        "test failure",
}

func (kind EventKind) String() string {
	if kind < 0 || int(kind) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(kind))
	}
	return eventNames[kind]
}

type Event struct {
	Kind EventKind
	// Count is the number of replaced or removed inputs.
	Count int
	// Signal is set for EventCaughtSignal.
	Signal string
	// Artifact is the stored failing input for EventTestFailure.
	Artifact string
}

func (ev Event) String() string {
	switch ev.Kind {
	case EventReplace, EventReplaceLowestStack, EventRemove:
		return fmt.Sprintf("%v(%v)", ev.Kind, ev.Count)
	case EventCaughtSignal:
		return fmt.Sprintf("%v(%v)", ev.Kind, ev.Signal)
	case EventTestFailure:
		if ev.Artifact != "" {
			return fmt.Sprintf("%v(%v)", ev.Kind, ev.Artifact)
		}
	}
	return ev.Kind.String()
}
