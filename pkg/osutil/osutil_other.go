// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !freebsd && !netbsd && !openbsd && !linux && !darwin

package osutil

import (
	"fmt"
	"os"
	"os/signal"
)

// HandleInterrupts calls onSignal and closes shutdown on the first interrupt
// and terminates the process on the second one.
func HandleInterrupts(shutdown chan struct{}, onSignal func(os.Signal)) {
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, os.Interrupt)
		sig := <-c
		if onSignal != nil {
			onSignal(sig)
		}
		close(shutdown)
		fmt.Fprintf(os.Stderr, "%v: shutting down...\n", sig)
		<-c
		fmt.Fprintf(os.Stderr, "%v: terminating\n", sig)
		os.Exit(1)
	}()
}
