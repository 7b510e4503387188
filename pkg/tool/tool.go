// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains various helper utilitites useful for implementation of command line tools.
package tool

import (
	"flag"
	"fmt"
	"os"
)

// Init parses the command line flags and installs profiling if requested.
// The returned function must be called before the tool exits.
func Init() func() {
	stop, err := ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		Fail(err)
	}
	return stop
}

// ParseFlags adds -cpuprofile/-memprofile flags to set and parses args.
func ParseFlags(set *flag.FlagSet, args []string) (func(), error) {
	cpuprof := set.String("cpuprofile", "", "write CPU profile to this file")
	memprof := set.String("memprofile", "", "write memory profile to this file")
	if err := set.Parse(args); err != nil {
		return nil, err
	}
	return installProfiling(*cpuprof, *memprof)
}

func Failf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}
