// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !freebsd && !netbsd && !openbsd && !linux && !darwin

package main

import "os"

func signalName(sig os.Signal) string {
	return sig.String()
}
