// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"fmt"

	"github.com/mitchellh/copystructure"
)

// clone returns a deep copy of v. Only exported struct fields are copied,
// values with unexported state must not be duplicated by mutators.
func clone[T any](v T) T {
	if any(v) == nil {
		return v
	}
	res, err := copystructure.Copy(v)
	if err != nil {
		panic(fmt.Sprintf("failed to copy %T: %v", v, err))
	}
	return res.(T)
}
