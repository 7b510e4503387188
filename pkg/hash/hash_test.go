// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", String([]byte("abc")))
	assert.Equal(t, String([]byte("abc")), String([]byte("a"), []byte("bc")))
	sig := Hash([]byte("abc"))
	assert.Equal(t, "a9993e36", sig.Short())
	parsed, err := FromString(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
	_, err = FromString("abc")
	assert.Error(t, err)
	_, err = FromString("a9993e36")
	assert.Error(t, err)
}
