// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExist(t *testing.T) {
	if f := os.Args[0]; !IsExist(f) {
		t.Fatalf("executable %v does not exist", f)
	}
	if f := os.Args[0] + "-foo-bar-buz"; IsExist(f) {
		t.Fatalf("file %v exists", f)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a", "b")
	require.NoError(t, MkdirAll(filepath.Dir(file)))
	require.NoError(t, WriteFileAtomic(file, []byte("first")))
	require.NoError(t, WriteFileAtomic(file, []byte("second")))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	names, err := ListDir(filepath.Dir(file))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, WriteFile(filepath.Join(dir, name), nil))
	}
	names, err := ListDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
	_, err = ListDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestAbs(t *testing.T) {
	assert.Equal(t, "", Abs(""))
	assert.Equal(t, "/x/y", Abs("/x/y"))
	assert.True(t, filepath.IsAbs(Abs("x")))
}
