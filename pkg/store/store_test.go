// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/structfuzz/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	for _, compress := range []bool{false, true} {
		s, err := Open(filepath.Join(t.TempDir(), "out"), compress)
		require.NoError(t, err)
		files, err := s.List("corpus")
		require.NoError(t, err)
		assert.Empty(t, files)

		data := []byte("(1+2)*3")
		file, err := s.Save("corpus", data)
		require.NoError(t, err)
		assert.Equal(t, compress, filepath.Ext(file) == xzExt)
		assert.Contains(t, filepath.Base(file), hash.String(data))
		file2, err := s.Save("corpus", data)
		require.NoError(t, err)
		assert.Equal(t, file, file2)
		_, err = s.Save("corpus", []byte("4"))
		require.NoError(t, err)

		files, err = s.List("corpus")
		require.NoError(t, err)
		assert.Len(t, files, 2)
		got, err := Load(file)
		require.NoError(t, err)
		assert.Equal(t, data, got)
		all, err := s.ReadAll("corpus")
		require.NoError(t, err)
		assert.ElementsMatch(t, [][]byte{data, []byte("4")}, all)

		require.NoError(t, s.Remove("corpus", data))
		require.NoError(t, s.Remove("corpus", data))
		files, err = s.List("corpus")
		require.NoError(t, err)
		assert.Len(t, files, 1)

		require.NoError(t, s.Clear("corpus"))
		files, err = s.List("corpus")
		require.NoError(t, err)
		assert.Empty(t, files)
	}
}

func TestLoadCorrupted(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad"+xzExt)
	require.NoError(t, os.WriteFile(file, []byte("not xz"), 0644))
	_, err := Load(file)
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
