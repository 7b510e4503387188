// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package store persists serialized inputs as content-addressed files.
// A file is named after the hash of its uncompressed contents,
// so saving the same input twice is a no-op.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/structfuzz/pkg/hash"
	"github.com/google/structfuzz/pkg/osutil"
	"github.com/ulikunitz/xz"
)

const xzExt = ".xz"

type Store struct {
	dir      string
	compress bool
}

// Open creates dir if it does not exist. If compress is set, new files are xz-compressed.
// Both compressed and uncompressed files are read back regardless of compress.
func Open(dir string, compress bool) (*Store, error) {
	if err := osutil.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return &Store{dir: dir, compress: compress}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes data into the sub directory and returns the file path.
func (s *Store) Save(sub string, data []byte) (string, error) {
	dir := filepath.Join(s.dir, sub)
	if err := osutil.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("failed to create store dir: %w", err)
	}
	name := hash.String(data)
	for _, ext := range []string{"", xzExt} {
		if file := filepath.Join(dir, name+ext); osutil.IsExist(file) {
			return file, nil
		}
	}
	file := filepath.Join(dir, name)
	if s.compress {
		file += xzExt
		buf := new(bytes.Buffer)
		w, err := xz.NewWriter(buf)
		if err != nil {
			return "", fmt.Errorf("failed to create xz writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return "", fmt.Errorf("xz compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("xz compression failed: %w", err)
		}
		data = buf.Bytes()
	}
	if err := osutil.WriteFileAtomic(file, data); err != nil {
		return "", err
	}
	return file, nil
}

// Load reads a file written by Save.
func Load(file string) ([]byte, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(file, xzExt) {
		return data, nil
	}
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz reader failed for %v: %w", file, err)
	}
	res, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("xz decompression failed for %v: %w", file, err)
	}
	return res, nil
}

// List returns paths of all files in the sub directory in name order.
// A missing directory is treated as empty.
func (s *Store) List(sub string) ([]string, error) {
	dir := filepath.Join(s.dir, sub)
	names, err := osutil.ListDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res []string
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		res = append(res, filepath.Join(dir, name))
	}
	return res, nil
}

// ReadAll loads all files in the sub directory.
func (s *Store) ReadAll(sub string) ([][]byte, error) {
	files, err := s.List(sub)
	if err != nil {
		return nil, err
	}
	var res [][]byte
	for _, file := range files {
		data, err := Load(file)
		if err != nil {
			return nil, err
		}
		res = append(res, data)
	}
	return res, nil
}

// Remove deletes the file holding data, if any.
func (s *Store) Remove(sub string, data []byte) error {
	name := filepath.Join(s.dir, sub, hash.String(data))
	for _, ext := range []string{"", xzExt} {
		err := os.Remove(name + ext)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Clear removes the sub directory with all its files.
func (s *Store) Clear(sub string) error {
	return os.RemoveAll(filepath.Join(s.dir, sub))
}
