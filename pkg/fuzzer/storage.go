// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"fmt"

	"github.com/google/structfuzz/pkg/corpus"
	"github.com/google/structfuzz/pkg/db"
	"github.com/google/structfuzz/pkg/hash"
	"github.com/google/structfuzz/pkg/mutator"
	"github.com/google/structfuzz/pkg/store"
)

const (
	corpusDir   = "corpus"
	artifactDir = "artifacts"
)

// entry is one input kept by the pools.
type entry[T any] struct {
	value T
	cache mutator.Cache
	cplx  float64
	data  []byte
	step  mutator.MutationStep
	// Number of pools that keep the input.
	refs int
}

// storage owns all inputs referenced by the pools and mirrors them on disk.
type storage[T any] struct {
	m       mutator.Mutator[T]
	ser     Serializer[T]
	entries map[corpus.StorageIndex]*entry[T]
	next    corpus.StorageIndex
	files   *store.Store
	db      *db.DB
}

func newStorage[T any](cfg *Config, m mutator.Mutator[T], ser Serializer[T],
	logf func(int, string, ...any)) (*storage[T], error) {
	st := &storage[T]{
		m:       m,
		ser:     ser,
		entries: make(map[corpus.StorageIndex]*entry[T]),
	}
	if cfg.Workdir != "" {
		files, err := store.Open(cfg.Workdir, cfg.Compress)
		if err != nil {
			return nil, err
		}
		st.files = files
	}
	if cfg.CorpusDB != "" {
		corpusDB, err := db.Open(cfg.CorpusDB, true)
		if corpusDB == nil {
			return nil, fmt.Errorf("failed to open corpus db: %w", err)
		}
		if err != nil {
			logf(0, "corpus db is corrupted, recovered %v inputs: %v", len(corpusDB.Records), err)
		}
		st.db = corpusDB
	}
	return st, nil
}

// reserve returns the index that the next added entry will get.
func (st *storage[T]) reserve() corpus.StorageIndex {
	return st.next
}

func (st *storage[T]) get(idx corpus.StorageIndex) *entry[T] {
	e := st.entries[idx]
	if e == nil {
		panic(fmt.Sprintf("no input with index %v", idx))
	}
	return e
}

// add stores a copy of the serialized value under the reserved index.
func (st *storage[T]) add(data []byte, refs int) (*entry[T], error) {
	value, err := st.ser.Deserialize(data)
	if err != nil {
		return nil, err
	}
	cache, ok := st.m.ValidateValue(value)
	if !ok {
		return nil, fmt.Errorf("deserialized input is not valid")
	}
	e := &entry[T]{
		value: value,
		cache: cache,
		cplx:  st.m.Complexity(value, cache),
		data:  data,
		refs:  refs,
	}
	e.step = st.m.DefaultMutationStep(value, cache)
	st.entries[st.next] = e
	st.next++
	if st.files != nil {
		if _, err := st.files.Save(corpusDir, data); err != nil {
			return e, err
		}
	}
	if st.db != nil {
		st.db.Save(hash.String(data), data, 0)
	}
	return e, nil
}

// release drops one reference to the input and deletes it once nothing refers to it.
func (st *storage[T]) release(idx corpus.StorageIndex) error {
	e := st.get(idx)
	e.refs--
	if e.refs > 0 {
		return nil
	}
	delete(st.entries, idx)
	if st.files != nil {
		if err := st.files.Remove(corpusDir, e.data); err != nil {
			return err
		}
	}
	if st.db != nil {
		st.db.Delete(hash.String(e.data))
	}
	return nil
}

// forget removes a persisted input that is not referenced by any pool.
func (st *storage[T]) forget(data []byte) error {
	if st.files != nil {
		if err := st.files.Remove(corpusDir, data); err != nil {
			return err
		}
	}
	if st.db != nil {
		st.db.Delete(hash.String(data))
	}
	return nil
}

func (st *storage[T]) saveArtifact(data []byte) (string, error) {
	if st.files == nil {
		return "", nil
	}
	return st.files.Save(artifactDir, data)
}

// load returns all persisted corpus inputs, first from the workdir, then from the db.
func (st *storage[T]) load() ([][]byte, error) {
	var res [][]byte
	seen := make(map[string]bool)
	if st.files != nil {
		inputs, err := st.files.ReadAll(corpusDir)
		if err != nil {
			return nil, err
		}
		for _, data := range inputs {
			seen[hash.String(data)] = true
			res = append(res, data)
		}
	}
	if st.db != nil {
		for _, key := range st.db.Keys() {
			if !seen[key] {
				res = append(res, st.db.Records[key].Val)
			}
		}
	}
	return res, nil
}

func (st *storage[T]) flush() error {
	if st.db == nil {
		return nil
	}
	return st.db.Flush()
}
