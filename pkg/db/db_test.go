// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package db

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/structfuzz/pkg/hash"
	"github.com/google/structfuzz/pkg/osutil"
	"github.com/google/structfuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasic(t *testing.T) {
	fn := tempFile(t)
	db, err := Open(fn, false)
	require.NoError(t, err)
	require.Empty(t, db.Records)
	db.Save("", nil, 0)
	db.Save("1", []byte("ab"), 1)
	db.Save("23", []byte("abcd"), 2)
	want := map[string]Record{
		"":   {Val: nil, Seq: 0},
		"1":  {Val: []byte("ab"), Seq: 1},
		"23": {Val: []byte("abcd"), Seq: 2},
	}
	assert.Equal(t, want, db.Records)
	require.NoError(t, db.Flush())
	assert.Equal(t, want, db.Records)
	db, err = Open(fn, false)
	require.NoError(t, err)
	assert.Equal(t, want, db.Records)
	assert.Equal(t, []string{"", "1", "23"}, db.Keys())
}

func TestModify(t *testing.T) {
	fn := tempFile(t)
	db, err := Open(fn, false)
	require.NoError(t, err)
	db.Save("1", []byte("ab"), 0)
	db.Save("23", nil, 1)
	db.Save("456", []byte("abcd"), 1)
	db.Save("7890", []byte("a"), 0)
	db.Delete("23")
	db.Save("1", nil, 5)
	db.Save("456", []byte("ef"), 6)
	db.Delete("7890")
	db.Save("456", []byte("efg"), 0)
	db.Save("7890", []byte("bc"), 0)
	want := map[string]Record{
		"1":    {Val: nil, Seq: 5},
		"456":  {Val: []byte("efg"), Seq: 0},
		"7890": {Val: []byte("bc"), Seq: 0},
	}
	assert.Equal(t, want, db.Records)
	require.NoError(t, db.Flush())
	assert.Equal(t, want, db.Records)
	db, err = Open(fn, false)
	require.NoError(t, err)
	assert.Equal(t, want, db.Records)
}

func TestLarge(t *testing.T) {
	fn := tempFile(t)
	db, err := Open(fn, false)
	require.NoError(t, err)
	rnd := rand.New(testutil.RandSource(t))
	const nrec = 1000
	val := make([]byte, 1000)
	for i := range val {
		val[i] = byte(rnd.Intn(256))
	}
	for i := 0; i < nrec; i++ {
		db.Save(fmt.Sprintf("%v", i), val, 0)
	}
	require.NoError(t, db.Flush())
	db, err = Open(fn, false)
	require.NoError(t, err)
	assert.Len(t, db.Records, nrec)
}

func TestBumpVersion(t *testing.T) {
	fn := tempFile(t)
	db, err := Open(fn, false)
	require.NoError(t, err)
	db.Save("a", []byte("b"), 0)
	require.NoError(t, db.BumpVersion(3))
	db, err = Open(fn, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), db.Version)
	assert.Len(t, db.Records, 1)
}

func TestOpenInvalid(t *testing.T) {
	fn := tempFile(t)
	require.NoError(t, osutil.WriteFile(fn, []byte(`some invalid data`)))
	db, err := Open(fn, false)
	assert.Error(t, err)
	assert.Nil(t, db)
	db, err = Open(fn, true)
	assert.Error(t, err)
	require.NotNil(t, db)
	assert.Empty(t, db.Records)
	// The repaired file is valid.
	_, err = Open(fn, false)
	assert.NoError(t, err)
}

func TestOpenInaccessible(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("opening inaccessible file won't fail under root")
	}
	fn := tempFile(t)
	require.NoError(t, osutil.WriteFile(fn, nil))
	require.NoError(t, os.Chmod(fn, 0))
	defer os.Chmod(fn, 0777)
	db, err := Open(fn, false)
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestOpenCorrupted(t *testing.T) {
	fn := tempFile(t)
	db, err := Open(fn, false)
	require.NoError(t, err)
	// Write 1000 records, then wipe half of the file and test that we
	// (1) get an error, (2) still get 450-550 records.
	for i := 0; i < 1000; i++ {
		db.Save(fmt.Sprintf("%v", i), []byte{byte(i)}, 0)
	}
	require.NoError(t, db.Flush())
	data, err := os.ReadFile(fn)
	require.NoError(t, err)
	for i := len(data) / 2; i < len(data); i++ {
		data[i] = 0
	}
	require.NoError(t, osutil.WriteFile(fn, data))
	db, err = Open(fn, true)
	require.Error(t, err)
	t.Logf("records %v, error: %v", len(db.Records), err)
	assert.GreaterOrEqual(t, len(db.Records), 450)
	assert.LessOrEqual(t, len(db.Records), 550)
}

func TestOpenDamagedTail(t *testing.T) {
	for _, test := range []struct {
		name   string
		damage func([]byte) []byte
	}{
		{"truncated", func(data []byte) []byte { return data[:len(data)-3] }},
		{"flipped", func(data []byte) []byte {
			data[len(data)-10] ^= 0x40
			return data
		}},
	} {
		t.Run(test.name, func(t *testing.T) {
			fn := tempFile(t)
			db, err := Open(fn, false)
			require.NoError(t, err)
			for i := 0; i < 10; i++ {
				db.Save(strconv.Itoa(i), []byte(fmt.Sprintf("value %v", i)), uint64(i))
			}
			require.NoError(t, db.Flush())
			data, err := os.ReadFile(fn)
			require.NoError(t, err)
			require.NoError(t, osutil.WriteFile(fn, test.damage(data)))
			_, err = Open(fn, false)
			assert.Error(t, err)
			db, err = Open(fn, true)
			assert.Error(t, err)
			require.NotNil(t, db)
			// Only the last record is lost.
			assert.Len(t, db.Records, 9)
			assert.Equal(t, Record{Val: []byte("value 8"), Seq: 8}, db.Records["8"])
			db, err = Open(fn, false)
			require.NoError(t, err)
			assert.Len(t, db.Records, 9)
		})
	}
}

func TestCreateAndReadCorpus(t *testing.T) {
	fn := tempFile(t)
	var recs []Record
	for i := 0; i < 10; i++ {
		recs = append(recs, Record{Val: []byte(strconv.Itoa(i))})
	}
	require.NoError(t, Create(fn, 1, recs))
	db, err := Open(fn, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), db.Version)
	assert.Equal(t, []byte("7"), db.Records[hash.String([]byte("7"))].Val)

	corpus, err := ReadCorpus(fn, func(data []byte) (int, error) {
		return strconv.Atoi(string(data))
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, corpus)

	failure := errors.New("bad input")
	_, err = ReadCorpus(fn, func(data []byte) (int, error) {
		return 0, failure
	})
	assert.ErrorIs(t, err, failure)

	corpus, err = ReadCorpus("", func(data []byte) (int, error) { return 0, nil })
	assert.NoError(t, err)
	assert.Empty(t, corpus)
}

func tempFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "corpus.db")
}
