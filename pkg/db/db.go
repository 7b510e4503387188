// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package db keeps a fuzzing corpus in a single append-only file.
//
// Inputs are keyed by the content hash of their serialized form. All records
// are cached in memory; changes are appended to the file on Flush, and the
// file is rewritten from scratch once most of it consists of stale records.
//
// File layout (integers are little-endian, lengths are uvarints):
//
//	header: "SFDB" format(u32) version(u64)
//	record: tag(u8) len key [seq len deflate(value)] xxhash64(u64)
//
// The checksum covers the whole record, so a torn or corrupted tail is
// detected and the records before it can still be recovered.
package db

import (
	"bufio"
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/google/structfuzz/pkg/hash"
	"github.com/google/structfuzz/pkg/osutil"
)

type DB struct {
	Version uint64            // arbitrary user version (0 for new database)
	Records map[string]Record // in-memory cache, must not be modified directly

	filename string
	// Number of records in the file including overwritten and deleted ones.
	written int
	// Records appended since the last Flush.
	pending []byte
}

type Record struct {
	Val []byte
	Seq uint64
}

const (
	formatVersion = uint32(1)
	tagPut        = byte(1)
	tagDelete     = byte(2)
	maxKeyLen     = 4 << 10
	maxValLen     = 64 << 20
)

var magic = [4]byte{'S', 'F', 'D', 'B'}

// Open opens or creates the database in filename.
// If the file is corrupted, Open returns an error; if repair is set,
// it also returns the database with all records that could be recovered
// and rewrites the file to contain only them.
func Open(filename string, repair bool) (*DB, error) {
	f, err := os.OpenFile(filename, os.O_RDONLY|os.O_CREATE, osutil.DefaultFilePerm)
	if err != nil {
		return nil, err
	}
	db := &DB{
		filename: filename,
		Records:  make(map[string]Record),
	}
	err = db.load(bufio.NewReader(f))
	f.Close()
	if err != nil && !repair {
		return nil, err
	}
	if err != nil || len(db.Records) == 0 || db.stale() {
		if err1 := db.compact(); err1 != nil {
			return nil, err1
		}
	}
	return db, err
}

func (db *DB) Save(key string, val []byte, seq uint64) {
	if rec, ok := db.Records[key]; ok && seq == rec.Seq && bytes.Equal(val, rec.Val) {
		return
	}
	db.Records[key] = Record{val, seq}
	db.pending = appendRecord(db.pending, tagPut, key, val, seq)
	db.written++
}

func (db *DB) Delete(key string) {
	if _, ok := db.Records[key]; !ok {
		return
	}
	delete(db.Records, key)
	db.pending = appendRecord(db.pending, tagDelete, key, nil, 0)
	db.written++
}

// Keys returns all keys in sorted order.
func (db *DB) Keys() []string {
	keys := make([]string, 0, len(db.Records))
	for key := range db.Records {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Flush appends pending changes to the file, or rewrites the file if it became mostly stale.
func (db *DB) Flush() error {
	if db.stale() {
		return db.compact()
	}
	if len(db.pending) == 0 {
		return nil
	}
	f, err := os.OpenFile(db.filename, os.O_WRONLY|os.O_APPEND|os.O_CREATE, osutil.DefaultFilePerm)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(db.pending); err != nil {
		return err
	}
	db.pending = nil
	return nil
}

func (db *DB) BumpVersion(version uint64) error {
	if db.Version == version {
		return db.Flush()
	}
	db.Version = version
	return db.compact()
}

// stale reports whether more than about 10% of the records in the file are obsolete.
func (db *DB) stale() bool {
	return db.written/10*9 > len(db.Records)
}

func (db *DB) compact() error {
	buf := appendHeader(nil, db.Version)
	for _, key := range db.Keys() {
		rec := db.Records[key]
		buf = appendRecord(buf, tagPut, key, rec.Val, rec.Seq)
	}
	if err := osutil.WriteFileAtomic(db.filename, buf); err != nil {
		return err
	}
	db.written = len(db.Records)
	db.pending = nil
	return nil
}

func (db *DB) load(r *bufio.Reader) error {
	version, err := readHeader(r)
	if err != nil {
		return fmt.Errorf("failed to read database header: %w", err)
	}
	db.Version = version
	rr := &recordReader{r: r, sum: xxhash.New()}
	for {
		rec, err := rr.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read database record %v: %w", db.written, err)
		}
		db.written++
		if rec.tag == tagDelete {
			delete(db.Records, rec.key)
		} else {
			db.Records[rec.key] = Record{rec.val, rec.seq}
		}
	}
}

func appendHeader(buf []byte, version uint64) []byte {
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, formatVersion)
	return binary.LittleEndian.AppendUint64(buf, version)
}

// readHeader returns version 0 for an empty file.
func readHeader(r io.Reader) (uint64, error) {
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, err
	}
	if !bytes.Equal(hdr[:4], magic[:]) {
		return 0, fmt.Errorf("bad magic %q", hdr[:4])
	}
	if ver := binary.LittleEndian.Uint32(hdr[4:]); ver == 0 || ver > formatVersion {
		return 0, fmt.Errorf("unsupported format version %v", ver)
	}
	return binary.LittleEndian.Uint64(hdr[8:]), nil
}

func appendRecord(buf []byte, tag byte, key string, val []byte, seq uint64) []byte {
	start := len(buf)
	buf = append(buf, tag)
	buf = binary.AppendUvarint(buf, uint64(len(key)))
	buf = append(buf, key...)
	if tag == tagPut {
		packed := deflate(val)
		buf = binary.AppendUvarint(buf, seq)
		buf = binary.AppendUvarint(buf, uint64(len(packed)))
		buf = append(buf, packed...)
	}
	return binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(buf[start:]))
}

func deflate(val []byte) []byte {
	if len(val) == 0 {
		return nil
	}
	out := new(bytes.Buffer)
	w, err := flate.NewWriter(out, flate.BestCompression)
	if err != nil {
		panic(err)
	}
	w.Write(val)
	w.Close()
	return out.Bytes()
}

func inflate(packed []byte) ([]byte, error) {
	if len(packed) == 0 {
		return nil, nil
	}
	r := flate.NewReader(bytes.NewReader(packed))
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, maxValLen+1))
}

type record struct {
	tag byte
	key string
	val []byte
	seq uint64
}

// recordReader checksums everything it reads since the start of the current record.
type recordReader struct {
	r   *bufio.Reader
	sum *xxhash.Digest
}

func (rr *recordReader) ReadByte() (byte, error) {
	b, err := rr.r.ReadByte()
	if err == nil {
		rr.sum.Write([]byte{b})
	}
	return b, err
}

func (rr *recordReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	rr.sum.Write(p[:n])
	return n, err
}

// next returns io.EOF only if the file ends exactly at a record boundary.
func (rr *recordReader) next() (record, error) {
	rr.sum.Reset()
	tag, err := rr.ReadByte()
	if err != nil {
		return record{}, err
	}
	rec, err := rr.body(tag)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return rec, err
}

func (rr *recordReader) body(tag byte) (record, error) {
	rec := record{tag: tag}
	if tag != tagPut && tag != tagDelete {
		return rec, fmt.Errorf("bad record tag 0x%x", tag)
	}
	key, err := rr.bytes(maxKeyLen)
	if err != nil {
		return rec, err
	}
	rec.key = string(key)
	if tag == tagPut {
		if rec.seq, err = binary.ReadUvarint(rr); err != nil {
			return rec, err
		}
		packed, err := rr.bytes(maxValLen)
		if err != nil {
			return rec, err
		}
		if rec.val, err = inflate(packed); err != nil {
			return rec, fmt.Errorf("bad value of %q: %w", rec.key, err)
		}
	}
	want := rr.sum.Sum64()
	var sum [8]byte
	if _, err := io.ReadFull(rr.r, sum[:]); err != nil {
		return rec, err
	}
	if got := binary.LittleEndian.Uint64(sum[:]); got != want {
		return rec, fmt.Errorf("checksum mismatch for %q: 0x%x, want 0x%x", rec.key, got, want)
	}
	return rec, nil
}

func (rr *recordReader) bytes(limit uint64) ([]byte, error) {
	n, err := binary.ReadUvarint(rr)
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, fmt.Errorf("record field of %v bytes, max %v", n, limit)
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(rr, buf)
	return buf, err
}

// Create creates a new database in the specified file with the specified records.
// Records are keyed by the hash of their value.
func Create(filename string, version uint64, records []Record) error {
	if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	db, err := Open(filename, false)
	if err != nil {
		return fmt.Errorf("failed to open database file: %w", err)
	}
	if err := db.BumpVersion(version); err != nil {
		return fmt.Errorf("failed to bump database version: %w", err)
	}
	for _, rec := range records {
		db.Save(hash.String(rec.Val), rec.Val, rec.Seq)
	}
	if err := db.Flush(); err != nil {
		return fmt.Errorf("failed to save database file: %w", err)
	}
	return nil
}

// ReadCorpus deserializes all records of the database in key order.
// An empty filename yields an empty corpus.
func ReadCorpus[T any](filename string, deserialize func([]byte) (T, error)) ([]T, error) {
	if filename == "" {
		return nil, nil
	}
	db, err := Open(filename, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open database file: %w", err)
	}
	var res []T
	for _, key := range db.Keys() {
		v, err := deserialize(db.Records[key].Val)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize corpus input %v: %w", key, err)
		}
		res = append(res, v)
	}
	return res, nil
}
