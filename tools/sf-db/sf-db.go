// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// sf-db converts between a corpus directory written by the fuzzer and a single corpus.db file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/structfuzz/pkg/db"
	"github.com/google/structfuzz/pkg/hash"
	"github.com/google/structfuzz/pkg/store"
	"github.com/google/structfuzz/pkg/tool"
)

func main() {
	var (
		flagVersion  = flag.Uint64("version", 0, "database version")
		flagCompress = flag.Bool("compress", false, "xz-compress unpacked files")
	)
	defer tool.Init()()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}
	var err error
	switch {
	case args[0] == "pack" && len(args) == 3:
		err = pack(args[1], args[2], *flagVersion)
	case args[0] == "unpack" && len(args) == 3:
		err = unpack(args[1], args[2], *flagCompress)
	case args[0] == "list" && len(args) == 2:
		err = list(args[1], os.Stdout)
	default:
		usage()
	}
	if err != nil {
		tool.Fail(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  sf-db pack dir corpus.db\n")
	fmt.Fprintf(os.Stderr, "  sf-db unpack corpus.db dir\n")
	fmt.Fprintf(os.Stderr, "  sf-db list corpus.db\n")
	os.Exit(1)
}

// pack stores all inputs from the corpus dir into a new database.
func pack(dir, file string, version uint64) error {
	s, err := store.Open(dir, false)
	if err != nil {
		return err
	}
	inputs, err := s.ReadAll("")
	if err != nil {
		return fmt.Errorf("failed to read corpus: %w", err)
	}
	var records []db.Record
	for _, data := range inputs {
		records = append(records, db.Record{Val: data})
	}
	return db.Create(file, version, records)
}

func unpack(file, dir string, compress bool) error {
	corpusDB, err := db.Open(file, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s, err := store.Open(dir, compress)
	if err != nil {
		return err
	}
	for _, key := range corpusDB.Keys() {
		rec := corpusDB.Records[key]
		sig := hash.Hash(rec.Val)
		if keySig, err := hash.FromString(key); err != nil || keySig != sig {
			fmt.Fprintf(os.Stderr, "fixing hash %v -> %v\n", key, sig.String())
		}
		if _, err := s.Save("", rec.Val); err != nil {
			return fmt.Errorf("failed to output file: %w", err)
		}
	}
	return nil
}

func list(file string, w io.Writer) error {
	corpusDB, err := db.Open(file, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	fmt.Fprintf(w, "version %v, %v records\n", corpusDB.Version, len(corpusDB.Records))
	for _, key := range corpusDB.Keys() {
		rec := corpusDB.Records[key]
		fmt.Fprintf(w, "%v\tseq=%v\t%v bytes\n", key, rec.Seq, len(rec.Val))
	}
	return nil
}
