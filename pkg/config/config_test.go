// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"testing"

	"github.com/google/structfuzz/pkg/osutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNested struct {
	Aaa int    `json:"aaa" yaml:"aaa"`
	Bbb string `json:"bbb" yaml:"bbb"`
}

type testConfig struct {
	Foo int         `json:"foo" yaml:"foo"`
	Bar string      `json:"bar" yaml:"bar"`
	Qux []string    `json:"qux" yaml:"qux,omitempty"`
	Box testNested  `json:"box" yaml:"box"`
	Boq *testNested `json:"boq" yaml:"boq"`
}

func TestLoadData(t *testing.T) {
	tests := []struct {
		input  string
		output testConfig
		err    string
	}{
		{
			input:  `{"foo": 42}`,
			output: testConfig{Foo: 42},
		},
		{
			input:  `{"BAR": "Baz", "foo": 42}`,
			output: testConfig{Foo: 42, Bar: "Baz"},
		},
		{
			input: `
# comment
{
	# another comment
	"qux": ["a", "b"],
	"box": {"aaa": 1, "bbb": "c"},
	"boq": {"aaa": 2}
}`,
			output: testConfig{
				Qux: []string{"a", "b"},
				Box: testNested{Aaa: 1, Bbb: "c"},
				Boq: &testNested{Aaa: 2},
			},
		},
		{
			input: `{"foobar": 42}`,
			err:   `failed to parse config file: json: unknown field "foobar"`,
		},
		{
			input: `{"box": {"ccc": 1}}`,
			err:   `failed to parse config file: json: unknown field "ccc"`,
		},
		{
			input: `{"foo": "42"}`,
			err:   "failed to parse config file",
		},
	}
	for i, test := range tests {
		var cfg testConfig
		err := LoadData([]byte(test.input), &cfg)
		if test.err != "" {
			require.Error(t, err, "#%v", i)
			assert.Contains(t, err.Error(), test.err, "#%v", i)
			continue
		}
		require.NoError(t, err, "#%v", i)
		assert.Equal(t, test.output, cfg, "#%v", i)
	}
}

func TestLoadYAML(t *testing.T) {
	var cfg testConfig
	require.NoError(t, LoadYAML([]byte(`
foo: 7
qux: [x]
box:
  aaa: 3
`), &cfg))
	assert.Equal(t, testConfig{Foo: 7, Qux: []string{"x"}, Box: testNested{Aaa: 3}}, cfg)

	require.NoError(t, LoadYAML(nil, &cfg))
	err := LoadYAML([]byte("unknown: 1\n"), &cfg)
	assert.ErrorContains(t, err, "field unknown not found")
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := testConfig{Foo: 1, Bar: "b", Boq: &testNested{Bbb: "z"}}
	for _, name := range []string{"cfg.json", "cfg.yaml", "cfg.YML"} {
		file := filepath.Join(dir, name)
		require.NoError(t, SaveFile(file, want))
		var got testConfig
		require.NoError(t, LoadFile(file, &got), name)
		assert.Equal(t, want, got, name)
	}
	assert.Error(t, LoadFile("", &want))
	assert.Error(t, LoadFile(filepath.Join(dir, "missing.json"), &want))
	require.NoError(t, osutil.WriteFile(filepath.Join(dir, "bad.yml"), []byte("foo: [")))
	assert.Error(t, LoadFile(filepath.Join(dir, "bad.yml"), &want))
}
