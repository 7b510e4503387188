// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffMerge(t *testing.T) {
	base := FromRaw([]Feature{1, 2, 3})
	assert.Equal(t, []Feature{4}, base.Diff(FromRaw([]Feature{2, 4})).ToRaw())
	assert.Nil(t, base.Diff(FromRaw([]Feature{1, 2})))
	var s Signal
	s.Merge(base)
	s.Merge(FromRaw([]Feature{9}))
	assert.Equal(t, []Feature{1, 2, 3, 9}, s.ToRaw())
	assert.Equal(t, 4, s.Len())
	assert.Contains(t, s, Feature(9))
	c := s.Copy()
	c.Add(10)
	assert.NotContains(t, s, Feature(10))
}

func TestCounterBucket(t *testing.T) {
	for count, bucket := range map[uint8]uint8{
		0: 0, 1: 0, 2: 1, 3: 2, 4: 3, 7: 3, 8: 4, 15: 4, 16: 5, 31: 5, 32: 6, 127: 6, 128: 7, 255: 7,
	} {
		assert.Equal(t, bucket, CounterBucket(count), "count=%v", count)
	}
}

func TestFeatureKinds(t *testing.T) {
	e := Edge(12345, 9)
	assert.Equal(t, EdgeKind, e.Kind())
	assert.Equal(t, uint32(12345), e.Guard())
	assert.Equal(t, "edge:12345/4", e.String())
	assert.Equal(t, Edge(12345, 10), e)
	assert.NotEqual(t, Edge(12345, 16), e)

	c := Cmp(0x1000, 0xff, 0x0f)
	assert.Equal(t, CmpKind, c.Kind())
	// Only the number of differing bits matters.
	assert.Equal(t, c, Cmp(0x1000, 0xf0, 0x00))
	assert.NotEqual(t, c, Cmp(0x1000, 0xff, 0xfe))
	assert.NotEqual(t, c, Cmp(0x1001, 0xff, 0x0f))

	i := Indir(0x10, 0x20)
	assert.Equal(t, IndirKind, i.Kind())
	assert.NotEqual(t, i, Indir(0x20, 0x10))
}
