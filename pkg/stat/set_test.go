// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	set := NewSet()
	runs := set.New("runs", "total runs", Rate{}, Console, Prometheus("fuzzer_runs"))
	cplx := set.New("cplx", "input complexity", Distribution{})
	var mu sync.RWMutex
	corpus := []int{1, 2, 3}
	set.New("corpus", "corpus size", LenOf(&corpus, &mu))
	set.New("custom", "custom format", func() int { return 7 },
		func(v int, _ time.Duration) string { return "seven" })

	runs.Add(100)
	runs.Add(5)
	for i := 1; i <= 100; i++ {
		cplx.Add(i)
	}
	assert.Equal(t, 105, runs.Val())
	assert.InDelta(t, 50, cplx.Val(), 1)
	assert.InDelta(t, 90, cplx.Quantile(0.9), 5)
	assert.Panics(t, func() { runs.Quantile(0.5) })

	ui := set.Collect(All)
	require.Len(t, ui, 4)
	assert.Equal(t, "runs", ui[0].Name)
	assert.True(t, strings.HasPrefix(ui[0].Value, "105 "), ui[0].Value)
	values := make(map[string]string)
	for _, v := range ui {
		values[v.Name] = v.Value
	}
	assert.Equal(t, "3", values["corpus"])
	assert.Equal(t, "seven", values["custom"])
	assert.Len(t, set.Collect(Console), 1)

	set.ResetPeriod()
	runs.Add(1)
	assert.True(t, strings.HasPrefix(set.Collect(Console)[0].Value, "1 "))
	assert.Equal(t, 106, set.Collect(Console)[0].V)

	families, err := set.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "fuzzer_runs", families[0].GetName())
	assert.Equal(t, 106.0, families[0].GetMetric()[0].GetGauge().GetValue())

	assert.Panics(t, func() { set.New("runs", "duplicate") })
	assert.Panics(t, func() { set.New("bad", "bad option", 42) })
	assert.Panics(t, func() { runs2 := set.New("ext", "ext", func() int { return 0 }); runs2.Add(1) })
}

func TestAverageValue(t *testing.T) {
	var avg AverageValue[float64]
	for _, v := range []float64{1, 2, 3, 6} {
		avg.Save(v)
	}
	assert.Equal(t, 3.0, avg.Value())
	assert.Equal(t, int64(4), avg.Count())
	avg.Reset()
	assert.Equal(t, 0.0, avg.Value())
}
