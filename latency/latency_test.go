// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package latency_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/elastic/esmonitor/latency"
	"github.com/elastic/esmonitor/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var previous = snapshot.Counters{
	QueryTotal:  100,
	QueryMillis: 50,
	FetchTotal:  40,
	FetchMillis: 20,
	IndexTotal:  10,
	IndexMillis: 5,
	FlushTotal:  2,
	FlushMillis: 1,
}

func TestComputeScenario(t *testing.T) {
	current := snapshot.Counters{
		QueryTotal:  150,
		QueryMillis: 80,
		FetchTotal:  60,
		FetchMillis: 35,
		IndexTotal:  15,
		IndexMillis: 10,
		FlushTotal:  4,
		FlushMillis: 3,
	}

	res, err := latency.New().Compute(&previous, current)
	require.NoError(t, err)
	assert.Equal(t, 0.6, res.Query)
	assert.Equal(t, 0.75, res.Fetch)
	assert.Equal(t, 1.0, res.Index)
	assert.Equal(t, 1.0, res.Flush)
	assert.Empty(t, res.Resets)

	assert.Equal(t, []latency.Metric{
		{Name: "query_latency_ms", Value: 0.6},
		{Name: "fetch_latency_ms", Value: 0.75},
		{Name: "index_latency_ms", Value: 1},
		{Name: "flush_latency_ms", Value: 1},
	}, res.Metrics())
}

func TestComputeMissingSnapshot(t *testing.T) {
	_, err := latency.New().Compute(nil, previous)
	assert.ErrorIs(t, err, latency.ErrMissingSnapshot)
}

func TestComputeZeroTimeDelta(t *testing.T) {
	for name, totalDelta := range map[string]int64{
		"positive total": 25,
		"zero total":     0,
		"negative total": -25,
	} {
		t.Run(name, func(t *testing.T) {
			current := previous
			current.QueryTotal += totalDelta
			current.FetchTotal += totalDelta
			current.IndexTotal += totalDelta
			current.FlushTotal += totalDelta

			for _, e := range []*latency.Engine{latency.New(), latency.New(latency.WithResetDetection())} {
				res, err := e.Compute(&previous, current)
				require.NoError(t, err)
				assert.Zero(t, res.Query)
				assert.Zero(t, res.Fetch)
				assert.Zero(t, res.Index)
				assert.Zero(t, res.Flush)
			}
		})
	}
}

func TestComputeZeroTotalDelta(t *testing.T) {
	current := previous
	current.QueryMillis += 40

	res, err := latency.New().Compute(&previous, current)
	require.NoError(t, err)
	assert.Zero(t, res.Query)
	assert.False(t, math.IsInf(res.Query, 0))
}

func TestComputeRounding(t *testing.T) {
	for name, tc := range map[string]struct {
		deltaTotal, deltaTime int64
		op                    latency.Op
		expected              float64
	}{
		"query three decimals":   {deltaTotal: 3, deltaTime: 1, op: latency.Query, expected: 0.333},
		"fetch three decimals":   {deltaTotal: 3, deltaTime: 2, op: latency.Fetch, expected: 0.667},
		"flush three decimals":   {deltaTotal: 7, deltaTime: 100, op: latency.Flush, expected: 14.286},
		"index whole number":     {deltaTotal: 3, deltaTime: 2, op: latency.Index, expected: 1},
		"index half rounds even": {deltaTotal: 2, deltaTime: 5, op: latency.Index, expected: 2},
		"index half rounds up":   {deltaTotal: 2, deltaTime: 7, op: latency.Index, expected: 4},
		"query above half":       {deltaTotal: 80, deltaTime: 1, op: latency.Query, expected: 0.013},
		"fetch above half":       {deltaTotal: 80, deltaTime: 9, op: latency.Fetch, expected: 0.113},
		"flush below half":       {deltaTotal: 80, deltaTime: 3, op: latency.Flush, expected: 0.037},
		"query exact tie":        {deltaTotal: 16, deltaTime: 1, op: latency.Query, expected: 0.062},
	} {
		t.Run(name, func(t *testing.T) {
			current := previous
			switch tc.op {
			case latency.Query:
				current.QueryTotal += tc.deltaTotal
				current.QueryMillis += tc.deltaTime
			case latency.Fetch:
				current.FetchTotal += tc.deltaTotal
				current.FetchMillis += tc.deltaTime
			case latency.Index:
				current.IndexTotal += tc.deltaTotal
				current.IndexMillis += tc.deltaTime
			case latency.Flush:
				current.FlushTotal += tc.deltaTotal
				current.FlushMillis += tc.deltaTime
			}
			res, err := latency.New().Compute(&previous, current)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res.Get(tc.op))
		})
	}
}

func TestComputeMatchesAverage(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	e := latency.New()
	for i := 0; i < 1000; i++ {
		prev := snapshot.Counters{
			QueryTotal: r.Int63n(1 << 40), QueryMillis: r.Int63n(1 << 40),
			FetchTotal: r.Int63n(1 << 40), FetchMillis: r.Int63n(1 << 40),
			IndexTotal: r.Int63n(1 << 40), IndexMillis: r.Int63n(1 << 40),
			FlushTotal: r.Int63n(1 << 40), FlushMillis: r.Int63n(1 << 40),
		}
		cur := prev
		cur.QueryTotal += 1 + r.Int63n(100000)
		cur.QueryMillis += 1 + r.Int63n(1000000)
		cur.FetchTotal += 1 + r.Int63n(100000)
		cur.FetchMillis += 1 + r.Int63n(1000000)
		cur.IndexTotal += 1 + r.Int63n(100000)
		cur.IndexMillis += 1 + r.Int63n(1000000)
		cur.FlushTotal += 1 + r.Int63n(100)
		cur.FlushMillis += 1 + r.Int63n(100000)

		res, err := e.Compute(&prev, cur)
		require.NoError(t, err)

		avg := func(total, millis int64) float64 { return float64(millis) / float64(total) }
		assert.InDelta(t, avg(cur.QueryTotal-prev.QueryTotal, cur.QueryMillis-prev.QueryMillis), res.Query, 0.0005+1e-9)
		assert.InDelta(t, avg(cur.FetchTotal-prev.FetchTotal, cur.FetchMillis-prev.FetchMillis), res.Fetch, 0.0005+1e-9)
		assert.InDelta(t, avg(cur.IndexTotal-prev.IndexTotal, cur.IndexMillis-prev.IndexMillis), res.Index, 0.5+1e-9)
		assert.InDelta(t, avg(cur.FlushTotal-prev.FlushTotal, cur.FlushMillis-prev.FlushMillis), res.Flush, 0.0005+1e-9)
		assert.Equal(t, math.Trunc(res.Index), res.Index)
	}
}

func TestComputeCounterReset(t *testing.T) {
	// The node restarted: totals dropped below the previous sample.
	current := snapshot.Counters{
		QueryTotal:  50,
		QueryMillis: 60,
		FetchTotal:  60,
		FetchMillis: 35,
		IndexTotal:  4,
		IndexMillis: 2,
		FlushTotal:  4,
		FlushMillis: 3,
	}

	// Without detection the engine keeps the legacy poller behaviour and
	// reports a negative latency. The CLI turns detection on by default.
	t.Run("passthrough", func(t *testing.T) {
		res, err := latency.New().Compute(&previous, current)
		require.NoError(t, err)
		assert.Equal(t, -0.2, res.Query)
		assert.Equal(t, 0.75, res.Fetch)
		// (2-5)/(4-10) = 0.5, rounded half to even.
		assert.Equal(t, 0.0, res.Index)
		assert.Empty(t, res.Resets)
	})

	t.Run("reset detection", func(t *testing.T) {
		res, err := latency.New(latency.WithResetDetection()).Compute(&previous, current)
		require.NoError(t, err)
		assert.Zero(t, res.Query)
		assert.Equal(t, 0.75, res.Fetch)
		assert.Zero(t, res.Index)
		assert.Equal(t, 1.0, res.Flush)
		assert.Equal(t, []latency.Op{latency.Query, latency.Index}, res.Resets)
	})
}
