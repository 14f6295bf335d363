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

// Package latency derives per-interval average latencies from two
// samples of cumulative operation counters.
package latency

import (
	"errors"
	"strconv"

	"github.com/elastic/esmonitor/snapshot"
)

// ErrMissingSnapshot is returned by Compute when there is no previous
// sample to diff against.
var ErrMissingSnapshot = errors.New("no previous snapshot")

// Op is an operation kind whose latency is tracked.
type Op string

const (
	Query Op = "query"
	Fetch Op = "fetch"
	Index Op = "index"
	Flush Op = "flush"
)

// op describes how one latency is derived.
type op struct {
	kind   Op
	metric string
	// places is the number of decimals the latency is rounded to.
	places   int
	counters func(snapshot.Counters) (total, millis int64)
}

// ops is the fixed evaluation and emission order.
// TODO: index latency is rounded to whole milliseconds unlike the other
// operations; move it to three decimals once consumers of index_latency_ms
// have been checked.
var ops = []op{
	{Query, "query_latency_ms", 3, func(c snapshot.Counters) (int64, int64) { return c.QueryTotal, c.QueryMillis }},
	{Fetch, "fetch_latency_ms", 3, func(c snapshot.Counters) (int64, int64) { return c.FetchTotal, c.FetchMillis }},
	{Index, "index_latency_ms", 0, func(c snapshot.Counters) (int64, int64) { return c.IndexTotal, c.IndexMillis }},
	{Flush, "flush_latency_ms", 3, func(c snapshot.Counters) (int64, int64) { return c.FlushTotal, c.FlushMillis }},
}

// Metric is a named latency gauge.
type Metric struct {
	Name  string
	Value float64
}

// Result holds the average latency in milliseconds of each operation over
// the interval between two samples.
type Result struct {
	Query float64
	Fetch float64
	Index float64
	Flush float64
	// Resets lists the operations whose counters went backwards. It is
	// only populated when reset detection is enabled.
	Resets []Op
}

func (r *Result) set(kind Op, v float64) {
	switch kind {
	case Query:
		r.Query = v
	case Fetch:
		r.Fetch = v
	case Index:
		r.Index = v
	case Flush:
		r.Flush = v
	}
}

// Get returns the latency of kind.
func (r Result) Get(kind Op) float64 {
	switch kind {
	case Query:
		return r.Query
	case Fetch:
		return r.Fetch
	case Index:
		return r.Index
	case Flush:
		return r.Flush
	}
	return 0
}

// Metrics returns the four latencies as gauges, in a fixed order.
func (r Result) Metrics() []Metric {
	m := make([]Metric, 0, len(ops))
	for _, o := range ops {
		m = append(m, Metric{Name: o.metric, Value: r.Get(o.kind)})
	}
	return m
}

// Engine computes latencies. The zero value is not usable, use New.
type Engine struct {
	resetDetection bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithResetDetection reports zero latency for an operation whose total or
// time counter decreased since the previous sample, as happens when a node
// restarts. Without it the negative deltas are divided as-is.
func WithResetDetection() Option {
	return func(e *Engine) {
		e.resetDetection = true
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute returns the average latency of each operation between prev and
// cur. It returns ErrMissingSnapshot if prev is nil.
//
// The latency of an operation is 0 when its time counter did not move,
// whatever happened to its total counter.
func (e *Engine) Compute(prev *snapshot.Counters, cur snapshot.Counters) (Result, error) {
	if prev == nil {
		return Result{}, ErrMissingSnapshot
	}

	var res Result
	for _, o := range ops {
		prevTotal, prevMillis := o.counters(*prev)
		curTotal, curMillis := o.counters(cur)
		deltaTotal := curTotal - prevTotal
		deltaTime := curMillis - prevMillis

		if e.resetDetection && (deltaTotal < 0 || deltaTime < 0) {
			res.Resets = append(res.Resets, o.kind)
			continue
		}
		if deltaTime == 0 || deltaTotal == 0 {
			continue
		}
		res.set(o.kind, round(float64(deltaTime)/float64(deltaTotal), o.places))
	}
	return res, nil
}

// round rounds v to places decimals from its exact binary value. Only
// exact ties go to even, so 1/80 (stored slightly above 0.0125) gives
// 0.013.
func round(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}
