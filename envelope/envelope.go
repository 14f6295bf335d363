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

// Package envelope turns flat metrics into the records accepted by the
// Open-Falcon push API.
package envelope

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/elastic/esmonitor/snapshot"
	"go.elastic.co/fastjson"
)

// CounterType tells the backend how to interpret a value.
type CounterType string

const (
	// Counter is a monotonically increasing value; the backend stores
	// its rate.
	Counter CounterType = "COUNTER"
	// Gauge is an instantaneous value.
	Gauge CounterType = "GAUGE"

	// DefaultStep is the reporting interval in seconds.
	DefaultStep = 60
)

// counterKeys holds the sample keys of the tracked counters, the only
// metrics reported as COUNTER.
var counterKeys = func() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, k := range snapshot.SampleKeys() {
		keys[k] = struct{}{}
	}
	return keys
}()

// Classify returns the counter type of a metric key.
func Classify(metric string) CounterType {
	if _, ok := counterKeys[metric]; ok {
		return Counter
	}
	return Gauge
}

// Envelope is a single metric record.
type Envelope struct {
	Metric      string
	CounterType CounterType
	Value       float64
	Tags        string
	Endpoint    string
	Timestamp   int64
	Step        int
}

// MarshalFastJSON writes the record with its keys sorted.
func (e *Envelope) MarshalFastJSON(w *fastjson.Writer) error {
	if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
		return fmt.Errorf("metric %s has a non-finite value %v", e.Metric, e.Value)
	}
	w.RawString(`{"counterType":`)
	w.String(string(e.CounterType))
	w.RawString(`,"endpoint":`)
	w.String(e.Endpoint)
	w.RawString(`,"metric":`)
	w.String(e.Metric)
	w.RawString(`,"step":`)
	w.Int64(int64(e.Step))
	w.RawString(`,"tags":`)
	w.String(e.Tags)
	w.RawString(`,"timestamp":`)
	w.Int64(e.Timestamp)
	w.RawString(`,"value":`)
	w.Float64(e.Value)
	w.RawByte('}')
	return nil
}

// EncodeBatch renders envelopes as a JSON array.
func EncodeBatch(envs []Envelope) ([]byte, error) {
	var w fastjson.Writer
	w.RawByte('[')
	for i := range envs {
		if i > 0 {
			w.RawByte(',')
		}
		if err := envs[i].MarshalFastJSON(&w); err != nil {
			return nil, err
		}
	}
	w.RawByte(']')
	return w.Bytes(), nil
}

// Builder creates envelopes for one endpoint.
type Builder struct {
	endpoint string
	tags     string
	step     int
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithTags sets the tags string attached to every envelope,
// e.g. "env=prod,region=us".
func WithTags(tags string) BuilderOption {
	return func(b *Builder) {
		b.tags = tags
	}
}

// WithStep overrides the reporting interval.
func WithStep(step int) BuilderOption {
	return func(b *Builder) {
		b.step = step
	}
}

// WithClock sets the time source for envelope timestamps.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder returns a Builder for endpoint, usually the cluster name.
func NewBuilder(endpoint string, opts ...BuilderOption) *Builder {
	b := &Builder{
		endpoint: endpoint,
		step:     DefaultStep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the envelope for a single metric, classified by key.
func (b *Builder) Build(metric string, value float64) Envelope {
	return b.build(metric, value, Classify(metric))
}

// BuildGauge returns a GAUGE envelope regardless of the key.
func (b *Builder) BuildGauge(metric string, value float64) Envelope {
	return b.build(metric, value, Gauge)
}

// BuildAll returns one envelope per sample entry, sorted by metric name.
// All envelopes share the same timestamp.
func (b *Builder) BuildAll(sample map[string]float64) []Envelope {
	keys := make([]string, 0, len(sample))
	for k := range sample {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ts := b.now().Unix()
	envs := make([]Envelope, 0, len(keys))
	for _, k := range keys {
		e := b.Build(k, sample[k])
		e.Timestamp = ts
		envs = append(envs, e)
	}
	return envs
}

func (b *Builder) build(metric string, value float64, ct CounterType) Envelope {
	return Envelope{
		Metric:      metric,
		CounterType: ct,
		Value:       value,
		Tags:        b.tags,
		Endpoint:    b.endpoint,
		Timestamp:   b.now().Unix(),
		Step:        b.step,
	}
}
