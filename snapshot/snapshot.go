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

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrCorrupt is returned by Load when the persisted snapshot cannot be
	// decoded into the eight tracked counters.
	ErrCorrupt = errors.New("snapshot is corrupt")
	// ErrMissingCounter is returned when a sample lacks one of the tracked
	// counter keys.
	ErrMissingCounter = errors.New("tracked counter missing from sample")
	// ErrInvalidCluster is returned for cluster names that cannot be used
	// as a store key.
	ErrInvalidCluster = errors.New("invalid cluster name")
)

// Store persists the counters of the last poll, one entry per cluster.
type Store interface {
	// Load returns the previous counters for cluster. ok is false, with a
	// nil error, when nothing has been saved yet.
	Load(ctx context.Context, cluster string) (c Counters, ok bool, err error)
	// Save overwrites the counters for cluster.
	Save(ctx context.Context, cluster string, c Counters) error
	// Delete drops the counters for cluster. Deleting a missing entry is
	// not an error.
	Delete(ctx context.Context, cluster string) error
	Close() error
}

// Counters is the set of cumulative counters needed to derive latencies.
type Counters struct {
	QueryTotal  int64 `yaml:"queryTotal"`
	QueryMillis int64 `yaml:"queryMillis"`
	FetchTotal  int64 `yaml:"fetchTotal"`
	FetchMillis int64 `yaml:"fetchMillis"`
	IndexTotal  int64 `yaml:"indexTotal"`
	IndexMillis int64 `yaml:"indexMillis"`
	FlushTotal  int64 `yaml:"flushTotal"`
	FlushMillis int64 `yaml:"flushMillis"`
}

// field binds a persisted JSON name and a sample key to a Counters field.
type field struct {
	name      string
	sampleKey string
	ptr       func(*Counters) *int64
}

// fields is ordered as the persisted document.
var fields = []field{
	{"queryTotal", "search.query_total", func(c *Counters) *int64 { return &c.QueryTotal }},
	{"queryMillis", "search.query_time_in_millis", func(c *Counters) *int64 { return &c.QueryMillis }},
	{"fetchTotal", "search.fetch_total", func(c *Counters) *int64 { return &c.FetchTotal }},
	{"fetchMillis", "search.fetch_time_in_millis", func(c *Counters) *int64 { return &c.FetchMillis }},
	{"indexTotal", "indexing.index_total", func(c *Counters) *int64 { return &c.IndexTotal }},
	{"indexMillis", "indexing.index_time_in_millis", func(c *Counters) *int64 { return &c.IndexMillis }},
	{"flushTotal", "flush.total", func(c *Counters) *int64 { return &c.FlushTotal }},
	{"flushMillis", "flush.total_time_in_millis", func(c *Counters) *int64 { return &c.FlushMillis }},
}

// SampleKeys returns the metric keys the tracked counters are read from.
func SampleKeys() []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.sampleKey)
	}
	return keys
}

// CountersFromSample extracts the tracked counters from a flattened sample.
func CountersFromSample(sample map[string]float64) (Counters, error) {
	var c Counters
	for _, f := range fields {
		v, ok := sample[f.sampleKey]
		if !ok {
			return Counters{}, fmt.Errorf("%w: %s", ErrMissingCounter, f.sampleKey)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Counters{}, fmt.Errorf("counter %s is not a finite number: %v", f.sampleKey, v)
		}
		*f.ptr(&c) = int64(v)
	}
	return c, nil
}

// Encode renders c as the persisted JSON document.
func Encode(c Counters) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	for _, f := range fields {
		doc, err = sjson.SetRawBytes(doc, f.name, strconv.AppendInt(nil, *f.ptr(&c), 10))
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", f.name, err)
		}
	}
	return doc, nil
}

// Decode parses a persisted document. Every field must be present and
// hold an integer.
func Decode(data []byte) (Counters, error) {
	if !gjson.ValidBytes(data) {
		return Counters{}, fmt.Errorf("%w: invalid json", ErrCorrupt)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Counters{}, fmt.Errorf("%w: expected an object", ErrCorrupt)
	}

	var c Counters
	for _, f := range fields {
		res := root.Get(f.name)
		if !res.Exists() {
			return Counters{}, fmt.Errorf("%w: missing %s", ErrCorrupt, f.name)
		}
		if res.Type != gjson.Number {
			return Counters{}, fmt.Errorf("%w: %s is not a number", ErrCorrupt, f.name)
		}
		v, err := strconv.ParseInt(res.Raw, 10, 64)
		if err != nil {
			return Counters{}, fmt.Errorf("%w: %s is not an integer: %s", ErrCorrupt, f.name, res.Raw)
		}
		*f.ptr(&c) = v
	}
	return c, nil
}

func validateCluster(cluster string) error {
	if cluster == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCluster)
	}
	if strings.ContainsAny(cluster, `/\`) || cluster == "." || cluster == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidCluster, cluster)
	}
	return nil
}
