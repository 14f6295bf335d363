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

// Package collector flattens Elasticsearch statistics documents into
// samples keyed by dotted metric names.
package collector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrCollectorFailure wraps any error that aborts a collection.
	ErrCollectorFailure = errors.New("collector failed")
	// ErrUnknownStatus is returned for a cluster health status outside
	// green, yellow and red.
	ErrUnknownStatus = errors.New("unknown cluster health status")
	// ErrMissingField is returned when a document lacks a metric declared
	// in a collector schema.
	ErrMissingField = errors.New("metric missing from document")
	// ErrNoNodes is returned when node stats report no node at all.
	ErrNoNodes = errors.New("node stats contain no nodes")
)

// Sample maps a metric key to its value for one poll.
type Sample map[string]float64

// Collector is the contract any metric source must satisfy.
type Collector interface {
	// Name identifies the collector in logs and errors.
	Name() string
	// Collect fetches and flattens the collector's metrics.
	Collect(ctx context.Context) (Sample, error)
}

// CollectAll runs every collector in order and merges their samples. The
// first failure aborts the collection so that no partial sample is
// published.
func CollectAll(ctx context.Context, log *zap.SugaredLogger, colls []Collector) (Sample, error) {
	samples := make([]named, 0, len(colls))
	for _, c := range colls {
		s, err := c.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCollectorFailure, c.Name(), err)
		}
		log.Debugf("Collector %s returned %d metrics", c.Name(), len(s))
		samples = append(samples, named{name: c.Name(), sample: s})
	}
	return merge(log, samples), nil
}

// Merge combines samples into a new one. Keys present in more than one
// sample are logged as a warning and the last value wins.
func Merge(log *zap.SugaredLogger, samples ...Sample) Sample {
	ns := make([]named, 0, len(samples))
	for i, s := range samples {
		ns = append(ns, named{name: fmt.Sprintf("#%d", i), sample: s})
	}
	return merge(log, ns)
}

type named struct {
	name   string
	sample Sample
}

func merge(log *zap.SugaredLogger, samples []named) Sample {
	size := 0
	for _, s := range samples {
		size += len(s.sample)
	}
	out := make(Sample, size)
	owner := make(map[string]string, size)
	for _, s := range samples {
		for k, v := range s.sample {
			if prev, ok := owner[k]; ok {
				log.Warnf("Metric %s reported by both %s and %s, keeping the value from %s", k, prev, s.name, s.name)
			}
			out[k] = v
			owner[k] = s.name
		}
	}
	return out
}
