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

package monitor

import (
	"time"

	"github.com/elastic/esmonitor/collector"
	"github.com/elastic/esmonitor/esclient"
	"github.com/elastic/esmonitor/latency"
	"github.com/elastic/esmonitor/snapshot"
	"go.uber.org/zap"
)

// Option is used to configure the monitor.
type Option func(*App)

// WithCluster adds a cluster polled through src.
func WithCluster(name string, src esclient.Source) Option {
	return func(a *App) {
		a.clusters = append(a.clusters, cluster{name: name, src: src})
	}
}

// WithStore sets the snapshot store holding the previous counters.
func WithStore(store snapshot.Store) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithSink sets where the envelopes are pushed.
func WithSink(sink Sink) Option {
	return func(a *App) {
		a.sink = sink
	}
}

// WithEngine sets the latency engine.
func WithEngine(engine *latency.Engine) Option {
	return func(a *App) {
		a.engine = engine
	}
}

// WithLogger configures a custom zap logger to be used by
// the monitor.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithClock sets the time source of envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithoutSnapshotWrites leaves the snapshot store untouched.
func WithoutSnapshotWrites() Option {
	return func(a *App) {
		a.readOnly = true
	}
}

// WithRunID sets the id attached to every log line of the run.
func WithRunID(id string) Option {
	return func(a *App) {
		a.runID = id
	}
}

// WithTags sets the tags of every envelope.
func WithTags(tags string) Option {
	return func(a *App) {
		a.tags = tags
	}
}

// WithCollectors overrides the collectors polled for each cluster.
func WithCollectors(fn func(cluster string, src esclient.Source) []collector.Collector) Option {
	return func(a *App) {
		a.collectors = fn
	}
}
