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

// Package monitor runs one poll cycle over every configured cluster.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/esmonitor/collector"
	"github.com/elastic/esmonitor/envelope"
	"github.com/elastic/esmonitor/esclient"
	"github.com/elastic/esmonitor/falcon"
	"github.com/elastic/esmonitor/latency"
	"github.com/elastic/esmonitor/snapshot"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink receives the envelopes of a cluster.
type Sink interface {
	Push(ctx context.Context, envs []envelope.Envelope) (falcon.Result, error)
}

type cluster struct {
	name string
	src  esclient.Source
}

// App is the poll orchestrator.
type App struct {
	clusters   []cluster
	store      snapshot.Store
	sink       Sink
	engine     *latency.Engine
	logger     *zap.SugaredLogger
	now        func() time.Time
	readOnly   bool
	runID      string
	tags       string
	collectors func(cluster string, src esclient.Source) []collector.Collector
}

// New returns an App or an error if the creation failed.
func New(opts ...Option) (*App, error) {
	app := &App{
		now:        time.Now,
		collectors: collector.Defaults,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.logger == nil {
		return nil, errors.New("logger cannot be empty")
	}

	if app.store == nil {
		return nil, errors.New("snapshot store cannot be empty")
	}

	if app.sink == nil {
		return nil, errors.New("sink cannot be empty")
	}

	if len(app.clusters) == 0 {
		return nil, errors.New("no cluster to monitor")
	}

	seen := make(map[string]struct{}, len(app.clusters))
	for _, c := range app.clusters {
		if c.src == nil {
			return nil, fmt.Errorf("cluster %s has no source", c.name)
		}
		if _, ok := seen[c.name]; ok {
			return nil, fmt.Errorf("cluster %s configured twice", c.name)
		}
		seen[c.name] = struct{}{}
	}

	if app.engine == nil {
		app.engine = latency.New()
	}

	if app.runID == "" {
		app.runID = uuid.NewString()
	}

	return app, nil
}

// RunID returns the id of the run.
func (app *App) RunID() string {
	return app.runID
}
