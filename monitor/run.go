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
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/elastic/esmonitor/collector"
	"github.com/elastic/esmonitor/envelope"
	"github.com/elastic/esmonitor/esclient"
	"github.com/elastic/esmonitor/latency"
	"github.com/elastic/esmonitor/logger"
	"github.com/elastic/esmonitor/snapshot"
	"go.uber.org/zap"
)

// Run polls every cluster concurrently and waits for all of them.
func (app *App) Run(ctx context.Context) Report {
	app.logger.Infof("Starting run %s over %d clusters", app.runID, len(app.clusters))

	reports := make([]ClusterReport, len(app.clusters))
	var wg sync.WaitGroup
	for i, c := range app.clusters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					app.logger.Errorf("Cluster %s panicked: %v", c.name, r)
					reports[i] = ClusterReport{Cluster: c.name, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			reports[i] = app.RunCluster(ctx, c.name, c.src)
		}()
	}
	wg.Wait()

	report := Report{RunID: app.runID, Clusters: reports}
	if report.Failed() {
		app.logger.Warnf("Run %s finished with failures: %v", app.runID, report.Err())
	} else {
		app.logger.Infof("Run %s finished", app.runID)
	}
	return report
}

// RunCluster runs one cycle for a cluster: collect, build envelopes,
// compute latency against the stored snapshot, save the new counters and
// push. A collection failure aborts the cycle before anything is saved or
// pushed.
func (app *App) RunCluster(ctx context.Context, name string, src esclient.Source) ClusterReport {
	log := logger.ForCluster(app.logger, name, app.runID)
	report := ClusterReport{Cluster: name}

	sample, err := collector.CollectAll(ctx, log, app.collectors(name, esclient.Memoize(src)))
	if err != nil {
		log.Errorf("Skipping cluster: %v", err)
		report.Err = err
		return report
	}

	builder := envelope.NewBuilder(name, envelope.WithTags(app.tags), envelope.WithClock(app.now))
	envs := builder.BuildAll(sample)

	cur, err := snapshot.CountersFromSample(sample)
	if err != nil {
		log.Errorf("Cannot track counters, latency disabled: %v", err)
	} else {
		prev := app.loadSnapshot(ctx, log, name)
		res, err := app.engine.Compute(prev, cur)
		switch {
		case errors.Is(err, latency.ErrMissingSnapshot):
			log.Debug("No previous snapshot, skipping latency")
		case err != nil:
			log.Warnf("Failed to compute latency: %v", err)
		default:
			for _, op := range res.Resets {
				log.Warnf("Counter reset detected for %s, latency reported as 0", op)
			}
			for _, m := range res.Metrics() {
				envs = append(envs, builder.BuildGauge(m.Name, m.Value))
			}
			report.Latency = true
		}

		if !app.readOnly {
			if err := app.store.Save(ctx, name, cur); err != nil {
				log.Errorf("Failed to save snapshot: %v", err)
			} else {
				report.Saved = true
			}
		}
	}
	report.Metrics = len(envs)

	log.Debugf("Pushing %d metrics", len(envs))
	report.Result, err = app.sink.Push(ctx, envs)
	if err != nil {
		report.Err = err
	}
	return report
}

// loadSnapshot returns the previous counters, or nil when there are none
// or they cannot be read.
func (app *App) loadSnapshot(ctx context.Context, log *zap.SugaredLogger, name string) *snapshot.Counters {
	prev, ok, err := app.store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, snapshot.ErrCorrupt) {
			log.Warnf("Ignoring corrupt snapshot, it will be replaced: %v", err)
		} else {
			log.Warnf("Failed to load snapshot: %v", err)
		}
		return nil
	}
	if !ok {
		return nil
	}
	return &prev
}
