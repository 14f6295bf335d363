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

package cmd

import (
	"fmt"

	"github.com/elastic/esmonitor/config"
	"github.com/elastic/esmonitor/esclient"
	"github.com/elastic/esmonitor/falcon"
	"github.com/elastic/esmonitor/latency"
	"github.com/elastic/esmonitor/monitor"
	"github.com/elastic/esmonitor/snapshot"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one poll cycle over the configured clusters",
		Args:  cobra.NoArgs,
		RunE:  runMonitor,
	}

	cmd.Flags().StringSlice("cluster", nil, "only poll the named clusters (repeatable)")
	cmd.Flags().Bool("dry-run", false, "print the metrics instead of pushing them and keep the snapshots untouched")
	cmd.Flags().Bool("detect-resets", true, "report 0 instead of a negative latency when a counter goes backwards, --detect-resets=false passes negative deltas through")
	cmd.Flags().String("falcon-url", falcon.DefaultURL, "Open-Falcon push endpoint")
	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	clusters, _ := cmd.Flags().GetStringSlice("cluster")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, log, err := setup(cmd, config.WithClusters(clusters...))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Resolve(ctx, log); err != nil {
		return err
	}

	store, err := snapshot.Open(cfg.SnapshotStore, cfg.SnapshotPath)
	if err != nil {
		return fmt.Errorf("failed to open the snapshot store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("failed to close the snapshot store: %v", err)
		}
	}()

	var sink monitor.Sink
	if dryRun {
		log.Info("Dry run, metrics are printed and snapshots are not saved")
		sink = falcon.NewPrinter(cmd.OutOrStdout())
	} else {
		sink, err = falcon.NewClient(
			falcon.WithURL(cfg.FalconURL),
			falcon.WithTimeout(cfg.FalconTimeout),
			falcon.WithMaxBatchSize(cfg.FalconMaxBatchSize),
			falcon.WithLogger(log),
		)
		if err != nil {
			return err
		}
	}

	var engineOpts []latency.Option
	if cfg.DetectResets {
		engineOpts = append(engineOpts, latency.WithResetDetection())
	}

	opts := []monitor.Option{
		monitor.WithLogger(log),
		monitor.WithStore(store),
		monitor.WithSink(sink),
		monitor.WithEngine(latency.New(engineOpts...)),
		monitor.WithTags(cfg.Tags),
	}
	if dryRun {
		opts = append(opts, monitor.WithoutSnapshotWrites())
	}

	for _, name := range cfg.ClusterNames() {
		clientOpts := []esclient.Option{
			esclient.WithAddress(cfg.Clusters[name]),
			esclient.WithTimeout(cfg.ClusterTimeout),
			esclient.WithLogger(log),
		}
		if cfg.CACert != "" {
			clientOpts = append(clientOpts, esclient.WithRootCerts(cfg.CACert))
		}
		client, err := esclient.NewClient(clientOpts...)
		if err != nil {
			return fmt.Errorf("cluster %s: %w", name, err)
		}
		opts = append(opts, monitor.WithCluster(name, client))
	}

	app, err := monitor.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create the monitor: %w", err)
	}

	report := app.Run(ctx)
	return report.Err()
}
