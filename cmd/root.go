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

// Package cmd implements the esmonitor command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/elastic/esmonitor/config"
	"github.com/elastic/esmonitor/logger"
	"github.com/elastic/esmonitor/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand returns the esmonitor command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "esmonitor",
		Short: "Push Elasticsearch statistics to Open-Falcon",
		Long: `esmonitor polls the node statistics and health of Elasticsearch clusters,
derives query, fetch, index and flush latencies from the previous poll and
pushes every metric to an Open-Falcon push endpoint.

It runs a single cycle and exits, schedule it every minute.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "configuration file (default: monitor.yaml in . or /etc/esmonitor)")
	flags.String("env-file", "", "file of environment variables to load (default: .env)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error, critical or off")
	flags.String("snapshot-store", "file", "snapshot backend: file, bolt, sqlite or memory")
	flags.String("snapshot-path", "", "snapshot directory (file) or database file (bolt, sqlite)")

	root.AddCommand(newRunCommand())
	root.AddCommand(newSnapshotCommand())
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// setup loads the configuration and builds the logger shared by every
// subcommand.
func setup(cmd *cobra.Command, opts ...config.Option) (*config.Config, *zap.SugaredLogger, error) {
	file, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	opts = append(opts,
		config.WithConfigFile(file),
		config.WithEnvFile(envFile),
		config.WithFlags(cmd.Flags()),
	)
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, err
	}

	level, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.WithLevel(level))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create the logger: %w", err)
	}
	return cfg, log, nil
}
