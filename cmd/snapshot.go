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
	"errors"
	"fmt"

	"github.com/elastic/esmonitor/snapshot"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

var errNoSnapshot = errors.New("no snapshot stored")

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or drop the counters kept from the previous poll",
	}

	show := &cobra.Command{
		Use:   "show CLUSTER",
		Short: "Print the stored counters of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE:  showSnapshot,
	}
	show.Flags().StringP("output", "o", "json", "output format: json or yaml")

	reset := &cobra.Command{
		Use:   "reset CLUSTER",
		Short: "Drop the stored counters of a cluster, the next run starts a new baseline",
		Args:  cobra.ExactArgs(1),
		RunE:  resetSnapshot,
	}

	cmd.AddCommand(show, reset)
	return cmd
}

func openStore(cmd *cobra.Command) (snapshot.Store, error) {
	cfg, log, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	log.Debugf("Opening %s snapshot store at %s", cfg.SnapshotStore, cfg.SnapshotPath)
	return snapshot.Open(cfg.SnapshotStore, cfg.SnapshotPath)
}

func showSnapshot(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "json" && output != "yaml" {
		return fmt.Errorf("invalid output format %q (valid: json, yaml)", output)
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	counters, ok, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w for cluster %s", errNoSnapshot, args[0])
	}

	var out []byte
	if output == "yaml" {
		if out, err = yaml.Marshal(counters); err != nil {
			return err
		}
	} else {
		raw, err := snapshot.Encode(counters)
		if err != nil {
			return err
		}
		out = pretty.Pretty(raw)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func resetSnapshot(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot of cluster %s dropped\n", args[0])
	return nil
}
