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
	"errors"
	"fmt"

	"github.com/elastic/esmonitor/falcon"
)

// ClusterReport is the outcome of one cluster's cycle.
type ClusterReport struct {
	Cluster string
	// Metrics is the number of envelopes built, latency included.
	Metrics int
	// Latency reports whether latency envelopes were emitted.
	Latency bool
	// Saved reports whether the counters were persisted.
	Saved  bool
	Result falcon.Result
	Err    error
}

// Failed returns true if the cycle was aborted or the push failed.
func (r ClusterReport) Failed() bool {
	return r.Err != nil
}

// Report is the outcome of a run, ordered like the configured clusters.
type Report struct {
	RunID    string
	Clusters []ClusterReport
}

// Failed returns true if any cluster failed.
func (r Report) Failed() bool {
	for _, c := range r.Clusters {
		if c.Failed() {
			return true
		}
	}
	return false
}

// Err joins the errors of the failed clusters.
func (r Report) Err() error {
	var errs []error
	for _, c := range r.Clusters {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("cluster %s: %w", c.Cluster, c.Err))
		}
	}
	return errors.Join(errs...)
}
