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

package collector

import (
	"context"
	"fmt"

	"github.com/elastic/esmonitor/esclient"
	"github.com/tidwall/gjson"
)

var healthMetrics = []string{
	"status",
	"number_of_nodes",
	"number_of_data_nodes",
	"active_primary_shards",
	"active_shards",
	"unassigned_shards",
}

// statusLevels orders health statuses by severity.
var statusLevels = map[string]float64{
	"green":  0,
	"yellow": 1,
	"red":    2,
}

// StatusLevel returns the severity of a cluster health status.
func StatusLevel(status string) (float64, error) {
	level, ok := statusLevels[status]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	return level, nil
}

// HealthCollector reports cluster health. Keys are prefixed with the
// cluster name.
type HealthCollector struct {
	cluster string
	src     esclient.Source
}

func NewHealthCollector(cluster string, src esclient.Source) *HealthCollector {
	return &HealthCollector{cluster: cluster, src: src}
}

func (c *HealthCollector) Name() string { return "health" }

func (c *HealthCollector) Collect(ctx context.Context) (Sample, error) {
	doc, err := c.src.ClusterHealth(ctx)
	if err != nil {
		return nil, err
	}
	health := gjson.ParseBytes(doc)

	out := make(Sample, len(healthMetrics))
	for _, metric := range healthMetrics {
		var v float64
		if metric == "status" {
			res := health.Get(metric)
			if !res.Exists() {
				return nil, fmt.Errorf("%w: %s", ErrMissingField, metric)
			}
			if v, err = StatusLevel(res.String()); err != nil {
				return nil, err
			}
		} else if v, err = number(health, metric); err != nil {
			return nil, err
		}
		out[c.cluster+"."+metric] = v
	}
	return out, nil
}
