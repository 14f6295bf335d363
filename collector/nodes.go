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

// dimension is a group of metrics under the same parent object.
type dimension struct {
	name    string
	metrics []string
}

var (
	indexSchema = []dimension{
		{"search", []string{"query_total", "query_time_in_millis", "query_current", "fetch_total", "fetch_time_in_millis", "fetch_current"}},
		{"indexing", []string{"index_total", "index_current", "index_time_in_millis", "delete_total", "delete_current", "delete_time_in_millis"}},
		{"docs", []string{"count", "deleted"}},
		{"store", []string{"size_in_bytes"}},
		{"flush", []string{"total", "total_time_in_millis"}},
	}

	netSchema = []dimension{
		{"http", []string{"current_open", "total_opened"}},
	}

	jvmSchema = []dimension{
		{"mem", []string{"heap_used_percent", "heap_max_in_bytes"}},
	}
)

// Defaults returns the collectors polled for every cluster, in the order
// their samples are merged.
func Defaults(cluster string, src esclient.Source) []Collector {
	return []Collector{
		NewIndexCollector(src),
		NewHealthCollector(cluster, src),
		NewNetCollector(src),
		NewJVMCollector(src),
	}
}

// IndexCollector sums the indices statistics of every node.
type IndexCollector struct {
	src esclient.Source
}

func NewIndexCollector(src esclient.Source) *IndexCollector {
	return &IndexCollector{src: src}
}

func (c *IndexCollector) Name() string { return "indices" }

func (c *IndexCollector) Collect(ctx context.Context) (Sample, error) {
	return sumNodes(ctx, c.src, "indices", indexSchema, func(dim, metric string) string {
		return dim + "." + metric
	})
}

// NetCollector sums the HTTP connection statistics of every node.
type NetCollector struct {
	src esclient.Source
}

func NewNetCollector(src esclient.Source) *NetCollector {
	return &NetCollector{src: src}
}

func (c *NetCollector) Name() string { return "http" }

func (c *NetCollector) Collect(ctx context.Context) (Sample, error) {
	// http stats sit directly under the node, the dimension is the section.
	return sumNodes(ctx, c.src, "", netSchema, func(dim, metric string) string {
		return dim + "." + metric
	})
}

// JVMCollector reports heap statistics per node. The metric key is the
// statistic name suffixed with the node name, or with the node id when
// the name is empty or already taken by another node.
type JVMCollector struct {
	src esclient.Source
}

func NewJVMCollector(src esclient.Source) *JVMCollector {
	return &JVMCollector{src: src}
}

func (c *JVMCollector) Name() string { return "jvm" }

func (c *JVMCollector) Collect(ctx context.Context) (Sample, error) {
	nodes, err := fetchNodes(ctx, c.src)
	if err != nil {
		return nil, err
	}
	out := make(Sample)
	seen := make(map[string]struct{})
	var ferr error
	nodes.ForEach(func(id, node gjson.Result) bool {
		name := node.Get("name").String()
		// Node names are not unique, the id is.
		if _, dup := seen[name]; dup || name == "" {
			name = id.String()
		}
		seen[name] = struct{}{}
		for _, dim := range jvmSchema {
			for _, metric := range dim.metrics {
				v, err := number(node, "jvm."+dim.name+"."+metric)
				if err != nil {
					ferr = fmt.Errorf("node %s: %w", name, err)
					return false
				}
				out[metric+"."+name] = v
			}
		}
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

// sumNodes adds up, across nodes, every metric of schema found under
// section of each node document.
func sumNodes(ctx context.Context, src esclient.Source, section string, schema []dimension, key func(dim, metric string) string) (Sample, error) {
	nodes, err := fetchNodes(ctx, src)
	if err != nil {
		return nil, err
	}
	out := make(Sample)
	var ferr error
	nodes.ForEach(func(id, node gjson.Result) bool {
		if section != "" {
			node = node.Get(section)
		}
		for _, dim := range schema {
			for _, metric := range dim.metrics {
				v, err := number(node, dim.name+"."+metric)
				if err != nil {
					ferr = fmt.Errorf("node %s: %w", id.String(), err)
					return false
				}
				out[key(dim.name, metric)] += v
			}
		}
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

func fetchNodes(ctx context.Context, src esclient.Source) (gjson.Result, error) {
	doc, err := src.NodeStats(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	nodes := gjson.GetBytes(doc, "nodes")
	if !nodes.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: nodes", ErrMissingField)
	}
	empty := true
	nodes.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	if empty {
		return gjson.Result{}, ErrNoNodes
	}
	return nodes, nil
}

// number reads the numeric value at path.
func number(doc gjson.Result, path string) (float64, error) {
	res := doc.Get(path)
	if !res.Exists() {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, path)
	}
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("metric %s is not a number: %s", path, res.Raw)
	}
	return res.Float(), nil
}
