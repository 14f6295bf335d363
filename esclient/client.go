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

// Package esclient reads statistics documents from an Elasticsearch
// cluster over its REST API.
package esclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elastic/esmonitor/version"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	nodeStatsPath     = "/_nodes/stats"
	clusterHealthPath = "/_cluster/health"

	defaultTimeout = 10 * time.Second
	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

// Source provides the raw statistics documents of a cluster.
type Source interface {
	// NodeStats returns the body of GET /_nodes/stats.
	NodeStats(ctx context.Context) ([]byte, error)
	// ClusterHealth returns the body of GET /_cluster/health.
	ClusterHealth(ctx context.Context) ([]byte, error)
}

// Client is a Source backed by the cluster's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
	optErr     error
}

// NewClient returns a Client. An address and a logger are required.
func NewClient(opts ...Option) (*Client, error) {
	c := Client{
		httpClient: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			Timeout:   defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(&c)
	}

	if c.optErr != nil {
		return nil, c.optErr
	}

	if c.baseURL == "" {
		return nil, errors.New("cluster address cannot be empty")
	}

	if c.logger == nil {
		return nil, errors.New("logger cannot be empty")
	}

	return &c, nil
}

// normalizeAddress accepts "host:port" as well as full URLs.
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/")
}

func (c *Client) NodeStats(ctx context.Context) ([]byte, error) {
	return c.get(ctx, nodeStatsPath)
}

func (c *Client) ClusterHealth(ctx context.Context) ([]byte, error) {
	return c.get(ctx, clusterHealthPath)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent)

	c.logger.Debugf("Requesting %s", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("%s returned %s: %s", path, resp.Status, string(body))
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s returned an invalid json document", path)
	}

	return body, nil
}

// Memoize wraps src so each document is fetched at most once. It is meant
// to be scoped to a single poll cycle, where several collectors read the
// same node stats. Failed fetches are not cached.
func Memoize(src Source) Source {
	return &memoSource{src: src}
}

type memoSource struct {
	mu        sync.Mutex
	src       Source
	nodeStats []byte
	health    []byte
}

func (m *memoSource) NodeStats(ctx context.Context) ([]byte, error) {
	return m.cached(ctx, &m.nodeStats, m.src.NodeStats)
}

func (m *memoSource) ClusterHealth(ctx context.Context) ([]byte, error) {
	return m.cached(ctx, &m.health, m.src.ClusterHealth)
}

func (m *memoSource) cached(ctx context.Context, slot *[]byte, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot != nil {
		return *slot, nil
	}
	doc, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	*slot = doc
	return doc, nil
}
