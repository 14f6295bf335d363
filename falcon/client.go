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

// Package falcon pushes metric envelopes to an Open-Falcon compatible
// HTTP push endpoint.
package falcon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/esmonitor/envelope"
	"github.com/elastic/esmonitor/version"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	DefaultURL = "http://127.0.0.1:1988/v1/push"

	defaultTimeout = 5 * time.Second

	// maxLoggedBody caps how much of an error response is logged.
	maxLoggedBody = 1024
)

var (
	// ErrSinkUnreachable is returned when the endpoint could not be
	// reached at all.
	ErrSinkUnreachable = errors.New("push endpoint unreachable")
	// ErrSink is returned when the endpoint answered with anything but 200.
	ErrSink = errors.New("push endpoint rejected the batch")
)

// Client is the client used to push envelopes to the monitoring backend.
// A failed push is never retried, the batch is lost.
type Client struct {
	client       *http.Client
	url          string
	maxBatchSize int
	logger       *zap.SugaredLogger
}

func NewClient(opts ...Option) (*Client, error) {
	c := Client{
		client: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			Timeout:   defaultTimeout,
		},
		url: DefaultURL,
	}

	for _, opt := range opts {
		opt(&c)
	}

	if c.url == "" {
		return nil, errors.New("push URL cannot be empty")
	}

	if c.logger == nil {
		return nil, errors.New("logger cannot be empty")
	}

	if c.maxBatchSize < 0 {
		return nil, fmt.Errorf("invalid max batch size: %d", c.maxBatchSize)
	}

	return &c, nil
}

// Push posts envs to the endpoint. When a max batch size is configured the
// envelopes are split into consecutive POSTs and the first failing one
// stops the push.
func (c *Client) Push(ctx context.Context, envs []envelope.Envelope) (Result, error) {
	if len(envs) == 0 {
		c.logger.Debug("Nothing to push")
		return Success, nil
	}

	size := c.maxBatchSize
	if size == 0 {
		size = len(envs)
	}
	for start := 0; start < len(envs); start += size {
		end := min(start+size, len(envs))
		if res, err := c.post(ctx, envs[start:end]); err != nil {
			return res, err
		}
	}
	return Success, nil
}

func (c *Client) post(ctx context.Context, envs []envelope.Envelope) (Result, error) {
	body, err := envelope.EncodeBatch(envs)
	if err != nil {
		return Unknown, fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Unknown, fmt.Errorf("failed to create a new request when pushing metrics: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent)

	c.logger.Debugf("Pushing %d metrics to %s", len(envs), c.url)
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Errorf("Push endpoint %s unreachable, dropping %d metrics: %v", c.url, len(envs), err)
		return Unreachable, fmt.Errorf("%w: %w", ErrSinkUnreachable, err)
	}
	defer resp.Body.Close()

	res := classify(resp.StatusCode)
	switch res {
	case Success:
		c.logger.Infof("Pushed %d metrics", len(envs))
		_, _ = io.Copy(io.Discard, resp.Body)
		return Success, nil
	case NotFound:
		c.logger.Errorf("Push endpoint %s not found, check the configured URL", c.url)
	case ServerError:
		logBodyErrors(c.logger, resp)
	default:
		c.logger.Warnf("unhandled status code: %d", resp.StatusCode)
		logBodyErrors(c.logger, resp)
	}
	return res, fmt.Errorf("%w: response status: %s", ErrSink, resp.Status)
}

func logBodyErrors(logger *zap.SugaredLogger, resp *http.Response) {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if err != nil {
		logger.Warnf("failed to push metrics: response status: %s: failed to read response body: %v", resp.Status, err)
		return
	}

	// The transfer agent reports failures as {"msg": "..."}.
	if msg := gjson.GetBytes(b, "msg"); msg.Exists() {
		logger.Warnf("failed to push metrics: response status: %s: message: %s", resp.Status, msg.String())
		return
	}

	logger.Warnf("failed to push metrics: response status: %s: response body: %s", resp.Status, string(b))
}
