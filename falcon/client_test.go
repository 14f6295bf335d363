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

package falcon_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/elastic/esmonitor/envelope"
	"github.com/elastic/esmonitor/falcon"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewClient(t *testing.T) {
	testCases := map[string]struct {
		opts        []falcon.Option
		expectedErr bool
	}{
		"empty": {
			expectedErr: true,
		},
		"empty url": {
			opts: []falcon.Option{
				falcon.WithURL(""),
				falcon.WithLogger(zaptest.NewLogger(t).Sugar()),
			},
			expectedErr: true,
		},
		"negative batch size": {
			opts: []falcon.Option{
				falcon.WithLogger(zaptest.NewLogger(t).Sugar()),
				falcon.WithMaxBatchSize(-1),
			},
			expectedErr: true,
		},
		"default url": {
			opts: []falcon.Option{
				falcon.WithLogger(zaptest.NewLogger(t).Sugar()),
			},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := falcon.NewClient(tc.opts...)
			if tc.expectedErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func batch() []envelope.Envelope {
	b := envelope.NewBuilder("logs")
	return []envelope.Envelope{
		b.Build("search.query_total", 150),
		b.Build("http.current_open", 3),
		b.BuildGauge("query_latency_ms", 0.6),
	}
}

func TestPushResults(t *testing.T) {
	testCases := map[string]struct {
		status      int
		body        string
		expected    falcon.Result
		expectedErr error
	}{
		"success":      {status: http.StatusOK, body: "success", expected: falcon.Success},
		"not found":    {status: http.StatusNotFound, expected: falcon.NotFound, expectedErr: falcon.ErrSink},
		"server error": {status: http.StatusInternalServerError, body: `{"msg":"transfer down"}`, expected: falcon.ServerError, expectedErr: falcon.ErrSink},
		"unknown":      {status: http.StatusBadGateway, body: "bad gateway", expected: falcon.Unknown, expectedErr: falcon.ErrSink},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := falcon.NewClient(
				falcon.WithURL(srv.URL),
				falcon.WithLogger(zaptest.NewLogger(t).Sugar()),
			)
			require.NoError(t, err)

			res, err := c.Push(context.Background(), batch())
			assert.Equal(t, tc.expected, res)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPushPayload(t *testing.T) {
	var body []byte
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		header = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c, err := falcon.NewClient(
		falcon.WithURL(srv.URL),
		falcon.WithLogger(zaptest.NewLogger(t).Sugar()),
	)
	require.NoError(t, err)

	res, err := c.Push(context.Background(), batch())
	require.NoError(t, err)
	assert.Equal(t, falcon.Success, res)

	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Contains(t, header.Get("User-Agent"), "esmonitor/")

	records := gjson.ParseBytes(body)
	require.True(t, records.IsArray())
	require.Len(t, records.Array(), 3)
	for _, rec := range records.Array() {
		for _, field := range []string{"metric", "counterType", "value", "tags", "endpoint", "timestamp", "step"} {
			assert.True(t, rec.Get(field).Exists(), field)
		}
		assert.Equal(t, "logs", rec.Get("endpoint").String())
		assert.EqualValues(t, 60, rec.Get("step").Int())
	}
	assert.Equal(t, "COUNTER", records.Get(`#(metric=="search.query_total").counterType`).String())
	assert.Equal(t, "GAUGE", records.Get(`#(metric=="query_latency_ms").counterType`).String())
}

func TestPushMaxBatchSize(t *testing.T) {
	var requests, records atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests.Add(1)
		records.Add(int32(len(gjson.ParseBytes(body).Array())))
	}))
	defer srv.Close()

	c, err := falcon.NewClient(
		falcon.WithURL(srv.URL),
		falcon.WithLogger(zaptest.NewLogger(t).Sugar()),
		falcon.WithMaxBatchSize(2),
	)
	require.NoError(t, err)

	_, err = c.Push(context.Background(), batch())
	require.NoError(t, err)
	assert.EqualValues(t, 2, requests.Load())
	assert.EqualValues(t, 3, records.Load())
}

func TestPushStopsOnFirstFailure(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := falcon.NewClient(
		falcon.WithURL(srv.URL),
		falcon.WithLogger(zaptest.NewLogger(t).Sugar()),
		falcon.WithMaxBatchSize(1),
	)
	require.NoError(t, err)

	res, err := c.Push(context.Background(), batch())
	assert.Equal(t, falcon.ServerError, res)
	assert.ErrorIs(t, err, falcon.ErrSink)
	assert.EqualValues(t, 1, requests.Load())
}

func TestPushUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	core, logs := observer.New(zap.ErrorLevel)
	c, err := falcon.NewClient(
		falcon.WithURL(url),
		falcon.WithLogger(zap.New(core).Sugar()),
	)
	require.NoError(t, err)

	res, err := c.Push(context.Background(), batch())
	assert.Equal(t, falcon.Unreachable, res)
	assert.ErrorIs(t, err, falcon.ErrSinkUnreachable)
	assert.Equal(t, 1, logs.FilterMessageSnippet("unreachable").Len())
}

func TestPushLogsServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"msg":"transfer down"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	c, err := falcon.NewClient(
		falcon.WithURL(srv.URL),
		falcon.WithLogger(zap.New(core).Sugar()),
	)
	require.NoError(t, err)

	_, err = c.Push(context.Background(), batch())
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessageSnippet("transfer down").Len())
}

func TestPushEmpty(t *testing.T) {
	c, err := falcon.NewClient(
		falcon.WithURL("http://127.0.0.1:1"),
		falcon.WithLogger(zaptest.NewLogger(t).Sugar()),
	)
	require.NoError(t, err)

	res, err := c.Push(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, falcon.Success, res)
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	res, err := falcon.NewPrinter(&buf).Push(context.Background(), batch())
	require.NoError(t, err)
	assert.Equal(t, falcon.Success, res)

	out := gjson.ParseBytes(buf.Bytes())
	require.True(t, out.IsArray())
	assert.Len(t, out.Array(), 3)
	assert.Contains(t, buf.String(), "\n  ")
}
