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

package falcon

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/elastic/esmonitor/envelope"
	"github.com/tidwall/pretty"
)

// Printer writes batches to w as indented JSON instead of pushing them.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Push(_ context.Context, envs []envelope.Envelope) (Result, error) {
	body, err := envelope.EncodeBatch(envs)
	if err != nil {
		return Unknown, fmt.Errorf("failed to encode batch: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(pretty.Pretty(body)); err != nil {
		return Unreachable, fmt.Errorf("%w: %w", ErrSinkUnreachable, err)
	}
	return Success, nil
}
