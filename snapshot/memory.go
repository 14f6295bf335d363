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

package snapshot

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a Store that lives for the duration of the process.
// Entries are kept encoded so they go through the same codec as the
// persistent stores.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, cluster string) (Counters, bool, error) {
	if err := validateCluster(cluster); err != nil {
		return Counters{}, false, err
	}
	s.mu.Lock()
	data, ok := s.docs[cluster]
	s.mu.Unlock()
	if !ok {
		return Counters{}, false, nil
	}
	c, err := Decode(data)
	if err != nil {
		return Counters{}, false, fmt.Errorf("cluster %s: %w", cluster, err)
	}
	return c, true, nil
}

func (s *MemoryStore) Save(_ context.Context, cluster string, c Counters) error {
	if err := validateCluster(cluster); err != nil {
		return err
	}
	data, err := Encode(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[cluster] = data
	s.mu.Unlock()
	return nil
}

// Put stores a raw document, bypassing the encoder.
func (s *MemoryStore) Put(cluster string, data []byte) {
	s.mu.Lock()
	s.docs[cluster] = append([]byte(nil), data...)
	s.mu.Unlock()
}

func (s *MemoryStore) Delete(_ context.Context, cluster string) error {
	s.mu.Lock()
	delete(s.docs, cluster)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
