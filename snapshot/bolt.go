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
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// BoltStore keeps snapshots in a single bbolt database, keyed by cluster.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSnapshots); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketSnapshots, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(_ context.Context, cluster string) (Counters, bool, error) {
	if err := validateCluster(cluster); err != nil {
		return Counters{}, false, err
	}
	var (
		c  Counters
		ok bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(cluster))
		if data == nil {
			return nil
		}
		var err error
		// data is only valid inside the transaction; Decode copies what it needs.
		if c, err = Decode(data); err != nil {
			return fmt.Errorf("cluster %s: %w", cluster, err)
		}
		ok = true
		return nil
	})
	if err != nil {
		return Counters{}, false, err
	}
	return c, ok, nil
}

func (s *BoltStore) Save(_ context.Context, cluster string, c Counters) error {
	if err := validateCluster(cluster); err != nil {
		return err
	}
	data, err := Encode(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(cluster), data)
	})
}

func (s *BoltStore) Delete(_ context.Context, cluster string) error {
	if err := validateCluster(cluster); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete([]byte(cluster))
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
