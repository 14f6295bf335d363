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
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in a SQLite table, one row per cluster.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite file at path and creates the
// snapshots table if it does not exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Clusters are polled concurrently; a single connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const stmt = `
CREATE TABLE IF NOT EXISTS snapshots (
    cluster    TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create snapshots table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, cluster string) (Counters, bool, error) {
	if err := validateCluster(cluster); err != nil {
		return Counters{}, false, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE cluster = ?`, cluster).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Counters{}, false, nil
	}
	if err != nil {
		return Counters{}, false, fmt.Errorf("select snapshot for %s: %w", cluster, err)
	}
	c, err := Decode([]byte(data))
	if err != nil {
		return Counters{}, false, fmt.Errorf("cluster %s: %w", cluster, err)
	}
	return c, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, cluster string, c Counters) error {
	if err := validateCluster(cluster); err != nil {
		return err
	}
	data, err := Encode(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (cluster, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(cluster) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		cluster, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert snapshot for %s: %w", cluster, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, cluster string) error {
	if err := validateCluster(cluster); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE cluster = ?`, cluster); err != nil {
		return fmt.Errorf("delete snapshot for %s: %w", cluster, err)
	}
	return nil
}

// Close shuts down the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
