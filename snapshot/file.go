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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const fileSuffix = "_former_status_data.json"

// FileStore keeps one JSON document per cluster in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file holding the snapshot of cluster.
func (s *FileStore) Path(cluster string) string {
	return filepath.Join(s.dir, cluster+fileSuffix)
}

func (s *FileStore) Load(_ context.Context, cluster string) (Counters, bool, error) {
	if err := validateCluster(cluster); err != nil {
		return Counters{}, false, err
	}
	path := s.Path(cluster)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Counters{}, false, nil
		}
		return Counters{}, false, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	c, err := Decode(data)
	if err != nil {
		return Counters{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return c, true, nil
}

// Save writes the document to a temporary file in the same directory and
// renames it over the previous snapshot.
func (s *FileStore) Save(_ context.Context, cluster string, c Counters) error {
	if err := validateCluster(cluster); err != nil {
		return err
	}
	data, err := Encode(c)
	if err != nil {
		return err
	}

	path := s.Path(cluster)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary snapshot: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temporary snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary snapshot: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temporary snapshot: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, cluster string) error {
	if err := validateCluster(cluster); err != nil {
		return err
	}
	if err := os.Remove(s.Path(cluster)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
