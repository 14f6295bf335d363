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
	"fmt"
	"strings"
)

// Kind names a Store backend.
type Kind string

const (
	File   Kind = "file"
	Bolt   Kind = "bolt"
	SQLite Kind = "sqlite"
	Memory Kind = "memory"
)

// ParseKind parses a backend name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case File, Bolt, SQLite, Memory:
		return k, nil
	case "":
		return File, nil
	}
	return "", fmt.Errorf("unknown snapshot store %q (valid: file, bolt, sqlite, memory)", s)
}

// DefaultPath is the location used by a backend when none is configured.
func DefaultPath(kind Kind) string {
	switch kind {
	case Bolt:
		return "esmonitor.db"
	case SQLite:
		return "esmonitor.sqlite"
	}
	return "."
}

// Open returns the backend for kind. path is a directory for File and a
// database file for Bolt and SQLite; it is ignored for Memory.
func Open(kind Kind, path string) (Store, error) {
	if path == "" {
		path = DefaultPath(kind)
	}
	switch kind {
	case File:
		return NewFileStore(path)
	case Bolt:
		return NewBoltStore(path)
	case SQLite:
		return NewSQLiteStore(path)
	case Memory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown snapshot store %q", kind)
}
