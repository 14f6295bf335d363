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

package config

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/pflag"
)

type loadConfig struct {
	file      string
	envFile   string
	clusters  []string
	flags     *pflag.FlagSet
	awsConfig *aws.Config
}

// Option is used to configure how the configuration is loaded.
type Option func(*loadConfig)

// WithConfigFile reads the given file instead of searching for
// monitor.yaml. A missing file is an error.
func WithConfigFile(path string) Option {
	return func(c *loadConfig) {
		c.file = path
	}
}

// WithEnvFile loads environment variables from path instead of .env.
func WithEnvFile(path string) Option {
	return func(c *loadConfig) {
		c.envFile = path
	}
}

// WithClusters restricts the run to the named clusters.
func WithClusters(names ...string) Option {
	return func(c *loadConfig) {
		c.clusters = append(c.clusters, names...)
	}
}

// WithFlags binds the known command line flags of fs, they take
// precedence over the environment and the file.
func WithFlags(fs *pflag.FlagSet) Option {
	return func(c *loadConfig) {
		c.flags = fs
	}
}

// WithAWSConfig sets the AWS config used by the remote sources.
func WithAWSConfig(cfg aws.Config) Option {
	return func(c *loadConfig) {
		c.awsConfig = &cfg
	}
}

// flagKeys maps configuration keys to the flags bound by WithFlags.
var flagKeys = map[string]string{
	"log.level":             "log-level",
	"latency.detect_resets": "detect-resets",
	"falcon.url":            "falcon-url",
	"snapshot.store":        "snapshot-store",
	"snapshot.path":         "snapshot-path",
}
