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

// Package config loads the monitor configuration from a YAML file, a
// .env file, ESMONITOR_* environment variables, command line flags and,
// optionally, AWS Secrets Manager and ACM.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/elastic/esmonitor/falcon"
	"github.com/elastic/esmonitor/snapshot"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "ESMONITOR"

// ErrConfigMissing is returned when no cluster can be monitored.
var ErrConfigMissing = errors.New("no cluster configured")

// Config is the resolved configuration of a run.
type Config struct {
	// Clusters maps a cluster name to its HTTP address. Names are lower
	// cased.
	Clusters map[string]string
	// CACert is a PEM bundle trusted by the cluster HTTP client.
	CACert         string
	ClusterTimeout time.Duration

	FalconURL          string
	FalconTimeout      time.Duration
	FalconMaxBatchSize int
	Tags               string

	SnapshotStore snapshot.Kind
	SnapshotPath  string

	LogLevel     string
	DetectResets bool

	secretsID  string
	caCertFile string
	caCertPEM  string
	caCertACM  string
	filter     []string
	awsConfig  func(context.Context) (*aws.Config, error)
}

// Load reads the configuration. It performs no network call, remote
// sources are fetched by Resolve.
func Load(opts ...Option) (*Config, error) {
	c := loadConfig{}
	for _, opt := range opts {
		opt(&c)
	}

	if err := loadEnvFile(c.envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("falcon.url", falcon.DefaultURL)
	v.SetDefault("falcon.timeout", "5s")
	v.SetDefault("falcon.max_batch_size", 0)
	v.SetDefault("cluster.timeout", "10s")
	v.SetDefault("snapshot.store", string(snapshot.File))
	v.SetDefault("log.level", "info")
	v.SetDefault("latency.detect_resets", true)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if c.file != "" {
		v.SetConfigFile(c.file)
	} else {
		v.SetConfigName("monitor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/esmonitor")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, name := range flagKeys {
		if c.flags == nil {
			break
		}
		if f := c.flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	clusters := make(map[string]string)
	for name, addr := range v.GetStringMapString("clusters") {
		clusters[strings.ToLower(name)] = addr
	}
	if raw := v.GetString("cluster_addresses"); raw != "" {
		extra, err := parseClusterAddresses(raw)
		if err != nil {
			return nil, err
		}
		for name, addr := range extra {
			clusters[name] = addr
		}
	}

	kind, err := snapshot.ParseKind(v.GetString("snapshot.store"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Clusters:           clusters,
		ClusterTimeout:     v.GetDuration("cluster.timeout"),
		FalconURL:          v.GetString("falcon.url"),
		FalconTimeout:      v.GetDuration("falcon.timeout"),
		FalconMaxBatchSize: v.GetInt("falcon.max_batch_size"),
		Tags:               v.GetString("falcon.tags"),
		SnapshotStore:      kind,
		SnapshotPath:       v.GetString("snapshot.path"),
		LogLevel:           v.GetString("log.level"),
		DetectResets:       v.GetBool("latency.detect_resets"),
		secretsID:          v.GetString("secrets_manager.clusters_id"),
		caCertFile:         v.GetString("cluster.ca_cert_file"),
		caCertPEM:          v.GetString("cluster.ca_cert_pem"),
		caCertACM:          v.GetString("cluster.ca_cert_acm_id"),
		filter:             c.clusters,
		awsConfig:          lazyAWSConfig(c.awsConfig),
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = snapshot.DefaultPath(kind)
	}
	if cfg.FalconURL == "" {
		return nil, errors.New("falcon URL cannot be empty")
	}
	if cfg.FalconMaxBatchSize < 0 {
		return nil, fmt.Errorf("invalid falcon max batch size: %d", cfg.FalconMaxBatchSize)
	}
	return cfg, nil
}

// Resolve fetches the remote sources, applies the cluster filter and
// checks that at least one cluster is left.
func (cfg *Config) Resolve(ctx context.Context, logger *zap.SugaredLogger) error {
	if cfg.secretsID != "" {
		remote, err := loadClusterSecret(ctx, cfg.awsConfig, cfg.secretsID)
		if err != nil {
			return fmt.Errorf("failed to load clusters from AWS Secrets Manager secret %s: %w", cfg.secretsID, err)
		}
		logger.Infof("Using %d cluster addresses retrieved from AWS Secrets Manager", len(remote))
		for name, addr := range remote {
			cfg.Clusters[name] = addr
		}
	}

	if cfg.caCertPEM != "" {
		logger.Infof("Using CA certificates from environment variable.")
		cfg.CACert = strings.ReplaceAll(cfg.caCertPEM, "\\n", "\n")
	}

	if cfg.caCertFile != "" {
		cert, err := os.ReadFile(cfg.caCertFile)
		if err != nil {
			return err
		}
		logger.Infof("Using CA certificate loaded from file %s", cfg.caCertFile)
		cfg.CACert = string(cert)
	}

	if cfg.caCertACM != "" {
		cert, err := loadAcmCertificate(ctx, cfg.awsConfig, cfg.caCertACM)
		if err != nil {
			return fmt.Errorf("failed to load CA certificate %s: %w", cfg.caCertACM, err)
		}
		logger.Infof("Using CA certificate %s", cfg.caCertACM)
		cfg.CACert = cert
	}

	if len(cfg.filter) > 0 {
		selected := make(map[string]string, len(cfg.filter))
		for _, name := range cfg.filter {
			name = strings.ToLower(name)
			addr, ok := cfg.Clusters[name]
			if !ok {
				return fmt.Errorf("%w: %s", ErrConfigMissing, name)
			}
			selected[name] = addr
		}
		cfg.Clusters = selected
	}

	if len(cfg.Clusters) == 0 {
		return ErrConfigMissing
	}
	return nil
}

// ClusterNames returns the configured cluster names, sorted.
func (cfg *Config) ClusterNames() []string {
	names := make([]string, 0, len(cfg.Clusters))
	for name := range cfg.Clusters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// parseClusterAddresses parses "name=address" pairs separated by commas.
func parseClusterAddresses(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, addr, ok := strings.Cut(pair, "=")
		name, addr = strings.TrimSpace(name), strings.TrimSpace(addr)
		if !ok || name == "" || addr == "" {
			return nil, fmt.Errorf("invalid cluster address %q, expected name=address", pair)
		}
		out[strings.ToLower(name)] = addr
	}
	return out, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// lazyAWSConfig returns a loader that builds the default AWS config on
// first use, unless cfg is set.
func lazyAWSConfig(cfg *aws.Config) func(context.Context) (*aws.Config, error) {
	return func(ctx context.Context) (*aws.Config, error) {
		if cfg != nil {
			return cfg, nil
		}
		loaded, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS default config: %w", err)
		}
		cfg = &loaded
		return cfg, nil
	}
}
