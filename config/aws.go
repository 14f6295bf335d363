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
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/tidwall/gjson"
)

// loadClusterSecret reads a JSON object of cluster name to address
// stored in AWS Secrets Manager.
func loadClusterSecret(ctx context.Context, lazyCfg func(context.Context) (*aws.Config, error), secretID string) (map[string]string, error) {
	cfg, err := lazyCfg(ctx)
	if err != nil {
		return nil, err
	}
	manager := secretsmanager.NewFromConfig(*cfg)

	result, err := manager.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve secret value: %w", err)
	}

	var raw []byte
	if result.SecretString != nil {
		raw = []byte(*result.SecretString)
	} else {
		raw = result.SecretBinary
	}

	if !gjson.ValidBytes(raw) {
		return nil, errors.New("secret is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, errors.New("secret is not a JSON object")
	}

	clusters := make(map[string]string)
	doc.ForEach(func(name, addr gjson.Result) bool {
		if addr.Type != gjson.String || addr.String() == "" {
			err = fmt.Errorf("invalid address for cluster %s", name.String())
			return false
		}
		clusters[strings.ToLower(name.String())] = addr.String()
		return true
	})
	if err != nil {
		return nil, err
	}
	return clusters, nil
}

func loadAcmCertificate(ctx context.Context, lazyCfg func(context.Context) (*aws.Config, error), arn string) (string, error) {
	cfg, err := lazyCfg(ctx)
	if err != nil {
		return "", err
	}
	acmClient := acm.NewFromConfig(*cfg)
	response, err := acmClient.GetCertificate(ctx, &acm.GetCertificateInput{
		CertificateArn: aws.String(arn),
	})
	if err != nil {
		return "", err
	}
	if response.Certificate == nil {
		return "", errors.New("certificate is empty")
	}

	return *response.Certificate, nil
}
