// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serializer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/NVIDIA/diagpack/pkg/k8s/client"
)

// readSource returns the raw bytes at path and the format they are in.
// path may be a local file, an http(s) URL or a cm://namespace/name URI.
func readSource(ctx context.Context, path string, kubeClient func() (client.Interface, error)) ([]byte, Format, error) {
	switch {
	case strings.HasPrefix(path, ConfigMapURIScheme):
		namespace, name, err := parseConfigMapURI(path)
		if err != nil {
			return nil, "", err
		}
		c, err := kubeClient()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get kubernetes client: %w", err)
		}
		return readConfigMap(ctx, c, namespace, name)

	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		b, err := NewHttpReader().ReadWithContext(ctx, path)
		if err != nil {
			return nil, "", err
		}
		return b, FormatFromPath(path), nil

	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return b, FormatFromPath(path), nil
	}
}

func defaultKubeClient() (client.Interface, error) {
	c, _, err := client.GetKubeClient()
	return c, err
}

// FromFile loads and decodes a T from a file, URL or ConfigMap. The format
// is taken from the file extension, or the ConfigMap's format key.
func FromFile[T any](ctx context.Context, path string) (*T, error) {
	return fromSource[T](ctx, path, defaultKubeClient)
}

// FromFileWithKubeconfig is FromFile with an explicit kubeconfig for cm://
// sources.
func FromFileWithKubeconfig[T any](ctx context.Context, path, kubeconfig string) (*T, error) {
	if kubeconfig == "" {
		return FromFile[T](ctx, path)
	}
	return fromSource[T](ctx, path, func() (client.Interface, error) {
		c, _, err := client.GetKubeClientWithConfig(kubeconfig)
		return c, err
	})
}

func fromSource[T any](ctx context.Context, path string, kubeClient func() (client.Interface, error)) (*T, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("path is empty")
	}

	b, format, err := readSource(ctx, path, kubeClient)
	if err != nil {
		return nil, err
	}

	var v T
	if err := Unmarshal(format, b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &v, nil
}
