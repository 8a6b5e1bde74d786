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
	"log/slog"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	accorev1 "k8s.io/client-go/applyconfigurations/core/v1"

	"github.com/NVIDIA/diagpack/pkg/defaults"
	"github.com/NVIDIA/diagpack/pkg/k8s/client"
)

const (
	// ConfigMapURIScheme prefixes ConfigMap destinations: cm://namespace/name.
	ConfigMapURIScheme = "cm://"

	configMapKeyPrefix = "manifest."
	fieldManager       = "diagpack"
)

// ConfigMapWriter stores serialized data in a ConfigMap, creating or
// updating it with server-side apply. Binary formats go to binaryData.
type ConfigMapWriter struct {
	namespace string
	name      string
	format    Format
	version   string

	// clientFn returns the Kubernetes client; replaced in tests.
	clientFn func() (client.Interface, error)
}

// NewConfigMapWriter returns a writer for namespace/name.
func NewConfigMapWriter(namespace, name string, format Format) *ConfigMapWriter {
	return &ConfigMapWriter{
		namespace: namespace,
		name:      name,
		format:    normalize(format),
		version:   "unknown",
		clientFn: func() (client.Interface, error) {
			c, _, err := client.GetKubeClient()
			return c, err
		},
	}
}

// WithVersion sets the app version label.
func (w *ConfigMapWriter) WithVersion(v string) *ConfigMapWriter {
	if v != "" {
		w.version = v
	}
	return w
}

func configMapKey(f Format) string {
	return configMapKeyPrefix + f.Extension()
}

// Serialize implements Serializer.
func (w *ConfigMapWriter) Serialize(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, defaults.ConfigMapWriteTimeout)
	defer cancel()

	content, err := Marshal(w.format, v)
	if err != nil {
		return err
	}

	c, err := w.clientFn()
	if err != nil {
		return fmt.Errorf("failed to get kubernetes client: %w", err)
	}

	cm := accorev1.ConfigMap(w.name, w.namespace).
		WithLabels(map[string]string{
			"app.kubernetes.io/name":      "diagpack",
			"app.kubernetes.io/component": "manifest",
			"app.kubernetes.io/version":   w.version,
		}).
		WithData(map[string]string{
			"format":    string(w.format),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	if w.format.Binary() {
		cm = cm.WithBinaryData(map[string][]byte{configMapKey(w.format): content})
	} else {
		cm = cm.WithData(map[string]string{configMapKey(w.format): string(content)})
	}

	slog.Info("applying configmap", "namespace", w.namespace, "name", w.name, "format", w.format)
	if _, err := c.CoreV1().ConfigMaps(w.namespace).Apply(ctx, cm, metav1.ApplyOptions{
		FieldManager: fieldManager,
		Force:        true,
	}); err != nil {
		return fmt.Errorf("failed to apply ConfigMap %s/%s: %w", w.namespace, w.name, err)
	}
	return nil
}

// Close implements Closer.
func (w *ConfigMapWriter) Close() error {
	return nil
}

// parseConfigMapURI splits cm://namespace/name.
func parseConfigMapURI(uri string) (namespace, name string, err error) {
	rest, ok := strings.CutPrefix(uri, ConfigMapURIScheme)
	if !ok {
		return "", "", fmt.Errorf("invalid ConfigMap URI %q: must start with %s", uri, ConfigMapURIScheme)
	}
	namespace, name, ok = strings.Cut(rest, "/")
	if !ok || namespace == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid ConfigMap URI %q: expected %snamespace/name", uri, ConfigMapURIScheme)
	}
	return namespace, name, nil
}

// readConfigMap returns the stored payload and its format.
func readConfigMap(ctx context.Context, c client.Interface, namespace, name string) ([]byte, Format, error) {
	cm, err := c.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get ConfigMap %s/%s: %w", namespace, name, err)
	}

	format := Format(cm.Data["format"])
	if format.IsUnknown() {
		format = FormatYAML
	}
	if b, ok := cm.BinaryData[configMapKey(format)]; ok {
		return b, format, nil
	}
	if s, ok := cm.Data[configMapKey(format)]; ok {
		return []byte(s), format, nil
	}
	for _, f := range []Format{FormatYAML, FormatJSON, FormatCBOR} {
		if b, ok := cm.BinaryData[configMapKey(f)]; ok {
			return b, f, nil
		}
		if s, ok := cm.Data[configMapKey(f)]; ok {
			return []byte(s), f, nil
		}
	}
	return nil, "", fmt.Errorf("ConfigMap %s/%s has no manifest data", namespace, name)
}
