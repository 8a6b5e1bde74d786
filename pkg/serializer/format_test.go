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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string            `json:"name" yaml:"name"`
	Count   int               `json:"count" yaml:"count"`
	Labels  map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Items   []string          `json:"items,omitempty" yaml:"items,omitempty"`
	Payload []byte            `json:"payload,omitempty" yaml:"payload,omitempty"`
	Secret  string            `json:"-" yaml:"-"`
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"manifest.json", FormatJSON},
		{"plugins.yaml", FormatYAML},
		{"plugins.YML", FormatYAML},
		{"out.txt", FormatTable},
		{"out.table", FormatTable},
		{"out.cbor", FormatCBOR},
		{"noext", FormatJSON},
		{"https://example.com/set.yaml", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFromPath(tt.path))
		})
	}
}

func TestFormatProperties(t *testing.T) {
	assert.False(t, FormatJSON.IsUnknown())
	assert.True(t, Format("xml").IsUnknown())
	assert.Equal(t, "txt", FormatTable.Extension())
	assert.Equal(t, "yaml", FormatYAML.Extension())
	assert.True(t, FormatCBOR.Binary())
	assert.False(t, FormatYAML.Binary())
	assert.Len(t, SupportedFormats(), 4)
}

func TestMarshalRoundTrip(t *testing.T) {
	in := sample{Name: "kernel", Count: 3, Labels: map[string]string{"a": "b"}, Items: []string{"x"}}

	for _, f := range []Format{FormatJSON, FormatYAML, FormatCBOR} {
		t.Run(string(f), func(t *testing.T) {
			b, err := Marshal(f, in)
			require.NoError(t, err)

			var out sample
			require.NoError(t, Unmarshal(f, b, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestMarshalUnsupported(t *testing.T) {
	_, err := Marshal(Format("xml"), sample{})
	assert.Error(t, err)

	var out sample
	assert.Error(t, Unmarshal(FormatTable, []byte("x"), &out))
}

func TestMarshalTable(t *testing.T) {
	in := sample{
		Name:    "logs",
		Count:   2,
		Labels:  map[string]string{"zone": "a"},
		Items:   []string{"first", "second"},
		Payload: []byte{1, 2, 3},
		Secret:  "hidden",
	}

	b, err := Marshal(FormatTable, in)
	require.NoError(t, err)
	out := string(b)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "FIELD"))
	assert.Contains(t, out, "count")
	assert.Contains(t, out, "items.[0]")
	assert.Contains(t, out, "second")
	assert.Contains(t, out, "labels.zone")
	assert.Contains(t, out, "<3 bytes>")
	assert.NotContains(t, out, "hidden")

	// Rows are sorted by field name.
	assert.Less(t, strings.Index(out, "count"), strings.Index(out, "name"))
}

func TestMarshalTableScalarsAndTime(t *testing.T) {
	b, err := Marshal(FormatTable, 42)
	require.NoError(t, err)
	assert.Contains(t, string(b), "value")
	assert.Contains(t, string(b), "42")

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	b, err = Marshal(FormatTable, struct {
		Start time.Time `json:"start"`
	}{Start: ts})
	require.NoError(t, err)
	assert.Contains(t, string(b), "2025-01-02 03:04:05")

	b, err = Marshal(FormatTable, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "<empty>\n", string(b))
}
