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

package file

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestNewParser(t *testing.T) {
	tests := []struct {
		name          string
		opts          []Option
		wantDelimiter string
		wantMaxSize   int
		wantComments  bool
		wantKV        string
		wantLenient   bool
	}{
		{
			name:          "default options",
			wantDelimiter: "\n",
			wantMaxSize:   1 << 20,
			wantComments:  true,
			wantKV:        "=",
		},
		{
			name: "all options",
			opts: []Option{
				WithDelimiter(";"),
				WithMaxSize(2048),
				WithSkipComments(false),
				WithKVDelimiter(":"),
				WithVTrimChars(`"`),
				WithLenientUTF8(true),
			},
			wantDelimiter: ";",
			wantMaxSize:   2048,
			wantComments:  false,
			wantKV:        ":",
			wantLenient:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(tt.opts...)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantDelimiter, p.delimiter)
			assert.Equal(t, tt.wantMaxSize, p.maxSize)
			assert.Equal(t, tt.wantComments, p.skipComments)
			assert.Equal(t, tt.wantKV, p.kvDelimiter)
			assert.Equal(t, tt.wantLenient, p.lenient)
		})
	}
}

func TestGetLines(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		opts     []Option
		expected []string
		errMsg   string
	}{
		{
			name:     "simple newline-delimited",
			content:  "line1\nline2\nline3",
			expected: []string{"line1", "line2", "line3"},
		},
		{
			name:     "trailing newlines filtered",
			content:  "line1\nline2\n\n\n",
			expected: []string{"line1", "line2"},
		},
		{
			name:     "custom delimiter",
			content:  "a;b;",
			opts:     []Option{WithDelimiter(";")},
			expected: []string{"a", "b"},
		},
		{
			name:     "comments skipped",
			content:  "# header\nline1\n  # indented\nline2",
			expected: []string{"line1", "line2"},
		},
		{
			name:     "comments kept",
			content:  "# header\nline1",
			opts:     []Option{WithSkipComments(false)},
			expected: []string{"# header", "line1"},
		},
		{
			name:     "empty file",
			content:  "",
			expected: []string{},
		},
		{
			name:    "file too large",
			content: strings.Repeat("a", 2000),
			opts:    []Option{WithMaxSize(1000)},
			errMsg:  "exceeds maximum size",
		},
		{
			name:    "invalid UTF-8",
			content: "valid\xff\xfeinvalid",
			errMsg:  "not valid UTF-8",
		},
		{
			name:     "invalid UTF-8 lenient",
			content:  "ok\nbad\xff",
			opts:     []Option{WithLenientUTF8(true)},
			expected: []string{"ok", "bad�"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.content)
			got, err := NewParser(tt.opts...).GetLines(path)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestGetLines_Errors(t *testing.T) {
	p := NewParser()

	_, err := p.GetLines("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")

	_, err = p.GetLines("/nonexistent/file/path.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGetMap(t *testing.T) {
	path := writeTemp(t, "NAME=\"Fedora Linux\"\nVERSION_ID=40\n# comment\nbare\n")

	m, err := NewParser(WithVTrimChars(`"`)).GetMap(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"NAME":       "Fedora Linux",
		"VERSION_ID": "40",
	}, m)
}

func TestGetFields(t *testing.T) {
	path := writeTemp(t, "nf_tables 352256 1 nft_chain_nat, Live 0x0\nxfs 2342912 2 - Live 0x0\n")

	fields, err := NewParser().GetFields(path)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "nf_tables", fields[0][0])
	assert.Equal(t, "xfs", fields[1][0])
	assert.Len(t, fields[1], 6)
}

func TestTail(t *testing.T) {
	path := writeTemp(t, "0123456789")

	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"last bytes", 4, "6789"},
		{"whole file", 10, "0123456789"},
		{"larger than file", 100, "0123456789"},
		{"zero", 0, ""},
		{"negative", -1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tail(path, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := Tail(filepath.Join(t.TempDir(), "missing"), 4)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGrep(t *testing.T) {
	path := writeTemp(t, "alpha 1\nbeta 2\nalphabet 3\n")

	got, err := Grep(regexp.MustCompile(`^alpha `), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha 1"}, got)

	got, err = Grep(regexp.MustCompile(`gamma`), path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindAll(t *testing.T) {
	path := writeTemp(t, "port=80\nport=443\nhost=x\n")

	got, err := FindAll(regexp.MustCompile(`port=(\d+)`), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"80", "443"}, got)

	got, err = FindAll(regexp.MustCompile(`host=\w`), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"host=x"}, got)
}
