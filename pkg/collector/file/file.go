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
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/NVIDIA/diagpack/pkg/defaults"
)

// Options for configuring the Parser.
type Option func(*Parser)

// Parser reads line oriented host files such as /proc/modules or
// /etc/os-release.
type Parser struct {
	delimiter    string
	maxSize      int
	skipComments bool
	kvDelimiter  string
	vTrimChars   string
	lenient      bool
}

// WithDelimiter sets the delimiter used to split entries in the file.
// Default is newline ("\n").
func WithDelimiter(delim string) Option {
	return func(p *Parser) {
		p.delimiter = delim
	}
}

// WithMaxSize sets the maximum size (in bytes) of the file to be parsed.
func WithMaxSize(size int) Option {
	return func(p *Parser) {
		p.maxSize = size
	}
}

// WithSkipComments sets whether to skip comment lines in the file.
// Default is true.
func WithSkipComments(skip bool) Option {
	return func(p *Parser) {
		p.skipComments = skip
	}
}

// WithKVDelimiter sets the key-value delimiter used in GetMap.
// Default is "=".
func WithKVDelimiter(kvDelim string) Option {
	return func(p *Parser) {
		p.kvDelimiter = kvDelim
	}
}

// WithVTrimChars sets characters to trim from values in GetMap.
func WithVTrimChars(trimChars string) Option {
	return func(p *Parser) {
		p.vTrimChars = trimChars
	}
}

// WithLenientUTF8 replaces invalid UTF-8 sequences instead of failing.
// Kernel interfaces under /proc occasionally return raw bytes.
func WithLenientUTF8(lenient bool) Option {
	return func(p *Parser) {
		p.lenient = lenient
	}
}

// NewParser creates a new file parser with the provided options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		delimiter:    "\n",
		maxSize:      defaults.MaxParseBytes,
		skipComments: true,
		kvDelimiter:  "=",
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetMap reads the file at the given path and parses its content into a map.
// Lines without the key-value delimiter are dropped.
func (p *Parser) GetMap(path string) (map[string]string, error) {
	parts, err := p.GetLines(path)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, part := range parts {
		kv := strings.SplitN(part, p.kvDelimiter, 2)
		if len(kv) != 2 {
			slog.Debug("skipping line without delimiter", "line", part, "delimiter", p.kvDelimiter)
			continue
		}

		value := strings.TrimSpace(kv[1])
		if p.vTrimChars != "" {
			value = strings.Trim(value, p.vTrimChars)
		}
		result[strings.TrimSpace(kv[0])] = value
	}

	return result, nil
}

// GetFields returns each non-empty line of the file split on whitespace.
func (p *Parser) GetFields(path string) ([][]string, error) {
	lines, err := p.GetLines(path)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.Fields(l))
	}
	return out, nil
}

// GetLines reads the file at the given path and splits its content into lines
// based on the configured delimiter. It returns a slice of non-empty lines.
func (p *Parser) GetLines(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}

	if len(b) > p.maxSize {
		return nil, fmt.Errorf("file %q exceeds maximum size of %d bytes", path, p.maxSize)
	}

	content := string(b)
	if !utf8.Valid(b) {
		if !p.lenient {
			return nil, fmt.Errorf("content of file %q is not valid UTF-8", path)
		}
		content = strings.ToValidUTF8(content, "�")
	}

	parts := strings.Split(content, p.delimiter)

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		cleanPart := strings.TrimSpace(part)
		if cleanPart == "" {
			continue
		}
		if p.skipComments && strings.HasPrefix(cleanPart, "#") {
			continue
		}
		result = append(result, cleanPart)
	}

	return result, nil
}
