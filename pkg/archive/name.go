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

package archive

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLabel prefixes archive names when no label is configured.
const DefaultLabel = "diagpack"

var unsafeName = regexp.MustCompile(`[^a-z0-9._-]+`)

// Name builds the archive name <label>-<host>-<YYYY-MM-DD>-<id>, where id
// is the first eight characters of a random UUID.
func Name(label, host string, now time.Time) string {
	return nameWithID(label, host, now, uuid.New())
}

func nameWithID(label, host string, now time.Time, id uuid.UUID) string {
	if label == "" {
		label = DefaultLabel
	}
	host, _, _ = strings.Cut(host, ".")
	parts := []string{sanitize(label), sanitize(host), now.Format("2006-01-02"), id.String()[:8]}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "-")
}

func sanitize(s string) string {
	return strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(s), "_"), "_")
}
