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

package oci

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"

	"github.com/NVIDIA/diagpack/pkg/errors"
)

// URIScheme prefixes registry destinations: oci://registry/repository:tag.
const URIScheme = "oci://"

// Reference is a parsed registry destination.
type Reference struct {
	// Registry is the registry host, e.g. "ghcr.io" or "localhost:5000".
	Registry string
	// Repository is the repository path, e.g. "nvidia/diag".
	Repository string
	// Tag is empty when none was given; callers apply a default.
	Tag string
}

// IsReference reports whether target uses the oci:// scheme.
func IsReference(target string) bool {
	return strings.HasPrefix(target, URIScheme)
}

// ParseReference parses oci://registry/repository[:tag]. Digests are
// rejected since a push always produces a new manifest.
func ParseReference(target string) (*Reference, error) {
	rest, ok := strings.CutPrefix(target, URIScheme)
	if !ok {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest, "OCI reference must start with "+URIScheme,
			map[string]any{"target": target})
	}

	ref, err := reference.ParseNormalizedNamed(rest)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "invalid OCI reference", err)
	}
	if _, ok := ref.(reference.Digested); ok {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest, "OCI reference must not contain a digest",
			map[string]any{"target": target})
	}

	r := &Reference{
		Registry:   reference.Domain(ref),
		Repository: reference.Path(ref),
	}
	if tagged, ok := ref.(reference.Tagged); ok {
		r.Tag = tagged.Tag()
	}
	return r, nil
}

// String returns the oci:// form of r.
func (r *Reference) String() string {
	return URIScheme + r.ImageReference()
}

// ImageReference returns registry/repository[:tag].
func (r *Reference) ImageReference() string {
	if r.Tag == "" {
		return fmt.Sprintf("%s/%s", r.Registry, r.Repository)
	}
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}

// WithTag returns a copy of r with tag set.
func (r *Reference) WithTag(tag string) *Reference {
	c := *r
	c.Tag = tag
	return &c
}

// DefaultTag derives a valid tag from an archive name, which may contain
// characters tags do not allow.
func DefaultTag(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '.', c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('-')
		}
	}
	tag := strings.TrimLeft(b.String(), ".-")
	if tag == "" {
		return "latest"
	}
	if len(tag) > 128 {
		tag = tag[:128]
	}
	return tag
}
