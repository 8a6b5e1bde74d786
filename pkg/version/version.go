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

// Package version parses and compares diagpack release versions such as
// "v0.4", "0.4.2" or "v1.0.0-rc.1+build.7".
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyVersion      = errors.New("version string is empty")
	ErrTooManyComponents = errors.New("version has more than 3 components")
	ErrNonNumeric        = errors.New("version component is not numeric")
)

// Version is a release version. Precision is the number of components
// given; missing components are zero and are ignored by EqualsOrNewer.
type Version struct {
	Major     int
	Minor     int
	Patch     int
	Precision int
	// Extras holds a pre-release or build suffix, including its separator.
	Extras string
}

// String renders v with its original precision and a "v" prefix.
func (v Version) String() string {
	var s string
	switch v.Precision {
	case 1:
		s = fmt.Sprintf("v%d", v.Major)
	case 2:
		s = fmt.Sprintf("v%d.%d", v.Major, v.Minor)
	default:
		s = fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	return s + v.Extras
}

// ParseVersion parses s with an optional "v" prefix.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return Version{}, ErrEmptyVersion
	}

	var v Version
	main := s
	if i := strings.IndexAny(s, "-+"); i > 0 {
		main, v.Extras = s[:i], s[i:]
	}

	parts := strings.Split(main, ".")
	if len(parts) > 3 {
		return Version{}, ErrTooManyComponents
	}
	nums := [3]int{}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrNonNumeric, part)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	v.Precision = len(parts)
	return v, nil
}

// Compare returns -1, 0 or 1 comparing all three components. Extras are
// ignored.
func (v Version) Compare(other Version) int {
	for _, d := range [3]int{v.Major - other.Major, v.Minor - other.Minor, v.Patch - other.Patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	return 0
}

// EqualsOrNewer reports whether v satisfies the minimum other, comparing
// only as many components as the less precise of the two carries. A
// minimum of "v0.2" is met by "v0.2.5" and "v0.3".
func (v Version) EqualsOrNewer(other Version) bool {
	precision := min(v.Precision, other.Precision)
	a := [3]int{v.Major, v.Minor, v.Patch}
	b := [3]int{other.Major, other.Minor, other.Patch}
	for i := 0; i < precision; i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return true
}
