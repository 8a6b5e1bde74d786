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

package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTags(t *testing.T) {
	s := Tags(TagSCL)
	assert.True(t, s.Has(TagSCL))
	assert.True(t, s.Has(TagRedHat))
	assert.Equal(t, "redhat,scl", s.String())

	parsed, unknown := ParseTags([]string{"Debian", " ubuntu ", "beos"})
	assert.Equal(t, []string{"debian", "ubuntu"}, parsed.Names())
	assert.Equal(t, []string{"beos"}, unknown)

	_, ok := ParseTag("")
	assert.False(t, ok)
}

func TestPlatformTag(t *testing.T) {
	tests := []struct {
		families []string
		want     Tag
		ok       bool
	}{
		{[]string{"ubuntu", "debian"}, TagUbuntu, true},
		{[]string{"pop", "ubuntu", "debian"}, TagUbuntu, true},
		{[]string{"rhel", "fedora"}, TagRedHat, true},
		{[]string{"opensuse-leap", "suse"}, TagSuSE, true},
		{[]string{"arch"}, 0, false},
	}
	for _, tt := range tests {
		got, ok := PlatformTag(tt.families...)
		assert.Equal(t, tt.ok, ok, tt.families)
		assert.Equal(t, tt.want, got, tt.families)
	}
}

func TestTagSetSupports(t *testing.T) {
	tests := []struct {
		name     string
		tags     TagSet
		platform Tag
		want     bool
	}{
		{"untagged", 0, TagRedHat, true},
		{"independent", Tags(TagIndependent, TagDebian), TagRedHat, true},
		{"matching", Tags(TagRedHat), TagRedHat, true},
		{"scl on redhat", Tags(TagSCL), TagRedHat, true},
		{"other platform", Tags(TagRedHat), TagDebian, false},
		{"debian plugin on ubuntu", Tags(TagDebian), TagUbuntu, true},
		{"ubuntu plugin on debian", Tags(TagUbuntu), TagDebian, false},
		{"experimental only", Tags(TagExperimental), TagSuSE, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tags.Supports(tt.platform))
		})
	}
}
