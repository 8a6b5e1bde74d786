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

import "strings"

// Tag marks the platforms a plugin supports.
type Tag uint32

const (
	TagIndependent Tag = 1 << iota
	TagRedHat
	TagDebian
	TagUbuntu
	TagSuSE
	TagPowerKVM
	TagZKVM
	TagSCL
	TagExperimental
)

var tagNames = []struct {
	tag  Tag
	name string
}{
	{TagIndependent, "independent"},
	{TagRedHat, "redhat"},
	{TagDebian, "debian"},
	{TagUbuntu, "ubuntu"},
	{TagSuSE, "suse"},
	{TagPowerKVM, "powerkvm"},
	{TagZKVM, "zkvm"},
	{TagSCL, "scl"},
	{TagExperimental, "experimental"},
}

// implied tags: platform variants also carry their parent platform.
var impliedTags = map[Tag]Tag{
	TagPowerKVM: TagRedHat,
	TagZKVM:     TagRedHat,
	TagSCL:      TagRedHat,
}

// TagSet is a set of Tags.
type TagSet uint32

// Tags builds a TagSet, adding implied parent tags.
func Tags(tags ...Tag) TagSet {
	var s TagSet
	for _, t := range tags {
		s |= TagSet(t)
		if parent, ok := impliedTags[t]; ok {
			s |= TagSet(parent)
		}
	}
	return s
}

// Has reports whether t is in the set.
func (s TagSet) Has(t Tag) bool {
	return s&TagSet(t) != 0
}

// Names returns the tag names in a fixed order.
func (s TagSet) Names() []string {
	var out []string
	for _, tn := range tagNames {
		if s.Has(tn.tag) {
			out = append(out, tn.name)
		}
	}
	return out
}

func (s TagSet) String() string {
	return strings.Join(s.Names(), ",")
}

// ParseTag returns the tag for a case-insensitive name.
func ParseTag(name string) (Tag, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, tn := range tagNames {
		if tn.name == name {
			return tn.tag, true
		}
	}
	return 0, false
}

// ParseTags builds a TagSet from names. Unknown names are returned
// separately.
func ParseTags(names []string) (TagSet, []string) {
	var tags []Tag
	var unknown []string
	for _, n := range names {
		t, ok := ParseTag(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		tags = append(tags, t)
	}
	return Tags(tags...), unknown
}

// platformTags are the tags that restrict a plugin to a distribution.
const platformTags = TagSet(TagRedHat) | TagSet(TagDebian) | TagSet(TagUbuntu) | TagSet(TagSuSE)

var platformFamilies = map[string]Tag{
	"rhel":      TagRedHat,
	"fedora":    TagRedHat,
	"centos":    TagRedHat,
	"rocky":     TagRedHat,
	"almalinux": TagRedHat,
	"debian":    TagDebian,
	"ubuntu":    TagUbuntu,
	"sles":      TagSuSE,
	"suse":      TagSuSE,
	"opensuse":  TagSuSE,
}

// PlatformTag maps os-release ID and ID_LIKE values, most specific first,
// to a platform tag.
func PlatformTag(families ...string) (Tag, bool) {
	for _, f := range families {
		if t, ok := platformFamilies[strings.ToLower(f)]; ok {
			return t, true
		}
		if strings.HasPrefix(strings.ToLower(f), "opensuse") {
			return TagSuSE, true
		}
	}
	return 0, false
}

// Supports reports whether a plugin with tags s may run on platform.
// Plugins without a platform tag run everywhere; Ubuntu hosts also run
// Debian plugins.
func (s TagSet) Supports(platform Tag) bool {
	if s&platformTags == 0 || s.Has(TagIndependent) {
		return true
	}
	if s.Has(platform) {
		return true
	}
	return platform == TagUbuntu && s.Has(TagDebian)
}
