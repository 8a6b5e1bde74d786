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

package header

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindIsValid(t *testing.T) {
	for _, k := range []Kind{KindManifest, KindPluginSet, KindPluginList} {
		assert.True(t, k.IsValid(), k.String())
	}
	bad := Kind("Snapshot")
	assert.False(t, bad.IsValid())
}

func TestNew(t *testing.T) {
	h := New(WithKind(KindPluginSet), WithMetadata("source", "file"))
	assert.Equal(t, KindPluginSet, h.Kind)
	assert.Equal(t, APIVersion, h.APIVersion)
	assert.Equal(t, "file", h.Metadata["source"])

	h = New(WithAPIVersion("v0"))
	assert.Equal(t, "v0", h.APIVersion)
}

func TestInit(t *testing.T) {
	var h Header
	h.Init(KindManifest, "v1.2.3")

	assert.Equal(t, KindManifest, h.Kind)
	assert.Equal(t, "v1.2.3", h.Metadata["version"])
	_, err := time.Parse(time.RFC3339, h.Metadata["timestamp"])
	assert.NoError(t, err)

	h.Init(KindManifest, "")
	assert.NotContains(t, h.Metadata, "version")
}

func TestCheck(t *testing.T) {
	var empty Header
	assert.True(t, empty.Check(KindPluginSet))

	h := New(WithKind(KindPluginSet))
	assert.True(t, h.Check(KindPluginSet))
	assert.False(t, h.Check(KindManifest))

	h.APIVersion = "other/v1"
	assert.False(t, h.Check(KindPluginSet))
}
