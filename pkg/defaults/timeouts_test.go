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

package defaults

import (
	"testing"
	"time"
)

func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		minValue time.Duration
		maxValue time.Duration
	}{
		{"CommandTimeout", CommandTimeout, 30 * time.Second, 10 * time.Minute},
		{"CommandKillGrace", CommandKillGrace, 100 * time.Millisecond, 10 * time.Second},
		{"ProbeTimeout", ProbeTimeout, 5 * time.Second, 2 * time.Minute},
		{"PluginTimeout", PluginTimeout, 30 * time.Second, 30 * time.Minute},
		{"SystemdTimeout", SystemdTimeout, 1 * time.Second, 60 * time.Second},
		{"ConfigMapWriteTimeout", ConfigMapWriteTimeout, 10 * time.Second, 60 * time.Second},
		{"UploadTimeout", UploadTimeout, 1 * time.Minute, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timeout < tt.minValue {
				t.Errorf("%s (%v) is below minimum expected value (%v)", tt.name, tt.timeout, tt.minValue)
			}
			if tt.timeout > tt.maxValue {
				t.Errorf("%s (%v) exceeds maximum expected value (%v)", tt.name, tt.timeout, tt.maxValue)
			}
		})
	}
}

func TestTimeoutRelationships(t *testing.T) {
	if CommandKillGrace >= CommandTimeout {
		t.Errorf("CommandKillGrace (%v) should be less than CommandTimeout (%v)",
			CommandKillGrace, CommandTimeout)
	}
	if ProbeTimeout >= CommandTimeout {
		t.Errorf("ProbeTimeout (%v) should be less than CommandTimeout (%v)",
			ProbeTimeout, CommandTimeout)
	}
}

func TestSizeConstants(t *testing.T) {
	if JournalSizeMB < LogSizeMB {
		t.Errorf("JournalSizeMB (%d) should not be below LogSizeMB (%d)", JournalSizeMB, LogSizeMB)
	}
	if NameMax <= 0 {
		t.Errorf("NameMax must be positive, got %d", NameMax)
	}
}
