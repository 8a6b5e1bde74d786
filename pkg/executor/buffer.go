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

package executor

import "sync"

// tailBuffer keeps the most recent limit bytes written to it. A zero limit
// keeps everything. Stdout and stderr may share one buffer, so writes are
// serialized.
type tailBuffer struct {
	mu        sync.Mutex
	limit     int64
	buf       []byte
	truncated bool
}

func newTailBuffer(limit int64) *tailBuffer {
	if limit < 0 {
		limit = 0
	}
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if b.limit == 0 {
		b.buf = append(b.buf, p...)
		return n, nil
	}

	if int64(len(p)) >= b.limit {
		b.truncated = b.truncated || int64(len(p)) > b.limit || len(b.buf) > 0
		b.buf = append(b.buf[:0], p[int64(len(p))-b.limit:]...)
		return n, nil
	}

	b.buf = append(b.buf, p...)
	if over := int64(len(b.buf)) - b.limit; over > 0 {
		b.truncated = true
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}

func (b *tailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
