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
	"context"

	"github.com/NVIDIA/diagpack/pkg/predicate"
)

// NewPredicate builds a predicate bound to the run's checker and dry-run
// flag.
func (p *Plugin) NewPredicate(opts ...predicate.Option) *predicate.Predicate {
	return p.eval.New(opts...)
}

// SetPredicate sets the default predicate for all collection.
func (p *Plugin) SetPredicate(pred *predicate.Predicate) {
	p.pred = pred
}

// SetCmdPredicate sets the predicate for command and journal collection.
// It takes precedence over the default predicate for those.
func (p *Plugin) SetCmdPredicate(pred *predicate.Predicate) {
	p.cmdPred = pred
}

// Predicate selects the predicate that gates a collection: override when
// given, the command predicate for commands when set, else the default.
func (p *Plugin) Predicate(cmd bool, override *predicate.Predicate) *predicate.Predicate {
	if override != nil {
		return override
	}
	if cmd && p.cmdPred != nil {
		return p.cmdPred
	}
	return p.pred
}

// TestPredicate evaluates the selected predicate. A missing predicate
// tests false.
func (p *Plugin) TestPredicate(ctx context.Context, cmd bool, override *predicate.Predicate) bool {
	pred := p.Predicate(cmd, override)
	if pred == nil {
		return false
	}
	return pred.Evaluate(ctx)
}
