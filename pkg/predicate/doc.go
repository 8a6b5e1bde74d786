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

// Package predicate implements the boolean gates that decide whether a
// plugin collects an item.
//
// A Predicate holds kernel modules and services. It is true when any listed
// module is loaded or any listed service is running, and always false in
// dry-run mode. A Predicate with neither list is true unless dry-run is set,
// and a nil *Predicate is always true.
//
//	ev := predicate.NewEvaluator(hostPolicy, cfg.DryRun)
//	p := ev.New(predicate.WithKernelModules("nvme"), predicate.WithServices("nvmefc-boot-connections"))
//	if p.Evaluate(ctx) {
//	    // collect
//	}
//
// Results are never cached: every call to Evaluate queries the Checker.
package predicate
