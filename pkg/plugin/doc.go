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

// Package plugin is the per-plugin collection engine.
//
// A plugin Definition declares what to gather from the host during Setup:
// copy specs (globs of files), command outputs, journal queries and free
// text. Collect then performs the work in a fixed order, copying paths,
// running commands and writing strings, and Postproc scrubs the archived
// copies.
//
// # Lifecycle
//
//	p, err := plugin.New(def, cfg, plugin.Deps{Archive: a, Policy: pol, Runner: r})
//	if !p.CheckEnabled(ctx) { return }
//	_ = p.Setup(ctx)
//	_ = p.Collect(ctx)
//	_ = p.Postproc(ctx)
//
// Phases must be called in order; an out of order call returns an
// INVALID_REQUEST error.
//
// # Gating
//
// Every queued item is gated by a predicate.Predicate evaluated at queue
// time. The command predicate set with SetCmdPredicate takes precedence
// for commands and journals.
//
// # Limits
//
// Copy specs are limited to the configured log size, newest files first;
// the file that crosses the limit is tailed into the strings directory
// and linked from its original location. Command output keeps its last
// SizeLimit bytes. The supervisor stops a plugin by setting its
// TimeoutFlag, which is checked before each unit of work.
package plugin
