// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package manager

import (
	"time"

	"github.com/teradata-labs/seam/pkg/state"
)

// Result is the structured outcome of one branch operation. Failures are
// carried here, never as panics or raw errors crossing the boundary.
type Result struct {
	BranchID   string
	BranchCode string
	Success    bool
	// Busy marks lock contention: the branch was skipped without any
	// state mutation and will be retried on the next reconciler tick.
	Busy bool
	// AppliedIDs lists the units this call applied (or reverted).
	AppliedIDs    []string
	LastAppliedID string
	Status        state.Status
	Error         string
	Duration      time.Duration
}

// AggregateResult accumulates a fan-out over active branches. Busy branches
// are reported but do not fail the aggregate; they are retried next tick.
type AggregateResult struct {
	Results   []Result
	Succeeded int
	Failed    int
	Busy      int
	Success   bool
	Error     string
	Duration  time.Duration
}

// HistoryInfo is the read-only view returned by History.
type HistoryInfo struct {
	BranchID      string
	BranchCode    string
	Applied       []string
	Pending       []string
	Status        state.Status
	RetryCount    int
	LastAttemptAt time.Time
	Error         string
}
