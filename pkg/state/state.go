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
// Package state persists per-branch migration lifecycle rows in the
// head-office store and arbitrates the two-layer branch lease (in-process
// mutex plus a row-level lease with a wall-clock expiry).
package state

import (
	"context"
	"errors"
	"time"
)

// MaxRetries bounds retry_count. Reaching it latches the row to
// RequiresManualIntervention until an operator resets it.
const MaxRetries = 3

// LeaseDuration is the row-lease TTL. A crashed holder's lease becomes
// reclaimable after this long.
const LeaseDuration = 10 * time.Minute

// Status is the lifecycle state of a branch's migration row. The numeric
// values are persisted and part of the head-office contract.
type Status int

const (
	StatusPending    Status = 0
	StatusInProgress Status = 1
	StatusCompleted  Status = 2
	StatusFailed     Status = 3
	// StatusRequiresManualIntervention is the escalation latch: the retry
	// budget is exhausted and an operator must reset the row.
	StatusRequiresManualIntervention Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusRequiresManualIntervention:
		return "requires_manual_intervention"
	default:
		return "unknown"
	}
}

// MigrationState is one branch's lifecycle row. Rows are created lazily on
// first interaction and never deleted during normal operation.
//
// LockOwnerToken and LockExpiresAt are set and cleared together: a non-empty
// token always carries a non-nil expiry.
type MigrationState struct {
	ID              int64
	BranchID        string
	LastAppliedID   string
	Status          Status
	LastAttemptAt   time.Time
	RetryCount      int
	ErrorDetails    string
	LockOwnerToken  string
	LockExpiresAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Locked reports whether the row carries an unexpired lease at now.
func (s *MigrationState) Locked(now time.Time) bool {
	return s.LockOwnerToken != "" && s.LockExpiresAt != nil && s.LockExpiresAt.After(now)
}

// ErrStateNotFound is returned by Get for branches with no row yet.
var ErrStateNotFound = errors.New("migration state not found")

// ErrLockBusy is returned when a branch lease is held by someone else.
var ErrLockBusy = errors.New("branch lock busy")

// Store persists migration state rows. Implementations must make
// TryAcquireLock an atomic compare-and-set against the stored lease.
type Store interface {
	// GetOrCreate returns the branch's row, creating a fresh Pending row
	// if none exists.
	GetOrCreate(ctx context.Context, branchID string) (*MigrationState, error)

	// Get returns the branch's row or ErrStateNotFound.
	Get(ctx context.Context, branchID string) (*MigrationState, error)

	// Update persists the row's mutable fields (last applied id, status,
	// attempt time, retry count, error details) and bumps updated_at.
	// Lease columns are owned by the lock operations and left untouched.
	Update(ctx context.Context, st *MigrationState) error

	// TryAcquireLock installs (token, expires) on the branch row iff the
	// stored lease is absent or expired at now. Returns false on
	// contention. The row must already exist.
	TryAcquireLock(ctx context.Context, branchID, token string, now, expires time.Time) (bool, error)

	// ReleaseLock clears the lease iff the stored token matches. Clearing
	// an already-clear or foreign lease is a no-op, not an error.
	ReleaseLock(ctx context.Context, branchID, token string) error
}
