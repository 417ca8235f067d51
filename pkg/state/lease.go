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
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LeaseManager arbitrates the two-layer branch lease: a per-branch
// in-process mutex (fast intra-process fail) in front of the store's
// row-level compare-and-set lease (cross-process exclusion with a TTL).
//
// Acquire and Release must be paired within one call; the manager holds the
// process mutex for the whole span so a second goroutine fails fast without
// a store round trip.
type LeaseManager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	branches map[string]*sync.Mutex
}

// NewLeaseManager returns a lease manager over the given store.
func NewLeaseManager(store Store, logger *zap.Logger) *LeaseManager {
	return &LeaseManager{
		store:    store,
		logger:   logger,
		now:      time.Now,
		branches: make(map[string]*sync.Mutex),
	}
}

func (m *LeaseManager) branchMutex(branchID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	bm, ok := m.branches[branchID]
	if !ok {
		bm = &sync.Mutex{}
		m.branches[branchID] = bm
	}
	return bm
}

// Acquire claims the branch lease and returns the owner token. Contention,
// whether in-process or in the store, yields ErrLockBusy without blocking. An
// expired lease left by a crashed holder is reclaimed by the store's
// compare-and-set.
func (m *LeaseManager) Acquire(ctx context.Context, branchID string) (string, error) {
	bm := m.branchMutex(branchID)
	if !bm.TryLock() {
		return "", fmt.Errorf("%w: %s held in process", ErrLockBusy, branchID)
	}

	token := uuid.NewString()
	now := m.now().UTC()
	ok, err := m.store.TryAcquireLock(ctx, branchID, token, now, now.Add(LeaseDuration))
	if err != nil {
		bm.Unlock()
		return "", err
	}
	if !ok {
		bm.Unlock()
		return "", fmt.Errorf("%w: %s leased in store", ErrLockBusy, branchID)
	}

	m.logger.Debug("acquired branch lease",
		zap.String("branch_id", branchID),
		zap.String("token", token),
		zap.Time("expires_at", now.Add(LeaseDuration)),
	)
	return token, nil
}

// Release clears the lease unconditionally. Store failures are logged, not
// returned: the lease expires on its own and the process mutex must be
// freed regardless.
func (m *LeaseManager) Release(ctx context.Context, branchID, token string) {
	if err := m.store.ReleaseLock(ctx, branchID, token); err != nil {
		m.logger.Warn("failed to release branch lease; lease will expire",
			zap.String("branch_id", branchID),
			zap.Error(err),
		)
	}
	m.branchMutex(branchID).Unlock()
}
