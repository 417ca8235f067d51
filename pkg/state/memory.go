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
)

// MemoryStore is a map-backed Store for tests and single-process dev setups.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]*MigrationState
	nextID int64
	now    func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*MigrationState), nextID: 1, now: time.Now}
}

func (s *MemoryStore) clone(st *MigrationState) *MigrationState {
	c := *st
	if st.LockExpiresAt != nil {
		t := *st.LockExpiresAt
		c.LockExpiresAt = &t
	}
	return &c
}

func (s *MemoryStore) GetOrCreate(_ context.Context, branchID string) (*MigrationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rows[branchID]; ok {
		return s.clone(st), nil
	}
	now := s.now().UTC()
	st := &MigrationState{
		ID:        s.nextID,
		BranchID:  branchID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.rows[branchID] = st
	return s.clone(st), nil
}

func (s *MemoryStore) Get(_ context.Context, branchID string) (*MigrationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rows[branchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, branchID)
	}
	return s.clone(st), nil
}

func (s *MemoryStore) Update(_ context.Context, in *MigrationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rows[in.BranchID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStateNotFound, in.BranchID)
	}
	st.LastAppliedID = in.LastAppliedID
	st.Status = in.Status
	st.LastAttemptAt = in.LastAttemptAt
	st.RetryCount = in.RetryCount
	st.ErrorDetails = in.ErrorDetails
	st.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) TryAcquireLock(_ context.Context, branchID, token string, now, expires time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rows[branchID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrStateNotFound, branchID)
	}
	if st.Locked(now) {
		return false, nil
	}
	st.LockOwnerToken = token
	e := expires
	st.LockExpiresAt = &e
	st.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, branchID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rows[branchID]
	if !ok {
		return nil
	}
	if st.LockOwnerToken != token {
		return nil
	}
	st.LockOwnerToken = ""
	st.LockExpiresAt = nil
	st.UpdatedAt = s.now().UTC()
	return nil
}
