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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "in_progress", StatusInProgress.String())
	assert.Equal(t, "completed", StatusCompleted.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "requires_manual_intervention", StatusRequiresManualIntervention.String())
	assert.Equal(t, "unknown", Status(99).String())
}

func TestMemoryStore_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Get(ctx, "b1")
	assert.ErrorIs(t, err, ErrStateNotFound)

	st, err := s.GetOrCreate(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", st.BranchID)
	assert.Equal(t, StatusPending, st.Status)
	assert.Empty(t, st.LastAppliedID)
	assert.Zero(t, st.RetryCount)

	// Second call returns the same row, not a new one.
	again, err := s.GetOrCreate(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, st.ID, again.ID)
}

func openSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLiteStore(t)

	st, err := s.GetOrCreate(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st.Status)
	assert.Nil(t, st.LockExpiresAt)
	assert.False(t, st.CreatedAt.IsZero())

	st.LastAppliedID = "20240112090000_initial_schema"
	st.Status = StatusCompleted
	st.LastAttemptAt = time.Now().UTC().Truncate(time.Second)
	st.RetryCount = 0
	st.ErrorDetails = ""
	require.NoError(t, s.Update(ctx, st))

	got, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "20240112090000_initial_schema", got.LastAppliedID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, st.LastAttemptAt.Unix(), got.LastAttemptAt.Unix())
	assert.Empty(t, got.ErrorDetails)

	// Failure details round-trip.
	got.Status = StatusFailed
	got.RetryCount = 2
	got.ErrorDetails = "dial tcp: connection refused"
	require.NoError(t, s.Update(ctx, got))
	got, err = s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "dial tcp: connection refused", got.ErrorDetails)

	// Updating a missing branch surfaces ErrStateNotFound.
	missing := &MigrationState{BranchID: "ghost"}
	assert.ErrorIs(t, s.Update(ctx, missing), ErrStateNotFound)
}

func TestSQLiteStore_LockCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := openSQLiteStore(t)
	now := time.Now().UTC()

	_, err := s.GetOrCreate(ctx, "b1")
	require.NoError(t, err)

	ok, err := s.TryAcquireLock(ctx, "b1", "tok-a", now, now.Add(LeaseDuration))
	require.NoError(t, err)
	assert.True(t, ok)

	// Held lease rejects a second claimant.
	ok, err = s.TryAcquireLock(ctx, "b1", "tok-b", now, now.Add(LeaseDuration))
	require.NoError(t, err)
	assert.False(t, ok)

	// Releasing with the wrong token is a no-op; the lease stays held.
	require.NoError(t, s.ReleaseLock(ctx, "b1", "tok-b"))
	ok, err = s.TryAcquireLock(ctx, "b1", "tok-b", now, now.Add(LeaseDuration))
	require.NoError(t, err)
	assert.False(t, ok)

	// Owner release clears both lease columns.
	require.NoError(t, s.ReleaseLock(ctx, "b1", "tok-a"))
	st, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, st.LockOwnerToken)
	assert.Nil(t, st.LockExpiresAt)

	ok, err = s.TryAcquireLock(ctx, "b1", "tok-b", now, now.Add(LeaseDuration))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStore_ExpiredLeaseReclaim(t *testing.T) {
	ctx := context.Background()
	s := openSQLiteStore(t)
	now := time.Now().UTC()

	_, err := s.GetOrCreate(ctx, "b1")
	require.NoError(t, err)

	ok, err := s.TryAcquireLock(ctx, "b1", "crashed", now, now.Add(LeaseDuration))
	require.NoError(t, err)
	require.True(t, ok)

	// Within the TTL the lease holds.
	ok, err = s.TryAcquireLock(ctx, "b1", "tok-b", now.Add(LeaseDuration-time.Minute), now.Add(2*LeaseDuration))
	require.NoError(t, err)
	assert.False(t, ok)

	// After expiry the compare-and-set steals the row.
	later := now.Add(LeaseDuration + time.Minute)
	ok, err = s.TryAcquireLock(ctx, "b1", "tok-b", later, later.Add(LeaseDuration))
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-b", st.LockOwnerToken)
}

func TestLeaseManager_Contention(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_, err := store.GetOrCreate(ctx, "b1")
	require.NoError(t, err)

	m := NewLeaseManager(store, zap.NewNop())

	token, err := m.Acquire(ctx, "b1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Second claim in the same process fails fast.
	_, err = m.Acquire(ctx, "b1")
	assert.ErrorIs(t, err, ErrLockBusy)

	// A second process (fresh manager, shared store) is blocked by the
	// store lease.
	other := NewLeaseManager(store, zap.NewNop())
	_, err = other.Acquire(ctx, "b1")
	assert.ErrorIs(t, err, ErrLockBusy)

	// Distinct branches do not contend.
	_, err = store.GetOrCreate(ctx, "b2")
	require.NoError(t, err)
	tok2, err := m.Acquire(ctx, "b2")
	require.NoError(t, err)
	m.Release(ctx, "b2", tok2)

	m.Release(ctx, "b1", token)
	token2, err := m.Acquire(ctx, "b1")
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
	m.Release(ctx, "b1", token2)
}

func TestLeaseManager_ExpiredLeaseRecovery(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_, err := store.GetOrCreate(ctx, "b1")
	require.NoError(t, err)

	// First process acquires and then dies without releasing.
	crashed := NewLeaseManager(store, zap.NewNop())
	_, err = crashed.Acquire(ctx, "b1")
	require.NoError(t, err)

	// A replacement process inside the TTL sees a busy lease.
	replacement := NewLeaseManager(store, zap.NewNop())
	_, err = replacement.Acquire(ctx, "b1")
	assert.ErrorIs(t, err, ErrLockBusy)

	// Past the TTL the replacement reclaims the branch.
	replacement.now = func() time.Time { return time.Now().Add(LeaseDuration + time.Minute) }
	token, err := replacement.Acquire(ctx, "b1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, token, st.LockOwnerToken)
	replacement.Release(ctx, "b1", token)
}
