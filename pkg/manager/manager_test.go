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
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/dialect"
	"github.com/teradata-labs/seam/pkg/provider"
	"github.com/teradata-labs/seam/pkg/registry"
	"github.com/teradata-labs/seam/pkg/state"
)

// fakeStrategy is a controllable in-memory Strategy for exercising the
// manager's state machine without a real database.
type fakeStrategy struct {
	mu         sync.Mutex
	tag        dialect.Tag
	applied    []string
	connectOK  bool
	validateOK bool
	forwardErr error
	reverseErr error
	// blockForward, when non-nil, parks ApplyForward until closed.
	blockForward chan struct{}
	forwardCalls int
}

func newFakeStrategy() *fakeStrategy {
	return &fakeStrategy{tag: dialect.SQLite, connectOK: true, validateOK: true}
}

func (f *fakeStrategy) Tag() dialect.Tag { return f.tag }

func (f *fakeStrategy) Open(string) (*sql.DB, error) {
	// A throwaway handle; the fake never touches it.
	return sql.Open("sqlite3", ":memory:")
}

func (f *fakeStrategy) CanConnect(context.Context, string) bool { return f.connectOK }

func (f *fakeStrategy) DatabaseExists(context.Context, *sql.DB, string) bool { return true }

func (f *fakeStrategy) EnsureDatabase(context.Context, string) error { return nil }

func (f *fakeStrategy) AppliedIDs(context.Context, *sql.DB) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.applied...), nil
}

func (f *fakeStrategy) PendingIDs(_ context.Context, _ *sql.DB, cat *catalog.Catalog) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cat.Pending(f.applied), nil
}

func (f *fakeStrategy) ApplyForward(ctx context.Context, _ *sql.DB, target string, cat *catalog.Catalog) error {
	f.mu.Lock()
	f.forwardCalls++
	block := f.blockForward
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.forwardErr != nil {
		return f.forwardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range cat.Pending(f.applied) {
		if target != "" && id > target {
			break
		}
		f.applied = append(f.applied, id)
	}
	return nil
}

func (f *fakeStrategy) ApplyReverse(_ context.Context, _ *sql.DB, target string, _ *catalog.Catalog) error {
	if f.reverseErr != nil {
		return f.reverseErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.applied) > 0 && f.applied[len(f.applied)-1] != target {
		f.applied = f.applied[:len(f.applied)-1]
	}
	return nil
}

func (f *fakeStrategy) ValidateSchema(context.Context, *sql.DB) bool { return f.validateOK }

func (f *fakeStrategy) QuoteIdent(name string) string { return `"` + name + `"` }

func fakeSelector(f *fakeStrategy) StrategySelector {
	return func(dialect.Tag, *zap.Logger) (provider.Strategy, error) {
		return f, nil
	}
}

func testRegistry(branches ...registry.Branch) *registry.MemoryRegistry {
	r := registry.NewMemory()
	for _, b := range branches {
		r.Put(b)
	}
	return r
}

func sqliteBranch(t *testing.T, id, code string) registry.Branch {
	t.Helper()
	return registry.Branch{
		ID: id, Code: code, DisplayName: code, Active: true,
		Provider:             dialect.SQLite,
		ConnectionDescriptor: "file:" + filepath.Join(t.TempDir(), id+".db"),
	}
}

func TestApplyOne_FreshBranchToHead(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, cat, zap.NewNop())

	res := m.ApplyOne(ctx, "b1", "")
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, cat.AllIDs(), res.AppliedIDs)
	assert.Equal(t, cat.Head(), res.LastAppliedID)
	assert.Equal(t, state.StatusCompleted, res.Status)

	// State row was created lazily and committed.
	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, st.Status)
	assert.Equal(t, cat.Head(), st.LastAppliedID)
	assert.Zero(t, st.RetryCount)
	assert.Empty(t, st.ErrorDetails)
	assert.Empty(t, st.LockOwnerToken)
	assert.Nil(t, st.LockExpiresAt)

	// Second call with nothing new: success, zero applied, no retry bump.
	res = m.ApplyOne(ctx, "b1", "")
	require.True(t, res.Success)
	assert.Empty(t, res.AppliedIDs)
	assert.Equal(t, "no pending migrations", res.Error)
	st, err = store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Zero(t, st.RetryCount)
}

func TestApplyOne_BranchNotFound(t *testing.T) {
	m := New(testRegistry(), state.NewMemory(), catalog.Default(), zap.NewNop())

	res := m.ApplyOne(context.Background(), "ghost", "")
	assert.False(t, res.Success)
	assert.Equal(t, "branch not found", res.Error)

	// No state row materialized.
	_, err := state.NewMemory().Get(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestApplyOne_UnknownProviderLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	reg := testRegistry(registry.Branch{
		ID: "b1", Code: "BR-001", Active: true,
		Provider: dialect.Tag("oracle"), ConnectionDescriptor: "oracle://x",
	})
	m := New(reg, store, catalog.Default(), zap.NewNop())

	res := m.ApplyOne(ctx, "b1", "")
	assert.False(t, res.Success)

	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusPending, st.Status)
	assert.Zero(t, st.RetryCount)
}

func TestApplyOne_TargetPinning(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, state.NewMemory(), cat, zap.NewNop())

	res := m.ApplyOne(ctx, "b1", catalog.CustomerEmailID)
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, []string{catalog.InitialSchemaID, catalog.CustomerEmailID}, res.AppliedIDs)
	assert.Equal(t, catalog.CustomerEmailID, res.LastAppliedID)

	// Re-pinning the same target applies nothing.
	res = m.ApplyOne(ctx, "b1", catalog.CustomerEmailID)
	require.True(t, res.Success)
	assert.Empty(t, res.AppliedIDs)

	// Continuing to head picks up the remainder.
	res = m.ApplyOne(ctx, "b1", "")
	require.True(t, res.Success)
	assert.Equal(t, cat.Head(), res.LastAppliedID)
}

func TestApplyOne_ConcurrentCallsContend(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStrategy()
	fake.blockForward = make(chan struct{})
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, catalog.Default(), zap.NewNop(), WithStrategySelector(fakeSelector(fake)))

	firstDone := make(chan Result, 1)
	go func() { firstDone <- m.ApplyOne(ctx, "b1", "") }()

	// Wait until the first call is inside ApplyForward and owns the lease.
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.forwardCalls == 1
	}, 2*time.Second, 5*time.Millisecond)

	second := m.ApplyOne(ctx, "b1", "")
	assert.False(t, second.Success)
	assert.True(t, second.Busy)
	assert.Contains(t, second.Error, "already in progress")

	close(fake.blockForward)
	first := <-firstDone
	assert.True(t, first.Success)

	// Contention must not bump the retry counter.
	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Zero(t, st.RetryCount)
}

func TestApplyOne_ThreeFailuresEscalate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStrategy()
	fake.forwardErr = errors.New("DDL failure: table is locked")
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, catalog.Default(), zap.NewNop(), WithStrategySelector(fakeSelector(fake)))

	expected := []struct {
		status state.Status
		retry  int
	}{
		{state.StatusFailed, 1},
		{state.StatusFailed, 2},
		{state.StatusRequiresManualIntervention, 3},
	}
	for i, want := range expected {
		res := m.ApplyOne(ctx, "b1", "")
		assert.False(t, res.Success, "call %d", i+1)
		assert.Equal(t, want.status, res.Status, "call %d", i+1)

		st, err := store.Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, want.status, st.Status, "call %d", i+1)
		assert.Equal(t, want.retry, st.RetryCount, "call %d", i+1)
		assert.Contains(t, st.ErrorDetails, "DDL failure")
		// The lock is released after every attempt.
		assert.Empty(t, st.LockOwnerToken, "call %d", i+1)
	}

	// Retry count stays clamped at the cap on further attempts.
	res := m.ApplyOne(ctx, "b1", "")
	assert.False(t, res.Success)
	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.MaxRetries, st.RetryCount)

	// Recovery after the fault clears resets the row.
	fake.forwardErr = nil
	res = m.ApplyOne(ctx, "b1", "")
	require.True(t, res.Success)
	st, err = store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, st.Status)
	assert.Zero(t, st.RetryCount)
	assert.Empty(t, st.ErrorDetails)
}

func TestApplyOne_IntegrityFailure(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStrategy()
	fake.validateOK = false
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, catalog.Default(), zap.NewNop(), WithStrategySelector(fakeSelector(fake)))

	res := m.ApplyOne(ctx, "b1", "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "integrity validation failed")

	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, st.Status)
	assert.Equal(t, 1, st.RetryCount)
}

func TestApplyOne_CannotConnect(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStrategy()
	fake.connectOK = false
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, catalog.Default(), zap.NewNop(), WithStrategySelector(fakeSelector(fake)))

	res := m.ApplyOne(ctx, "b1", "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "cannot connect")

	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, st.Status)
	assert.Equal(t, 1, st.RetryCount)
}

func TestApplyOne_ExpiredLeaseIsReclaimed(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, catalog.Default(), zap.NewNop())

	// A crashed process left a stale lease behind.
	_, err := store.GetOrCreate(ctx, "b1")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	ok, err := store.TryAcquireLock(ctx, "b1", "crashed-token", past, past.Add(state.LeaseDuration))
	require.NoError(t, err)
	require.True(t, ok)

	res := m.ApplyOne(ctx, "b1", "")
	require.True(t, res.Success, "error: %s", res.Error)

	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, st.LockOwnerToken)
	assert.Equal(t, state.StatusCompleted, st.Status)
}

func TestRollbackLast(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, cat, zap.NewNop())

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	// Each rollback removes exactly one unit.
	ids := cat.AllIDs()
	for i := len(ids) - 1; i >= 1; i-- {
		res := m.RollbackLast(ctx, "b1")
		require.True(t, res.Success, "error: %s", res.Error)
		assert.Equal(t, []string{ids[i]}, res.AppliedIDs)
		assert.Equal(t, ids[i-1], res.LastAppliedID)
	}

	// Only the initial unit left: the target is the pre-initial state.
	res := m.RollbackLast(ctx, "b1")
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, "", res.LastAppliedID)
	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "", st.LastAppliedID)
	assert.Equal(t, state.StatusCompleted, st.Status)

	// Nothing left to roll back; no retry bump.
	res = m.RollbackLast(ctx, "b1")
	assert.False(t, res.Success)
	assert.Equal(t, "no migrations to rollback", res.Error)
	st, err = store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Zero(t, st.RetryCount)
}

func TestRollbackLast_OnlyAppliedUnit(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, catalog.Default(), zap.NewNop())

	up := m.ApplyOne(ctx, "b1", catalog.InitialSchemaID)
	require.True(t, up.Success, "error: %s", up.Error)
	require.Equal(t, catalog.InitialSchemaID, up.LastAppliedID)

	// Reverting the sole unit drops the core tables; this is a clean return
	// to the pre-initial state, not an integrity failure.
	res := m.RollbackLast(ctx, "b1")
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, []string{catalog.InitialSchemaID}, res.AppliedIDs)
	assert.Equal(t, "", res.LastAppliedID)

	st, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, st.Status)
	assert.Equal(t, "", st.LastAppliedID)
	assert.Zero(t, st.RetryCount)
	assert.Empty(t, st.ErrorDetails)
}

func TestApplyAll(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	store := state.NewMemory()
	inactive := sqliteBranch(t, "b3", "BR-003")
	inactive.Active = false
	reg := testRegistry(
		sqliteBranch(t, "b1", "BR-001"),
		sqliteBranch(t, "b2", "BR-002"),
		inactive,
	)
	m := New(reg, store, cat, zap.NewNop())

	agg := m.ApplyAll(ctx)
	assert.True(t, agg.Success)
	assert.Equal(t, 2, agg.Succeeded)
	assert.Zero(t, agg.Failed)
	assert.Zero(t, agg.Busy)
	require.Len(t, agg.Results, 2)
	// Deterministic order by branch code.
	assert.Equal(t, "BR-001", agg.Results[0].BranchCode)
	assert.Equal(t, "BR-002", agg.Results[1].BranchCode)

	// Inactive branches are never touched.
	_, err := store.Get(ctx, "b3")
	assert.ErrorIs(t, err, state.ErrStateNotFound)
}

func TestApplyAll_FailureBreaksAggregate(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	good := sqliteBranch(t, "b1", "BR-001")
	bad := registry.Branch{
		ID: "b2", Code: "BR-002", Active: true,
		Provider:             dialect.Postgres,
		ConnectionDescriptor: "postgres://pos:x@127.0.0.1:1/absent?connect_timeout=1&sslmode=disable",
	}
	reg := testRegistry(good, bad)
	m := New(reg, store, catalog.Default(), zap.NewNop())

	agg := m.ApplyAll(ctx)
	assert.False(t, agg.Success)
	assert.Equal(t, 1, agg.Succeeded)
	assert.Equal(t, 1, agg.Failed)
}

func TestReadOnlyViews(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"))
	m := New(reg, store, cat, zap.NewNop())

	// Before any apply: everything pending, validation fails.
	pending, err := m.ListPending(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, cat.AllIDs(), pending)
	ok, err := m.Validate(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	pending, err = m.ListPending(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	ok, err = m.Validate(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := m.History(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, cat.AllIDs(), info.Applied)
	assert.Empty(t, info.Pending)
	assert.Equal(t, state.StatusCompleted, info.Status)
	assert.Zero(t, info.RetryCount)
	assert.Empty(t, info.Error)

	_, err = m.History(ctx, "ghost")
	assert.ErrorIs(t, err, registry.ErrBranchNotFound)
}

func TestRollbackAll(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	store := state.NewMemory()
	reg := testRegistry(sqliteBranch(t, "b1", "BR-001"), sqliteBranch(t, "b2", "BR-002"))
	m := New(reg, store, cat, zap.NewNop())

	require.True(t, m.ApplyAll(ctx).Success)

	agg := m.RollbackAll(ctx)
	assert.True(t, agg.Success)
	require.Len(t, agg.Results, 2)
	head := cat.AllIDs()
	for _, res := range agg.Results {
		assert.Equal(t, []string{head[len(head)-1]}, res.AppliedIDs)
		assert.Equal(t, head[len(head)-2], res.LastAppliedID)
	}
}
