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
// Package manager orchestrates branch migrations: lock acquisition, the
// apply/rollback state machine, retry accounting, fan-out over active
// branches, and the read-only history/validation views. All failures become
// state transitions and structured Results, never errors escaping the
// public operations.
package manager

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/dialect"
	"github.com/teradata-labs/seam/pkg/observability"
	"github.com/teradata-labs/seam/pkg/provider"
	"github.com/teradata-labs/seam/pkg/registry"
	"github.com/teradata-labs/seam/pkg/state"
)

// StrategySelector resolves a provider tag to a Strategy. Swappable in
// tests to inject failing strategies.
type StrategySelector func(tag dialect.Tag, logger *zap.Logger) (provider.Strategy, error)

// Manager drives the migration lifecycle of every branch.
type Manager struct {
	registry registry.Registry
	store    state.Store
	leases   *state.LeaseManager
	catalog  *catalog.Catalog
	tracer   observability.Tracer
	logger   *zap.Logger
	selector StrategySelector
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTracer installs a tracer. Defaults to the no-op tracer.
func WithTracer(t observability.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithStrategySelector replaces the provider selector.
func WithStrategySelector(s StrategySelector) Option {
	return func(m *Manager) { m.selector = s }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New builds a Manager over a registry, a state store and a catalog.
func New(reg registry.Registry, store state.Store, cat *catalog.Catalog, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		store:    store,
		leases:   state.NewLeaseManager(store, logger),
		catalog:  cat,
		tracer:   observability.NewNoOpTracer(),
		logger:   logger,
		selector: provider.ForTagWithLogger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ApplyOne brings one branch forward to targetID (empty = head of catalog).
// Never returns an error: every failure mode is folded into the Result and
// the branch's persisted state.
func (m *Manager) ApplyOne(ctx context.Context, branchID, targetID string) Result {
	start := time.Now()
	ctx, span := m.tracer.StartSpan(ctx, "manager.apply_one",
		observability.WithSpanKind("manager"),
		observability.WithAttribute(observability.AttrBranchID, branchID),
	)
	defer m.tracer.EndSpan(span)

	res := m.applyOne(ctx, span, branchID, targetID)
	res.Duration = time.Since(start)
	if !res.Success {
		span.RecordError(errors.New(res.Error))
	}
	return res
}

func (m *Manager) applyOne(ctx context.Context, span *observability.Span, branchID, targetID string) Result {
	branch, err := m.registry.Branch(ctx, branchID)
	if err != nil {
		return Result{BranchID: branchID, Error: "branch not found"}
	}
	span.SetAttribute(observability.AttrBranchCode, branch.Code)
	span.SetAttribute(observability.AttrProvider, string(branch.Provider))

	logger := m.logger.With(
		zap.String("branch_id", branch.ID),
		zap.String("branch_code", branch.Code),
		zap.String("provider", string(branch.Provider)),
		zap.String("conn", provider.Redact(branch.ConnectionDescriptor)),
	)

	st, err := m.store.GetOrCreate(ctx, branch.ID)
	if err != nil {
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Error: err.Error()}
	}

	token, err := m.leases.Acquire(ctx, branch.ID)
	if errors.Is(err, state.ErrLockBusy) {
		logger.Info("branch migration already in progress")
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Busy: true,
			Status: st.Status, Error: "already in progress"}
	}
	if err != nil {
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Error: err.Error()}
	}
	// Release must survive caller cancellation.
	defer m.leases.Release(context.WithoutCancel(ctx), branch.ID, token)

	strat, err := m.selector(branch.Provider, m.logger)
	if err != nil {
		// Unknown provider is an operator problem, not a branch failure;
		// no retry bump.
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Status: st.Status, Error: err.Error()}
	}

	if !strat.CanConnect(ctx, branch.ConnectionDescriptor) {
		return m.recordFailure(ctx, logger, branch, st, "cannot connect to branch database")
	}

	db, err := strat.Open(branch.ConnectionDescriptor)
	if err != nil {
		return m.recordFailure(ctx, logger, branch, st, err.Error())
	}
	defer db.Close()

	if !strat.DatabaseExists(ctx, db, branch.ConnectionDescriptor) {
		if err := strat.EnsureDatabase(ctx, branch.ConnectionDescriptor); err != nil {
			return m.recordFailure(ctx, logger, branch, st, err.Error())
		}
	}

	before, err := strat.AppliedIDs(ctx, db)
	if err != nil {
		return m.recordFailure(ctx, logger, branch, st, err.Error())
	}
	if len(m.pendingUpTo(before, targetID)) == 0 {
		st.Status = state.StatusCompleted
		st.RetryCount = 0
		st.ErrorDetails = ""
		st.LastAttemptAt = m.now().UTC()
		if err := m.store.Update(ctx, st); err != nil {
			return m.recordFailure(ctx, logger, branch, st, err.Error())
		}
		logger.Debug("no pending migrations")
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Success: true,
			LastAppliedID: st.LastAppliedID, Status: state.StatusCompleted,
			Error: "no pending migrations"}
	}

	st.Status = state.StatusInProgress
	st.LastAttemptAt = m.now().UTC()
	if err := m.store.Update(ctx, st); err != nil {
		return m.recordFailure(ctx, logger, branch, st, err.Error())
	}

	if err := strat.ApplyForward(ctx, db, targetID, m.catalog); err != nil {
		return m.recordFailure(ctx, logger, branch, st, err.Error())
	}

	// Point of no return: schema changes are committed on the branch, so
	// the probe and the state write proceed even if the caller cancelled.
	commitCtx := context.WithoutCancel(ctx)

	if !strat.ValidateSchema(commitCtx, db) {
		return m.recordFailure(commitCtx, logger, branch, st, "integrity validation failed")
	}

	after, err := strat.AppliedIDs(commitCtx, db)
	if err != nil {
		return m.recordFailure(commitCtx, logger, branch, st, err.Error())
	}
	applied := newlyApplied(before, after)

	st.LastAppliedID = lastOf(after)
	st.Status = state.StatusCompleted
	st.RetryCount = 0
	st.ErrorDetails = ""
	if err := m.store.Update(commitCtx, st); err != nil {
		return m.recordFailure(commitCtx, logger, branch, st, err.Error())
	}

	m.tracer.RecordMetric("seam.migrations.applied", float64(len(applied)), map[string]string{
		"branch_code": branch.Code,
		"provider":    string(branch.Provider),
	})
	logger.Info("branch migrated",
		zap.Strings("applied", applied),
		zap.String("last_applied", st.LastAppliedID),
	)
	return Result{BranchID: branch.ID, BranchCode: branch.Code, Success: true,
		AppliedIDs: applied, LastAppliedID: st.LastAppliedID, Status: state.StatusCompleted}
}

// RollbackLast reverts the most recently applied unit on one branch. With a
// single applied unit the target is the pre-initial state.
func (m *Manager) RollbackLast(ctx context.Context, branchID string) Result {
	start := time.Now()
	ctx, span := m.tracer.StartSpan(ctx, "manager.rollback_last",
		observability.WithSpanKind("manager"),
		observability.WithAttribute(observability.AttrBranchID, branchID),
	)
	defer m.tracer.EndSpan(span)

	res := m.rollbackLast(ctx, span, branchID)
	res.Duration = time.Since(start)
	if !res.Success {
		span.RecordError(errors.New(res.Error))
	}
	return res
}

func (m *Manager) rollbackLast(ctx context.Context, span *observability.Span, branchID string) Result {
	branch, err := m.registry.Branch(ctx, branchID)
	if err != nil {
		return Result{BranchID: branchID, Error: "branch not found"}
	}
	span.SetAttribute(observability.AttrBranchCode, branch.Code)
	span.SetAttribute(observability.AttrProvider, string(branch.Provider))

	logger := m.logger.With(
		zap.String("branch_id", branch.ID),
		zap.String("branch_code", branch.Code),
		zap.String("provider", string(branch.Provider)),
		zap.String("conn", provider.Redact(branch.ConnectionDescriptor)),
	)

	st, err := m.store.GetOrCreate(ctx, branch.ID)
	if err != nil {
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Error: err.Error()}
	}

	token, err := m.leases.Acquire(ctx, branch.ID)
	if errors.Is(err, state.ErrLockBusy) {
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Busy: true,
			Status: st.Status, Error: "already in progress"}
	}
	if err != nil {
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Error: err.Error()}
	}
	defer m.leases.Release(context.WithoutCancel(ctx), branch.ID, token)

	strat, err := m.selector(branch.Provider, m.logger)
	if err != nil {
		return Result{BranchID: branch.ID, BranchCode: branch.Code, Status: st.Status, Error: err.Error()}
	}

	if !strat.CanConnect(ctx, branch.ConnectionDescriptor) {
		return m.recordFailure(ctx, logger, branch, st, "cannot connect to branch database")
	}

	db, err := strat.Open(branch.ConnectionDescriptor)
	if err != nil {
		return m.recordFailure(ctx, logger, branch, st, err.Error())
	}
	defer db.Close()

	before, err := strat.AppliedIDs(ctx, db)
	if err != nil {
		return m.recordFailure(ctx, logger, branch, st, err.Error())
	}
	if len(before) == 0 {
		// Nothing applied; not a failure, no retry bump.
		return Result{BranchID: branch.ID, BranchCode: branch.Code,
			Status: st.Status, Error: "no migrations to rollback"}
	}

	target := ""
	if len(before) > 1 {
		target = before[len(before)-2]
	}

	st.Status = state.StatusInProgress
	st.LastAttemptAt = m.now().UTC()
	if err := m.store.Update(ctx, st); err != nil {
		return m.recordFailure(ctx, logger, branch, st, err.Error())
	}

	if err := strat.ApplyReverse(ctx, db, target, m.catalog); err != nil {
		return m.recordFailure(ctx, logger, branch, st, err.Error())
	}

	commitCtx := context.WithoutCancel(ctx)

	// Rolling back the only applied unit drops the core tables, so the
	// core-set probe only holds while units remain applied.
	if target != "" && !strat.ValidateSchema(commitCtx, db) {
		return m.recordFailure(commitCtx, logger, branch, st, "integrity validation failed")
	}

	after, err := strat.AppliedIDs(commitCtx, db)
	if err != nil {
		return m.recordFailure(commitCtx, logger, branch, st, err.Error())
	}
	reverted := newlyApplied(after, before)

	st.LastAppliedID = lastOf(after)
	st.Status = state.StatusCompleted
	st.RetryCount = 0
	st.ErrorDetails = ""
	if err := m.store.Update(commitCtx, st); err != nil {
		return m.recordFailure(commitCtx, logger, branch, st, err.Error())
	}

	logger.Info("branch rolled back",
		zap.Strings("reverted", reverted),
		zap.String("last_applied", st.LastAppliedID),
	)
	return Result{BranchID: branch.ID, BranchCode: branch.Code, Success: true,
		AppliedIDs: reverted, LastAppliedID: st.LastAppliedID, Status: state.StatusCompleted}
}

// ApplyAll advances every active branch toward the head of the catalog,
// sequentially in registry order.
func (m *Manager) ApplyAll(ctx context.Context) AggregateResult {
	return m.fanOut(ctx, "manager.apply_all", func(ctx context.Context, branchID string) Result {
		return m.ApplyOne(ctx, branchID, "")
	})
}

// RollbackAll reverts the most recent unit on every active branch.
func (m *Manager) RollbackAll(ctx context.Context) AggregateResult {
	return m.fanOut(ctx, "manager.rollback_all", func(ctx context.Context, branchID string) Result {
		return m.RollbackLast(ctx, branchID)
	})
}

func (m *Manager) fanOut(ctx context.Context, spanName string, op func(context.Context, string) Result) AggregateResult {
	start := time.Now()
	ctx, span := m.tracer.StartSpan(ctx, spanName, observability.WithSpanKind("manager"))
	defer m.tracer.EndSpan(span)

	branches, err := m.registry.ActiveBranches(ctx)
	if err != nil {
		span.RecordError(err)
		return AggregateResult{Error: err.Error(), Duration: time.Since(start)}
	}

	agg := AggregateResult{}
	for _, b := range branches {
		if err := ctx.Err(); err != nil {
			agg.Error = err.Error()
			break
		}
		res := op(ctx, b.ID)
		agg.Results = append(agg.Results, res)
		switch {
		case res.Busy:
			agg.Busy++
		case res.Success:
			agg.Succeeded++
		default:
			agg.Failed++
		}
	}
	// Busy branches are retried next tick; only hard failures break the
	// aggregate.
	agg.Success = agg.Failed == 0 && agg.Error == ""
	agg.Duration = time.Since(start)
	span.SetAttribute("branches.succeeded", agg.Succeeded)
	span.SetAttribute("branches.failed", agg.Failed)
	span.SetAttribute("branches.busy", agg.Busy)
	return agg
}

// ListPending returns the units not yet applied on a branch. Read-only: no
// locks, no state mutation.
func (m *Manager) ListPending(ctx context.Context, branchID string) ([]string, error) {
	_, db, strat, err := m.openReadHandle(ctx, branchID)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return strat.PendingIDs(ctx, db, m.catalog)
}

// History returns the applied/pending split plus the persisted lifecycle
// fields. Read-only.
func (m *Manager) History(ctx context.Context, branchID string) (*HistoryInfo, error) {
	branch, db, strat, err := m.openReadHandle(ctx, branchID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	applied, err := strat.AppliedIDs(ctx, db)
	if err != nil {
		return nil, err
	}

	info := &HistoryInfo{
		BranchID:   branch.ID,
		BranchCode: branch.Code,
		Applied:    applied,
		Pending:    m.catalog.Pending(applied),
	}
	st, err := m.store.Get(ctx, branch.ID)
	if errors.Is(err, state.ErrStateNotFound) {
		return info, nil
	}
	if err != nil {
		return nil, err
	}
	info.Status = st.Status
	info.RetryCount = st.RetryCount
	info.LastAttemptAt = st.LastAttemptAt
	info.Error = st.ErrorDetails
	return info, nil
}

// Validate runs the integrity probe against a branch. Read-only.
func (m *Manager) Validate(ctx context.Context, branchID string) (bool, error) {
	_, db, strat, err := m.openReadHandle(ctx, branchID)
	if err != nil {
		return false, err
	}
	defer db.Close()
	return strat.ValidateSchema(ctx, db), nil
}

func (m *Manager) openReadHandle(ctx context.Context, branchID string) (*registry.Branch, *sql.DB, provider.Strategy, error) {
	branch, err := m.registry.Branch(ctx, branchID)
	if err != nil {
		return nil, nil, nil, err
	}
	strat, err := m.selector(branch.Provider, m.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := strat.Open(branch.ConnectionDescriptor)
	if err != nil {
		return nil, nil, nil, err
	}
	return branch, db, strat, nil
}

// recordFailure persists the failure transition: retry bump, Failed or the
// RequiresManualIntervention latch at the cap, error details. The write
// itself survives caller cancellation.
func (m *Manager) recordFailure(ctx context.Context, logger *zap.Logger, branch *registry.Branch, st *state.MigrationState, msg string) Result {
	ctx = context.WithoutCancel(ctx)

	st.RetryCount++
	if st.RetryCount > state.MaxRetries {
		st.RetryCount = state.MaxRetries
	}
	if st.RetryCount >= state.MaxRetries {
		st.Status = state.StatusRequiresManualIntervention
	} else {
		st.Status = state.StatusFailed
	}
	st.ErrorDetails = msg
	st.LastAttemptAt = m.now().UTC()

	if err := m.store.Update(ctx, st); err != nil {
		logger.Error("failed to persist failure state", zap.Error(err))
	}
	logger.Error("branch migration failed",
		zap.String("error", msg),
		zap.Int("retry_count", st.RetryCount),
		zap.String("status", st.Status.String()),
	)
	if st.Status == state.StatusRequiresManualIntervention {
		logger.Error("branch requires manual intervention; automatic retries exhausted")
	}
	return Result{BranchID: branch.ID, BranchCode: branch.Code, Status: st.Status,
		LastAppliedID: st.LastAppliedID, Error: msg}
}

// pendingUpTo trims the pending list to the ids at or below target.
func (m *Manager) pendingUpTo(applied []string, target string) []string {
	pending := m.catalog.Pending(applied)
	if target == "" {
		return pending
	}
	var trimmed []string
	for _, id := range pending {
		if id > target {
			break
		}
		trimmed = append(trimmed, id)
	}
	return trimmed
}

// newlyApplied returns after \ before, preserving order.
func newlyApplied(before, after []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, id := range before {
		seen[id] = struct{}{}
	}
	var fresh []string
	for _, id := range after {
		if _, ok := seen[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	return fresh
}

func lastOf(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}
