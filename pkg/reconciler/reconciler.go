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
// Package reconciler runs the background loop that periodically advances
// every active branch toward the head of the catalog.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/seam/pkg/manager"
	"github.com/teradata-labs/seam/pkg/observability"
)

// DefaultCronSpec ticks every five minutes.
const DefaultCronSpec = "@every 5m"

// DefaultStartupDelay gives the host process time to finish initializing
// before the first sweep.
const DefaultStartupDelay = 30 * time.Second

// Applier is the slice of the Manager the reconciler drives.
type Applier interface {
	ApplyAll(ctx context.Context) manager.AggregateResult
}

// Reconciler owns the cron engine and the sweep goroutine. Shutdown is
// cooperative: Stop lets an in-flight sweep finish before returning.
type Reconciler struct {
	applier      Applier
	logger       *zap.Logger
	tracer       observability.Tracer
	cronSpec     string
	startupDelay time.Duration

	cronEngine *cron.Cron
	cancel     context.CancelFunc
	done       chan struct{}

	mu      sync.Mutex
	running bool
	// sweeping serializes sweeps so a slow pass is never overlapped by the
	// next tick.
	sweeping sync.Mutex
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCronSpec overrides the tick schedule. Accepts any robfig/cron spec,
// including @every durations.
func WithCronSpec(spec string) Option {
	return func(r *Reconciler) { r.cronSpec = spec }
}

// WithStartupDelay overrides the initial delay before the first sweep.
func WithStartupDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.startupDelay = d }
}

// WithTracer installs a tracer. Defaults to the no-op tracer.
func WithTracer(t observability.Tracer) Option {
	return func(r *Reconciler) { r.tracer = t }
}

// New builds a Reconciler over an Applier.
func New(applier Applier, logger *zap.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		applier:      applier,
		logger:       logger,
		tracer:       observability.NewNoOpTracer(),
		cronSpec:     DefaultCronSpec,
		startupDelay: DefaultStartupDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the loop: one sweep after the startup delay, then sweeps on
// the cron schedule. Returns immediately; errors only on a bad cron spec or
// a double start.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("reconciler already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine := cron.New()
	if _, err := engine.AddFunc(r.cronSpec, func() { r.sweep(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to add reconcile schedule %q: %w", r.cronSpec, err)
	}

	r.cronEngine = engine
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go func() {
		defer close(r.done)
		select {
		case <-time.After(r.startupDelay):
		case <-ctx.Done():
			return
		}
		r.sweep(ctx)
		r.cronEngine.Start()
		<-ctx.Done()
	}()

	r.logger.Info("reconciler started",
		zap.String("schedule", r.cronSpec),
		zap.Duration("startup_delay", r.startupDelay),
	)
	return nil
}

// Stop cancels the loop and blocks until the goroutine and any in-flight
// sweep have finished.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, engine, done := r.cancel, r.cronEngine, r.done
	r.mu.Unlock()

	cancel()
	<-done
	// Wait for cron-dispatched sweeps to drain.
	<-engine.Stop().Done()
	r.logger.Info("reconciler stopped")
}

// sweep runs one apply_all pass and logs the aggregate.
func (r *Reconciler) sweep(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	r.sweeping.Lock()
	defer r.sweeping.Unlock()

	ctx, span := r.tracer.StartSpan(ctx, "reconciler.sweep",
		observability.WithSpanKind("reconciler"))
	defer r.tracer.EndSpan(span)

	agg := r.applier.ApplyAll(ctx)
	fields := []zap.Field{
		zap.Int("succeeded", agg.Succeeded),
		zap.Int("failed", agg.Failed),
		zap.Int("busy", agg.Busy),
		zap.Duration("duration", agg.Duration),
	}
	if agg.Error != "" {
		fields = append(fields, zap.String("error", agg.Error))
	}
	if agg.Success {
		r.logger.Info("reconcile sweep completed", fields...)
	} else {
		r.logger.Warn("reconcile sweep had failures", fields...)
	}
	r.tracer.RecordMetric("seam.reconcile.sweeps", 1, map[string]string{
		"success": fmt.Sprintf("%t", agg.Success),
	})
}
