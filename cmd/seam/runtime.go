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
package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/teradata-labs/seam/internal/log"
	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/manager"
	"github.com/teradata-labs/seam/pkg/registry"
	"github.com/teradata-labs/seam/pkg/state"
)

// runtime bundles the wired control plane for one command invocation.
type runtime struct {
	logger   *zap.Logger
	store    state.Store
	registry registry.Registry
	manager  *manager.Manager
	close    func()
}

// buildRuntime opens the head-office store, wires the registry reader on the
// same backend, and constructs the manager over the default catalog.
func buildRuntime(ctx context.Context, cfg *Config) (*runtime, error) {
	logger, err := log.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log.SetLogger(logger)

	var (
		store  state.Store
		reg    registry.Registry
		closer func()
	)
	switch cfg.Store.Backend {
	case "sqlite":
		st, err := state.NewSQLite(ctx, cfg.Store.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open head-office store: %w", err)
		}
		sqlReg := registry.NewSQL(st.DB())
		if err := sqlReg.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, err
		}
		store, reg, closer = st, sqlReg, func() { st.Close() }

	case "postgres":
		st, err := state.NewPgx(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open head-office store: %w", err)
		}
		pgxReg := registry.NewPgx(st.Pool())
		if err := pgxReg.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, err
		}
		store, reg, closer = st, pgxReg, st.Close

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return &runtime{
		logger:   logger,
		store:    store,
		registry: reg,
		manager:  manager.New(reg, store, catalog.Default(), logger),
		close:    closer,
	}, nil
}
