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
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/seam/pkg/dialect"
)

// PgxRegistry reads branch records from the postgres head-office store.
type PgxRegistry struct {
	pool *pgxpool.Pool
}

// NewPgx wraps a head-office pool.
func NewPgx(pool *pgxpool.Pool) *PgxRegistry {
	return &PgxRegistry{pool: pool}
}

// EnsureSchema creates the branches table if absent.
func (r *PgxRegistry) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS branches (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			provider TEXT NOT NULL,
			connection_descriptor TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure branches table: %w", err)
	}
	return nil
}

func (r *PgxRegistry) Branch(ctx context.Context, id string) (*Branch, error) {
	var b Branch
	var provider string
	err := r.pool.QueryRow(ctx,
		"SELECT id, code, display_name, active, provider, connection_descriptor FROM branches WHERE id = $1",
		id,
	).Scan(&b.ID, &b.Code, &b.DisplayName, &b.Active, &provider, &b.ConnectionDescriptor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read branch: %w", err)
	}
	tag, err := dialect.ParseTag(provider)
	if err != nil {
		return nil, fmt.Errorf("branch %s: %w", b.ID, err)
	}
	b.Provider = tag
	return &b, nil
}

func (r *PgxRegistry) ActiveBranches(ctx context.Context) ([]*Branch, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, code, display_name, active, provider, connection_descriptor FROM branches WHERE active ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to list active branches: %w", err)
	}
	defer rows.Close()

	var branches []*Branch
	for rows.Next() {
		var b Branch
		var provider string
		if err := rows.Scan(&b.ID, &b.Code, &b.DisplayName, &b.Active, &provider, &b.ConnectionDescriptor); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		tag, err := dialect.ParseTag(provider)
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", b.ID, err)
		}
		b.Provider = tag
		branches = append(branches, &b)
	}
	return branches, rows.Err()
}
