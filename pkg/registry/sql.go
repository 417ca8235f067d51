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
	"database/sql"
	"errors"
	"fmt"

	"github.com/teradata-labs/seam/pkg/dialect"
)

// SQLRegistry reads branch records through database/sql. Used with the
// sqlite head-office store; any driver with ?-style placeholders works.
type SQLRegistry struct {
	db *sql.DB
}

// NewSQL wraps an open head-office handle.
func NewSQL(db *sql.DB) *SQLRegistry {
	return &SQLRegistry{db: db}
}

// EnsureSchema creates the branches table if absent. The back office owns
// the rows; seam only materializes the shape for dev and test setups.
func (r *SQLRegistry) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS branches (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			provider TEXT NOT NULL,
			connection_descriptor TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure branches table: %w", err)
	}
	return nil
}

const branchColumns = "id, code, display_name, active, provider, connection_descriptor"

func scanBranch(row interface{ Scan(...any) error }) (*Branch, error) {
	var b Branch
	var provider string
	if err := row.Scan(&b.ID, &b.Code, &b.DisplayName, &b.Active, &provider, &b.ConnectionDescriptor); err != nil {
		return nil, err
	}
	tag, err := dialect.ParseTag(provider)
	if err != nil {
		return nil, fmt.Errorf("branch %s: %w", b.ID, err)
	}
	b.Provider = tag
	return &b, nil
}

func (r *SQLRegistry) Branch(ctx context.Context, id string) (*Branch, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+branchColumns+" FROM branches WHERE id = ?", id)
	b, err := scanBranch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read branch: %w", err)
	}
	return b, nil
}

func (r *SQLRegistry) ActiveBranches(ctx context.Context) ([]*Branch, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+branchColumns+" FROM branches WHERE active = 1 ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to list active branches: %w", err)
	}
	defer rows.Close()

	var branches []*Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}
