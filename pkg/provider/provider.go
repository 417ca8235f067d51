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
// Package provider implements the per-backend migration strategies. One
// Strategy per relational backend (SQLite, SQL Server, MySQL, PostgreSQL),
// selected at runtime from the branch's provider tag. Strategies own the
// history table inside each branch database and hide every DDL dialect
// difference from the manager.
package provider

import (
	"context"
	"database/sql"
	"errors"

	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/dialect"
)

// HistoryTable is the per-branch migration history table. Two columns,
// primary key on migration_id, named identically on every backend. Created
// lazily on first apply and only ever mutated by forward/reverse apply.
const HistoryTable = "migration_history"

// ErrUnsupportedProvider is returned by ForTag for provider tags seam does
// not know how to drive.
var ErrUnsupportedProvider = errors.New("provider unsupported")

// ErrHistoryTableMissing is returned by AppliedIDs when the branch database
// already has user tables but no history table, a state that needs operator
// attention rather than silent re-migration.
var ErrHistoryTableMissing = errors.New("history table missing from non-fresh database")

// Strategy is the per-backend capability set. Implementations must be safe
// for concurrent use; they hold no per-branch state.
type Strategy interface {
	// Tag returns the provider tag this strategy drives.
	Tag() dialect.Tag

	// Open opens a database handle for the branch's connection descriptor.
	// The handle is pooled; callers own closing it.
	Open(connStr string) (*sql.DB, error)

	// CanConnect probes connectivity. Never returns an error: failures are
	// logged (with the descriptor redacted) and reported as false.
	CanConnect(ctx context.Context, connStr string) bool

	// DatabaseExists reports whether the target database exists. For
	// network backends a live handle implies existence; for file-backed
	// SQLite it checks the file. Never returns an error to the caller.
	DatabaseExists(ctx context.Context, db *sql.DB, connStr string) bool

	// EnsureDatabase materializes a missing database where the backend
	// allows it. File-backed SQLite creates the file; network backends
	// assume the database was provisioned out of band and never attempt
	// to create one.
	EnsureDatabase(ctx context.Context, connStr string) error

	// AppliedIDs returns the ordered migration ids recorded in the history
	// table. An absent history table on a fresh database yields an empty
	// list; on a non-fresh database it yields ErrHistoryTableMissing.
	AppliedIDs(ctx context.Context, db *sql.DB) ([]string, error)

	// PendingIDs returns catalog \ applied, in catalog order.
	PendingIDs(ctx context.Context, db *sql.DB, cat *catalog.Catalog) ([]string, error)

	// ApplyForward applies every pending unit up to and including target
	// (empty target = head of catalog), recording each in the history
	// table. Fails fast; the caller owns state transitions.
	ApplyForward(ctx context.Context, db *sql.DB, target string, cat *catalog.Catalog) error

	// ApplyReverse reverts applied units in descending order until target
	// is the greatest applied id (empty target = fully down). Fails fast.
	ApplyReverse(ctx context.Context, db *sql.DB, target string, cat *catalog.Catalog) error

	// ValidateSchema probes the backend catalog for the core table set.
	// Swallows errors and returns false.
	ValidateSchema(ctx context.Context, db *sql.DB) bool

	// QuoteIdent quotes a bare identifier in this backend's convention.
	QuoteIdent(name string) string
}

// coreTables is the integrity probe's required set: the tables created by
// the catalog's initial unit plus the history table. Tables added by later
// units are deliberately excluded so rollbacks that remove them still
// validate.
func coreTables() []string {
	return append(append([]string{}, catalog.InitialTables...), HistoryTable)
}
