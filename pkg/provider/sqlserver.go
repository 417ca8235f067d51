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
package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/dialect"
)

// sqlserverStrategy drives SQL Server branch databases. Fresh databases are
// bootstrapped in one shot from a generated head-of-catalog script instead of
// replaying units one by one; the full history is synthesized afterwards so
// the branch is indistinguishable from one migrated incrementally.
type sqlserverStrategy struct {
	logger *zap.Logger
}

func (s *sqlserverStrategy) Tag() dialect.Tag { return dialect.SQLServer }

func (s *sqlserverStrategy) Open(connStr string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlserver database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func (s *sqlserverStrategy) CanConnect(ctx context.Context, connStr string) bool {
	db, err := s.Open(connStr)
	if err != nil {
		s.logger.Warn("failed to open sqlserver database",
			zap.String("conn", Redact(connStr)), zap.Error(err))
		return false
	}
	defer db.Close()
	return pingWithRetry(ctx, db, "sqlserver", connStr, s.logger)
}

func (s *sqlserverStrategy) DatabaseExists(ctx context.Context, db *sql.DB, connStr string) bool {
	if db == nil {
		return false
	}
	if err := db.PingContext(ctx); err != nil {
		s.logger.Debug("sqlserver database not reachable",
			zap.String("conn", Redact(connStr)), zap.Error(err))
		return false
	}
	return true
}

// EnsureDatabase verifies reachability. Branch databases on network backends
// are provisioned out of band; seam never issues CREATE DATABASE.
func (s *sqlserverStrategy) EnsureDatabase(ctx context.Context, connStr string) error {
	db, err := s.Open(connStr)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlserver database must be provisioned out of band: %w", err)
	}
	return nil
}

func (s *sqlserverStrategy) AppliedIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	return appliedIDs(ctx, db, dialect.SQLServer)
}

func (s *sqlserverStrategy) PendingIDs(ctx context.Context, db *sql.DB, cat *catalog.Catalog) ([]string, error) {
	applied, err := s.AppliedIDs(ctx, db)
	if err != nil {
		return nil, err
	}
	return cat.Pending(applied), nil
}

// ApplyForward bootstraps fresh databases when the full catalog is wanted;
// partial targets and already-migrated databases take the incremental path.
func (s *sqlserverStrategy) ApplyForward(ctx context.Context, db *sql.DB, target string, cat *catalog.Catalog) error {
	applied, err := appliedIDs(ctx, db, dialect.SQLServer)
	if err != nil {
		return err
	}
	if len(applied) == 0 && (target == "" || target == cat.Head()) {
		return s.bootstrap(ctx, db, cat)
	}
	return applyIncremental(ctx, db, dialect.SQLServer, target, cat, s.logger)
}

func (s *sqlserverStrategy) ApplyReverse(ctx context.Context, db *sql.DB, target string, cat *catalog.Catalog) error {
	return reverseIncremental(ctx, db, dialect.SQLServer, target, cat, s.logger)
}

func (s *sqlserverStrategy) ValidateSchema(ctx context.Context, db *sql.DB) bool {
	return validateTables(ctx, db, dialect.SQLServer, s.logger)
}

func (s *sqlserverStrategy) QuoteIdent(name string) string {
	return dialect.QuoteIdent(dialect.SQLServer, name)
}

// bootstrap runs the one-shot schema script batch by batch, then synthesizes
// history rows for every catalog unit so subsequent runs see the branch as
// fully migrated.
func (s *sqlserverStrategy) bootstrap(ctx context.Context, db *sql.DB, cat *catalog.Catalog) error {
	batches := bootstrapBatches()
	s.logger.Info("bootstrapping fresh sqlserver branch",
		zap.Int("batches", len(batches)),
		zap.Int("units", cat.Len()),
	)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, batch); err != nil {
			return fmt.Errorf("failed to run bootstrap batch %d: %w", i+1, err)
		}
	}
	if err := ensureHistoryTable(ctx, db, dialect.SQLServer); err != nil {
		return err
	}
	for _, id := range cat.AllIDs() {
		if err := insertHistoryRow(ctx, db, dialect.SQLServer, id, cat.ProductVersion()); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapBatches splits the head-of-catalog script on GO separators.
func bootstrapBatches() []string {
	return SplitBatches(sqlserverBootstrapScript)
}

// sqlserverBootstrapScript is the head-of-catalog schema as T-SQL. GO lines
// are client-side separators and are stripped before execution. Every batch
// carries its own existence guard so an interrupted bootstrap is re-runnable.
// The script must stay in lockstep with the catalog's head state: columns
// added by later units appear inline, and the sales status column already has
// the collapsed width.
const sqlserverBootstrapScript = `
IF OBJECT_ID('customers', 'U') IS NULL
CREATE TABLE [customers] (
	[id] BIGINT IDENTITY(1,1) PRIMARY KEY,
	[code] NVARCHAR(20) NOT NULL,
	[name] NVARCHAR(200) NOT NULL,
	[phone] NVARCHAR(30),
	[email] NVARCHAR(254),
	[created_at] DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
)
GO
IF OBJECT_ID('products', 'U') IS NULL
CREATE TABLE [products] (
	[id] BIGINT IDENTITY(1,1) PRIMARY KEY,
	[sku] NVARCHAR(40) NOT NULL,
	[name] NVARCHAR(200) NOT NULL,
	[unit_price] DECIMAL(12,2) NOT NULL DEFAULT 0,
	[stock_qty] INT NOT NULL DEFAULT 0
)
GO
IF OBJECT_ID('sales', 'U') IS NULL
CREATE TABLE [sales] (
	[id] BIGINT IDENTITY(1,1) PRIMARY KEY,
	[customer_id] BIGINT,
	[status] NVARCHAR(12) NOT NULL DEFAULT 'pending',
	[total] DECIMAL(12,2) NOT NULL DEFAULT 0,
	[created_at] DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
	FOREIGN KEY ([customer_id]) REFERENCES [customers] ([id])
)
GO
IF OBJECT_ID('sale_lines', 'U') IS NULL
CREATE TABLE [sale_lines] (
	[id] BIGINT IDENTITY(1,1) PRIMARY KEY,
	[sale_id] BIGINT NOT NULL,
	[product_id] BIGINT NOT NULL,
	[qty] INT NOT NULL,
	[unit_price] DECIMAL(12,2) NOT NULL,
	FOREIGN KEY ([sale_id]) REFERENCES [sales] ([id]),
	FOREIGN KEY ([product_id]) REFERENCES [products] ([id])
)
GO
IF OBJECT_ID('loyalty_accounts', 'U') IS NULL
CREATE TABLE [loyalty_accounts] (
	[id] BIGINT IDENTITY(1,1) PRIMARY KEY,
	[customer_id] BIGINT NOT NULL,
	[points] INT NOT NULL DEFAULT 0,
	[updated_at] DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
	FOREIGN KEY ([customer_id]) REFERENCES [customers] ([id])
)
GO
IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'ux_customers_code' AND object_id = OBJECT_ID('customers'))
CREATE UNIQUE INDEX [ux_customers_code] ON [customers] ([code])
GO
IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'idx_customers_email' AND object_id = OBJECT_ID('customers'))
CREATE INDEX [idx_customers_email] ON [customers] ([email])
GO
IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'ux_products_sku' AND object_id = OBJECT_ID('products'))
CREATE UNIQUE INDEX [ux_products_sku] ON [products] ([sku])
GO
IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'idx_sales_customer' AND object_id = OBJECT_ID('sales'))
CREATE INDEX [idx_sales_customer] ON [sales] ([customer_id])
GO
IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'idx_sale_lines_sale' AND object_id = OBJECT_ID('sale_lines'))
CREATE INDEX [idx_sale_lines_sale] ON [sale_lines] ([sale_id])
GO
IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'idx_sale_lines_product' AND object_id = OBJECT_ID('sale_lines'))
CREATE INDEX [idx_sale_lines_product] ON [sale_lines] ([product_id])
GO
IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'ux_loyalty_customer' AND object_id = OBJECT_ID('loyalty_accounts'))
CREATE UNIQUE INDEX [ux_loyalty_customer] ON [loyalty_accounts] ([customer_id])
GO
`
