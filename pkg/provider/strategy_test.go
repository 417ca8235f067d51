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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/dialect"
)

func TestForTag(t *testing.T) {
	for _, tag := range []dialect.Tag{dialect.SQLite, dialect.SQLServer, dialect.MySQL, dialect.Postgres} {
		s, err := ForTag(tag)
		require.NoError(t, err)
		assert.Equal(t, tag, s.Tag())
	}

	_, err := ForTag(dialect.Tag("oracle"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func newSQLiteStrategy(t *testing.T) (*sqliteStrategy, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "branch.db")
	return &sqliteStrategy{logger: zap.NewNop()}, "file:" + path + "?_pragma=foreign_keys(1)"
}

func TestSQLiteStrategy_EnsureDatabase(t *testing.T) {
	ctx := context.Background()
	s, connStr := newSQLiteStrategy(t)

	assert.False(t, s.DatabaseExists(ctx, nil, connStr))
	require.NoError(t, s.EnsureDatabase(ctx, connStr))
	assert.True(t, s.DatabaseExists(ctx, nil, connStr))

	// File really exists on disk.
	_, err := os.Stat(sqliteFilePath(connStr))
	require.NoError(t, err)

	// Re-ensuring is harmless.
	require.NoError(t, s.EnsureDatabase(ctx, connStr))
}

func TestSQLiteStrategy_ForwardReverseRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, connStr := newSQLiteStrategy(t)
	cat := catalog.Default()

	require.NoError(t, s.EnsureDatabase(ctx, connStr))
	db, err := s.Open(connStr)
	require.NoError(t, err)
	defer db.Close()

	// Fresh database: nothing applied, everything pending.
	applied, err := s.AppliedIDs(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)
	pending, err := s.PendingIDs(ctx, db, cat)
	require.NoError(t, err)
	assert.Equal(t, cat.AllIDs(), pending)

	require.NoError(t, s.ApplyForward(ctx, db, "", cat))

	applied, err = s.AppliedIDs(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, cat.AllIDs(), applied)
	assert.True(t, s.ValidateSchema(ctx, db))

	// Forward apply is idempotent at head.
	require.NoError(t, s.ApplyForward(ctx, db, "", cat))

	// Roll back to the initial unit.
	require.NoError(t, s.ApplyReverse(ctx, db, catalog.InitialSchemaID, cat))
	applied, err = s.AppliedIDs(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.InitialSchemaID}, applied)

	// Core tables survive the rollback; validation still passes.
	assert.True(t, s.ValidateSchema(ctx, db))

	// Fully down removes everything, including validation.
	require.NoError(t, s.ApplyReverse(ctx, db, "", cat))
	applied, err = s.AppliedIDs(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.False(t, s.ValidateSchema(ctx, db))
}

func TestSQLiteStrategy_ForwardToTarget(t *testing.T) {
	ctx := context.Background()
	s, connStr := newSQLiteStrategy(t)
	cat := catalog.Default()

	require.NoError(t, s.EnsureDatabase(ctx, connStr))
	db, err := s.Open(connStr)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, s.ApplyForward(ctx, db, catalog.CustomerEmailID, cat))
	applied, err := s.AppliedIDs(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.InitialSchemaID, catalog.CustomerEmailID}, applied)

	// Continuing to head picks up where the target stopped.
	require.NoError(t, s.ApplyForward(ctx, db, "", cat))
	applied, err = s.AppliedIDs(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, cat.AllIDs(), applied)
}

func TestAppliedIDs_MissingHistoryOnNonFreshDatabase(t *testing.T) {
	ctx := context.Background()
	s, connStr := newSQLiteStrategy(t)

	require.NoError(t, s.EnsureDatabase(ctx, connStr))
	db, err := s.Open(connStr)
	require.NoError(t, err)
	defer db.Close()

	// A table created outside the migration engine, with no history table.
	_, err = db.ExecContext(ctx, `CREATE TABLE legacy_data (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	_, err = s.AppliedIDs(ctx, db)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHistoryTableMissing)
}

func TestSQLiteStrategy_CanConnect(t *testing.T) {
	ctx := context.Background()
	s, connStr := newSQLiteStrategy(t)

	require.NoError(t, s.EnsureDatabase(ctx, connStr))
	assert.True(t, s.CanConnect(ctx, connStr))
}

func TestQuoteIdentPerStrategy(t *testing.T) {
	logger := zap.NewNop()
	assert.Equal(t, `"sales"`, (&sqliteStrategy{logger: logger}).QuoteIdent("sales"))
	assert.Equal(t, "[sales]", (&sqlserverStrategy{logger: logger}).QuoteIdent("sales"))
	assert.Equal(t, "`sales`", (&mysqlStrategy{logger: logger}).QuoteIdent("sales"))
	assert.Equal(t, `"sales"`, (&postgresStrategy{logger: logger}).QuoteIdent("sales"))
}

func TestHistoryTableDDL(t *testing.T) {
	assert.Contains(t, historyTableDDL(dialect.SQLite), "CREATE TABLE IF NOT EXISTS")
	assert.Contains(t, historyTableDDL(dialect.MySQL), "VARCHAR(150)")
	assert.Contains(t, historyTableDDL(dialect.Postgres), "VARCHAR(150)")

	mssql := historyTableDDL(dialect.SQLServer)
	assert.Contains(t, mssql, "IF OBJECT_ID")
	assert.Contains(t, mssql, "NVARCHAR(150)")
}
