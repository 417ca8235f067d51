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
package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in   string
		want Tag
	}{
		{"sqlite", SQLite},
		{"SQLite3", SQLite},
		{"mssql", SQLServer},
		{"SqlServer", SQLServer},
		{"mysql", MySQL},
		{"mariadb", MySQL},
		{"postgres", Postgres},
		{"PostgreSQL", Postgres},
		{" pgsql ", Postgres},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTag(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTag_Unknown(t *testing.T) {
	_, err := ParseTag("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider tag")
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"sales"`, QuoteIdent(Postgres, "sales"))
	assert.Equal(t, `"sales"`, QuoteIdent(SQLite, "sales"))
	assert.Equal(t, "[sales]", QuoteIdent(SQLServer, "sales"))
	assert.Equal(t, "`sales`", QuoteIdent(MySQL, "sales"))

	// Embedded quote characters are doubled, not stripped.
	assert.Equal(t, `"we""ird"`, QuoteIdent(Postgres, `we"ird`))
	assert.Equal(t, "[we]]ird]", QuoteIdent(SQLServer, "we]ird"))
	assert.Equal(t, "`we``ird`", QuoteIdent(MySQL, "we`ird"))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$1", Placeholder(Postgres, 1))
	assert.Equal(t, "$12", Placeholder(Postgres, 12))
	assert.Equal(t, "@p2", Placeholder(SQLServer, 2))
	assert.Equal(t, "?", Placeholder(MySQL, 3))
	assert.Equal(t, "?", Placeholder(SQLite, 1))
}
