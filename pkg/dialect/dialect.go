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
// Package dialect holds the provider tag enum and the per-backend SQL
// conventions (identifier quoting, bind placeholders) shared by the
// migration catalog and the provider strategies.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag identifies a relational backend. Tag strings are part of the branch
// registry contract and must not change.
type Tag string

const (
	SQLite    Tag = "sqlite"
	SQLServer Tag = "sqlserver"
	MySQL     Tag = "mysql"
	Postgres  Tag = "postgres"
)

// ParseTag normalizes a registry provider string into a Tag.
// Accepts a few legacy spellings seen in head-office data.
func ParseTag(s string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pgsql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unknown provider tag %q", s)
	}
}

// QuoteIdent quotes a bare identifier for the given backend. PostgreSQL folds
// unquoted identifiers to lowercase, so every raw-SQL emission must route
// identifiers through here to behave identically across backends.
//
//	postgres  "x"
//	sqlserver [x]
//	mysql     `x`
//	sqlite    "x"
func QuoteIdent(tag Tag, name string) string {
	switch tag {
	case SQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// Placeholder returns the bind-parameter placeholder for position n (1-based).
//
//	postgres  $1
//	sqlserver @p1
//	mysql     ?
//	sqlite    ?
func Placeholder(tag Tag, n int) string {
	switch tag {
	case Postgres:
		return "$" + strconv.Itoa(n)
	case SQLServer:
		return "@p" + strconv.Itoa(n)
	default:
		return "?"
	}
}
