// Package sqlitedriver registers the pure-Go modernc.org/sqlite database/sql
// driver under the name "sqlite3". Seam runs on hosts where a C toolchain
// cannot be assumed (branch servers, CI), so the CGO-free driver is used
// unconditionally.
//
// Import this package for its side effects only:
//
//	import _ "github.com/teradata-labs/seam/internal/sqlitedriver"
package sqlitedriver
