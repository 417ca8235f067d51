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
package catalog

import (
	"context"
	"fmt"

	"github.com/teradata-labs/seam/pkg/dialect"
)

// SaleStatusCollapseID merges the post-payment statuses 'shipped' and
// 'delivered' into a single 'fulfilled' value and narrows the column.
//
// The forward transform is not information-preserving. The reverse transform
// widens the column back and remaps every 'fulfilled' row to 'delivered'.
// The original shipped/delivered distinction is lost, which is declared on
// the unit rather than hidden.
const SaleStatusCollapseID = "20240418101500_sale_status_collapse"

func saleStatusCollapseUnit() Unit {
	return Unit{
		ID:          SaleStatusCollapseID,
		Description: "collapse shipped/delivered sale statuses into fulfilled",
		LossyDown:   "fulfilled rows are remapped to 'delivered'; the shipped/delivered split is unrecoverable",
		Up: func(ctx context.Context, db Executor, tag dialect.Tag) error {
			q := func(name string) string { return dialect.QuoteIdent(tag, name) }
			remap := fmt.Sprintf("UPDATE %s SET %s = 'fulfilled' WHERE %s IN ('shipped', 'delivered')",
				q("sales"), q("status"), q("status"))
			if _, err := db.ExecContext(ctx, remap); err != nil {
				return fmt.Errorf("failed to collapse sale statuses: %w", err)
			}
			return alterSaleStatusWidth(ctx, db, tag, 12)
		},
		Down: func(ctx context.Context, db Executor, tag dialect.Tag) error {
			// Widen first so 'delivered' fits, then remap the collapsed value
			// to its documented pre-image.
			if err := alterSaleStatusWidth(ctx, db, tag, 20); err != nil {
				return err
			}
			q := func(name string) string { return dialect.QuoteIdent(tag, name) }
			remap := fmt.Sprintf("UPDATE %s SET %s = 'delivered' WHERE %s = 'fulfilled'",
				q("sales"), q("status"), q("status"))
			if _, err := db.ExecContext(ctx, remap); err != nil {
				return fmt.Errorf("failed to restore sale statuses: %w", err)
			}
			return nil
		},
	}
}

// alterSaleStatusWidth changes the declared width of sales.status. SQLite
// ignores declared widths entirely (type affinity), so it is a no-op there.
// Identifier quoting differs per backend and must go through QuoteIdent:
// PostgreSQL folds unquoted names to lowercase and MySQL needs backticks.
func alterSaleStatusWidth(ctx context.Context, db Executor, tag dialect.Tag, width int) error {
	q := func(name string) string { return dialect.QuoteIdent(tag, name) }
	var stmt string
	switch tag {
	case dialect.SQLite:
		return nil
	case dialect.MySQL:
		stmt = fmt.Sprintf("ALTER TABLE %s MODIFY %s VARCHAR(%d) NOT NULL DEFAULT 'pending'",
			q("sales"), q("status"), width)
	case dialect.Postgres:
		stmt = fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE VARCHAR(%d)",
			q("sales"), q("status"), width)
	case dialect.SQLServer:
		stmt = fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s NVARCHAR(%d) NOT NULL",
			q("sales"), q("status"), width)
	default:
		return fmt.Errorf("unknown provider tag %q", tag)
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to alter sales.status width: %w", err)
	}
	return nil
}
