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
// Package catalog defines the append-only, totally ordered set of schema
// migration units seam knows about. The catalog is a build-time asset: units
// are plain Go values (no reflection, no file discovery) and the engine only
// reads them.
//
// Unit identifiers are timestamp-prefixed names, so lexicographic order is
// chronological order. The greatest identifier is the head of the catalog.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/teradata-labs/seam/pkg/dialect"
)

// Executor is the subset of *sql.DB the migration units execute against.
// *sql.Tx satisfies it too, for backends with transactional DDL.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Unit is one atomic forward/reverse schema change. Up and Down receive the
// provider tag and pick the matching SQL variant internally.
type Unit struct {
	// ID is the stable, lexicographically ordered identifier
	// (e.g. "20240112090000_initial_schema").
	ID string

	// Description is a short human-readable summary.
	Description string

	// LossyDown documents an information-losing reverse transform. Empty for
	// units whose Down restores the schema exactly. Non-empty text names the
	// pre-image chosen for collapsed values.
	LossyDown string

	// Up applies the forward transform. Must be idempotent on non-SQLite
	// backends (existence predicates before adds) so a partially applied
	// migration can be retried.
	Up func(ctx context.Context, db Executor, tag dialect.Tag) error

	// Down applies the reverse transform. Best-effort for lossy units.
	Down func(ctx context.Context, db Executor, tag dialect.Tag) error
}

// Catalog is a finite ordered sequence of units keyed by ID.
type Catalog struct {
	units          []Unit
	byID           map[string]int
	productVersion string
}

// New builds a catalog from units, which must already be in strictly
// ascending ID order. The product version is the global tag written into
// every history row.
func New(productVersion string, units []Unit) (*Catalog, error) {
	byID := make(map[string]int, len(units))
	for i, u := range units {
		if u.ID == "" {
			return nil, fmt.Errorf("unit at position %d has empty id", i)
		}
		if u.Up == nil || u.Down == nil {
			return nil, fmt.Errorf("unit %s is missing an Up or Down transform", u.ID)
		}
		if i > 0 && units[i-1].ID >= u.ID {
			return nil, fmt.Errorf("unit %s is not ordered after %s", u.ID, units[i-1].ID)
		}
		byID[u.ID] = i
	}
	return &Catalog{units: units, byID: byID, productVersion: productVersion}, nil
}

// AllIDs returns every unit ID in ascending order.
func (c *Catalog) AllIDs() []string {
	ids := make([]string, len(c.units))
	for i, u := range c.units {
		ids[i] = u.ID
	}
	return ids
}

// Head returns the greatest unit ID, or "" for an empty catalog.
func (c *Catalog) Head() string {
	if len(c.units) == 0 {
		return ""
	}
	return c.units[len(c.units)-1].ID
}

// Len returns the number of units.
func (c *Catalog) Len() int {
	return len(c.units)
}

// Unit returns the unit with the given ID.
func (c *Catalog) Unit(id string) (Unit, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Unit{}, false
	}
	return c.units[i], true
}

// Contains reports whether id names a unit in the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Apply executes the forward transform of the identified unit.
func (c *Catalog) Apply(ctx context.Context, db Executor, id string, tag dialect.Tag) error {
	u, ok := c.Unit(id)
	if !ok {
		return fmt.Errorf("unknown migration %s", id)
	}
	if err := u.Up(ctx, db, tag); err != nil {
		return fmt.Errorf("migration %s up failed: %w", id, err)
	}
	return nil
}

// Revert executes the reverse transform of the identified unit.
func (c *Catalog) Revert(ctx context.Context, db Executor, id string, tag dialect.Tag) error {
	u, ok := c.Unit(id)
	if !ok {
		return fmt.Errorf("unknown migration %s", id)
	}
	if err := u.Down(ctx, db, tag); err != nil {
		return fmt.Errorf("migration %s down failed: %w", id, err)
	}
	return nil
}

// ProductVersion returns the global tag recorded alongside each applied unit.
func (c *Catalog) ProductVersion() string {
	return c.productVersion
}

// Pending returns the catalog IDs not present in applied, in catalog order.
func (c *Catalog) Pending(applied []string) []string {
	seen := make(map[string]struct{}, len(applied))
	for _, id := range applied {
		seen[id] = struct{}{}
	}
	var pending []string
	for _, u := range c.units {
		if _, ok := seen[u.ID]; !ok {
			pending = append(pending, u.ID)
		}
	}
	return pending
}

// SortIDs sorts migration IDs in place in catalog (lexicographic) order.
func SortIDs(ids []string) {
	sort.Strings(ids)
}
