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
// Package registry reads branch identity and connection metadata from the
// head-office store. Branch records are owned by the head-office back office;
// seam only ever reads them. The write path is deliberately absent.
package registry

import (
	"context"
	"errors"

	"github.com/teradata-labs/seam/pkg/dialect"
)

// ErrBranchNotFound is returned when a branch id has no registry record.
var ErrBranchNotFound = errors.New("branch not found")

// Branch is one tenant's identity and connection metadata. The connection
// descriptor is opaque to seam and may embed credentials; it must be routed
// through provider.Redact before reaching any log sink.
type Branch struct {
	// ID is the registry's stable identifier, referenced by state rows.
	ID string
	// Code is the short human code operators use ("BR-004").
	Code string
	// DisplayName is the storefront name.
	DisplayName string
	// Active marks branches the reconciler should advance. Inactive
	// branches stay readable for history queries.
	Active bool
	// Provider selects the migration strategy.
	Provider dialect.Tag
	// ConnectionDescriptor is the backend-specific connection string.
	ConnectionDescriptor string
}

// Registry is the read-only view of the branch table.
type Registry interface {
	// Branch returns the record for an id, or ErrBranchNotFound.
	Branch(ctx context.Context, id string) (*Branch, error)

	// ActiveBranches returns every active branch, ordered by code so a
	// reconciler pass is deterministic within a run.
	ActiveBranches(ctx context.Context) ([]*Branch, error)
}
