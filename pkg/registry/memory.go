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
	"fmt"
	"sort"
	"sync"
)

// MemoryRegistry is a map-backed Registry for tests and single-process dev
// setups. Safe for concurrent use.
type MemoryRegistry struct {
	mu       sync.RWMutex
	branches map[string]Branch
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *MemoryRegistry {
	return &MemoryRegistry{branches: make(map[string]Branch)}
}

// Put inserts or replaces a branch record.
func (r *MemoryRegistry) Put(b Branch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[b.ID] = b
}

// Delete removes a branch record. Removing an absent id is a no-op.
func (r *MemoryRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.branches, id)
}

func (r *MemoryRegistry) Branch(_ context.Context, id string) (*Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.branches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, id)
	}
	return &b, nil
}

func (r *MemoryRegistry) ActiveBranches(_ context.Context) ([]*Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []*Branch
	for _, b := range r.branches {
		if b.Active {
			b := b
			active = append(active, &b)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Code < active[j].Code })
	return active, nil
}
