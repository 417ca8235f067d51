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

import "github.com/teradata-labs/seam/internal/version"

// Default returns the catalog shipped with this build. New units are
// appended here, never reordered or removed.
func Default() *Catalog {
	c, err := New(version.Get(), []Unit{
		initialSchemaUnit(),
		customerEmailUnit(),
		loyaltyAccountsUnit(),
		saleStatusCollapseUnit(),
	})
	if err != nil {
		// Unit ordering is fixed at build time; a failure here is a
		// programming error, caught by TestDefaultCatalog.
		panic(err)
	}
	return c
}
