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
	"regexp"
	"strings"
)

// batchSeparator matches a line whose entire content is the token GO
// (case-insensitive). GO is a client-side batch separator understood by SQL
// Server tooling, not by the wire protocol; scripts generated from the model
// contain it and it must never be sent to the server.
var batchSeparator = regexp.MustCompile(`(?im)^\s*GO\s*$`)

// SplitBatches splits a SQL script on GO separator lines and returns the
// non-empty batches, trimmed.
func SplitBatches(script string) []string {
	parts := batchSeparator.Split(script, -1)
	batches := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			batches = append(batches, trimmed)
		}
	}
	return batches
}
