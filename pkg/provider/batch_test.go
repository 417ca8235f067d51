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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBatches(t *testing.T) {
	script := "CREATE TABLE a (x INT)\nGO\nCREATE TABLE b (y INT)\n  go  \nCREATE TABLE c (z INT)\n"
	batches := SplitBatches(script)
	require.Len(t, batches, 3)
	assert.Equal(t, "CREATE TABLE a (x INT)", batches[0])
	assert.Equal(t, "CREATE TABLE b (y INT)", batches[1])
	assert.Equal(t, "CREATE TABLE c (z INT)", batches[2])
}

func TestSplitBatches_IgnoresGOInsideStatements(t *testing.T) {
	script := "CREATE TABLE categories (\n\tname NVARCHAR(20) DEFAULT 'GO'\n)\nGO\nSELECT 1"
	batches := SplitBatches(script)
	require.Len(t, batches, 2)
	assert.Contains(t, batches[0], "DEFAULT 'GO'")
}

func TestSplitBatches_DropsEmptyBatches(t *testing.T) {
	script := "GO\n\nGO\nSELECT 1\nGO\nGO\n"
	batches := SplitBatches(script)
	require.Len(t, batches, 1)
	assert.Equal(t, "SELECT 1", batches[0])
}

func TestBootstrapBatches(t *testing.T) {
	batches := bootstrapBatches()
	require.NotEmpty(t, batches)

	// No separator token may survive the split.
	for _, b := range batches {
		for _, line := range strings.Split(b, "\n") {
			assert.NotEqual(t, "GO", strings.TrimSpace(line))
		}
	}

	// Every batch is guarded so a partial bootstrap can re-run.
	for _, b := range batches {
		guarded := strings.HasPrefix(b, "IF OBJECT_ID") || strings.HasPrefix(b, "IF NOT EXISTS")
		assert.True(t, guarded, "unguarded batch: %s", b)
	}

	// The script builds the head-of-catalog shape: collapsed status width
	// and the email column inline.
	joined := strings.Join(batches, "\n")
	assert.Contains(t, joined, "[status] NVARCHAR(12)")
	assert.Contains(t, joined, "[email] NVARCHAR(254)")
	assert.Contains(t, joined, "CREATE TABLE [loyalty_accounts]")
}
