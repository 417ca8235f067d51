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
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// pingWithRetry probes a handle with short exponential backoff. Connectivity
// blips during branch store startup are common; anything still failing after
// a few seconds is a real outage and belongs to the caller's retry budget.
func pingWithRetry(ctx context.Context, db *sql.DB, tag string, connStr string, logger *zap.Logger) bool {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 1 * time.Second
	policy.MaxElapsedTime = 5 * time.Second

	err := backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		logger.Warn("connection probe failed",
			zap.String("provider", tag),
			zap.String("conn", Redact(connStr)),
			zap.Error(err),
		)
		return false
	}
	return true
}
