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
	"fmt"

	"go.uber.org/zap"

	"github.com/teradata-labs/seam/internal/log"
	"github.com/teradata-labs/seam/pkg/dialect"
)

// ForTag returns the strategy for a provider tag. Pure function of the tag;
// strategies are stateless, so each call may return a fresh value.
func ForTag(tag dialect.Tag) (Strategy, error) {
	return ForTagWithLogger(tag, log.Logger())
}

// ForTagWithLogger is ForTag with an injected logger.
func ForTagWithLogger(tag dialect.Tag, logger *zap.Logger) (Strategy, error) {
	switch tag {
	case dialect.SQLite:
		return &sqliteStrategy{logger: logger}, nil
	case dialect.SQLServer:
		return &sqlserverStrategy{logger: logger}, nil
	case dialect.MySQL:
		return &mysqlStrategy{logger: logger}, nil
	case dialect.Postgres:
		return &postgresStrategy{logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, tag)
	}
}
