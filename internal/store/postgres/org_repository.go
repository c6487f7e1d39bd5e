// Copyright 2026 The MSPDeck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"fmt"
)

// OrgRepository implements authz.OrgCatalog
type OrgRepository struct {
	db *DB
}

// NewOrgRepository creates a new organization repository
func NewOrgRepository(db *DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// ListAllOrgIDs retrieves every organization id known to the platform
func (r *OrgRepository) ListAllOrgIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id
		FROM organizations
		ORDER BY id
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan organization id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organizations: %w", err)
	}

	return ids, nil
}
