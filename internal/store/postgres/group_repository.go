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

// GroupRepository implements authz.GroupStore
type GroupRepository struct {
	db *DB
}

// NewGroupRepository creates a new access-group repository
func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindDirectGroupIDs retrieves groups assigned to the principal directly
func (r *GroupRepository) FindDirectGroupIDs(ctx context.Context, principalID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT group_id
		FROM principal_access_groups
		WHERE principal_id = $1
	`, principalID)

	if err != nil {
		return nil, fmt.Errorf("failed to list direct groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate direct groups: %w", err)
	}

	return ids, nil
}

// FindGroupIDsViaRoles retrieves groups linked to the principal's permission roles
func (r *GroupRepository) FindGroupIDsViaRoles(ctx context.Context, principalID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT DISTINCT prag.group_id
		FROM permission_role_access_groups prag
		JOIN principal_permission_roles ppr ON ppr.role_id = prag.role_id
		WHERE ppr.principal_id = $1
	`, principalID)

	if err != nil {
		return nil, fmt.Errorf("failed to list role-linked groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role-linked groups: %w", err)
	}

	return ids, nil
}
