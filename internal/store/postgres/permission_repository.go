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

	"github.com/jackc/pgx/v5"

	"github.com/mspdeck/mspdeck/internal/authz"
)

// PermissionRepository implements authz.PermissionStore
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// FindOverride retrieves the override for (principal, key), or nil when absent
func (r *PermissionRepository) FindOverride(ctx context.Context, principalID string, key authz.PermissionKey) (*authz.PermissionOverride, error) {
	var granted bool

	err := r.db.pool.QueryRow(ctx, `
		SELECT granted
		FROM permission_overrides
		WHERE principal_id = $1 AND permission_key = $2
	`, principalID, string(key)).Scan(&granted)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find override: %w", err)
	}

	return &authz.PermissionOverride{
		PrincipalID: principalID,
		Key:         key,
		Granted:     granted,
	}, nil
}

// FindAllOverrides retrieves every override the principal holds for the given keys
func (r *PermissionRepository) FindAllOverrides(ctx context.Context, principalID string, keys []authz.PermissionKey) ([]authz.PermissionOverride, error) {
	keyStrings := make([]string, len(keys))
	for i, k := range keys {
		keyStrings[i] = string(k)
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT permission_key, granted
		FROM permission_overrides
		WHERE principal_id = $1 AND permission_key = ANY($2)
	`, principalID, keyStrings)

	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []authz.PermissionOverride

	for rows.Next() {
		o := authz.PermissionOverride{PrincipalID: principalID}
		var key string
		if err := rows.Scan(&key, &o.Granted); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		o.Key = authz.PermissionKey(key)
		overrides = append(overrides, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate overrides: %w", err)
	}

	return overrides, nil
}

// FindRoleGrants retrieves the union of keys granted by the principal's permission roles
func (r *PermissionRepository) FindRoleGrants(ctx context.Context, principalID string) (map[authz.PermissionKey]struct{}, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT DISTINCT rk.permission_key
		FROM permission_role_keys rk
		JOIN principal_permission_roles ppr ON ppr.role_id = rk.role_id
		WHERE ppr.principal_id = $1
	`, principalID)

	if err != nil {
		return nil, fmt.Errorf("failed to list role grants: %w", err)
	}
	defer rows.Close()

	grants := make(map[authz.PermissionKey]struct{})

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan role grant: %w", err)
		}
		grants[authz.PermissionKey(key)] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role grants: %w", err)
	}

	return grants, nil
}

// ListAssignedRoles retrieves the principal's permission roles with their key bundles
func (r *PermissionRepository) ListAssignedRoles(ctx context.Context, principalID string) ([]authz.PermissionRole, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT pr.id, pr.name, rk.permission_key
		FROM permission_roles pr
		JOIN principal_permission_roles ppr ON ppr.role_id = pr.id
		LEFT JOIN permission_role_keys rk ON rk.role_id = pr.id
		WHERE ppr.principal_id = $1
		ORDER BY pr.name, rk.permission_key
	`, principalID)

	if err != nil {
		return nil, fmt.Errorf("failed to list assigned roles: %w", err)
	}
	defer rows.Close()

	var roles []authz.PermissionRole
	index := make(map[string]int)

	for rows.Next() {
		var id, name string
		var key *string
		if err := rows.Scan(&id, &name, &key); err != nil {
			return nil, fmt.Errorf("failed to scan assigned role: %w", err)
		}

		i, ok := index[id]
		if !ok {
			i = len(roles)
			index[id] = i
			roles = append(roles, authz.PermissionRole{ID: id, Name: name})
		}
		if key != nil {
			roles[i].Keys = append(roles[i].Keys, authz.PermissionKey(*key))
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assigned roles: %w", err)
	}

	return roles, nil
}

// PrincipalRepository implements authz.IdentityStore
type PrincipalRepository struct {
	db *DB
}

// NewPrincipalRepository creates a new principal repository
func NewPrincipalRepository(db *DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

// FindBaseRole retrieves the principal's base role. An unknown principal
// is reported via the second return, not as an error.
func (r *PrincipalRepository) FindBaseRole(ctx context.Context, principalID string) (authz.BaseRole, bool, error) {
	var role string

	err := r.db.pool.QueryRow(ctx, `
		SELECT base_role
		FROM principals
		WHERE id = $1
	`, principalID).Scan(&role)

	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to find base role: %w", err)
	}

	return authz.BaseRole(role), true, nil
}
