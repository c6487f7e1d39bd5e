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

package authz

import (
	"context"
	"fmt"
	"sort"
)

// PermissionService resolves flat feature/action permissions through three
// tiers: per-principal override, permission-role grants, base-role default.
// The first tier that applies wins. The service holds no state across calls
// and is safe for concurrent use.
type PermissionService struct {
	registry *Registry
	store    PermissionStore
	identity IdentityStore
}

// NewPermissionService creates a new flat permission resolver.
func NewPermissionService(registry *Registry, store PermissionStore, identity IdentityStore) *PermissionService {
	return &PermissionService{
		registry: registry,
		store:    store,
		identity: identity,
	}
}

// HasPermission resolves a single permission key for a principal.
// An unknown key or unknown principal resolves to false, never an error;
// errors indicate store failures and callers should fail closed.
func (s *PermissionService) HasPermission(ctx context.Context, principalID string, key PermissionKey) (bool, error) {
	if !s.registry.Contains(key) {
		return false, nil
	}

	override, err := s.store.FindOverride(ctx, principalID, key)
	if err != nil {
		return false, fmt.Errorf("failed to load override: %w", err)
	}
	if override != nil {
		return override.Granted, nil
	}

	grants, err := s.store.FindRoleGrants(ctx, principalID)
	if err != nil {
		return false, fmt.Errorf("failed to load role grants: %w", err)
	}
	if _, ok := grants[key]; ok {
		return true, nil
	}

	role, ok, err := s.identity.FindBaseRole(ctx, principalID)
	if err != nil {
		return false, fmt.Errorf("failed to load base role: %w", err)
	}
	if !ok {
		return false, nil
	}
	return s.registry.GrantedByDefault(key, role), nil
}

// HasPermissions resolves many keys with a bounded number of store reads
// (overrides, role grants, base role — one read each regardless of key
// count). Results are identical to calling HasPermission per key.
func (s *PermissionService) HasPermissions(ctx context.Context, principalID string, keys []PermissionKey) (map[PermissionKey]bool, error) {
	out := make(map[PermissionKey]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	overrides, err := s.store.FindAllOverrides(ctx, principalID, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}
	overrideByKey := make(map[PermissionKey]bool, len(overrides))
	for _, o := range overrides {
		overrideByKey[o.Key] = o.Granted
	}

	grants, err := s.store.FindRoleGrants(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role grants: %w", err)
	}

	role, hasRole, err := s.identity.FindBaseRole(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base role: %w", err)
	}

	for _, key := range keys {
		if !s.registry.Contains(key) {
			out[key] = false
			continue
		}
		if granted, ok := overrideByKey[key]; ok {
			out[key] = granted
			continue
		}
		if _, ok := grants[key]; ok {
			out[key] = true
			continue
		}
		out[key] = hasRole && s.registry.GrantedByDefault(key, role)
	}
	return out, nil
}

// EffectivePermissions resolves every registry key for the principal and
// reports which tier produced each value. When several permission roles
// grant the same key, the role with the lexicographically smallest name is
// attributed; the granted value is unaffected by attribution order.
func (s *PermissionService) EffectivePermissions(ctx context.Context, principalID string) ([]EffectivePermission, error) {
	keys := s.registry.Keys()

	overrides, err := s.store.FindAllOverrides(ctx, principalID, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}
	overrideByKey := make(map[PermissionKey]bool, len(overrides))
	for _, o := range overrides {
		overrideByKey[o.Key] = o.Granted
	}

	roles, err := s.store.ListAssignedRoles(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assigned roles: %w", err)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })

	baseRole, hasRole, err := s.identity.FindBaseRole(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base role: %w", err)
	}

	out := make([]EffectivePermission, 0, len(keys))
	for _, key := range keys {
		if granted, ok := overrideByKey[key]; ok {
			out = append(out, EffectivePermission{Key: key, Granted: granted, Source: SourceOverride})
			continue
		}
		if name, ok := grantingRole(roles, key); ok {
			out = append(out, EffectivePermission{Key: key, Granted: true, Source: SourcePermissionRole, RoleName: name})
			continue
		}
		out = append(out, EffectivePermission{
			Key:     key,
			Granted: hasRole && s.registry.GrantedByDefault(key, baseRole),
			Source:  SourceBaseRole,
		})
	}
	return out, nil
}

// grantingRole returns the name of the first role (in the given order)
// whose bundle contains the key.
func grantingRole(roles []PermissionRole, key PermissionKey) (string, bool) {
	for i := range roles {
		if roles[i].Grants(key) {
			return roles[i].Name, true
		}
	}
	return "", false
}
