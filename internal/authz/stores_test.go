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

package authz_test

import (
	"context"
	"slices"

	"github.com/mspdeck/mspdeck/internal/authz"
)

// mockPermissionStore implements authz.PermissionStore over in-memory data
// and counts reads so tests can assert the bounded-round-trip property.
type mockPermissionStore struct {
	overrides []authz.PermissionOverride
	roles     map[string][]authz.PermissionRole

	findOverrideCalls     int
	findAllOverridesCalls int
	findRoleGrantsCalls   int
	listAssignedCalls     int

	err error
}

func (m *mockPermissionStore) FindOverride(_ context.Context, principalID string, key authz.PermissionKey) (*authz.PermissionOverride, error) {
	m.findOverrideCalls++
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.overrides {
		if m.overrides[i].PrincipalID == principalID && m.overrides[i].Key == key {
			o := m.overrides[i]
			return &o, nil
		}
	}
	return nil, nil
}

func (m *mockPermissionStore) FindAllOverrides(_ context.Context, principalID string, keys []authz.PermissionKey) ([]authz.PermissionOverride, error) {
	m.findAllOverridesCalls++
	if m.err != nil {
		return nil, m.err
	}
	var out []authz.PermissionOverride
	for _, o := range m.overrides {
		if o.PrincipalID == principalID && slices.Contains(keys, o.Key) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockPermissionStore) FindRoleGrants(_ context.Context, principalID string) (map[authz.PermissionKey]struct{}, error) {
	m.findRoleGrantsCalls++
	if m.err != nil {
		return nil, m.err
	}
	grants := make(map[authz.PermissionKey]struct{})
	for _, r := range m.roles[principalID] {
		for _, k := range r.Keys {
			grants[k] = struct{}{}
		}
	}
	return grants, nil
}

func (m *mockPermissionStore) ListAssignedRoles(_ context.Context, principalID string) ([]authz.PermissionRole, error) {
	m.listAssignedCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.roles[principalID], nil
}

// mockIdentityStore implements authz.IdentityStore.
type mockIdentityStore struct {
	baseRoles map[string]authz.BaseRole
}

func (m *mockIdentityStore) FindBaseRole(_ context.Context, principalID string) (authz.BaseRole, bool, error) {
	role, ok := m.baseRoles[principalID]
	return role, ok, nil
}

// mockGroupStore implements authz.GroupStore.
type mockGroupStore struct {
	direct   map[string][]string
	viaRoles map[string][]string
}

func (m *mockGroupStore) FindDirectGroupIDs(_ context.Context, principalID string) ([]string, error) {
	return m.direct[principalID], nil
}

func (m *mockGroupStore) FindGroupIDsViaRoles(_ context.Context, principalID string) ([]string, error) {
	return m.viaRoles[principalID], nil
}

// mockRuleStore implements authz.RuleStore and counts rule loads.
type mockRuleStore struct {
	rules []authz.AccessRule

	findRulesCalls     int
	findOrgScopedCalls int
}

func (m *mockRuleStore) FindRules(_ context.Context, groupIDs []string, orgIDs []string) ([]authz.AccessRule, error) {
	m.findRulesCalls++
	var out []authz.AccessRule
	for _, r := range m.rules {
		if slices.Contains(groupIDs, r.GroupID) && slices.Contains(orgIDs, r.OrgID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleStore) FindOrgScopedRules(_ context.Context, groupIDs []string) ([]authz.AccessRule, error) {
	m.findOrgScopedCalls++
	var out []authz.AccessRule
	for _, r := range m.rules {
		if slices.Contains(groupIDs, r.GroupID) && r.Section == "" && r.CategoryID == "" && r.AssetID == "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockOrgCatalog implements authz.OrgCatalog.
type mockOrgCatalog struct {
	orgs []string
}

func (m *mockOrgCatalog) ListAllOrgIDs(_ context.Context) ([]string, error) {
	return m.orgs, nil
}
