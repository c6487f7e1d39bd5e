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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mspdeck/mspdeck/internal/authz"
)

func newScopeResolver(groups *mockGroupStore, rules *mockRuleStore, orgs *mockOrgCatalog) *authz.ScopeResolver {
	return authz.NewScopeResolver(authz.NewMembershipResolver(groups), rules, orgs)
}

func TestScope_DirectOrgRulesOnly(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g1", "g2"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", OrgID: "org-b", Mode: authz.ModeReadOnly},
		{ID: "r2", GroupID: "g2", OrgID: "org-a", Mode: authz.ModeReadWrite},
		// Denied org-level rule contributes nothing.
		{ID: "r3", GroupID: "g2", OrgID: "org-c", Mode: authz.ModeDenied},
		// Section-scoped rules are not org-level and are ignored here.
		{ID: "r4", GroupID: "g1", OrgID: "org-d", Section: authz.SectionPasswords, Mode: authz.ModeReadWrite},
	}}
	resolver := newScopeResolver(groups, rules, &mockOrgCatalog{})

	ids, err := resolver.AllowedOrgIDs(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"org-a", "org-b"}, ids)
}

// A non-denied wildcard org-level rule supersedes the partial set and
// expands to every organization in the catalog.
func TestScope_WildcardExpandsToCatalog(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g1"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", OrgID: "org-a", Mode: authz.ModeReadOnly},
		{ID: "r2", GroupID: "g1", OrgID: authz.WildcardOrg, Mode: authz.ModeReadOnly},
	}}
	orgs := &mockOrgCatalog{orgs: []string{"org-c", "org-a", "org-b"}}
	resolver := newScopeResolver(groups, rules, orgs)

	ids, err := resolver.AllowedOrgIDs(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"org-a", "org-b", "org-c"}, ids)
}

// A denied wildcard rule does not trigger catalog expansion.
func TestScope_DeniedWildcardDoesNotExpand(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g1"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", OrgID: authz.WildcardOrg, Mode: authz.ModeDenied},
		{ID: "r2", GroupID: "g1", OrgID: "org-a", Mode: authz.ModeReadOnly},
	}}
	orgs := &mockOrgCatalog{orgs: []string{"org-a", "org-b", "org-c"}}
	resolver := newScopeResolver(groups, rules, orgs)

	ids, err := resolver.AllowedOrgIDs(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"org-a"}, ids)
}

func TestScope_NoGroupsYieldsEmptySet(t *testing.T) {
	resolver := newScopeResolver(&mockGroupStore{}, &mockRuleStore{}, &mockOrgCatalog{orgs: []string{"org-a"}})

	ids, err := resolver.AllowedOrgIDs(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
