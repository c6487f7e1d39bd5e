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

func newAccessResolver(groups *mockGroupStore, rules *mockRuleStore) *authz.AccessResolver {
	return authz.NewAccessResolver(authz.NewMembershipResolver(groups), rules)
}

func TestAccess_DenyByDefaultWithoutGroups(t *testing.T) {
	resolver := newAccessResolver(&mockGroupStore{}, &mockRuleStore{})

	res, err := resolver.Resolve(context.Background(), "user-1", authz.RequestContext{OrgID: "org-1"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, authz.ModeDenied, res.Mode)
	assert.False(t, res.Matched)
}

// An org-level READ_ONLY rule covers every narrower request inside that
// organization when nothing more specific matches.
func TestAccess_OrgLevelRuleCoversAssetRequest(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g1"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", GroupName: "Helpdesk", OrgID: "org-1", Mode: authz.ModeReadOnly},
	}}
	resolver := newAccessResolver(groups, rules)

	res, err := resolver.Resolve(context.Background(), "user-1", authz.RequestContext{
		OrgID:   "org-1",
		Section: authz.SectionPasswords,
		AssetID: "pw-1",
	})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, authz.ModeReadOnly, res.Mode)
	assert.Equal(t, "Helpdesk", res.GroupName)
	assert.Equal(t, authz.SpecificityOrg, res.Specificity)
}

// A narrow DENIED in a second group does not override a broad READ_ONLY in
// the first: specificity is compared within a group, permissiveness across
// groups. This union semantics is deliberate.
func TestAccess_CrossGroupMostPermissiveWins(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g1", "g2"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", GroupName: "Helpdesk", OrgID: "org-1", Mode: authz.ModeReadOnly},
		{ID: "r2", GroupID: "g2", GroupName: "Restricted", OrgID: "org-1", AssetID: "pw-1", Mode: authz.ModeDenied},
	}}
	resolver := newAccessResolver(groups, rules)

	res, err := resolver.Resolve(context.Background(), "user-1", authz.RequestContext{
		OrgID:   "org-1",
		Section: authz.SectionPasswords,
		AssetID: "pw-1",
	})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, authz.ModeReadOnly, res.Mode)
	assert.Equal(t, "g1", res.GroupID)
}

// Within one group, the asset-scoped rule always beats the section-scoped
// rule for a request both match, whatever the modes are.
func TestAccess_SpecificityWinsWithinGroup(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g1"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", OrgID: "org-1", Section: authz.SectionPasswords, Mode: authz.ModeReadWrite},
		{ID: "r2", GroupID: "g1", OrgID: "org-1", AssetID: "pw-1", Mode: authz.ModeDenied},
	}}
	resolver := newAccessResolver(groups, rules)

	res, err := resolver.Resolve(context.Background(), "user-1", authz.RequestContext{
		OrgID:   "org-1",
		Section: authz.SectionPasswords,
		AssetID: "pw-1",
	})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, authz.ModeDenied, res.Mode)
	assert.Equal(t, authz.SpecificityAsset, res.Specificity)
}

func TestAccess_WildcardRuleParticipates(t *testing.T) {
	groups := &mockGroupStore{viaRoles: map[string][]string{"user-1": {"g1"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", GroupName: "Global Read", OrgID: authz.WildcardOrg, Mode: authz.ModeReadOnly},
	}}
	resolver := newAccessResolver(groups, rules)

	res, err := resolver.Resolve(context.Background(), "user-1", authz.RequestContext{OrgID: "org-42"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, authz.SpecificityWildcard, res.Specificity)
}

func TestAccess_NoMatchingRuleDenies(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g1"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", OrgID: "org-2", Mode: authz.ModeReadWrite},
	}}
	resolver := newAccessResolver(groups, rules)

	res, err := resolver.Resolve(context.Background(), "user-1", authz.RequestContext{OrgID: "org-1"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.False(t, res.Matched)
}

// Attribution under an equal cross-group mode is deterministic: the group
// with the lexicographically smallest id wins the tie.
func TestAccess_EqualModeTieBreaksOnGroupID(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g-zulu", "g-alpha"}}}
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g-zulu", GroupName: "Zulu", OrgID: "org-1", Mode: authz.ModeReadOnly},
		{ID: "r2", GroupID: "g-alpha", GroupName: "Alpha", OrgID: "org-1", Mode: authz.ModeReadOnly},
	}}
	resolver := newAccessResolver(groups, rules)

	for i := 0; i < 10; i++ {
		res, err := resolver.Resolve(context.Background(), "user-1", authz.RequestContext{OrgID: "org-1"})
		require.NoError(t, err)
		assert.Equal(t, "g-alpha", res.GroupID)
		assert.Equal(t, "Alpha", res.GroupName)
	}
}

// TestPurpose: Validates that batch resolution yields exactly the same
// decision per context as resolving each context individually, while
// issuing a single rule load for the whole batch.
// Scope: Unit Test
// Expected: Identical {allowed, mode} per asset; one FindRules call.
func TestAccess_BatchMatchesSingle(t *testing.T) {
	groups := &mockGroupStore{direct: map[string][]string{"user-1": {"g1", "g2"}}}
	ruleSet := []authz.AccessRule{
		{ID: "r1", GroupID: "g1", GroupName: "Helpdesk", OrgID: "org-1", Mode: authz.ModeReadOnly},
		{ID: "r2", GroupID: "g1", GroupName: "Helpdesk", OrgID: "org-2", Section: authz.SectionConfigurations, Mode: authz.ModeReadWrite},
		{ID: "r3", GroupID: "g2", GroupName: "Restricted", OrgID: "org-1", AssetID: "pw-2", Mode: authz.ModeDenied},
		{ID: "r4", GroupID: "g2", GroupName: "Global Read", OrgID: authz.WildcardOrg, Mode: authz.ModeReadOnly},
	}
	contexts := []authz.RequestContext{
		{OrgID: "org-1", Section: authz.SectionPasswords, AssetID: "pw-1"},
		{OrgID: "org-1", Section: authz.SectionPasswords, AssetID: "pw-2"},
		{OrgID: "org-2", Section: authz.SectionConfigurations, AssetID: "cfg-1"},
		{OrgID: "org-3", Section: authz.SectionDocuments, AssetID: "doc-1"},
	}

	batchRules := &mockRuleStore{rules: ruleSet}
	batchResolver := newAccessResolver(groups, batchRules)
	batch, err := batchResolver.ResolveBatch(context.Background(), "user-1", contexts)
	require.NoError(t, err)
	assert.Equal(t, 1, batchRules.findRulesCalls, "batch must load rules exactly once")
	require.Len(t, batch, len(contexts))

	singleResolver := newAccessResolver(groups, &mockRuleStore{rules: ruleSet})
	for _, rc := range contexts {
		single, err := singleResolver.Resolve(context.Background(), "user-1", rc)
		require.NoError(t, err)
		got := batch[rc.AssetID]
		assert.Equal(t, single.Allowed, got.Allowed, "asset %s", rc.AssetID)
		assert.Equal(t, single.Mode, got.Mode, "asset %s", rc.AssetID)
		assert.Equal(t, single.GroupID, got.GroupID, "asset %s", rc.AssetID)
		assert.Equal(t, single.Specificity, got.Specificity, "asset %s", rc.AssetID)
	}
}

func TestAccess_BatchEmptyGroupsDeniesAll(t *testing.T) {
	rules := &mockRuleStore{rules: []authz.AccessRule{
		{ID: "r1", GroupID: "g1", OrgID: "org-1", Mode: authz.ModeReadWrite},
	}}
	resolver := newAccessResolver(&mockGroupStore{}, rules)

	batch, err := resolver.ResolveBatch(context.Background(), "user-1", []authz.RequestContext{
		{OrgID: "org-1", AssetID: "a-1"},
		{OrgID: "org-2", AssetID: "a-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rules.findRulesCalls, "no rule load when the principal has no groups")
	for assetID, res := range batch {
		assert.False(t, res.Allowed, "asset %s", assetID)
		assert.Equal(t, authz.ModeDenied, res.Mode, "asset %s", assetID)
	}
}

func TestMembership_UnionDeduplicates(t *testing.T) {
	groups := &mockGroupStore{
		direct:   map[string][]string{"user-1": {"g2", "g1"}},
		viaRoles: map[string][]string{"user-1": {"g1", "g3"}},
	}
	resolver := authz.NewMembershipResolver(groups)

	ids, err := resolver.GroupIDs(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2", "g3"}, ids)
}
