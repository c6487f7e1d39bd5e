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

// ScopeResolver derives the set of organizations a principal has any
// non-denied access to, based on org-level rules across their groups.
type ScopeResolver struct {
	membership *MembershipResolver
	rules      RuleStore
	orgs       OrgCatalog
}

// NewScopeResolver creates a new allowed-scope resolver.
func NewScopeResolver(membership *MembershipResolver, rules RuleStore, orgs OrgCatalog) *ScopeResolver {
	return &ScopeResolver{membership: membership, rules: rules, orgs: orgs}
}

// AllowedOrgIDs returns every org id for which some group of the principal
// holds a non-denied org-level rule. A non-denied wildcard org-level rule
// expands the result to every organization in the catalog, superseding the
// partial set. The result is sorted.
func (r *ScopeResolver) AllowedOrgIDs(ctx context.Context, principalID string) ([]string, error) {
	groupIDs, err := r.membership.GroupIDs(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		return []string{}, nil
	}

	rules, err := r.rules.FindOrgScopedRules(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load org-level rules: %w", err)
	}

	seen := make(map[string]struct{})
	wildcard := false
	for _, rule := range rules {
		if !rule.Mode.Permits() {
			continue
		}
		if rule.OrgID == WildcardOrg {
			wildcard = true
			continue
		}
		seen[rule.OrgID] = struct{}{}
	}

	if wildcard {
		all, err := r.orgs.ListAllOrgIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list organizations: %w", err)
		}
		out := make([]string, len(all))
		copy(out, all)
		sort.Strings(out)
		return out, nil
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
