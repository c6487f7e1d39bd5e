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

// AccessResolver answers hierarchical per-resource access queries.
//
// Policy: within each access group, the matching rule with the highest
// specificity is that group's best rule; across groups, the best rule with
// the most permissive mode wins. Specificity is never compared across
// groups, so a broad permissive rule in one group overrides a narrow deny
// in another. Absence of any matching rule resolves to DENIED.
type AccessResolver struct {
	membership *MembershipResolver
	rules      RuleStore
}

// NewAccessResolver creates a new hierarchical access resolver.
func NewAccessResolver(membership *MembershipResolver, rules RuleStore) *AccessResolver {
	return &AccessResolver{membership: membership, rules: rules}
}

// Resolve decides access for a single resource context.
func (r *AccessResolver) Resolve(ctx context.Context, principalID string, req RequestContext) (AccessResult, error) {
	groupIDs, err := r.membership.GroupIDs(ctx, principalID)
	if err != nil {
		return AccessResult{}, err
	}
	if len(groupIDs) == 0 {
		return AccessResult{Mode: ModeDenied}, nil
	}

	rules, err := r.rules.FindRules(ctx, groupIDs, []string{req.OrgID, WildcardOrg})
	if err != nil {
		return AccessResult{}, fmt.Errorf("failed to load access rules: %w", err)
	}
	return decide(rules, req), nil
}

// ResolveBatch decides access for many resource contexts with exactly two
// store reads (one group load, one rule load) regardless of how many
// contexts are checked. Results are keyed by asset id and are observably
// identical to calling Resolve once per context.
func (r *AccessResolver) ResolveBatch(ctx context.Context, principalID string, reqs []RequestContext) (map[string]AccessResult, error) {
	out := make(map[string]AccessResult, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	groupIDs, err := r.membership.GroupIDs(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		for _, req := range reqs {
			out[req.AssetID] = AccessResult{Mode: ModeDenied}
		}
		return out, nil
	}

	orgIDs := distinctOrgIDs(reqs)
	all, err := r.rules.FindRules(ctx, groupIDs, orgIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load access rules: %w", err)
	}

	// Index by org; wildcard rules go into their own bucket applied to
	// every context regardless of its org.
	byOrg := make(map[string][]AccessRule)
	var wildcard []AccessRule
	for _, rule := range all {
		if rule.OrgID == WildcardOrg {
			wildcard = append(wildcard, rule)
			continue
		}
		byOrg[rule.OrgID] = append(byOrg[rule.OrgID], rule)
	}

	for _, req := range reqs {
		orgRules := byOrg[req.OrgID]
		merged := make([]AccessRule, 0, len(orgRules)+len(wildcard))
		merged = append(merged, orgRules...)
		merged = append(merged, wildcard...)
		out[req.AssetID] = decide(merged, req)
	}
	return out, nil
}

// distinctOrgIDs collects the distinct org ids across the contexts plus the
// wildcard marker.
func distinctOrgIDs(reqs []RequestContext) []string {
	seen := make(map[string]struct{}, len(reqs)+1)
	out := make([]string, 0, len(reqs)+1)
	for _, req := range reqs {
		if _, ok := seen[req.OrgID]; !ok {
			seen[req.OrgID] = struct{}{}
			out = append(out, req.OrgID)
		}
	}
	if _, ok := seen[WildcardOrg]; !ok {
		out = append(out, WildcardOrg)
	}
	return out
}

type groupBest struct {
	rule  AccessRule
	match RuleMatch
}

// decide runs the per-group-best / cross-group-most-permissive policy over
// an already-loaded rule set. Pure; shared by single and batch resolution.
func decide(rules []AccessRule, req RequestContext) AccessResult {
	best := make(map[string]groupBest)
	for _, rule := range rules {
		m, ok := MatchRule(rule, req)
		if !ok {
			continue
		}
		cur, exists := best[rule.GroupID]
		switch {
		case !exists:
			best[rule.GroupID] = groupBest{rule: rule, match: m}
		case m.Specificity > cur.match.Specificity:
			best[rule.GroupID] = groupBest{rule: rule, match: m}
		case m.Specificity == cur.match.Specificity && m.Mode > cur.match.Mode:
			// Equal specificity within one group: the more permissive
			// mode wins, keeping the outcome independent of load order.
			best[rule.GroupID] = groupBest{rule: rule, match: m}
		}
	}
	if len(best) == 0 {
		return AccessResult{Mode: ModeDenied}
	}

	// Iterate groups in sorted order so attribution is deterministic when
	// two groups' best rules share the winning mode (smallest group id).
	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	winnerID := ids[0]
	winner := best[winnerID]
	for _, id := range ids[1:] {
		if gb := best[id]; gb.match.Mode > winner.match.Mode {
			winner = gb
			winnerID = id
		}
	}

	return AccessResult{
		Allowed:     winner.match.Mode.Permits(),
		Mode:        winner.match.Mode,
		Matched:     true,
		GroupID:     winnerID,
		GroupName:   winner.rule.GroupName,
		Specificity: winner.match.Specificity,
	}
}
