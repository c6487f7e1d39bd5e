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

// RuleMatch is the score of one rule against one request context.
type RuleMatch struct {
	Specificity Specificity
	Mode        AccessMode
}

// matchFunc scores one rule shape. It reports false when the rule does not
// have that shape or does not match the context at that level.
type matchFunc func(rule AccessRule, req RequestContext) (Specificity, bool)

// Rule shapes are disjoint (keyed off which scope fields are set), so at
// most one predicate fires per rule. Evaluating all and keeping the
// maximum keeps each predicate independently testable.
var matchFuncs = []matchFunc{
	matchWildcard,
	matchOrg,
	matchSection,
	matchCategory,
	matchAsset,
}

// MatchRule scores one access rule against one request context. The second
// return is false when the rule does not match at any level; a mismatch at
// a deep level never degrades to a shallower partial match.
func MatchRule(rule AccessRule, req RequestContext) (RuleMatch, bool) {
	var best RuleMatch
	matched := false
	for _, fn := range matchFuncs {
		spec, ok := fn(rule, req)
		if !ok {
			continue
		}
		if !matched || spec > best.Specificity {
			best = RuleMatch{Specificity: spec, Mode: rule.Mode}
		}
		matched = true
	}
	return best, matched
}

// matchWildcard: org "*" with no narrower scope matches every context.
func matchWildcard(rule AccessRule, _ RequestContext) (Specificity, bool) {
	if rule.OrgID == WildcardOrg && rule.Section == "" && rule.CategoryID == "" && rule.AssetID == "" {
		return SpecificityWildcard, true
	}
	return 0, false
}

func orgMatches(rule AccessRule, req RequestContext) bool {
	return rule.OrgID != WildcardOrg && rule.OrgID == req.OrgID
}

// matchOrg: rule constrained only by organization.
func matchOrg(rule AccessRule, req RequestContext) (Specificity, bool) {
	if orgMatches(rule, req) && rule.Section == "" && rule.CategoryID == "" && rule.AssetID == "" {
		return SpecificityOrg, true
	}
	return 0, false
}

// matchSection: rule constrained down to a documentation section.
func matchSection(rule AccessRule, req RequestContext) (Specificity, bool) {
	if orgMatches(rule, req) && rule.Section != "" && rule.CategoryID == "" && rule.AssetID == "" &&
		rule.Section == req.Section {
		return SpecificitySection, true
	}
	return 0, false
}

// matchCategory: rule constrained down to a category within a section.
func matchCategory(rule AccessRule, req RequestContext) (Specificity, bool) {
	if orgMatches(rule, req) && rule.Section != "" && rule.CategoryID != "" && rule.AssetID == "" &&
		rule.Section == req.Section && rule.CategoryID == req.CategoryID {
		return SpecificityCategory, true
	}
	return 0, false
}

// matchAsset: rule pinned to an individual asset. The rule's section, when
// present, must agree with the context's section when both are supplied.
func matchAsset(rule AccessRule, req RequestContext) (Specificity, bool) {
	if !orgMatches(rule, req) || rule.AssetID == "" || rule.AssetID != req.AssetID {
		return 0, false
	}
	if rule.Section != "" && req.Section != "" && rule.Section != req.Section {
		return 0, false
	}
	return SpecificityAsset, true
}
