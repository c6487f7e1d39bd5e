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

import "context"

// WildcardOrg marks an access rule that matches any organization.
const WildcardOrg = "*"

// AccessMode is the permissiveness level granted by an access rule.
// Values are ordered: a higher mode is strictly more permissive.
type AccessMode int

const (
	ModeDenied AccessMode = iota
	ModeReadOnly
	ModeReadWrite
)

// String returns the wire representation of the mode.
func (m AccessMode) String() string {
	switch m {
	case ModeReadWrite:
		return "READ_WRITE"
	case ModeReadOnly:
		return "READ_ONLY"
	default:
		return "DENIED"
	}
}

// Permits reports whether the mode grants any level of access.
func (m AccessMode) Permits() bool {
	return m != ModeDenied
}

// ParseAccessMode maps a stored mode string to its AccessMode.
// Unknown values resolve to ModeDenied, never to implicit access.
func ParseAccessMode(s string) AccessMode {
	switch s {
	case "READ_WRITE":
		return ModeReadWrite
	case "READ_ONLY":
		return ModeReadOnly
	default:
		return ModeDenied
	}
}

// Specificity ranks how narrowly a rule targets a request context.
// Higher specificity wins within a single access group.
type Specificity int

const (
	SpecificityWildcard Specificity = iota - 1
	SpecificityOrg
	SpecificitySection
	SpecificityCategory
	SpecificityAsset
)

// AccessRule is one hierarchical access rule owned by an access group.
// Scope fields are monotonically nested; an empty field means the rule is
// not constrained at that level.
type AccessRule struct {
	ID         string
	GroupID    string
	GroupName  string
	OrgID      string // WildcardOrg matches every organization
	Section    Section
	CategoryID string
	AssetID    string
	Mode       AccessMode
}

// RequestContext identifies the resource being checked. It is constructed
// per call and never persisted.
type RequestContext struct {
	OrgID      string
	Section    Section
	CategoryID string
	AssetID    string
}

// AccessResult is the outcome of a hierarchical access resolution.
// Matched is false when no rule matched and the deny-by-default applied;
// GroupID/GroupName/Specificity are only meaningful when Matched is true.
type AccessResult struct {
	Allowed     bool
	Mode        AccessMode
	Matched     bool
	GroupID     string
	GroupName   string
	Specificity Specificity
}

// PermissionOverride is a per-principal grant or revoke of a single
// permission key. When present it is authoritative over all other tiers.
type PermissionOverride struct {
	PrincipalID string
	Key         PermissionKey
	Granted     bool
}

// PermissionRole is a named bundle of flat permission keys assignable to
// principals.
type PermissionRole struct {
	ID   string
	Name string
	Keys []PermissionKey
}

// Grants reports whether the role's bundle contains the key.
func (r *PermissionRole) Grants(key PermissionKey) bool {
	for _, k := range r.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// PermissionSource identifies the tier that produced a resolved permission.
type PermissionSource string

const (
	SourceOverride       PermissionSource = "override"
	SourcePermissionRole PermissionSource = "permission-role"
	SourceBaseRole       PermissionSource = "role"
)

// EffectivePermission reports one registry key's resolved value and the
// tier that produced it. RoleName is set only when Source is
// SourcePermissionRole.
type EffectivePermission struct {
	Key      PermissionKey    `json:"key"`
	Granted  bool             `json:"granted"`
	Source   PermissionSource `json:"source"`
	RoleName string           `json:"role_name,omitempty"`
}

// PermissionStore is the read port for flat permission data.
type PermissionStore interface {
	// FindOverride returns the override for (principal, key), or nil when
	// none exists.
	FindOverride(ctx context.Context, principalID string, key PermissionKey) (*PermissionOverride, error)

	// FindAllOverrides returns every override the principal holds for the
	// given keys in a single read.
	FindAllOverrides(ctx context.Context, principalID string, keys []PermissionKey) ([]PermissionOverride, error)

	// FindRoleGrants returns the union of permission keys granted by every
	// permission role assigned to the principal.
	FindRoleGrants(ctx context.Context, principalID string) (map[PermissionKey]struct{}, error)

	// ListAssignedRoles returns the principal's permission roles with their
	// full key bundles, for per-role attribution.
	ListAssignedRoles(ctx context.Context, principalID string) ([]PermissionRole, error)
}

// IdentityStore is the read port for principal identity data.
type IdentityStore interface {
	// FindBaseRole returns the principal's base role. The second return is
	// false when the principal is unknown; that is not an error.
	FindBaseRole(ctx context.Context, principalID string) (BaseRole, bool, error)
}

// GroupStore is the read port for access-group membership.
type GroupStore interface {
	// FindDirectGroupIDs returns groups assigned to the principal directly.
	FindDirectGroupIDs(ctx context.Context, principalID string) ([]string, error)

	// FindGroupIDsViaRoles returns groups reachable through the principal's
	// permission-role assignments.
	FindGroupIDsViaRoles(ctx context.Context, principalID string) ([]string, error)
}

// RuleStore is the read port for hierarchical access rules.
type RuleStore interface {
	// FindRules returns every rule owned by the given groups whose org id
	// is in orgIDs. Callers include WildcardOrg in orgIDs when wildcard
	// rules should participate.
	FindRules(ctx context.Context, groupIDs []string, orgIDs []string) ([]AccessRule, error)

	// FindOrgScopedRules returns the groups' org-level rules (no section,
	// category or asset constraint) across all organizations.
	FindOrgScopedRules(ctx context.Context, groupIDs []string) ([]AccessRule, error)
}

// OrgCatalog lists the organizations known to the platform. Used only for
// wildcard scope expansion.
type OrgCatalog interface {
	ListAllOrgIDs(ctx context.Context) ([]string, error)
}
