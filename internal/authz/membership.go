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

// MembershipResolver computes the access groups a principal belongs to,
// directly or through permission-role assignments.
type MembershipResolver struct {
	store GroupStore
}

// NewMembershipResolver creates a new group membership resolver.
func NewMembershipResolver(store GroupStore) *MembershipResolver {
	return &MembershipResolver{store: store}
}

// GroupIDs returns the de-duplicated union of the principal's direct group
// assignments and the groups reachable via assigned permission roles.
// The result is sorted so downstream iteration is deterministic.
func (m *MembershipResolver) GroupIDs(ctx context.Context, principalID string) ([]string, error) {
	direct, err := m.store.FindDirectGroupIDs(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load direct group assignments: %w", err)
	}
	viaRoles, err := m.store.FindGroupIDsViaRoles(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role-linked groups: %w", err)
	}

	seen := make(map[string]struct{}, len(direct)+len(viaRoles))
	out := make([]string, 0, len(direct)+len(viaRoles))
	for _, id := range direct {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range viaRoles {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
