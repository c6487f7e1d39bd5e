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

// RuleRepository implements authz.RuleStore
type RuleRepository struct {
	db *DB
}

// NewRuleRepository creates a new access-rule repository
func NewRuleRepository(db *DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `
	r.id, r.group_id, g.name,
	r.org_id,
	COALESCE(r.section, ''), COALESCE(r.category_id, ''), COALESCE(r.asset_id, ''),
	r.mode
`

// FindRules retrieves every rule owned by the groups whose org id is in orgIDs
func (r *RuleRepository) FindRules(ctx context.Context, groupIDs []string, orgIDs []string) ([]authz.AccessRule, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM access_rules r
		JOIN access_groups g ON g.id = r.group_id
		WHERE r.group_id = ANY($1) AND r.org_id = ANY($2)
	`, groupIDs, orgIDs)

	if err != nil {
		return nil, fmt.Errorf("failed to list access rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// FindOrgScopedRules retrieves the groups' org-level rules across all organizations
func (r *RuleRepository) FindOrgScopedRules(ctx context.Context, groupIDs []string) ([]authz.AccessRule, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM access_rules r
		JOIN access_groups g ON g.id = r.group_id
		WHERE r.group_id = ANY($1)
		  AND r.section IS NULL AND r.category_id IS NULL AND r.asset_id IS NULL
	`, groupIDs)

	if err != nil {
		return nil, fmt.Errorf("failed to list org-level rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

func scanRules(rows pgx.Rows) ([]authz.AccessRule, error) {
	var rules []authz.AccessRule

	for rows.Next() {
		var rule authz.AccessRule
		var section, mode string
		if err := rows.Scan(
			&rule.ID, &rule.GroupID, &rule.GroupName,
			&rule.OrgID,
			&section, &rule.CategoryID, &rule.AssetID,
			&mode,
		); err != nil {
			return nil, fmt.Errorf("failed to scan access rule: %w", err)
		}
		rule.Section = authz.Section(section)
		rule.Mode = authz.ParseAccessMode(mode)
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access rules: %w", err)
	}

	return rules, nil
}
