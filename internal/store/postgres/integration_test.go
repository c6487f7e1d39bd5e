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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/mspdeck/mspdeck/internal/authz"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping postgres integration tests")
	}

	ctx := context.Background()
	db, err := New(ctx, Config{
		Host:         envOr("DB_HOST", "localhost"),
		Port:         envOr("DB_PORT", "5432"),
		User:         envOr("DB_USER", "mspdeck"),
		Password:     os.Getenv("DB_PASSWORD"),
		Database:     envOr("DB_NAME", "mspdeck_test"),
		SSLMode:      envOr("DB_SSLMODE", "disable"),
		MaxOpenConns: 5,
		MinIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx, InitialSchema); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TestPurpose: Validates that rule loading filters by both group ownership
// and organization (including the wildcard bucket), so a principal's
// resolution never observes rules from groups they are not a member of.
// Scope: Database Integration Test
// Security: Access-rule isolation between groups
// Expected: Only rules owned by the requested groups and orgs are returned.
func TestRuleRepository_FindRules_Isolation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	g1 := uuid.NewString()
	g2 := uuid.NewString()
	for _, g := range []struct{ id, name string }{
		{g1, "it-" + g1[:8]},
		{g2, "it-" + g2[:8]},
	} {
		if _, err := db.pool.Exec(ctx,
			`INSERT INTO access_groups (id, name) VALUES ($1, $2)`, g.id, g.name); err != nil {
			t.Fatalf("failed to seed group: %v", err)
		}
	}

	seed := []authz.AccessRule{
		{ID: uuid.NewString(), GroupID: g1, OrgID: "org-1", Mode: authz.ModeReadOnly},
		{ID: uuid.NewString(), GroupID: g1, OrgID: "*", Mode: authz.ModeReadOnly},
		{ID: uuid.NewString(), GroupID: g2, OrgID: "org-1", Mode: authz.ModeReadWrite},
		{ID: uuid.NewString(), GroupID: g1, OrgID: "org-2", Mode: authz.ModeReadWrite},
	}
	for _, rule := range seed {
		if _, err := db.pool.Exec(ctx, `
			INSERT INTO access_rules (id, group_id, org_id, mode)
			VALUES ($1, $2, $3, $4)
		`, rule.ID, rule.GroupID, rule.OrgID, rule.Mode.String()); err != nil {
			t.Fatalf("failed to seed rule: %v", err)
		}
	}

	repo := NewRuleRepository(db)
	rules, err := repo.FindRules(ctx, []string{g1}, []string{"org-1", "*"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2 (org-1 + wildcard for g1 only)", len(rules))
	}
	for _, rule := range rules {
		if rule.GroupID != g1 {
			t.Errorf("rule %s belongs to group %s, want %s", rule.ID, rule.GroupID, g1)
		}
		if rule.OrgID != "org-1" && rule.OrgID != "*" {
			t.Errorf("rule %s has org %s, want org-1 or wildcard", rule.ID, rule.OrgID)
		}
	}
}

func TestPermissionRepository_OverrideRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	principalID := uuid.NewString()
	if _, err := db.pool.Exec(ctx, `
		INSERT INTO principals (id, email, base_role)
		VALUES ($1, $2, 'TECH')
	`, principalID, principalID+"@example.com"); err != nil {
		t.Fatalf("failed to seed principal: %v", err)
	}
	if _, err := db.pool.Exec(ctx, `
		INSERT INTO permission_overrides (principal_id, permission_key, granted)
		VALUES ($1, $2, false)
	`, principalID, string(authz.PermUsersManage)); err != nil {
		t.Fatalf("failed to seed override: %v", err)
	}

	repo := NewPermissionRepository(db)

	override, err := repo.FindOverride(ctx, principalID, authz.PermUsersManage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if override == nil || override.Granted {
		t.Fatalf("override = %+v, want revoking override", override)
	}

	missing, err := repo.FindOverride(ctx, principalID, authz.PermBillingView)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatalf("absent override = %+v, want nil", missing)
	}

	identity := NewPrincipalRepository(db)
	role, ok, err := identity.FindBaseRole(ctx, principalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || role != authz.RoleTech {
		t.Fatalf("base role = %q ok=%v, want TECH", role, ok)
	}

	_, ok, err = identity.FindBaseRole(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("unknown principal must not error: %v", err)
	}
	if ok {
		t.Fatal("unknown principal must report ok=false")
	}
}
