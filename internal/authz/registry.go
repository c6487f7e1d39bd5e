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

// PermissionKey identifies one feature/action gate ("module.action").
// Keys are immutable once defined; only keys declared below resolve to
// anything other than false.
type PermissionKey string

const (
	PermUsersView           PermissionKey = "users.view"
	PermUsersManage         PermissionKey = "users.manage"
	PermCompaniesView       PermissionKey = "companies.view"
	PermCompaniesSync       PermissionKey = "companies.sync"
	PermBillingView         PermissionKey = "billing.view"
	PermBillingReconcile    PermissionKey = "billing.reconcile"
	PermTicketsView         PermissionKey = "tickets.view"
	PermReportsView         PermissionKey = "reports.view"
	PermIntegrationsManage  PermissionKey = "integrations.manage"
	PermDocumentationView   PermissionKey = "documentation.view"
	PermDocumentationExport PermissionKey = "documentation.export"
	PermNotificationsManage PermissionKey = "notifications.manage"
)

// BaseRole is the principal's coarse platform role, assigned by the
// identity plane.
type BaseRole string

const (
	RoleAdmin BaseRole = "ADMIN"
	RoleTech  BaseRole = "TECH"
	RoleUser  BaseRole = "USER"
)

// Section names a documentation section within an organization, mirroring
// the sections exposed by the asset-management integration.
type Section string

const (
	SectionPasswords      Section = "passwords"
	SectionConfigurations Section = "configurations"
	SectionDocuments      Section = "documents"
	SectionContacts       Section = "contacts"
	SectionFlexibleAssets Section = "flexible-assets"
)

// Registry is the static catalog of permission keys and the base roles
// that receive each key by default. It is built once at startup and
// injected; resolvers never consult ambient global state.
type Registry struct {
	defaults map[PermissionKey][]BaseRole
	keys     []PermissionKey
}

// DefaultRegistry builds the platform's permission catalog.
func DefaultRegistry() *Registry {
	r := &Registry{defaults: make(map[PermissionKey][]BaseRole)}

	r.register(PermUsersView, RoleAdmin, RoleTech)
	r.register(PermUsersManage, RoleAdmin)
	r.register(PermCompaniesView, RoleAdmin, RoleTech, RoleUser)
	r.register(PermCompaniesSync, RoleAdmin)
	r.register(PermBillingView, RoleAdmin)
	r.register(PermBillingReconcile, RoleAdmin)
	r.register(PermTicketsView, RoleAdmin, RoleTech, RoleUser)
	r.register(PermReportsView, RoleAdmin, RoleTech)
	r.register(PermIntegrationsManage, RoleAdmin)
	r.register(PermDocumentationView, RoleAdmin, RoleTech)
	r.register(PermDocumentationExport, RoleAdmin)
	r.register(PermNotificationsManage, RoleAdmin, RoleTech)

	return r
}

func (r *Registry) register(key PermissionKey, roles ...BaseRole) {
	r.defaults[key] = roles
	r.keys = append(r.keys, key)
}

// Contains reports whether the key is defined in the catalog.
func (r *Registry) Contains(key PermissionKey) bool {
	_, ok := r.defaults[key]
	return ok
}

// GrantedByDefault reports whether the base role receives the key by
// default. Unknown keys always report false.
func (r *Registry) GrantedByDefault(key PermissionKey, role BaseRole) bool {
	for _, dr := range r.defaults[key] {
		if dr == role {
			return true
		}
	}
	return false
}

// Keys returns every registered key in registration order.
func (r *Registry) Keys() []PermissionKey {
	out := make([]PermissionKey, len(r.keys))
	copy(out, r.keys)
	return out
}
