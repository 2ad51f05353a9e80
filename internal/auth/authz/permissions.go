// Package authz holds the role-to-permission matrix. The matrix is built once
// at startup and treated as immutable configuration data.
package authz

import (
	"sort"

	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

type Matrix struct {
	perms map[string]map[string]struct{}
}

// NewMatrix returns the default platform matrix. Admin holds every permission
// granted to any other role plus the administrative ones.
func NewMatrix() *Matrix {
	grants := map[string][]string{
		constant.RoleCustomer: {
			"content:read", "orders:own", "profile:write",
		},
		constant.RolePartner: {
			"content:read", "orders:own", "profile:write", "referrals:manage",
		},
		constant.RoleSeller: {
			"content:read", "orders:own", "profile:write", "products:manage", "orders:manage",
		},
		constant.RoleSupplier: {
			"content:read", "orders:own", "profile:write", "inventory:manage", "shipments:manage",
		},
		constant.RoleOperator: {
			"content:read", "content:manage", "orders:manage", "users:read",
		},
		constant.RoleAdmin: {
			"content:read", "content:manage", "orders:own", "orders:manage",
			"products:manage", "inventory:manage", "shipments:manage",
			"referrals:manage", "profile:write", "users:read", "users:manage",
			"accounts:lock", "sessions:revoke",
		},
	}

	m := &Matrix{perms: make(map[string]map[string]struct{}, len(grants))}
	for role, list := range grants {
		set := make(map[string]struct{}, len(list))
		for _, p := range list {
			set[p] = struct{}{}
		}
		m.perms[role] = set
	}

	return m
}

// Has reports whether the role grants the permission.
func (m *Matrix) Has(role, permission string) bool {
	set, ok := m.perms[role]
	if !ok {
		return false
	}
	_, ok = set[permission]

	return ok
}

// PermissionsFor returns the role's permissions in stable order, for
// embedding in access-token claims.
func (m *Matrix) PermissionsFor(role string) []string {
	set, ok := m.perms[role]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)

	return out
}
