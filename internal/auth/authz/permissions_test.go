package authz_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Renagang21/o4o-auth-service/internal/auth/authz"
	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

func TestMatrix_Has(t *testing.T) {
	m := authz.NewMatrix()

	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{constant.RoleCustomer, "orders:own", true},
		{constant.RoleCustomer, "accounts:lock", false},
		{constant.RoleSeller, "products:manage", true},
		{constant.RoleSeller, "inventory:manage", false},
		{constant.RoleSupplier, "inventory:manage", true},
		{constant.RoleOperator, "content:manage", true},
		{constant.RoleOperator, "sessions:revoke", false},
		{constant.RoleAdmin, "accounts:lock", true},
		{constant.RoleAdmin, "sessions:revoke", true},
		{"made-up-role", "content:read", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Has(tt.role, tt.permission), "%s / %s", tt.role, tt.permission)
	}
}

func TestMatrix_PermissionsFor(t *testing.T) {
	m := authz.NewMatrix()

	perms := m.PermissionsFor(constant.RoleCustomer)
	assert.True(t, sort.StringsAreSorted(perms))
	assert.Contains(t, perms, "content:read")

	assert.Nil(t, m.PermissionsFor("made-up-role"))
}
