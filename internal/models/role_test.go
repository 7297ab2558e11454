package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleSuperAdmin.AtLeast(RoleAdmin))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.False(t, RoleStaff.AtLeast(RoleAdmin))
	assert.False(t, RoleUser.AtLeast(RoleStaff))

	assert.Less(t, RoleUser.Ordinal(), RoleStaff.Ordinal())
	assert.Less(t, RoleStaff.Ordinal(), RoleAdmin.Ordinal())
	assert.Less(t, RoleAdmin.Ordinal(), RoleSuperAdmin.Ordinal())
}

func TestParseRole(t *testing.T) {
	for _, want := range []Role{RoleUser, RoleStaff, RoleAdmin, RoleSuperAdmin} {
		got, err := ParseRole(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Persisted values are exact; no case folding
	_, err := ParseRole("admin")
	assert.Error(t, err)

	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRolePrivileged(t *testing.T) {
	assert.False(t, RoleUser.Privileged())
	assert.False(t, RoleStaff.Privileged())
	assert.True(t, RoleAdmin.Privileged())
	assert.True(t, RoleSuperAdmin.Privileged())
}

func TestRoleJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, `"STAFF"`, string(data))

	var r Role
	require.NoError(t, json.Unmarshal([]byte(`"SUPERADMIN"`), &r))
	assert.Equal(t, RoleSuperAdmin, r)

	assert.Error(t, json.Unmarshal([]byte(`"OVERLORD"`), &r))

	_, err = json.Marshal(Role(42))
	assert.Error(t, err)
}
