package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsVIP(t *testing.T) {
	now := time.Now()
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(1, 0, 0)

	user := &User{Role: RoleVIP, VIPStartsAt: &past, VIPEndsAt: &future}
	assert.True(t, user.IsVIP())

	// Lapsed window: the role alone is not enough.
	lapsed := &User{Role: RoleVIP, VIPStartsAt: &past, VIPEndsAt: &past}
	assert.False(t, lapsed.IsVIP())

	noWindow := &User{Role: RoleVIP}
	assert.False(t, noWindow.IsVIP())

	regular := &User{Role: RoleUser, VIPEndsAt: &future}
	assert.False(t, regular.IsVIP())
}

func TestCanSell(t *testing.T) {
	now := time.Now()
	future := now.AddDate(1, 0, 0)

	assert.True(t, (&User{Role: RoleAdmin}).CanSell())
	assert.True(t, (&User{Role: RoleStaff}).CanSell())
	assert.True(t, (&User{Role: RoleVIP, VIPEndsAt: &future}).CanSell())
	assert.False(t, (&User{Role: RoleUser}).CanSell())
	assert.False(t, (&User{Role: RoleVIP}).CanSell())
}

func TestRolePrivileged(t *testing.T) {
	assert.True(t, RoleAdmin.Privileged())
	assert.True(t, RoleStaff.Privileged())
	assert.False(t, RoleUser.Privileged())
	assert.False(t, RoleVIP.Privileged())
}

func TestUserStatusValid(t *testing.T) {
	assert.True(t, UserActive.Valid())
	assert.True(t, UserInactive.Valid())
	assert.True(t, UserBanned.Valid())
	assert.False(t, UserStatus("suspended").Valid())
}
