package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
)

func TestSuperAdminIsUntouchable(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	root := seedAdmin(t, db, "root@cabinet.fr", models.RoleSuperAdmin)
	staff := seedAdmin(t, db, "staff@cabinet.fr", models.RoleAdmin)
	svc := NewAdminService(db, act)
	actor := activity.AdminActor(staff)

	_, err := svc.Update(ctx, actor, root.ID, AdminInput{Name: "Renamed", Email: "x@cabinet.fr"})
	assert.ErrorIs(t, err, ErrSuperAdminProtected)
	assert.ErrorIs(t, svc.Delete(ctx, actor, root.ID), ErrSuperAdminProtected)
	_, err = svc.ResetPassword(ctx, actor, root.ID)
	assert.ErrorIs(t, err, ErrSuperAdminProtected)
	_, err = svc.ToggleStatus(ctx, actor, root.ID)
	assert.ErrorIs(t, err, ErrSuperAdminProtected)

	var after models.Admin
	require.NoError(t, db.First(&after, root.ID).Error)
	assert.Equal(t, root.Name, after.Name)
	assert.Equal(t, root.Email, after.Email)
	assert.Equal(t, root.Password, after.Password)
	assert.True(t, after.IsActive)
}

func TestAdminCreateCannotGrantSuperAdmin(t *testing.T) {
	db, act := setup(t)
	svc := NewAdminService(db, act)
	_, err := svc.Create(context.Background(), activity.System(), AdminInput{
		Name: "Eve", Email: "eve@cabinet.fr", Password: "password123", Role: models.RoleSuperAdmin,
	})
	assert.ErrorIs(t, err, ErrSuperAdminProtected)

	var n int64
	db.Model(&models.Admin{}).Count(&n)
	assert.Zero(t, n)
}

func TestAdminLifecycle(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	me := seedAdmin(t, db, "me@cabinet.fr", models.RoleSuperAdmin)
	actor := activity.AdminActor(me)
	svc := NewAdminService(db, act)

	a, err := svc.Create(ctx, actor, AdminInput{Name: "Paul", Email: " Paul@Cabinet.fr ", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "paul@cabinet.fr", a.Email)
	assert.Equal(t, models.RoleAdmin, a.Role)

	_, err = svc.Create(ctx, actor, AdminInput{Name: "Paul 2", Email: "paul@cabinet.fr", Password: "password123"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Create(ctx, actor, AdminInput{Name: "", Email: "bad", Password: "short"})
	v, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v, "name")
	assert.Contains(t, v, "email")
	assert.Contains(t, v, "password")

	toggled, err := svc.ToggleStatus(ctx, actor, a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	pw, err := svc.ResetPassword(ctx, actor, a.ID)
	require.NoError(t, err)
	reloaded, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, checkPassword(reloaded.Password, pw))

	require.NoError(t, svc.Delete(ctx, actor, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	db, act := setup(t)
	staff := seedAdmin(t, db, "staff@cabinet.fr", models.RoleAdmin)
	svc := NewAdminService(db, act)
	assert.ErrorIs(t, svc.Delete(context.Background(), activity.AdminActor(staff), staff.ID), ErrForbidden)
}
