package services

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/internal/models"
)

func TestLoginPerRealm(t *testing.T) {
	db, _ := setup(t)
	ctx := context.Background()
	admin := seedAdmin(t, db, "a@cabinet.fr", models.RoleAdmin)
	seedClient(t, db, "Martin", "martin@client.fr")
	svc := NewAuthService(db)

	res, err := svc.Login(ctx, auth.RealmAdmin, " A@Cabinet.fr", "password123")
	require.NoError(t, err)
	assert.False(t, res.TwoFactorRequired)
	assert.Equal(t, admin.ID, res.Account.ID())
	assert.NotNil(t, res.Account.Admin.LastLoginAt)

	_, err = svc.Login(ctx, auth.RealmAdmin, "martin@client.fr", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, auth.RealmClient, "martin@client.fr", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err = svc.Login(ctx, auth.RealmClient, "martin@client.fr", "password123")
	require.NoError(t, err)
	assert.NotNil(t, res.Account.Client)
}

func TestLoginInactiveAccount(t *testing.T) {
	db, _ := setup(t)
	a := seedAdmin(t, db, "a@cabinet.fr", models.RoleAdmin)
	require.NoError(t, db.Model(a).Update("is_active", false).Error)

	_, err := NewAuthService(db).Login(context.Background(), auth.RealmAdmin, "a@cabinet.fr", "password123")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestTwoFactorFlow(t *testing.T) {
	db, _ := setup(t)
	ctx := context.Background()
	c := seedClient(t, db, "Martin", "martin@client.fr")
	svc := NewAuthService(db)

	_, err := svc.VerifyTwoFactor(ctx, auth.RealmClient, c.ID, "123456")
	assert.ErrorIs(t, err, ErrTwoFactorNotSetup)

	key, err := svc.SetupTwoFactor(ctx, auth.RealmClient, c.ID)
	require.NoError(t, err)
	assert.Contains(t, key.URL, "otpauth://totp/")

	assert.ErrorIs(t, svc.EnableTwoFactor(ctx, auth.RealmClient, c.ID, "000000"), ErrInvalidTOTP)
	code, err := totp.GenerateCode(key.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.EnableTwoFactor(ctx, auth.RealmClient, c.ID, code))

	res, err := svc.Login(ctx, auth.RealmClient, "martin@client.fr", "password123")
	require.NoError(t, err)
	assert.True(t, res.TwoFactorRequired)

	_, err = svc.VerifyTwoFactor(ctx, auth.RealmClient, c.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidTOTP)
	acc, err := svc.VerifyTwoFactor(ctx, auth.RealmClient, c.ID, code)
	require.NoError(t, err)
	assert.Equal(t, c.ID, acc.ID())

	require.NoError(t, svc.DisableTwoFactor(ctx, auth.RealmClient, c.ID, code))
	var stored models.Client
	require.NoError(t, db.First(&stored, c.ID).Error)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TwoFactorSecret)
}

func TestChangePassword(t *testing.T) {
	db, _ := setup(t)
	ctx := context.Background()
	a := seedAdmin(t, db, "a@cabinet.fr", models.RoleAdmin)
	svc := NewAuthService(db)

	assert.ErrorIs(t, svc.ChangePassword(ctx, auth.RealmAdmin, a.ID, "nope", "new-password"), ErrInvalidPassword)
	_, ok := AsValidation(svc.ChangePassword(ctx, auth.RealmAdmin, a.ID, "password123", "short"))
	assert.True(t, ok)

	require.NoError(t, svc.ChangePassword(ctx, auth.RealmAdmin, a.ID, "password123", "new-password"))
	_, err := svc.Login(ctx, auth.RealmAdmin, "a@cabinet.fr", "new-password")
	assert.NoError(t, err)
	assert.True(t, svc.Active(ctx, auth.RealmAdmin, a.ID))
	assert.False(t, svc.Active(ctx, auth.RealmClient, a.ID+100))
}
