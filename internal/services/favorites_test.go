package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/portail-cabinet/internal/models"
)

func TestFavoriteToggleTwiceRestores(t *testing.T) {
	db, _ := setup(t)
	ctx := context.Background()
	admin := seedAdmin(t, db, "a@cabinet.fr", models.RoleAdmin)
	d := seedDossier(t, db, seedClient(t, db, "Martin", "m@client.fr"), "2025-001-MAR")
	svc := NewFavoriteService(db)

	on, err := svc.Toggle(ctx, admin.ID, FavoriteDossier, d.ID)
	require.NoError(t, err)
	assert.True(t, on)
	ok, err := svc.IsFavorite(ctx, admin.ID, FavoriteDossier, d.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	on, err = svc.Toggle(ctx, admin.ID, FavoriteDossier, d.ID)
	require.NoError(t, err)
	assert.False(t, on)

	var n int64
	db.Model(&models.Favorite{}).Count(&n)
	assert.Zero(t, n)

	_, err = svc.Toggle(ctx, admin.ID, FavoriteDossier, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFavoriteListMarksMissingTargets(t *testing.T) {
	db, _ := setup(t)
	ctx := context.Background()
	admin := seedAdmin(t, db, "a@cabinet.fr", models.RoleAdmin)
	c := seedClient(t, db, "Martin", "m@client.fr")
	svc := NewFavoriteService(db)

	_, err := svc.Toggle(ctx, admin.ID, FavoriteClient, c.ID)
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.Client{}, c.ID).Error)

	items, err := svc.List(ctx, admin.ID, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Excluded)
	assert.Nil(t, items[0].Client)
}
