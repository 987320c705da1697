package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/db/dbtest"
	"github.com/diewo77/portail-cabinet/internal/models"
)

func setup(t *testing.T) (*gorm.DB, *activity.Logger) {
	t.Helper()
	db := dbtest.New(t)
	return db, activity.NewLogger(db, nil)
}

func seedAdmin(t *testing.T, db *gorm.DB, email string, role models.AdminRole) *models.Admin {
	t.Helper()
	hash, err := hashPassword("password123")
	require.NoError(t, err)
	a := &models.Admin{Name: email, Email: email, Password: hash, Role: role, IsActive: true}
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedClient(t *testing.T, db *gorm.DB, nom, email string) *models.Client {
	t.Helper()
	hash, err := hashPassword("password123")
	require.NoError(t, err)
	c := &models.Client{Nom: nom, Email: email, Password: hash, IsActive: true}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedDossier(t *testing.T, db *gorm.DB, c *models.Client, ref string) *models.Dossier {
	t.Helper()
	d := &models.Dossier{Reference: ref, Intitule: "Litige " + ref, Status: models.DossierOuvert, ClientID: c.ID}
	require.NoError(t, db.Create(d).Error)
	return d
}

func boolPtr(b bool) *bool { return &b }
