package catalog

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	packages := `
CREATE TABLE IF NOT EXISTS catalog_packages (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  clinic_id TEXT,
  promotion_code TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	items := `
CREATE TABLE IF NOT EXISTS catalog_package_items (
  id TEXT PRIMARY KEY,
  package_id TEXT NOT NULL,
  treatment_code TEXT NOT NULL,
  name TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  position INTEGER NOT NULL DEFAULT 0
);`
	require.NoError(t, db.Exec(packages).Error)
	require.NoError(t, db.Exec(items).Error)
	return db
}

func hollywoodSmile() *models.CatalogPackage {
	code := "SMILEPKG"
	return &models.CatalogPackage{
		Slug:          "hollywood-smile",
		Kind:          enums.PackageKindPackage,
		Title:         "Hollywood Smile",
		PromotionCode: &code,
		IsActive:      true,
		Items: []models.CatalogPackageItem{
			{TreatmentCode: "VENEER", Name: "Porcelain veneer", Category: "cosmetic", UnitPriceCents: 25000, Quantity: 8},
			{TreatmentCode: "WHITEN", Name: "Whitening", Category: "cosmetic", UnitPriceCents: 30000, Quantity: 1},
		},
	}
}

func insertPackage(t *testing.T, repo *Repository, pkg *models.CatalogPackage) {
	t.Helper()
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	for i := range pkg.Items {
		if pkg.Items[i].ID == uuid.Nil {
			pkg.Items[i].ID = uuid.New()
		}
		pkg.Items[i].PackageID = pkg.ID
		pkg.Items[i].Position = i
	}
	require.NoError(t, repo.DB(context.Background()).Create(pkg).Error)
}

func TestRepositoryListAndFind(t *testing.T) {
	repo := NewRepository(setupCatalogTestDB(t))
	ctx := context.Background()

	pkg := hollywoodSmile()
	insertPackage(t, repo, pkg)
	offer := &models.CatalogPackage{Slug: "free-consult", Kind: enums.PackageKindSpecialOffer, Title: "Free consult", IsActive: true,
		Items: []models.CatalogPackageItem{{TreatmentCode: "CONSULT", Name: "Consultation", UnitPriceCents: 0, Quantity: 1}}}
	insertPackage(t, repo, offer)
	inactive := &models.CatalogPackage{Slug: "retired", Kind: enums.PackageKindPackage, Title: "Retired", IsActive: false}
	insertPackage(t, repo, inactive)

	var stored models.CatalogPackage
	require.NoError(t, repo.DB(ctx).First(&stored, "id = ?", inactive.ID).Error)
	assert.False(t, stored.IsActive)

	packages, err := repo.ListActive(ctx, enums.PackageKindPackage)
	require.NoError(t, err)
	require.Len(t, packages, 1)
	require.Len(t, packages[0].Items, 2)
	assert.Equal(t, "VENEER", packages[0].Items[0].TreatmentCode)
	assert.Equal(t, "WHITEN", packages[0].Items[1].TreatmentCode)

	offers, err := repo.ListActive(ctx, enums.PackageKindSpecialOffer)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	found, err := repo.FindActiveByID(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, "SMILEPKG", *found.PromotionCode)

	_, err = repo.FindActiveByID(ctx, inactive.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

type stubCatalogRepo struct {
	rows      []models.CatalogPackage
	listCalls int
}

func (s *stubCatalogRepo) ListActive(_ context.Context, kind enums.PackageKind) ([]models.CatalogPackage, error) {
	s.listCalls++
	var out []models.CatalogPackage
	for _, row := range s.rows {
		if row.Kind == kind {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubCatalogRepo) FindActiveByID(_ context.Context, id uuid.UUID) (*models.CatalogPackage, error) {
	for _, row := range s.rows {
		if row.ID == id {
			r := row
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type memoryCache struct {
	data map[string]string
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if b, ok := value.([]byte); ok {
		m.data[key] = string(b)
		return nil
	}
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) CacheKey(scope string, parts ...string) string {
	return strings.Join(append([]string{scope}, parts...), ":")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
}

func TestServiceListCachesAndFiltersByClinic(t *testing.T) {
	clinicA := uuid.New()
	clinicB := uuid.New()
	repo := &stubCatalogRepo{rows: []models.CatalogPackage{
		{ID: uuid.New(), Kind: enums.PackageKindSpecialOffer, Title: "Everywhere"},
		{ID: uuid.New(), Kind: enums.PackageKindSpecialOffer, Title: "Only A", ClinicID: &clinicA},
		{ID: uuid.New(), Kind: enums.PackageKindSpecialOffer, Title: "Only B", ClinicID: &clinicB},
	}}
	cache := &memoryCache{data: map[string]string{}}
	svc, err := NewService(repo, cache, time.Minute, testLogger())
	require.NoError(t, err)

	all, err := svc.List(context.Background(), enums.PackageKindSpecialOffer, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := svc.List(context.Background(), enums.PackageKindSpecialOffer, &clinicA)
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, "Everywhere", forA[0].Title)
	assert.Equal(t, "Only A", forA[1].Title)

	assert.Equal(t, 1, repo.listCalls)
}

func TestServiceListRejectsUnknownKind(t *testing.T) {
	svc, err := NewService(&stubCatalogRepo{}, nil, 0, testLogger())
	require.NoError(t, err)

	_, err = svc.List(context.Background(), enums.PackageKind("bundle"), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceGetMissingPackage(t *testing.T) {
	svc, err := NewService(&stubCatalogRepo{}, nil, 0, testLogger())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, enums.WarningPackageNotFound, typed.Details().(map[string]any)["reason"])
}
