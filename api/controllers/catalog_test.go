package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smilequote-backend/internal/catalog"
	"github.com/angelmondragon/smilequote-backend/pkg/config"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
)

type fakeCatalog struct {
	gotKind   enums.PackageKind
	gotClinic *uuid.UUID
	rows      []models.CatalogPackage
	getErr    error
}

func (f *fakeCatalog) List(_ context.Context, kind enums.PackageKind, clinicID *uuid.UUID) ([]models.CatalogPackage, error) {
	f.gotKind, f.gotClinic = kind, clinicID
	return f.rows, nil
}

func (f *fakeCatalog) Get(_ context.Context, id uuid.UUID) (*models.CatalogPackage, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "package not found")
}

var _ catalog.Service = (*fakeCatalog)(nil)

func smileMakeover() models.CatalogPackage {
	code := "MAKEOVER10"
	return models.CatalogPackage{
		ID:            uuid.New(),
		Slug:          "smile-makeover",
		Kind:          enums.PackageKindPackage,
		Title:         "Smile makeover",
		PromotionCode: &code,
		IsActive:      true,
		Items: []models.CatalogPackageItem{
			{TreatmentCode: "VENEER", Name: "Veneer", UnitPriceCents: 25000, Quantity: 8},
			{TreatmentCode: "WHITEN", Name: "Whitening", UnitPriceCents: 30000, Quantity: 1},
		},
	}
}

func TestCatalogListPassesKindAndClinic(t *testing.T) {
	svc := &fakeCatalog{rows: []models.CatalogPackage{smileMakeover()}}
	clinicID := uuid.New()

	rec := httptest.NewRecorder()
	CatalogList(svc, enums.PackageKindPackage, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/packages?clinic_id="+clinicID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.PackageKindPackage, svc.gotKind)
	require.NotNil(t, svc.gotClinic)
	assert.Equal(t, clinicID, *svc.gotClinic)

	var body []catalog.PackageDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	require.Len(t, body, 1)
	assert.Equal(t, int64(230000), body[0].PriceCents)
	assert.Len(t, body[0].Items, 2)
}

func TestCatalogListRejectsBadClinic(t *testing.T) {
	rec := httptest.NewRecorder()
	CatalogList(&fakeCatalog{}, enums.PackageKindSpecialOffer, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?clinic_id=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogGet(t *testing.T) {
	pkg := smileMakeover()
	svc := &fakeCatalog{rows: []models.CatalogPackage{pkg}}

	req := withRoute(httptest.NewRequest(http.MethodGet, "/", nil), nil, map[string]string{"packageId": pkg.ID.String()})
	rec := httptest.NewRecorder()
	CatalogGet(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = withRoute(httptest.NewRequest(http.MethodGet, "/", nil), nil, map[string]string{"packageId": uuid.NewString()})
	rec = httptest.NewRecorder()
	CatalogGet(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	up := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, up, up).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-SmileQuote-Env"))

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, up, down).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Contains(t, string(env.Error.Details), `"redis":"down"`)
	assert.Contains(t, string(env.Error.Details), `"database":"up"`)
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "prod"}}
	rec := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"live"`)
}
