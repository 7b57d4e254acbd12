package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/smilequote-backend/internal/catalog"
	"github.com/angelmondragon/smilequote-backend/internal/promotions"
	"github.com/angelmondragon/smilequote-backend/internal/quotes"
	pkgAuth "github.com/angelmondragon/smilequote-backend/pkg/auth"
	"github.com/angelmondragon/smilequote-backend/pkg/config"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	"github.com/angelmondragon/smilequote-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) {
	return true, nil
}

type stubCatalog struct{}

func (stubCatalog) List(_ context.Context, kind enums.PackageKind, _ *uuid.UUID) ([]models.CatalogPackage, error) {
	return []models.CatalogPackage{{ID: uuid.New(), Slug: "smile-makeover", Kind: kind, Title: "Smile makeover"}}, nil
}

func (stubCatalog) Get(_ context.Context, id uuid.UUID) (*models.CatalogPackage, error) {
	return &models.CatalogPackage{ID: id, Kind: enums.PackageKindPackage}, nil
}

var _ catalog.Service = stubCatalog{}

type stubPromotions struct {
	promotions.Service
}

func (stubPromotions) List(context.Context, promotions.ListFilter, pagination.Params) ([]models.Promotion, string, error) {
	return []models.Promotion{}, "", nil
}

type stubQuotes struct {
	quotes.Service
	submitted int
}

func (s *stubQuotes) List(context.Context, pkgAuth.AuthContext, *enums.QuoteStatus, pagination.Params) ([]models.Quote, string, error) {
	return []models.Quote{}, "", nil
}

func (s *stubQuotes) Submit(_ context.Context, _ pkgAuth.AuthContext, quoteID uuid.UUID, _ quotes.Totals, _ *int64) (*models.Quote, error) {
	s.submitted++
	return &models.Quote{ID: quoteID, Status: enums.QuoteStatusSubmitted}, nil
}

type memoryIdempotency struct {
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	m.data[key] = str
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}, MaxAgeSeconds: 60},
		RateLimit: config.RateLimitConfig{Window: time.Minute},
	}
}

func testParams(cfg *config.Config) Params {
	return Params{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard}),
		DB:         stubPinger{},
		Redis:      stubPinger{},
		Sessions:   stubSessions{},
		Quotes:     &stubQuotes{},
		Promotions: stubPromotions{},
		Catalog:    stubCatalog{},
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	payload := pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role, JTI: uuid.NewString()}
	switch role {
	case enums.RolePatient:
		id := uuid.New()
		payload.PatientID = &id
	case enums.RoleClinic:
		id := uuid.New()
		payload.ClinicID = &id
	}
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestMetricsExposedWhenGathererSet(t *testing.T) {
	params := testParams(testConfig())
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "smilequote_router_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	params.Gatherer = reg

	resp := httptest.NewRecorder()
	NewRouter(params).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "smilequote_router_test_total 1") {
		t.Fatalf("expected counter in output, got %s", resp.Body.String())
	}
}

func TestMetricsAbsentWithoutGatherer(t *testing.T) {
	resp := httptest.NewRecorder()
	NewRouter(testParams(testConfig())).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	for _, path := range []string{"/api/v1/packages", "/api/v1/special-offers"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestQuotesRejectMissingJWT(t *testing.T) {
	router := NewRouter(testParams(testConfig()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/apply-code", strings.NewReader(`{}`)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on apply-code without token got %d", resp.Code)
	}
}

func TestQuotesListWithToken(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(testParams(cfg))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RolePatient))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminPromotionsRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(testParams(cfg))

	for _, role := range []enums.Role{enums.RolePatient, enums.RoleClinic} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/promotions", nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 got %d", role, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/promotions", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestSubmitRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	params := testParams(cfg)
	params.Idempotency = &memoryIdempotency{data: map[string]string{}}
	router := NewRouter(params)

	path := "/api/v1/quotes/" + uuid.NewString() + "/submit"
	body := `{"subtotal_cents":1000,"discount_cents":0,"total_cents":1000}`
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RolePatient))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}
}

func TestSubmitReplaysWithSameIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	params := testParams(cfg)
	params.Idempotency = &memoryIdempotency{data: map[string]string{}}
	svc := &stubQuotes{}
	params.Quotes = svc
	router := NewRouter(params)

	token := buildToken(t, cfg, enums.RolePatient)
	path := "/api/v1/quotes/" + uuid.NewString() + "/submit"
	body := `{"subtotal_cents":1000,"discount_cents":0,"total_cents":1000}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "submit-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	if svc.submitted != 1 {
		t.Fatalf("expected one submit, got %d", svc.submitted)
	}
}
