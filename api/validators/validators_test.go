package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
)

type applyPayload struct {
	Code    string `json:"code" validate:"required,max=64"`
	QuoteID string `json:"quote_id" validate:"required,uuid"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"SUMMER25","quote_id":"`+uuid.NewString()+`","extra":1}`))
	var payload applyPayload
	err := DecodeJSONBody(req, &payload)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quote_id":"not-a-uuid"}`))
	var payload applyPayload
	err := DecodeJSONBody(req, &payload)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["code"])
	assert.Equal(t, "is invalid", details["quote_id"])
}

func TestParsePathUUID(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("quoteId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParsePathUUID(req, "quoteId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParsePathUUID(req, "lineId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseExpectedRevision(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rev, err := ParseExpectedRevision(req)
	require.NoError(t, err)
	assert.Nil(t, rev)

	req.Header.Set("If-Match", `"7"`)
	rev, err = ParseExpectedRevision(req)
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, int64(7), *rev)

	bad := httptest.NewRequest(http.MethodPost, "/?expected_revision=-1", nil)
	_, err = ParseExpectedRevision(bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "SUMMER", SanitizeString("  SUMMER25  ", 6))
	assert.Equal(t, "code", SanitizeString(" code ", 0))
}
