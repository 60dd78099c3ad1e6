package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/pipeline"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	NewHandler("sqlite", pipeline.DefaultConfig(), assumption.MustDefaultCatalog()).RegisterRoutes(r)
	return r
}

func TestHandleConfig(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sqlite", resp.StoreDriver)
	assert.Equal(t, 3, resp.Horizon)
	assert.Equal(t, 0.28, resp.Params.TaxRate)
	assert.Equal(t, 0.01, resp.Validation.Tolerance)
}

func TestHandleCheckOverrides(t *testing.T) {
	body := `{"0": {"2025": 5}, "cogs_ratio": {"2026": 58}}`
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/config/overrides/check", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5.0, resp.Overrides["sales_growth"][2025])
	assert.Equal(t, 58.0, resp.Overrides["cogs_ratio"][2026])
}

func TestHandleCheckOverrides_Rejects(t *testing.T) {
	for _, body := range []string{`{"99": {"2025": 1}}`, `{"sales_growth": {"next": 1}}`} {
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/config/overrides/check", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
