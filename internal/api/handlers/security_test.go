package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/store/memstore"
	"github.com/indexforge/backend/pkg/logger"
)

func newSecurityRouter(t *testing.T) (*memstore.Store, *mux.Router) {
	t.Helper()
	store := memstore.New()
	handler := NewSecurityHandler(store.Securities(), logger.NewNop())

	router := mux.NewRouter()
	router.HandleFunc("/api/securities", handler.List).Methods("GET")
	router.HandleFunc("/api/securities/{symbol}", handler.Get).Methods("GET")
	return store, router
}

func TestListSecuritiesFiltered(t *testing.T) {
	ctx := context.Background()
	store, router := newSecurityRouter(t)

	require.NoError(t, store.Securities().Save(ctx, &contracts.Security{Symbol: "AAPL", Sector: "Technology", IsActive: true}))
	require.NoError(t, store.Securities().Save(ctx, &contracts.Security{Symbol: "JPM", Sector: "Financials", IsActive: true}))
	require.NoError(t, store.Securities().Save(ctx, &contracts.Security{Symbol: "OLDX", Sector: "Technology", IsActive: false}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/securities?sector=Technology&active=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out []contracts.Security
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "AAPL", out[0].Symbol)
}

func TestGetSecurityBySymbol(t *testing.T) {
	ctx := context.Background()
	store, router := newSecurityRouter(t)
	require.NoError(t, store.Securities().Save(ctx, &contracts.Security{Symbol: "AAPL", Name: "Apple Inc.", IsActive: true}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/securities/aapl", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var sec contracts.Security
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sec))
	assert.Equal(t, "Apple Inc.", sec.Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/securities/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
