package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/pkg/logger"
)

// SecurityHandler handles catalog read endpoints.
type SecurityHandler struct {
	securities contracts.SecurityRepository
	logger     *logger.Logger
}

// NewSecurityHandler creates a new security handler.
func NewSecurityHandler(securities contracts.SecurityRepository, log *logger.Logger) *SecurityHandler {
	return &SecurityHandler{securities: securities, logger: log}
}

// List returns catalog securities.
// GET /api/securities?sector=...&country=...&active=true
func (h *SecurityHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := contracts.SecurityFilter{
		Sector:     r.URL.Query().Get("sector"),
		Country:    r.URL.Query().Get("country"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}

	securities, err := h.securities.List(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list securities")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, securities)
}

// Get returns one security by symbol.
// GET /api/securities/{symbol}
func (h *SecurityHandler) Get(w http.ResponseWriter, r *http.Request) {
	sec, err := h.securities.GetBySymbol(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sec)
}
