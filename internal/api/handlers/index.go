package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/indexforge/backend/internal/backtest"
	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/engine"
	"github.com/indexforge/backend/internal/rebalance"
	"github.com/indexforge/backend/internal/weighting"
	"github.com/indexforge/backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// IndexHandler handles index definition CRUD and engine operations.
type IndexHandler struct {
	definitions contracts.DefinitionRepository
	memberships contracts.MembershipRepository
	securities  contracts.SecurityRepository
	values      contracts.ValueRepository
	valuator    *engine.Valuator
	rebalancer  *rebalance.Rebalancer
	backtester  *backtest.Engine
	strategies  *weighting.Registry
	validate    *validator.Validate
	logger      *logger.Logger
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(
	definitions contracts.DefinitionRepository,
	memberships contracts.MembershipRepository,
	securities contracts.SecurityRepository,
	values contracts.ValueRepository,
	valuator *engine.Valuator,
	rebalancer *rebalance.Rebalancer,
	backtester *backtest.Engine,
	strategies *weighting.Registry,
	log *logger.Logger,
) *IndexHandler {
	return &IndexHandler{
		definitions: definitions,
		memberships: memberships,
		securities:  securities,
		values:      values,
		valuator:    valuator,
		rebalancer:  rebalancer,
		backtester:  backtester,
		strategies:  strategies,
		validate:    validator.New(),
		logger:      log,
	}
}

// IndexRequest is the create/update payload for an index definition.
type IndexRequest struct {
	Name               string   `json:"name" validate:"required,max=120"`
	Description        string   `json:"description"`
	WeightingMethod    string   `json:"weighting_method" validate:"required"`
	RebalanceFrequency string   `json:"rebalance_frequency" validate:"omitempty,oneof=daily weekly monthly quarterly"`
	MaxConstituents    int      `json:"max_constituents" validate:"gte=0"`
	MinMarketCap       float64  `json:"min_market_cap" validate:"gte=0"`
	MaxMarketCap       float64  `json:"max_market_cap" validate:"gte=0"`
	Sectors            []string `json:"sectors"`
	Countries          []string `json:"countries"`
	MinESGScore        float64  `json:"min_esg_score" validate:"gte=0,lte=100"`
	IsActive           *bool    `json:"is_active"`
}

func (h *IndexHandler) parseIndexRequest(w http.ResponseWriter, r *http.Request) (*IndexRequest, bool) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if _, ok := h.strategies.Get(req.WeightingMethod); !ok {
		respondError(w, http.StatusBadRequest, "Unknown weighting method "+req.WeightingMethod)
		return nil, false
	}
	if req.MaxMarketCap > 0 && req.MinMarketCap > req.MaxMarketCap {
		respondError(w, http.StatusBadRequest, "min_market_cap exceeds max_market_cap")
		return nil, false
	}
	return &req, true
}

func (req *IndexRequest) apply(def *contracts.IndexDefinition) {
	def.Name = req.Name
	def.Description = req.Description
	def.WeightingMethod = req.WeightingMethod
	def.RebalanceFrequency = req.RebalanceFrequency
	if def.RebalanceFrequency == "" {
		def.RebalanceFrequency = contracts.FrequencyMonthly
	}
	def.MaxConstituents = req.MaxConstituents
	def.MinMarketCap = req.MinMarketCap
	def.MaxMarketCap = req.MaxMarketCap
	def.Sectors = req.Sectors
	def.Countries = req.Countries
	def.MinESGScore = req.MinESGScore
	if req.IsActive != nil {
		def.IsActive = *req.IsActive
	}
}

func indexID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// queryDate parses a date query parameter, defaulting to today.
func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateLayout, raw)
}

// List returns index definitions.
// GET /api/indexes?active=true
func (h *IndexHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	definitions, err := h.definitions.List(r.Context(), activeOnly)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list indexes")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, definitions)
}

// Get returns one index definition.
// GET /api/indexes/{id}
func (h *IndexHandler) Get(w http.ResponseWriter, r *http.Request) {
	def, err := h.definitions.GetByID(r.Context(), indexID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, def)
}

// Create creates an index definition.
// POST /api/indexes
func (h *IndexHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseIndexRequest(w, r)
	if !ok {
		return
	}

	def := &contracts.IndexDefinition{IsActive: true}
	req.apply(def)

	if err := h.definitions.Create(r.Context(), def); err != nil {
		h.logger.WithError(err).Error("Failed to create index")
		respondDomainError(w, err)
		return
	}

	h.logger.WithField("index", def.Name).Info("Index created")
	respondJSON(w, http.StatusCreated, def)
}

// Update overwrites an index definition.
// PUT /api/indexes/{id}
func (h *IndexHandler) Update(w http.ResponseWriter, r *http.Request) {
	def, err := h.definitions.GetByID(r.Context(), indexID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	req, ok := h.parseIndexRequest(w, r)
	if !ok {
		return
	}
	req.apply(def)

	if err := h.definitions.Update(r.Context(), def); err != nil {
		h.logger.WithError(err).Error("Failed to update index")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, def)
}

// Delete removes an index definition and its history.
// DELETE /api/indexes/{id}
func (h *IndexHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.definitions.Delete(r.Context(), indexID(r)); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DateRequest is the payload for calculate and rebalance.
type DateRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *IndexHandler) parseDateRequest(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	var req DateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return time.Time{}, false
		}
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	if req.Date == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	date, _ := time.Parse(dateLayout, req.Date)
	return date, true
}

// Calculate values the index for a date.
// POST /api/indexes/{id}/calculate
func (h *IndexHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDateRequest(w, r)
	if !ok {
		return
	}

	result, err := h.valuator.Calculate(r.Context(), indexID(r), date)
	if err != nil {
		h.logger.WithError(err).Warn("Valuation failed")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Rebalance applies a rebalance for a date.
// POST /api/indexes/{id}/rebalance
func (h *IndexHandler) Rebalance(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDateRequest(w, r)
	if !ok {
		return
	}

	result, err := h.rebalancer.Rebalance(r.Context(), indexID(r), date)
	if err != nil {
		h.logger.WithError(err).Warn("Rebalance failed")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// BacktestRequest is the payload for a backtest run. An empty
// rebalance_frequency defers to the definition's cadence.
type BacktestRequest struct {
	StartDate          string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string `json:"end_date" validate:"required,datetime=2006-01-02"`
	RebalanceFrequency string `json:"rebalance_frequency" validate:"omitempty,oneof=daily weekly monthly quarterly"`
}

// Backtest replays the index over a date range.
// POST /api/indexes/{id}/backtest
func (h *IndexHandler) Backtest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "end_date precedes start_date")
		return
	}

	result, err := h.backtester.Run(r.Context(), indexID(r), start, end, req.RebalanceFrequency)
	if err != nil {
		h.logger.WithError(err).Warn("Backtest failed")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Performance returns the trailing performance summary.
// GET /api/indexes/{id}/performance?date=YYYY-MM-DD
func (h *IndexHandler) Performance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date parameter")
		return
	}

	summary, err := h.valuator.PerformanceSummary(r.Context(), indexID(r), asOf)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Values returns stored index values in a date range.
// GET /api/indexes/{id}/values?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *IndexHandler) Values(w http.ResponseWriter, r *http.Request) {
	to, err := queryDate(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid to parameter")
		return
	}
	from := to.AddDate(-1, 0, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(dateLayout, raw); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid from parameter")
			return
		}
	}

	id := indexID(r)
	if _, err := h.definitions.GetByID(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}

	values, err := h.values.GetRange(r.Context(), id, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query values")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, values)
}

// ConstituentResponse is one membership row joined with its catalog entry.
type ConstituentResponse struct {
	SecurityID    int64     `json:"security_id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Weight        float64   `json:"weight"`
	EffectiveDate time.Time `json:"effective_date"`
	IsNewAddition bool      `json:"is_new_addition"`
}

// Constituents returns the membership as of a date.
// GET /api/indexes/{id}/constituents?date=YYYY-MM-DD
func (h *IndexHandler) Constituents(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date parameter")
		return
	}

	id := indexID(r)
	if _, err := h.definitions.GetByID(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}

	members, err := h.memberships.ResolveAsOf(r.Context(), id, asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve membership")
		respondDomainError(w, err)
		return
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.SecurityID)
	}
	catalog, err := h.securities.GetByIDs(r.Context(), ids)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load catalog")
		respondDomainError(w, err)
		return
	}

	out := make([]ConstituentResponse, 0, len(members))
	for _, m := range members {
		item := ConstituentResponse{
			SecurityID:    m.SecurityID,
			Weight:        m.Weight,
			EffectiveDate: m.EffectiveDate,
			IsNewAddition: m.IsNewAddition,
		}
		if sec, ok := catalog[m.SecurityID]; ok {
			item.Symbol = sec.Symbol
			item.Name = sec.Name
		}
		out = append(out, item)
	}
	respondJSON(w, http.StatusOK, out)
}
