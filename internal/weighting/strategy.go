// Package weighting assigns fractional weights to index constituents.
// Each method is a Strategy registered by name; the engine never switches
// on method names itself.
package weighting

import (
	"github.com/indexforge/backend/internal/contracts"
)

// Strategy maps a constituent row set to per-row weights. Pure transform:
// no side effects, weights sum to 1 within 1e-6 on well-formed input.
type Strategy interface {
	Name() string
	Weights(rows []contracts.Row) ([]float64, error)
}

// Method names as stored on IndexDefinition.WeightingMethod.
const (
	MethodEqual     = "equal_weight"
	MethodMarketCap = "market_cap_weight"
	MethodPrice     = "price_weight"
	MethodRevenue   = "revenue_weight"
	MethodESG       = "esg_weight"
)

// Registry maps method names to strategies. Adding a method is a new
// Strategy implementation plus one Register call.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry with the five built-in methods.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register(EqualWeight{})
	r.Register(MarketCapWeight{})
	r.Register(PriceWeight{})
	r.Register(RevenueWeight{})
	r.Register(ESGWeight{})
	return r
}

// Register adds a strategy under its name, replacing any previous one.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get looks up a strategy by method name.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Methods returns the registered method names.
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}
