package weighting

import (
	"github.com/indexforge/backend/internal/contracts"
)

// EqualWeight assigns 1/N to every constituent.
type EqualWeight struct{}

func (EqualWeight) Name() string { return MethodEqual }

func (EqualWeight) Weights(rows []contracts.Row) ([]float64, error) {
	return equalWeights(len(rows)), nil
}

// MarketCapWeight weights by market capitalization. A row without a cap
// snapshot falls back to price × shares; if any row has neither, the
// whole set degrades to equal weighting.
type MarketCapWeight struct{}

func (MarketCapWeight) Name() string { return MethodMarketCap }

func (MarketCapWeight) Weights(rows []contracts.Row) ([]float64, error) {
	caps := make([]float64, len(rows))
	total := 0.0
	for i, row := range rows {
		cap, ok := resolveCap(row)
		if !ok {
			return equalWeights(len(rows)), nil
		}
		caps[i] = cap
		total += cap
	}

	if len(rows) > 0 && total == 0 {
		return nil, contracts.DegenerateWeight("market caps sum to zero across %d constituents", len(rows))
	}

	weights := make([]float64, len(rows))
	for i, cap := range caps {
		weights[i] = cap / total
	}
	return weights, nil
}

func resolveCap(row contracts.Row) (float64, bool) {
	if row.MarketCap != nil {
		return *row.MarketCap, true
	}
	if row.Shares != nil {
		return row.Close * *row.Shares, true
	}
	return 0, false
}

// PriceWeight weights by close price (Dow Jones convention).
type PriceWeight struct{}

func (PriceWeight) Name() string { return MethodPrice }

func (PriceWeight) Weights(rows []contracts.Row) ([]float64, error) {
	total := 0.0
	for _, row := range rows {
		if row.Close <= 0 {
			return nil, contracts.MissingData("price weighting requires a positive close price for %s", row.Symbol)
		}
		total += row.Close
	}

	if len(rows) > 0 && total == 0 {
		return nil, contracts.DegenerateWeight("close prices sum to zero across %d constituents", len(rows))
	}

	weights := make([]float64, len(rows))
	for i, row := range rows {
		weights[i] = row.Close / total
	}
	return weights, nil
}

// RevenueWeight weights by trailing revenue.
type RevenueWeight struct{}

func (RevenueWeight) Name() string { return MethodRevenue }

func (RevenueWeight) Weights(rows []contracts.Row) ([]float64, error) {
	total := 0.0
	for _, row := range rows {
		if row.Revenue == nil {
			return nil, contracts.MissingData("revenue weighting requires revenue data for %s", row.Symbol)
		}
		total += *row.Revenue
	}

	if len(rows) > 0 && total == 0 {
		return nil, contracts.DegenerateWeight("revenues sum to zero across %d constituents", len(rows))
	}

	weights := make([]float64, len(rows))
	for i, row := range rows {
		weights[i] = *row.Revenue / total
	}
	return weights, nil
}

// ESGWeight weights by ESG score, normalized from the 0-100 scale. Rows
// without a score degrade the whole set to equal weighting.
type ESGWeight struct{}

func (ESGWeight) Name() string { return MethodESG }

func (ESGWeight) Weights(rows []contracts.Row) ([]float64, error) {
	scores := make([]float64, len(rows))
	total := 0.0
	for i, row := range rows {
		if row.ESGScore == nil {
			return equalWeights(len(rows)), nil
		}
		scores[i] = *row.ESGScore / 100.0
		total += scores[i]
	}

	if len(rows) > 0 && total == 0 {
		return nil, contracts.DegenerateWeight("ESG scores sum to zero across %d constituents", len(rows))
	}

	weights := make([]float64, len(rows))
	for i, score := range scores {
		weights[i] = score / total
	}
	return weights, nil
}

func equalWeights(n int) []float64 {
	if n == 0 {
		return nil
	}
	weights := make([]float64, n)
	w := 1.0 / float64(n)
	for i := range weights {
		weights[i] = w
	}
	return weights
}
