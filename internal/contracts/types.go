package contracts

import "time"

// Security is catalog reference data. The engine treats it as read-only;
// ownership lives with the data catalog and ingestion.
type Security struct {
	ID        int64      `json:"id"`
	Symbol    string     `json:"symbol"`
	Name      string     `json:"name"`
	Exchange  string     `json:"exchange,omitempty"`
	Currency  string     `json:"currency"`
	Sector    string     `json:"sector,omitempty"`
	Industry  string     `json:"industry,omitempty"`
	Country   string     `json:"country,omitempty"`
	MarketCap *float64   `json:"market_cap,omitempty"`
	Revenue   *float64   `json:"revenue,omitempty"`
	ESGScore  *float64   `json:"esg_score,omitempty"` // 0-100
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PriceObservation is one daily bar for a security. At most one row per
// (security, date); immutable once ingested.
type PriceObservation struct {
	SecurityID    int64     `json:"security_id"`
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        float64   `json:"volume"`
	AdjustedClose float64   `json:"adjusted_close"`
	Dividend      float64   `json:"dividend"`
	SplitRatio    float64   `json:"split_ratio"`
}

// Rebalance frequencies accepted by IndexDefinition and backtests.
const (
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
)

// ValidFrequency reports whether frequency is one of the accepted
// rebalance cadences.
func ValidFrequency(frequency string) bool {
	switch frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		return true
	}
	return false
}

// RebalanceInterval translates a rebalance frequency into business days.
// Unknown frequencies fall back to monthly.
func RebalanceInterval(frequency string) int {
	switch frequency {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 5
	case FrequencyQuarterly:
		return 63
	default:
		return 21
	}
}

// IndexDefinition is a weighting rule plus eligibility filters. Created
// by the admin workflow; the engine consumes it read-only.
type IndexDefinition struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	WeightingMethod    string    `json:"weighting_method"`
	RebalanceFrequency string    `json:"rebalance_frequency"`
	MaxConstituents    int       `json:"max_constituents,omitempty"`
	MinMarketCap       float64   `json:"min_market_cap,omitempty"`
	MaxMarketCap       float64   `json:"max_market_cap,omitempty"`
	Sectors            []string  `json:"sectors,omitempty"`
	Countries          []string  `json:"countries,omitempty"`
	MinESGScore        float64   `json:"min_esg_score,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Membership is one row of the append-only constituent log. Removals are
// recorded as new rows with IsRemoval set, never as deletes.
type Membership struct {
	ID            int64     `json:"id"`
	IndexID       int64     `json:"index_id"`
	SecurityID    int64     `json:"security_id"`
	EffectiveDate time.Time `json:"effective_date"`
	Weight        float64   `json:"weight"`
	Shares        *float64  `json:"shares,omitempty"`
	MarketCap     *float64  `json:"market_cap,omitempty"`
	IsNewAddition bool      `json:"is_new_addition"`
	IsRemoval     bool      `json:"is_removal"`
	CreatedAt     time.Time `json:"created_at"`
}

// IndexValue is the computed scalar value for one (index, date), with
// derived metrics. Recomputation overwrites the row for that date.
type IndexValue struct {
	IndexID       int64     `json:"index_id"`
	Date          time.Time `json:"date"`
	Value         float64   `json:"value"`
	TotalReturn   float64   `json:"total_return"`
	PriceReturn   float64   `json:"price_return"`
	DividendYield float64   `json:"dividend_yield"`
	Volatility    float64   `json:"volatility"`
	SharpeRatio   float64   `json:"sharpe_ratio"`
}

// Row is a resolved constituent: membership joined with its latest price
// and catalog attributes. The selector produces these and the weighting
// strategies consume them.
type Row struct {
	SecurityID int64    `json:"security_id"`
	Symbol     string   `json:"symbol"`
	Name       string   `json:"name"`
	Sector     string   `json:"sector,omitempty"`
	Country    string   `json:"country,omitempty"`
	Close      float64  `json:"close"`
	Shares     *float64 `json:"shares,omitempty"`
	MarketCap  *float64 `json:"market_cap,omitempty"`
	Revenue    *float64 `json:"revenue,omitempty"`
	ESGScore   *float64 `json:"esg_score,omitempty"`
	Weight     float64  `json:"weight"`
}
