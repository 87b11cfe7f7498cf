// Package ingest loads catalog and price data into the repositories,
// either from CSV files or from the external quote provider.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/pkg/logger"
)

// LoadReport accounts for one CSV load.
type LoadReport struct {
	Loaded  int
	Skipped int
	// Per-line parse failures, capped at errorSampleLimit.
	Errors []string
}

const errorSampleLimit = 20

// CSVLoader parses and persists CSV exports.
type CSVLoader struct {
	securities contracts.SecurityRepository
	prices     contracts.PriceRepository
	logger     *logger.Logger
}

// NewCSVLoader creates a new CSV loader.
func NewCSVLoader(securities contracts.SecurityRepository, prices contracts.PriceRepository, log *logger.Logger) *CSVLoader {
	return &CSVLoader{securities: securities, prices: prices, logger: log}
}

// LoadSecuritiesFile loads a securities CSV from disk.
func (l *CSVLoader) LoadSecuritiesFile(ctx context.Context, path string) (*LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open securities file: %w", err)
	}
	defer f.Close()
	return l.LoadSecurities(ctx, f)
}

// LoadSecurities loads securities from a CSV stream. Expected header:
// symbol,name,exchange,currency,sector,industry,country,market_cap,revenue,esg_score
// The numeric columns may be empty.
func (l *CSVLoader) LoadSecurities(ctx context.Context, r io.Reader) (*LoadReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read securities header: %w", err)
	}
	cols := columnIndex(header)
	if _, ok := cols["symbol"]; !ok {
		return nil, fmt.Errorf("securities CSV is missing the symbol column")
	}

	report := &LoadReport{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.skip(line, err)
			continue
		}

		sec, err := parseSecurity(cols, record)
		if err != nil {
			report.skip(line, err)
			continue
		}
		if err := l.securities.Save(ctx, sec); err != nil {
			return nil, fmt.Errorf("save security %q: %w", sec.Symbol, err)
		}
		report.Loaded++
	}

	l.logger.WithFields(map[string]interface{}{
		"loaded":  report.Loaded,
		"skipped": report.Skipped,
	}).Info("Securities CSV loaded")
	return report, nil
}

// LoadPricesFile loads a price CSV from disk.
func (l *CSVLoader) LoadPricesFile(ctx context.Context, path string) (*LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices file: %w", err)
	}
	defer f.Close()
	return l.LoadPrices(ctx, f)
}

// LoadPrices loads price observations from a CSV stream. Expected header:
// symbol,date,open,high,low,close,volume,adjusted_close,dividend,split_ratio
// Only symbol, date and close are required. Symbols not present in the
// catalog are skipped and counted.
func (l *CSVLoader) LoadPrices(ctx context.Context, r io.Reader) (*LoadReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read prices header: %w", err)
	}
	cols := columnIndex(header)
	for _, required := range []string{"symbol", "date", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("prices CSV is missing the %s column", required)
		}
	}

	report := &LoadReport{}
	batch := make([]*contracts.PriceObservation, 0, 500)
	symbolIDs := make(map[string]int64)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.skip(line, err)
			continue
		}

		symbol := strings.ToUpper(field(cols, record, "symbol"))
		id, ok := symbolIDs[symbol]
		if !ok {
			sec, err := l.securities.GetBySymbol(ctx, symbol)
			if err != nil {
				if contracts.KindOf(err) == contracts.KindNotFound {
					report.skip(line, fmt.Errorf("unknown symbol %q", symbol))
					continue
				}
				return nil, err
			}
			id = sec.ID
			symbolIDs[symbol] = id
		}

		obs, err := parsePrice(cols, record, id)
		if err != nil {
			report.skip(line, err)
			continue
		}
		batch = append(batch, obs)

		if len(batch) == cap(batch) {
			if err := l.prices.SaveBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("save price batch: %w", err)
			}
			report.Loaded += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := l.prices.SaveBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("save price batch: %w", err)
		}
		report.Loaded += len(batch)
	}

	l.logger.WithFields(map[string]interface{}{
		"loaded":  report.Loaded,
		"skipped": report.Skipped,
	}).Info("Prices CSV loaded")
	return report, nil
}

func (r *LoadReport) skip(line int, err error) {
	r.Skipped++
	if len(r.Errors) < errorSampleLimit {
		r.Errors = append(r.Errors, fmt.Sprintf("line %d: %v", line, err))
	}
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func field(cols map[string]int, record []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseSecurity(cols map[string]int, record []string) (*contracts.Security, error) {
	symbol := strings.ToUpper(field(cols, record, "symbol"))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	sec := &contracts.Security{
		Symbol:   symbol,
		Name:     field(cols, record, "name"),
		Exchange: field(cols, record, "exchange"),
		Currency: field(cols, record, "currency"),
		Sector:   field(cols, record, "sector"),
		Industry: field(cols, record, "industry"),
		Country:  field(cols, record, "country"),
		IsActive: true,
	}
	if sec.Currency == "" {
		sec.Currency = "USD"
	}

	var err error
	if sec.MarketCap, err = optionalFloat(field(cols, record, "market_cap")); err != nil {
		return nil, fmt.Errorf("market_cap: %w", err)
	}
	if sec.Revenue, err = optionalFloat(field(cols, record, "revenue")); err != nil {
		return nil, fmt.Errorf("revenue: %w", err)
	}
	if sec.ESGScore, err = optionalFloat(field(cols, record, "esg_score")); err != nil {
		return nil, fmt.Errorf("esg_score: %w", err)
	}
	return sec, nil
}

func parsePrice(cols map[string]int, record []string, securityID int64) (*contracts.PriceObservation, error) {
	date, err := time.Parse("2006-01-02", field(cols, record, "date"))
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}

	closePrice, err := strconv.ParseFloat(field(cols, record, "close"), 64)
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	if closePrice <= 0 {
		return nil, fmt.Errorf("close must be positive, got %v", closePrice)
	}

	obs := &contracts.PriceObservation{
		SecurityID:    securityID,
		Date:          date,
		Close:         closePrice,
		AdjustedClose: closePrice,
		SplitRatio:    1,
	}
	obs.Open = floatOr(field(cols, record, "open"), closePrice)
	obs.High = floatOr(field(cols, record, "high"), closePrice)
	obs.Low = floatOr(field(cols, record, "low"), closePrice)
	obs.Volume = floatOr(field(cols, record, "volume"), 0)
	obs.AdjustedClose = floatOr(field(cols, record, "adjusted_close"), closePrice)
	obs.Dividend = floatOr(field(cols, record, "dividend"), 0)
	obs.SplitRatio = floatOr(field(cols, record, "split_ratio"), 1)
	return obs, nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func floatOr(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
