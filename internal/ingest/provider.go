package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/pkg/config"
	"github.com/indexforge/backend/pkg/httputil"
	"github.com/indexforge/backend/pkg/logger"
)

// Quote is one scraped snapshot for a symbol.
type Quote struct {
	Symbol    string
	Close     float64
	MarketCap *float64
}

// QuoteProvider scrapes daily quotes from the configured provider's
// HTML quote pages.
type QuoteProvider struct {
	baseURL     string
	client      *httputil.Client
	concurrency int
	logger      *logger.Logger
}

// NewQuoteProvider creates a provider from configuration.
func NewQuoteProvider(cfg config.ProviderConfig, log *logger.Logger) *QuoteProvider {
	client := httputil.New(log, cfg.Timeout).
		WithRateLimit(cfg.RequestsPerSec)

	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &QuoteProvider{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      client,
		concurrency: concurrency,
		logger:      log,
	}
}

// FetchQuote scrapes the quote page for one symbol.
func (p *QuoteProvider) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	url := fmt.Sprintf("%s/quote/%s", p.baseURL, strings.ToUpper(symbol))

	resp, err := p.client.Get(ctx, url)
	if err != nil {
		return nil, contracts.Infrastructure(err, "fetch quote page for %s", symbol)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, contracts.MissingData("quote page for %s returned status %d", symbol, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, contracts.Infrastructure(err, "parse quote page for %s", symbol)
	}

	return parseQuoteDocument(doc, symbol)
}

// parseQuoteDocument extracts the quote fields from the provider's
// markup. The close price lives in [data-field="close"]; market cap in
// [data-field="market-cap"] and may be absent.
func parseQuoteDocument(doc *goquery.Document, symbol string) (*Quote, error) {
	closeText := strings.TrimSpace(doc.Find(`[data-field="close"]`).First().Text())
	if closeText == "" {
		return nil, contracts.MissingData("quote page for %s has no close price", symbol)
	}
	closePrice, err := parseNumber(closeText)
	if err != nil {
		return nil, contracts.MissingData("quote page for %s has malformed close %q", symbol, closeText)
	}
	if closePrice <= 0 {
		return nil, contracts.MissingData("quote page for %s has non-positive close %v", symbol, closePrice)
	}

	quote := &Quote{Symbol: strings.ToUpper(symbol), Close: closePrice}

	if capText := strings.TrimSpace(doc.Find(`[data-field="market-cap"]`).First().Text()); capText != "" {
		if cap, err := parseNumber(capText); err == nil && cap > 0 {
			quote.MarketCap = &cap
		}
	}

	return quote, nil
}

// parseNumber handles thousands separators and the provider's B/M/K
// magnitude suffixes.
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimPrefix(s, "$")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "T"):
		multiplier = 1e12
		s = strings.TrimSuffix(s, "T")
	case strings.HasSuffix(s, "B"):
		multiplier = 1e9
		s = strings.TrimSuffix(s, "B")
	case strings.HasSuffix(s, "M"):
		multiplier = 1e6
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		multiplier = 1e3
		s = strings.TrimSuffix(s, "K")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return v * multiplier, nil
}

// RefreshReport accounts for one quote refresh sweep.
type RefreshReport struct {
	Fetched int
	Failed  int
}

// Refresher pulls quotes for the active catalog and persists them as
// price observations for a trading date.
type Refresher struct {
	provider   *QuoteProvider
	securities contracts.SecurityRepository
	prices     contracts.PriceRepository
	logger     *logger.Logger
}

// NewRefresher creates a new quote refresher.
func NewRefresher(provider *QuoteProvider, securities contracts.SecurityRepository, prices contracts.PriceRepository, log *logger.Logger) *Refresher {
	return &Refresher{provider: provider, securities: securities, prices: prices, logger: log}
}

// Refresh fetches quotes for every active security concurrently and
// stores them under date. Individual fetch failures are counted, not
// fatal; persistence failures abort the sweep.
func (r *Refresher) Refresh(ctx context.Context, date time.Time) (*RefreshReport, error) {
	securities, err := r.securities.List(ctx, contracts.SecurityFilter{ActiveOnly: true})
	if err != nil {
		return nil, contracts.Infrastructure(err, "list active securities")
	}
	if len(securities) == 0 {
		return &RefreshReport{}, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.provider.concurrency)

	quotes := make([]*Quote, len(securities))
	for i, sec := range securities {
		group.Go(func() error {
			quote, err := r.provider.FetchQuote(groupCtx, sec.Symbol)
			if err != nil {
				if groupCtx.Err() != nil {
					return err
				}
				r.logger.WithError(err).WithField("symbol", sec.Symbol).Warn("Quote fetch failed")
				return nil
			}
			quotes[i] = quote
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	report := &RefreshReport{}
	batch := make([]*contracts.PriceObservation, 0, len(securities))
	for i, sec := range securities {
		quote := quotes[i]
		if quote == nil {
			report.Failed++
			continue
		}
		batch = append(batch, &contracts.PriceObservation{
			SecurityID:    sec.ID,
			Date:          date,
			Close:         quote.Close,
			AdjustedClose: quote.Close,
			SplitRatio:    1,
		})
		if quote.MarketCap != nil {
			sec.MarketCap = quote.MarketCap
			if err := r.securities.Save(ctx, sec); err != nil {
				return nil, contracts.Infrastructure(err, "update market cap for %s", sec.Symbol)
			}
		}
		report.Fetched++
	}

	if len(batch) > 0 {
		if err := r.prices.SaveBatch(ctx, batch); err != nil {
			return nil, contracts.Infrastructure(err, "persist refreshed quotes")
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"fetched": report.Fetched,
		"failed":  report.Failed,
	}).Info("Quote refresh completed")
	return report, nil
}
