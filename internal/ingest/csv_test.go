package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexforge/backend/internal/store/memstore"
	"github.com/indexforge/backend/pkg/logger"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLoadSecurities(t *testing.T) {
	store := memstore.New()
	loader := NewCSVLoader(store.Securities(), store.Prices(), logger.NewNop())

	csvData := strings.Join([]string{
		"symbol,name,sector,country,market_cap,revenue,esg_score",
		"aapl,Apple Inc.,Technology,US,3000000000000,400000000000,72.5",
		"MSFT,Microsoft,Technology,US,2800000000000,,",
		",missing symbol,Technology,US,,,",
	}, "\n")

	report, err := loader.LoadSecurities(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "line 4")

	// Symbols are normalized to upper case, currency defaults to USD.
	sec, err := store.Securities().GetBySymbol(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", sec.Name)
	assert.Equal(t, "USD", sec.Currency)
	assert.Equal(t, 3e12, *sec.MarketCap)
	assert.Equal(t, 72.5, *sec.ESGScore)

	msft, err := store.Securities().GetBySymbol(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Nil(t, msft.Revenue)
	assert.Nil(t, msft.ESGScore)
}

func TestLoadSecuritiesRejectsBadNumbers(t *testing.T) {
	store := memstore.New()
	loader := NewCSVLoader(store.Securities(), store.Prices(), logger.NewNop())

	csvData := "symbol,market_cap\nAAPL,not-a-number\n"

	report, err := loader.LoadSecurities(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Zero(t, report.Loaded)
	assert.Equal(t, 1, report.Skipped)
}

func TestLoadSecuritiesMissingSymbolColumn(t *testing.T) {
	store := memstore.New()
	loader := NewCSVLoader(store.Securities(), store.Prices(), logger.NewNop())

	_, err := loader.LoadSecurities(context.Background(), strings.NewReader("name,sector\nApple,Technology\n"))
	require.Error(t, err)
}

func TestLoadPrices(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	loader := NewCSVLoader(store.Securities(), store.Prices(), logger.NewNop())

	_, err := loader.LoadSecurities(ctx, strings.NewReader("symbol,name\nAAPL,Apple\n"))
	require.NoError(t, err)

	csvData := strings.Join([]string{
		"symbol,date,open,close,volume",
		"AAPL,2024-01-05,149.5,150.0,1000000",
		"AAPL,2024-01-08,,152.5,",
		"UNKN,2024-01-05,,10.0,",    // not in catalog
		"AAPL,bad-date,,150.0,",     // malformed date
		"AAPL,2024-01-09,,-1,",      // non-positive close
	}, "\n")

	report, err := loader.LoadPrices(ctx, strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 3, report.Skipped)

	sec, err := store.Securities().GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)

	obs, err := store.Prices().GetLatestAtOrBefore(ctx, sec.ID, day("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 150.0, obs.Close)
	assert.Equal(t, 149.5, obs.Open)

	// Missing open falls back to close; missing split ratio defaults to 1.
	obs, err = store.Prices().GetLatestAtOrBefore(ctx, sec.ID, day("2024-01-08"))
	require.NoError(t, err)
	assert.Equal(t, 152.5, obs.Open)
	assert.Equal(t, 1.0, obs.SplitRatio)
}
