package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
	"github.com/wonny/stockanalyzer/internal/infra/database/postgres"
	"github.com/wonny/stockanalyzer/internal/pkg/config"
)

// newTestPool connects to TEST_DATABASE_URL or skips
func newTestPool(t *testing.T) *postgres.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires PostgreSQL (set TEST_DATABASE_URL)")
	}

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:             url,
			MaxConns:        2,
			MinConns:        0,
			MaxConnLifetime: time.Minute,
			MaxConnIdleTime: time.Minute,
		},
		Logging: config.LoggingConfig{Level: "debug"},
	}

	pool, err := postgres.NewPool(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestStockPriceRepository_InsertAndGet(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	repo := postgres.NewStockPriceRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	_, err := repo.DeleteAll(ctx)
	require.NoError(t, err)

	day := time.Date(2018, time.January, 2, 9, 30, 0, 0, time.UTC)
	prices := []stock.StockPrice{
		{Ticker: "MSFT", TradeDate: day, Volume: 1000, Change: decimal.RequireFromString("1.25"), ChangePercent: decimal.RequireFromString("0.50")},
		{Ticker: "AAPL", TradeDate: day, Volume: 2000, Change: decimal.RequireFromString("-0.10"), ChangePercent: decimal.RequireFromString("-0.06")},
		{Ticker: "MSFT", TradeDate: day.AddDate(0, 0, 1), Volume: 3000, Change: decimal.RequireFromString("0.40"), ChangePercent: decimal.RequireFromString("0.47")},
	}

	n, err := repo.InsertPrices(ctx, prices)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := repo.GetByTicker(ctx, "MSFT")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, day.Equal(got[0].TradeDate), got[0].TradeDate.String())
	assert.Equal(t, int64(3000), got[1].Volume)
	assert.Equal(t, "0.50", stock.FormatDecimal(got[0].ChangePercent))

	none, err := repo.GetByTicker(ctx, "GOOG")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStockPriceRepository_ReplaceAll(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	repo := postgres.NewStockPriceRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	_, err := repo.DeleteAll(ctx)
	require.NoError(t, err)

	day := time.Date(2018, time.January, 2, 9, 30, 0, 0, time.UTC)
	old := stock.StockPrice{Ticker: "MSFT", TradeDate: day, Volume: 1, Change: decimal.Zero, ChangePercent: decimal.Zero}
	_, err = repo.InsertPrices(ctx, []stock.StockPrice{old})
	require.NoError(t, err)

	fresh := old
	fresh.Volume = 2
	deleted, inserted, err := repo.ReplaceAll(ctx, []stock.StockPrice{fresh, fresh})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, int64(2), inserted)

	// the volume check rejects the second row, so nothing changes
	bad := fresh
	bad.Volume = -1
	_, _, err = repo.ReplaceAll(ctx, []stock.StockPrice{old, bad})
	require.ErrorIs(t, err, stock.ErrDatabase)

	got, err := repo.GetByTicker(ctx, "MSFT")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Volume)
}

func TestNewPool_BadURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "://not-a-url"}}

	_, err := postgres.NewPool(context.Background(), cfg)
	assert.Error(t, err)
}
