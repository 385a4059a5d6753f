package search

import (
	"context"

	"github.com/wonny/stockanalyzer/internal/domain/stock"
	"github.com/wonny/stockanalyzer/internal/infra/csvfile"
	"github.com/wonny/stockanalyzer/internal/infra/stockapi"
)

// Source retrieves the prices for one ticker
type Source interface {
	Fetch(ctx context.Context, ticker string) ([]stock.StockPrice, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, ticker string) ([]stock.StockPrice, error)

// Fetch calls f
func (f SourceFunc) Fetch(ctx context.Context, ticker string) ([]stock.StockPrice, error) {
	return f(ctx, ticker)
}

// FileSource reads and filters the local dataset
func FileSource(l *csvfile.Loader) Source {
	return SourceFunc(l.Load)
}

// APISource calls the stocks service
func APISource(c *stockapi.Client) Source {
	return SourceFunc(c.GetStockPrices)
}

// RepositorySource reads from any stock.Repository
func RepositorySource(r stock.Repository) Source {
	return SourceFunc(r.GetByTicker)
}
