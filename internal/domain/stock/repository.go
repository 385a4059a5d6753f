package stock

import "context"

// Repository reads stock prices for a ticker
type Repository interface {
	// GetByTicker returns the prices for ticker in source order
	GetByTicker(ctx context.Context, ticker string) ([]StockPrice, error)
}
