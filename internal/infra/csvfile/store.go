package csvfile

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
	"golang.org/x/sync/singleflight"
)

// Store serves stock.Repository reads from the dataset file.
// The file is parsed on every read; concurrent reads share one in-flight parse.
type Store struct {
	loader *Loader
	sf     singleflight.Group
}

// NewStore creates a file-backed repository
func NewStore(path string) *Store {
	return &Store{loader: NewLoader(path)}
}

// GetByTicker implements stock.Repository
func (s *Store) GetByTicker(ctx context.Context, ticker string) ([]stock.StockPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, stock.NewIOError(s.loader.Path(), err)
	}

	ch := s.sf.DoChan(s.loader.Path(), func() (interface{}, error) {
		// detached so one caller going away does not fail the others
		return s.loader.LoadAll(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, stock.NewIOError(s.loader.Path(), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		all := res.Val.([]stock.StockPrice)
		prices := stock.FilterByTicker(all, ticker)

		log.Debug().
			Str("ticker", ticker).
			Int("matched", len(prices)).
			Bool("shared", res.Shared).
			Msg("Stock prices read from file store")

		return prices, nil
	}
}
