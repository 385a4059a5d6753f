package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

// insertBatchSize bounds the rows queued per round trip
const insertBatchSize = 1000

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS market`,
	`CREATE TABLE IF NOT EXISTS market.stock_prices (
		id             BIGSERIAL PRIMARY KEY,
		ticker         TEXT      NOT NULL,
		trade_date     TIMESTAMP NOT NULL,
		volume         BIGINT    NOT NULL CHECK (volume >= 0),
		change         NUMERIC   NOT NULL,
		change_percent NUMERIC   NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS stock_prices_ticker_idx ON market.stock_prices (ticker, id)`,
}

// StockPriceRepository stores stock prices in market.stock_prices
type StockPriceRepository struct {
	pool *Pool
}

// NewStockPriceRepository creates a new repository
func NewStockPriceRepository(pool *Pool) *StockPriceRepository {
	return &StockPriceRepository{pool: pool}
}

// EnsureSchema creates the schema, table and index if missing
func (r *StockPriceRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w: %w", stock.ErrDatabase, err)
		}
	}
	return nil
}

// GetByTicker implements stock.Repository. Rows come back in insertion order.
func (r *StockPriceRepository) GetByTicker(ctx context.Context, ticker string) ([]stock.StockPrice, error) {
	query := `
		SELECT ticker, trade_date, volume, change::text, change_percent::text
		FROM market.stock_prices
		WHERE ticker = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("get stock prices: %w: %w", stock.ErrDatabase, err)
	}
	defer rows.Close()

	prices := []stock.StockPrice{}
	for rows.Next() {
		var (
			p                     stock.StockPrice
			change, changePercent string
		)
		if err := rows.Scan(&p.Ticker, &p.TradeDate, &p.Volume, &change, &changePercent); err != nil {
			return nil, fmt.Errorf("scan stock price: %w: %w", stock.ErrDatabase, err)
		}
		if p.Change, err = stock.ParseDecimal(change); err != nil {
			return nil, fmt.Errorf("scan stock price: %w: %w", stock.ErrDatabase, err)
		}
		if p.ChangePercent, err = stock.ParseDecimal(changePercent); err != nil {
			return nil, fmt.Errorf("scan stock price: %w: %w", stock.ErrDatabase, err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock prices: %w: %w", stock.ErrDatabase, err)
	}

	return prices, nil
}

// batchSender is satisfied by both the pool and a transaction
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// InsertPrices appends prices in slice order and returns the number of rows written
func (r *StockPriceRepository) InsertPrices(ctx context.Context, prices []stock.StockPrice) (int64, error) {
	return insertPrices(ctx, r.pool, prices)
}

// ReplaceAll deletes every stored price and inserts prices in one transaction.
// On error the table is left as it was.
func (r *StockPriceRepository) ReplaceAll(ctx context.Context, prices []stock.StockPrice) (deleted, inserted int64, err error) {
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM market.stock_prices`)
		if err != nil {
			return fmt.Errorf("delete stock prices: %w: %w", stock.ErrDatabase, err)
		}
		deleted = tag.RowsAffected()

		inserted, err = insertPrices(ctx, tx, prices)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, inserted, nil
}

func insertPrices(ctx context.Context, db batchSender, prices []stock.StockPrice) (int64, error) {
	query := `
		INSERT INTO market.stock_prices (ticker, trade_date, volume, change, change_percent)
		VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric)
	`

	var inserted int64
	for start := 0; start < len(prices); start += insertBatchSize {
		end := min(start+insertBatchSize, len(prices))

		batch := &pgx.Batch{}
		for _, p := range prices[start:end] {
			batch.Queue(query,
				p.Ticker, p.TradeDate, p.Volume,
				stock.FormatDecimal(p.Change), stock.FormatDecimal(p.ChangePercent),
			)
		}

		if err := execBatch(ctx, db, batch, end-start); err != nil {
			return inserted, err
		}
		inserted += int64(end - start)

		log.Debug().
			Int64("inserted", inserted).
			Int("total", len(prices)).
			Msg("Stock price batch inserted")
	}

	return inserted, nil
}

func execBatch(ctx context.Context, db batchSender, batch *pgx.Batch, n int) error {
	br := db.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				log.Error().
					Str("code", pgErr.Code).
					Str("constraint", pgErr.ConstraintName).
					Int("row", i).
					Msg("Stock price insert rejected")
			}
			return fmt.Errorf("batch insert stock price: %w: %w", stock.ErrDatabase, err)
		}
	}
	return nil
}

// DeleteAll removes every stored price
func (r *StockPriceRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM market.stock_prices`)
	if err != nil {
		return 0, fmt.Errorf("delete stock prices: %w: %w", stock.ErrDatabase, err)
	}
	return tag.RowsAffected(), nil
}
