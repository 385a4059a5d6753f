// Package csvfile reads stock prices from the comma-delimited price dataset.
//
// Line 1 is a header. Every data line carries at least 9 fields:
//
//	ticker, tradeDate, -, -, -, -, volume, change, changePercent
//
// Fields may be wrapped in ' or ". Quoted commas are not supported.
package csvfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

const (
	fieldTicker        = 0
	fieldTradeDate     = 1
	fieldVolume        = 6
	fieldChange        = 7
	fieldChangePercent = 8

	minFields = 9

	// maxLineSize bounds a single data line
	maxLineSize = 1024 * 1024
)

// Loader loads stock prices from a file on disk
type Loader struct {
	path string
}

// NewLoader creates a loader for the dataset at path
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the dataset path
func (l *Loader) Path() string {
	return l.path
}

// Load returns the prices for ticker in file order.
// A single malformed line fails the whole load.
func (l *Loader) Load(ctx context.Context, ticker string) ([]stock.StockPrice, error) {
	all, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	prices := stock.FilterByTicker(all, ticker)

	log.Debug().
		Str("path", l.path).
		Str("ticker", ticker).
		Int("total", len(all)).
		Int("matched", len(prices)).
		Msg("Stock prices loaded from file")

	return prices, nil
}

// LoadAll returns every price in the file, all tickers
func (l *Loader) LoadAll(ctx context.Context) ([]stock.StockPrice, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, stock.NewIOError(l.path, err)
	}
	defer f.Close()

	return parse(ctx, f, l.path)
}

// Parse reads a dataset from r and returns the prices for ticker in order
func Parse(r io.Reader, ticker string) ([]stock.StockPrice, error) {
	all, err := ParseAll(r)
	if err != nil {
		return nil, err
	}
	return stock.FilterByTicker(all, ticker), nil
}

// ParseAll reads a dataset from r and returns every price
func ParseAll(r io.Reader) ([]stock.StockPrice, error) {
	return parse(context.Background(), r, "")
}

func parse(ctx context.Context, r io.Reader, source string) ([]stock.StockPrice, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var prices []stock.StockPrice
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		if err := ctx.Err(); err != nil {
			return nil, stock.NewIOError(source, err)
		}

		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		price, err := ParseLine(line)
		if err != nil {
			return nil, stock.NewParseError(source, lineNo, err)
		}
		prices = append(prices, price)
	}
	if err := scanner.Err(); err != nil {
		return nil, stock.NewIOError(source, err)
	}

	if prices == nil {
		prices = []stock.StockPrice{}
	}
	return prices, nil
}

// ParseLine parses one data line into a stock price
func ParseLine(line string) (stock.StockPrice, error) {
	fields := strings.Split(line, ",")
	if len(fields) < minFields {
		return stock.StockPrice{}, fmt.Errorf("expected at least %d fields, got %d", minFields, len(fields))
	}
	for i := range fields {
		fields[i] = strings.Trim(fields[i], `'"`)
	}

	tradeDate, err := stock.ParseTradeDate(fields[fieldTradeDate])
	if err != nil {
		return stock.StockPrice{}, err
	}
	volume, err := stock.ParseVolume(fields[fieldVolume])
	if err != nil {
		return stock.StockPrice{}, err
	}
	change, err := stock.ParseDecimal(fields[fieldChange])
	if err != nil {
		return stock.StockPrice{}, fmt.Errorf("change: %w", err)
	}
	changePercent, err := stock.ParseDecimal(fields[fieldChangePercent])
	if err != nil {
		return stock.StockPrice{}, fmt.Errorf("change percent: %w", err)
	}

	price := stock.StockPrice{
		Ticker:        fields[fieldTicker],
		TradeDate:     tradeDate,
		Volume:        volume,
		Change:        change,
		ChangePercent: changePercent,
	}
	if err := price.Validate(); err != nil {
		return stock.StockPrice{}, err
	}
	return price, nil
}

// FormatLine renders a price back into a 9-field data line. Unused columns are left empty.
func FormatLine(p stock.StockPrice) string {
	fields := make([]string, minFields)
	fields[fieldTicker] = p.Ticker
	fields[fieldTradeDate] = stock.FormatTradeDate(p.TradeDate)
	fields[fieldVolume] = fmt.Sprintf("%d", p.Volume)
	fields[fieldChange] = stock.FormatDecimal(p.Change)
	fields[fieldChangePercent] = stock.FormatDecimal(p.ChangePercent)
	return strings.Join(fields, ",")
}
