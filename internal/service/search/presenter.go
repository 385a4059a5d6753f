package search

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

// Presenter displays search outcomes
type Presenter interface {
	// Present replaces the displayed prices
	Present(prices []stock.StockPrice)
	// PresentError shows an error message, leaving the displayed prices unchanged
	PresentError(message string)
	// PresentStatus shows the status line (elapsed time)
	PresentStatus(status string)
}

// Display keeps the currently displayed prices, status and notes in memory
type Display struct {
	mu     sync.RWMutex
	prices []stock.StockPrice
	status string
	notes  string
}

// NewDisplay creates an empty display
func NewDisplay() *Display {
	return &Display{}
}

func (d *Display) Present(prices []stock.StockPrice) {
	cp := make([]stock.StockPrice, len(prices))
	copy(cp, prices)

	d.mu.Lock()
	d.prices = cp
	d.mu.Unlock()
}

func (d *Display) PresentError(message string) {
	d.mu.Lock()
	d.notes = message
	d.mu.Unlock()
}

func (d *Display) PresentStatus(status string) {
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
}

// Prices returns a copy of the displayed prices
func (d *Display) Prices() []stock.StockPrice {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cp := make([]stock.StockPrice, len(d.prices))
	copy(cp, d.prices)
	return cp
}

func (d *Display) Status() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Display) Notes() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.notes
}

// TablePresenter writes results as an aligned table
type TablePresenter struct {
	w io.Writer
}

// NewTablePresenter creates a presenter writing to w
func NewTablePresenter(w io.Writer) *TablePresenter {
	return &TablePresenter{w: w}
}

func (p *TablePresenter) Present(prices []stock.StockPrice) {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TICKER\tTRADE DATE\tVOLUME\tCHANGE\tCHANGE %\t")
	for _, sp := range prices {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n",
			sp.Ticker,
			stock.FormatTradeDate(sp.TradeDate),
			sp.Volume,
			stock.FormatDecimal(sp.Change),
			stock.FormatDecimal(sp.ChangePercent),
		)
	}
	tw.Flush()
}

func (p *TablePresenter) PresentError(message string) {
	fmt.Fprintf(p.w, "error: %s\n", message)
}

func (p *TablePresenter) PresentStatus(status string) {
	fmt.Fprintln(p.w, status)
}
