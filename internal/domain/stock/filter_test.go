package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterByTicker(t *testing.T) {
	records := []StockPrice{
		{Ticker: "MSFT", Volume: 1},
		{Ticker: "AAPL", Volume: 2},
		{Ticker: "MSFT", Volume: 3},
		{Ticker: "msft", Volume: 4},
	}

	got := FilterByTicker(records, "MSFT")
	assert.Equal(t, []StockPrice{{Ticker: "MSFT", Volume: 1}, {Ticker: "MSFT", Volume: 3}}, got)

	// absent ticker is empty, not an error
	none := FilterByTicker(records, "GOOG")
	assert.NotNil(t, none)
	assert.Empty(t, none)

	assert.Empty(t, FilterByTicker(nil, "MSFT"))
}
