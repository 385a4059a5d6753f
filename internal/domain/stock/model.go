package stock

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeDateLayout is the fixed pattern trade dates are written in (M/d/yyyy h:mm:ss tt).
const TradeDateLayout = "1/2/2006 3:04:05 PM"

// wireDateLayouts are accepted when decoding JSON, in order.
// The price service may emit ISO timestamps instead of the fixed pattern.
var wireDateLayouts = []string{
	TradeDateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// StockPrice is one trading observation for a ticker.
// Values are built fresh on every retrieval and never mutated afterwards.
type StockPrice struct {
	Ticker        string          `json:"ticker" db:"ticker"`
	TradeDate     time.Time       `json:"tradeDate" db:"trade_date"`
	Volume        int64           `json:"volume" db:"volume"`
	Change        decimal.Decimal `json:"change" db:"change"`
	ChangePercent decimal.Decimal `json:"changePercent" db:"change_percent"`
}

// Validate checks the invariants that hold for every record.
func (p StockPrice) Validate() error {
	if p.Ticker == "" {
		return ErrEmptyTicker
	}
	if p.Volume < 0 {
		return ErrNegativeVolume
	}
	return nil
}

// ParseTradeDate parses s with TradeDateLayout. The result is in UTC.
func ParseTradeDate(s string) (time.Time, error) {
	t, err := time.Parse(TradeDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid trade date %q: %w", s, err)
	}
	return t, nil
}

// FormatTradeDate is the inverse of ParseTradeDate.
func FormatTradeDate(t time.Time) string {
	return t.Format(TradeDateLayout)
}

// ParseVolume parses a non-negative base-10 integer.
func ParseVolume(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid volume %q: %w", s, ErrNegativeVolume)
	}
	return v, nil
}

// ParseDecimal parses an invariant decimal: ASCII digits, optional sign,
// period as decimal separator, no exponent and no grouping.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// FormatDecimal renders d keeping the scale it was parsed with,
// so "1.50" formats back to "1.50".
func FormatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

type stockPriceWire struct {
	Ticker        string      `json:"ticker"`
	TradeDate     string      `json:"tradeDate"`
	Volume        int64       `json:"volume"`
	Change        json.Number `json:"change"`
	ChangePercent json.Number `json:"changePercent"`
}

// stockPriceDecode uses pointers so a missing key can be told apart from a zero value.
type stockPriceDecode struct {
	Ticker        *string          `json:"ticker"`
	TradeDate     *string          `json:"tradeDate"`
	Volume        *int64           `json:"volume"`
	Change        *decimal.Decimal `json:"change"`
	ChangePercent *decimal.Decimal `json:"changePercent"`
}

// MarshalJSON writes the record with the fixed trade date pattern and
// decimals as JSON numbers.
func (p StockPrice) MarshalJSON() ([]byte, error) {
	return json.Marshal(stockPriceWire{
		Ticker:        p.Ticker,
		TradeDate:     FormatTradeDate(p.TradeDate),
		Volume:        p.Volume,
		Change:        json.Number(FormatDecimal(p.Change)),
		ChangePercent: json.Number(FormatDecimal(p.ChangePercent)),
	})
}

// UnmarshalJSON requires all five fields to be present and non-null.
func (p *StockPrice) UnmarshalJSON(data []byte) error {
	var raw stockPriceDecode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Ticker == nil:
		return missingField("ticker")
	case raw.TradeDate == nil:
		return missingField("tradeDate")
	case raw.Volume == nil:
		return missingField("volume")
	case raw.Change == nil:
		return missingField("change")
	case raw.ChangePercent == nil:
		return missingField("changePercent")
	}

	tradeDate, err := parseWireTradeDate(*raw.TradeDate)
	if err != nil {
		return err
	}

	decoded := StockPrice{
		Ticker:        *raw.Ticker,
		TradeDate:     tradeDate,
		Volume:        *raw.Volume,
		Change:        *raw.Change,
		ChangePercent: *raw.ChangePercent,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}

	*p = decoded
	return nil
}

func parseWireTradeDate(s string) (time.Time, error) {
	for _, layout := range wireDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid trade date %q", s)
}

func missingField(name string) error {
	return fmt.Errorf("missing field %q", name)
}
