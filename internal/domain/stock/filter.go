package stock

// FilterByTicker returns the records whose Ticker equals ticker exactly,
// in source order. An absent ticker yields an empty, non-nil slice.
func FilterByTicker(records []StockPrice, ticker string) []StockPrice {
	out := make([]StockPrice, 0, len(records))
	for _, r := range records {
		if r.Ticker == ticker {
			out = append(out, r)
		}
	}
	return out
}
