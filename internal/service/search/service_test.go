package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

// gatedSource returns canned prices, optionally holding a ticker until released
type gatedSource struct {
	mu    sync.Mutex
	data  map[string][]stock.StockPrice
	errs  map[string]error
	gates map[string]chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		data:  map[string][]stock.StockPrice{},
		errs:  map[string]error{},
		gates: map[string]chan struct{}{},
	}
}

func (g *gatedSource) hold(ticker string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[ticker] = ch
	return ch
}

func (g *gatedSource) Fetch(ctx context.Context, ticker string) ([]stock.StockPrice, error) {
	g.mu.Lock()
	gate := g.gates[ticker]
	prices, err := g.data[ticker], g.errs[ticker]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return prices, err
}

func prices(ticker string, volumes ...int64) []stock.StockPrice {
	out := make([]stock.StockPrice, 0, len(volumes))
	for _, v := range volumes {
		out = append(out, stock.StockPrice{Ticker: ticker, Volume: v})
	}
	return out
}

func withTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func TestService_SearchPresentsResult(t *testing.T) {
	src := newGatedSource()
	src.data["MSFT"] = prices("MSFT", 1, 2)
	display := NewDisplay()
	svc := NewService(src, display)

	seq := svc.Search(context.Background(), "MSFT")
	assert.Equal(t, uint64(1), seq)

	res, err := svc.Next(withTimeout(t, time.Second))
	require.NoError(t, err)
	assert.Equal(t, seq, res.Seq)
	assert.NoError(t, res.Err)

	assert.Equal(t, prices("MSFT", 1, 2), display.Prices())
	assert.Regexp(t, `^Loaded stocks for MSFT in \d+ms$`, display.Status())
	assert.Empty(t, display.Notes())
}

func TestService_SequenceIsMonotonic(t *testing.T) {
	svc := NewService(newGatedSource(), NewDisplay())
	ctx := context.Background()

	assert.Equal(t, uint64(1), svc.Search(ctx, "A"))
	assert.Equal(t, uint64(2), svc.Search(ctx, "B"))
	assert.Equal(t, uint64(3), svc.Search(ctx, "C"))
	assert.Equal(t, uint64(3), svc.Latest())
	svc.Wait()
}

func TestService_DiscardsStaleResults(t *testing.T) {
	src := newGatedSource()
	src.data["SLOW"] = prices("SLOW", 10)
	src.data["FAST"] = prices("FAST", 20)
	release := src.hold("SLOW")

	display := NewDisplay()
	svc := NewService(src, display)
	ctx := context.Background()

	svc.Search(ctx, "SLOW")
	latest := svc.Search(ctx, "FAST")

	res, err := svc.Next(withTimeout(t, time.Second))
	require.NoError(t, err)
	assert.Equal(t, latest, res.Seq)
	assert.Equal(t, prices("FAST", 20), display.Prices())

	// the superseded retrieval finishes late and must not win
	close(release)
	svc.Wait()

	_, err = svc.Next(withTimeout(t, 50*time.Millisecond))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, prices("FAST", 20), display.Prices())
	assert.Contains(t, display.Status(), "FAST")
}

func waitReturns(t *testing.T, wait func(), d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("retrievals still running")
	}
}

func TestService_WaitWithManySupersededResults(t *testing.T) {
	const n = resultBuffer + 4

	src := newGatedSource()
	gates := make([]chan struct{}, n)
	tickers := make([]string, n)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d", i)
		src.data[tickers[i]] = prices(tickers[i], int64(i))
		gates[i] = src.hold(tickers[i])
	}

	display := NewDisplay()
	svc := NewService(src, display)
	for _, ticker := range tickers {
		svc.Search(context.Background(), ticker)
	}

	close(gates[n-1])
	res, err := svc.Next(withTimeout(t, time.Second))
	require.NoError(t, err)
	assert.Equal(t, uint64(n), res.Seq)

	for _, gate := range gates[:n-1] {
		close(gate)
	}

	waitReturns(t, svc.Wait, 2*time.Second)
	assert.Equal(t, prices(tickers[n-1], int64(n-1)), display.Prices())
	assert.Empty(t, svc.Results())
}

func TestService_CloseCancelsInFlight(t *testing.T) {
	src := newGatedSource()
	src.hold("SLOW")

	svc := NewService(src, NewDisplay())
	svc.Search(context.Background(), "SLOW")

	waitReturns(t, svc.Close, time.Second)
}

func TestService_ErrorKeepsDisplayedPrices(t *testing.T) {
	src := newGatedSource()
	src.data["MSFT"] = prices("MSFT", 1)
	src.errs["BAD"] = stock.NewParseError("prices.csv", 7, errors.New("invalid volume"))

	display := NewDisplay()
	svc := NewService(src, display)
	ctx := withTimeout(t, time.Second)

	svc.Search(ctx, "MSFT")
	_, err := svc.Next(ctx)
	require.NoError(t, err)

	svc.Search(ctx, "BAD")
	res, err := svc.Next(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, res.Err, stock.ErrParse)
	assert.Equal(t, prices("MSFT", 1), display.Prices())
	assert.Contains(t, display.Notes(), "parse error at line 7")
	assert.Contains(t, display.Status(), "BAD")
}

func TestService_EmptyResultReplacesDisplay(t *testing.T) {
	src := newGatedSource()
	src.data["MSFT"] = prices("MSFT", 1)
	src.data["NONE"] = []stock.StockPrice{}

	display := NewDisplay()
	svc := NewService(src, display)
	ctx := withTimeout(t, time.Second)

	svc.Search(ctx, "MSFT")
	_, err := svc.Next(ctx)
	require.NoError(t, err)

	svc.Search(ctx, "NONE")
	_, err = svc.Next(ctx)
	require.NoError(t, err)

	assert.Empty(t, display.Prices())
}

func TestService_Run(t *testing.T) {
	src := newGatedSource()
	src.data["MSFT"] = prices("MSFT", 5)

	display := NewDisplay()
	svc := NewService(src, display)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	svc.Search(ctx, "MSFT")
	require.Eventually(t, func() bool {
		return len(display.Prices()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestService_Retrieve(t *testing.T) {
	src := newGatedSource()
	src.errs["DOWN"] = stock.NewHTTPStatusError("http://localhost/api/stocks/DOWN", 503)

	display := NewDisplay()
	svc := NewService(src, display)

	res := svc.Retrieve(context.Background(), "DOWN")
	assert.ErrorIs(t, res.Err, stock.ErrHTTPStatus)
	assert.Equal(t, uint64(0), res.Seq)
	assert.Empty(t, display.Status())
}

func TestTablePresenter(t *testing.T) {
	var buf bytes.Buffer
	p := NewTablePresenter(&buf)

	tradeDate, err := stock.ParseTradeDate("1/2/2018 9:30:00 AM")
	require.NoError(t, err)
	change, _ := stock.ParseDecimal("1.25")
	pct, _ := stock.ParseDecimal("0.50")

	Present(p, Result{
		Ticker:  "MSFT",
		Prices:  []stock.StockPrice{{Ticker: "MSFT", TradeDate: tradeDate, Volume: 1000, Change: change, ChangePercent: pct}},
		Elapsed: 12 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "TICKER")
	assert.Contains(t, out, "1/2/2018 9:30:00 AM")
	assert.Contains(t, out, "0.50")
	assert.Contains(t, out, "Loaded stocks for MSFT in 12ms")

	buf.Reset()
	Present(p, Result{Ticker: "X", Err: errors.New("connection refused")})
	assert.Contains(t, buf.String(), "error: connection refused")
	assert.NotContains(t, buf.String(), "TICKER")
}

type mapRepo map[string][]stock.StockPrice

func (m mapRepo) GetByTicker(ctx context.Context, ticker string) ([]stock.StockPrice, error) {
	return m[ticker], nil
}

func TestRepositorySource(t *testing.T) {
	display := NewDisplay()
	svc := NewService(RepositorySource(mapRepo{"MSFT": prices("MSFT", 7)}), display)

	svc.Search(context.Background(), "MSFT")
	_, err := svc.Next(withTimeout(t, time.Second))
	require.NoError(t, err)
	assert.Equal(t, prices("MSFT", 7), display.Prices())
}
