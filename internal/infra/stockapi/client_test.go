package stockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var lastPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastPath.Store(r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastPath
}

func TestClient_GetStockPrices(t *testing.T) {
	body := `[{"ticker":"MSFT","tradeDate":"1/2/2018 9:30:00 AM","volume":1000,"change":1.25,"changePercent":0.5}]`
	srv, path := newServer(t, http.StatusOK, body)

	prices, err := NewClient(srv.URL).GetStockPrices(context.Background(), "MSFT")
	require.NoError(t, err)
	require.Len(t, prices, 1)

	assert.Equal(t, "/api/stocks/MSFT", path.Load())

	p := prices[0]
	assert.Equal(t, "MSFT", p.Ticker)
	assert.Equal(t, time.Date(2018, time.January, 2, 9, 30, 0, 0, time.UTC), p.TradeDate)
	assert.Equal(t, int64(1000), p.Volume)
	assert.Equal(t, "1.25", p.Change.String())
	assert.Equal(t, "0.5", p.ChangePercent.String())
}

func TestClient_GetStockPrices_NoClientSideFilter(t *testing.T) {
	body := `[
		{"ticker":"MSFT","tradeDate":"1/2/2018 9:30:00 AM","volume":1,"change":0,"changePercent":0},
		{"ticker":"AAPL","tradeDate":"1/2/2018 9:30:00 AM","volume":2,"change":0,"changePercent":0}
	]`
	srv, _ := newServer(t, http.StatusOK, body)

	prices, err := NewClient(srv.URL).GetStockPrices(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Len(t, prices, 2)
}

func TestClient_GetStockPrices_EmptyArray(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `[]`)

	prices, err := NewClient(srv.URL + "/").GetStockPrices(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.NotNil(t, prices)
	assert.Empty(t, prices)
}

func TestClient_GetStockPrices_EscapesTicker(t *testing.T) {
	srv, path := newServer(t, http.StatusOK, `[]`)

	_, err := NewClient(srv.URL).GetStockPrices(context.Background(), "BRK/B")
	require.NoError(t, err)
	assert.Equal(t, "/api/stocks/BRK%2FB", path.Load())
}

func TestClient_GetStockPrices_HTTPStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusMovedPermanently} {
		// body is not JSON: decoding it would surface as a decode error
		srv, _ := newServer(t, status, `<html>oops</html>`)

		prices, err := NewClient(srv.URL).GetStockPrices(context.Background(), "MSFT")
		require.Error(t, err)
		assert.Nil(t, prices)
		assert.ErrorIs(t, err, stock.ErrHTTPStatus)
		assert.NotErrorIs(t, err, stock.ErrDecode)

		var re *stock.RetrievalError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, status, re.StatusCode)
	}
}

func TestClient_GetStockPrices_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"object", `{"ticker":"MSFT"}`},
		{"null", `null`},
		{"empty", ``},
		{"truncated", `[{"ticker":"MSFT"`},
		{"missing field", `[{"ticker":"MSFT","tradeDate":"1/2/2018 9:30:00 AM","volume":1,"change":0}]`},
		{"bad date", `[{"ticker":"MSFT","tradeDate":"soon","volume":1,"change":0,"changePercent":0}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, http.StatusOK, tt.body)

			_, err := NewClient(srv.URL).GetStockPrices(context.Background(), "MSFT")
			require.Error(t, err)
			assert.ErrorIs(t, err, stock.ErrDecode)
		})
	}
}

func TestClient_GetStockPrices_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).GetStockPrices(context.Background(), "MSFT")
	require.Error(t, err)
	assert.ErrorIs(t, err, stock.ErrNetwork)
}

func TestClient_GetStockPrices_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	_, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond)).GetStockPrices(context.Background(), "MSFT")
	require.Error(t, err)
	assert.ErrorIs(t, err, stock.ErrNetwork)
}

func TestClient_GetStockPrices_Canceled(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL).GetStockPrices(ctx, "MSFT")
	require.Error(t, err)
	assert.ErrorIs(t, err, stock.ErrNetwork)
	assert.ErrorIs(t, err, context.Canceled)
}
