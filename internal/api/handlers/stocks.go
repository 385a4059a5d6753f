package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/wonny/stockanalyzer/internal/api/middleware"
	"github.com/wonny/stockanalyzer/internal/api/response"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

// StocksHandler serves stock prices by ticker
type StocksHandler struct {
	repo stock.Repository
}

// NewStocksHandler creates a new StocksHandler
func NewStocksHandler(repo stock.Repository) *StocksHandler {
	return &StocksHandler{repo: repo}
}

// GetByTicker returns the prices for a ticker as a bare JSON array
// GET /api/stocks/{ticker}
func (h *StocksHandler) GetByTicker(w http.ResponseWriter, r *http.Request) {
	// the router keeps paths encoded so tickers like BRK%2FB survive
	ticker, err := url.PathUnescape(mux.Vars(r)["ticker"])
	if err != nil || ticker == "" {
		response.BadRequest(w, r, "Invalid ticker")
		return
	}

	prices, err := h.repo.GetByTicker(r.Context(), ticker)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}

	log.Debug().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("ticker", ticker).
		Int("count", len(prices)).
		Msg("Stock prices served")

	if prices == nil {
		prices = []stock.StockPrice{}
	}
	response.JSON(w, http.StatusOK, prices)
}

func (h *StocksHandler) writeRepoError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case stock.IsParseError(err):
		response.ErrorWithDetails(w, r, http.StatusInternalServerError,
			response.ErrCodeDataParseError, "Stock data is malformed", err.Error())
	case errors.Is(err, stock.ErrIO):
		response.ErrorWithDetails(w, r, http.StatusInternalServerError,
			response.ErrCodeDataSourceError, "Stock data is unavailable", err.Error())
	case errors.Is(err, stock.ErrDatabase):
		response.ErrorWithDetails(w, r, http.StatusInternalServerError,
			response.ErrCodeDatabaseError, "Database operation failed", err.Error())
	default:
		response.InternalError(w, r, err)
	}
}
