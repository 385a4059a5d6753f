// Package search runs stock price retrievals off the presentation goroutine
// and hands their results back through a single channel.
package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

// resultBuffer lets a burst of finished retrievals park without blocking
const resultBuffer = 16

// Result is the outcome of one retrieval
type Result struct {
	Seq     uint64
	Ticker  string
	Prices  []stock.StockPrice
	Err     error
	Elapsed time.Duration
}

// Status is the status line shown after a retrieval
func (r Result) Status() string {
	return fmt.Sprintf("Loaded stocks for %s in %dms", r.Ticker, r.Elapsed.Milliseconds())
}

// Service issues retrievals and applies only the latest one to the presenter.
//
// Search may be called from any goroutine. Next and Run must be called from the
// goroutine that owns the presenter.
type Service struct {
	source    Source
	presenter Presenter

	results chan Result
	latest  atomic.Uint64
	wg      sync.WaitGroup

	// superseded is closed and replaced on every Search
	mu         sync.Mutex
	superseded chan struct{}

	base   context.Context
	cancel context.CancelFunc
}

// NewService creates a new search service
func NewService(source Source, presenter Presenter) *Service {
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		source:     source,
		presenter:  presenter,
		results:    make(chan Result, resultBuffer),
		superseded: make(chan struct{}),
		base:       base,
		cancel:     cancel,
	}
}

// Search starts a retrieval for ticker and returns its sequence number.
// Sequence numbers start at 1 and increase with every call.
func (s *Service) Search(ctx context.Context, ticker string) uint64 {
	s.mu.Lock()
	seq := s.latest.Add(1)
	close(s.superseded)
	s.superseded = make(chan struct{})
	s.mu.Unlock()

	log.Debug().
		Uint64("seq", seq).
		Str("ticker", ticker).
		Msg("Search issued")

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.base, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stop()

		res := s.Retrieve(ctx, ticker)
		res.Seq = seq
		s.deliver(ctx, res)
	}()

	return seq
}

// deliver hands res to the results channel unless a newer search has been
// issued, ctx is done, or the service is closed.
func (s *Service) deliver(ctx context.Context, res Result) {
	for {
		s.mu.Lock()
		superseded := s.superseded
		stale := res.Seq != s.latest.Load()
		s.mu.Unlock()

		if stale {
			log.Debug().
				Uint64("seq", res.Seq).
				Str("ticker", res.Ticker).
				Msg("Dropping superseded search result")
			return
		}

		select {
		case s.results <- res:
			return
		case <-ctx.Done():
			return
		case <-superseded:
		}
	}
}

// Retrieve runs one retrieval synchronously. It does not touch the presenter.
func (s *Service) Retrieve(ctx context.Context, ticker string) Result {
	start := time.Now()
	prices, err := s.source.Fetch(ctx, ticker)

	res := Result{
		Ticker:  ticker,
		Prices:  prices,
		Err:     err,
		Elapsed: time.Since(start),
	}

	if err != nil {
		kind := "unknown"
		if k := stock.KindOf(err); k != nil {
			kind = k.Error()
		}
		// the remote side failing is expected now and then, bad data is not
		ev := log.Error()
		if stock.IsTransportError(err) {
			ev = log.Warn()
		}
		ev.Err(err).
			Str("ticker", ticker).
			Str("kind", kind).
			Int64("elapsed_ms", res.Elapsed.Milliseconds()).
			Msg("Stock retrieval failed")
	}

	return res
}

// Latest returns the sequence number of the most recent Search
func (s *Service) Latest() uint64 {
	return s.latest.Load()
}

// Results is the channel completed retrievals are handed back on.
// Receive from it only on the presenter's goroutine and pass each value to Apply.
func (s *Service) Results() <-chan Result {
	return s.results
}

// Apply presents res if it belongs to the latest search and reports whether it did.
func (s *Service) Apply(res Result) bool {
	if latest := s.latest.Load(); res.Seq != latest {
		log.Debug().
			Uint64("seq", res.Seq).
			Uint64("latest", latest).
			Str("ticker", res.Ticker).
			Msg("Discarding stale search result")
		return false
	}
	Present(s.presenter, res)
	return true
}

// Next waits for the latest retrieval to complete and presents it.
// Results of superseded searches are discarded.
func (s *Service) Next(ctx context.Context) (Result, error) {
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case res := <-s.results:
			if s.Apply(res) {
				return res, nil
			}
		}
	}
}

// Run presents results until ctx is done
func (s *Service) Run(ctx context.Context) error {
	for {
		if _, err := s.Next(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Wait blocks until every issued retrieval has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight retrievals and waits for them to return.
// Results not yet received are discarded.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Present hands a result to p. On failure the displayed prices are left alone.
func Present(p Presenter, res Result) {
	if res.Err != nil {
		p.PresentError(res.Err.Error())
	} else {
		p.Present(res.Prices)
	}
	p.PresentStatus(res.Status())
}
