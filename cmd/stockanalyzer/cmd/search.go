package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/wonny/stockanalyzer/internal/infra/csvfile"
	"github.com/wonny/stockanalyzer/internal/infra/database/postgres"
	"github.com/wonny/stockanalyzer/internal/infra/stockapi"
	"github.com/wonny/stockanalyzer/internal/pkg/config"
	"github.com/wonny/stockanalyzer/internal/service/search"
	"golang.org/x/sync/errgroup"
)

// maxParallelSearches caps concurrent retrievals for a multi-ticker search
const maxParallelSearches = 4

var errSearchFailed = errors.New("search failed")

var (
	searchSource   string
	searchTickers  []string
	searchFailFast bool
)

// searchCmd search 서브커맨드
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Look up stock prices by ticker",
	Long: `Look up stock prices by ticker from the local dataset or the stocks service.

Without --ticker, tickers are read one per line from stdin and only the
most recent search is shown.

Examples:
  stockanalyzer search --ticker MSFT
  stockanalyzer search --source api -t MSFT -t AAPL
  echo MSFT | stockanalyzer search`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchSource, "source", "", "data source: file, api or db (default from STOCKS_SOURCE)")
	searchCmd.Flags().StringSliceVarP(&searchTickers, "ticker", "t", nil, "ticker to look up (repeatable)")
	searchCmd.Flags().BoolVar(&searchFailFast, "fail-fast", false, "stop at the first failed ticker")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := searchSource
	if name == "" {
		name = cfg.Stocks.Source
	}
	source, closeSource, err := newSource(ctx, cfg, name)
	if err != nil {
		return err
	}
	defer closeSource()

	out := cmd.OutOrStdout()
	svc := search.NewService(source, search.NewTablePresenter(out))
	defer svc.Close()

	switch len(searchTickers) {
	case 0:
		return runInteractive(ctx, svc, cmd.InOrStdin())
	case 1:
		return runOnce(ctx, svc, searchTickers[0])
	default:
		return runMany(ctx, svc, search.NewTablePresenter(out), searchTickers, searchFailFast)
	}
}

// newSource builds the retrieval path named by name. The returned func
// releases what the source holds open.
func newSource(ctx context.Context, cfg *config.Config, name string) (search.Source, func(), error) {
	switch name {
	case config.SourceFile:
		return search.FileSource(csvfile.NewLoader(cfg.Stocks.CSVPath)), func() {}, nil
	case config.SourceAPI:
		client := stockapi.NewClient(cfg.Stocks.APIBaseURL, stockapi.WithTimeout(cfg.Stocks.APITimeout))
		return search.APISource(client), func() {}, nil
	case config.SourceDB:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return search.RepositorySource(postgres.NewStockPriceRepository(pool)), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidSource, name)
	}
}

func runOnce(ctx context.Context, svc *search.Service, ticker string) error {
	svc.Search(ctx, ticker)

	res, err := svc.Next(ctx)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("%w: %s", errSearchFailed, res.Ticker)
	}
	return nil
}

// runMany retrieves every ticker concurrently and presents the results in
// the order the tickers were given.
func runMany(ctx context.Context, svc *search.Service, p search.Presenter, tickers []string, failFast bool) error {
	results := make([]search.Result, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSearches)

	for i, ticker := range tickers {
		g.Go(func() error {
			res := svc.Retrieve(gctx, ticker)
			results[i] = res
			if failFast && res.Err != nil {
				return fmt.Errorf("%w: %s: %w", errSearchFailed, ticker, res.Err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var failed []string
	for _, res := range results {
		search.Present(p, res)
		if res.Err != nil {
			failed = append(failed, res.Ticker)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", errSearchFailed, strings.Join(failed, ", "))
	}
	return nil
}

// runInteractive issues a search for every line read from in. Only the result
// of the most recent line is presented. It returns once input is exhausted and
// that result has been shown, or when ctx is done.
func runInteractive(ctx context.Context, svc *search.Service, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	pending := false
	input := lines
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-input:
			if !ok {
				input = nil
				if !pending {
					return inputError(readErr)
				}
				continue
			}
			svc.Search(ctx, line)
			pending = true

		case res := <-svc.Results():
			if !svc.Apply(res) {
				continue
			}
			pending = false
			if input == nil {
				return inputError(readErr)
			}
		}
	}
}

func inputError(readErr <-chan error) error {
	select {
	case err := <-readErr:
		if err != nil {
			log.Error().Err(err).Msg("Failed to read tickers")
			return fmt.Errorf("read tickers: %w", err)
		}
	default:
	}
	return nil
}
