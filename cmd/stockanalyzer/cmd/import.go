package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/wonny/stockanalyzer/internal/infra/csvfile"
	"github.com/wonny/stockanalyzer/internal/infra/database/postgres"
)

var (
	importFile    string
	importReplace bool
)

// importCmd import 서브커맨드
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a price dataset into PostgreSQL",
	Long: `Load every row of a price dataset into PostgreSQL.

The whole file is parsed before anything is written, so a malformed line
leaves the table untouched.

Examples:
  stockanalyzer import --file data/StockPrices_Small.csv
  stockanalyzer import --replace`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "CSV file to import (default from STOCKS_CSV_PATH)")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "delete existing rows before importing")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := importFile
	if path == "" {
		path = cfg.Stocks.CSVPath
	}

	start := time.Now()
	prices, err := csvfile.NewLoader(path).LoadAll(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("path", path).
		Int("rows", len(prices)).
		Msg("Dataset parsed")

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := postgres.NewStockPriceRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	var inserted int64
	if importReplace {
		var deleted int64
		deleted, inserted, err = repo.ReplaceAll(ctx, prices)
		if err != nil {
			return err
		}
		log.Info().Int64("deleted", deleted).Msg("Existing prices replaced")
	} else {
		inserted, err = repo.InsertPrices(ctx, prices)
		if err != nil {
			return err
		}
	}

	log.Info().
		Int64("inserted", inserted).
		Dur("elapsed", time.Since(start)).
		Msg("Import complete")

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d prices from %s\n", inserted, path)
	return nil
}
