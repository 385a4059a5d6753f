// Package cmd - stockanalyzer CLI commands
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/wonny/stockanalyzer/internal/pkg/config"
	"github.com/wonny/stockanalyzer/internal/pkg/logger"
)

const (
	serviceName    = "stockanalyzer"
	serviceVersion = "1.0.0"
)

var (
	// 공통 플래그
	cfgFile string
	verbose bool

	// cfg is loaded once by the root PersistentPreRunE
	cfg *config.Config
)

// rootCmd 루트 커맨드
var rootCmd = &cobra.Command{
	Use:   "stockanalyzer",
	Short: "Stock price lookup from a local dataset or the stocks service",
	Long: `Stock price lookup from a local dataset or the stocks service

Commands:
    search      look up prices for one or more tickers
    serve       run the stocks service (GET /api/stocks/{ticker})
    import      load a price dataset into PostgreSQL
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute 루트 커맨드 실행
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
}

// initConfig loads .env and the environment, then sets up logging
func initConfig() error {
	var files []string
	if cfgFile != "" {
		files = append(files, cfgFile)
	}

	loaded, err := config.Load(files...)
	if err != nil {
		return err
	}

	level := loaded.Logging.Level
	if verbose {
		level = "debug"
	}

	if err := logger.Init(logger.Config{
		Level:          level,
		Format:         loaded.Logging.Format,
		FileEnabled:    loaded.Logging.FileEnabled,
		FilePath:       loaded.Logging.FilePath,
		RotationSize:   loaded.Logging.RotationSize,
		RetentionDays:  loaded.Logging.RetentionDays,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	}); err != nil {
		return err
	}

	cfg = loaded
	return nil
}
