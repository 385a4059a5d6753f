// Package main - stockanalyzer CLI
//
// 사용법:
//
//	go run ./cmd/stockanalyzer search --ticker MSFT
//	go run ./cmd/stockanalyzer serve
//	go run ./cmd/stockanalyzer import --file data/StockPrices_Small.csv
package main

import (
	"fmt"
	"os"

	"github.com/wonny/stockanalyzer/cmd/stockanalyzer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
