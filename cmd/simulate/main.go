// Command simulate replays a CSV tick fixture through one symbol
// engine and prints the resulting status after each tick, for manual
// exercising of the grid without a live broker feed.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"gridengine/internal/broker"
	"gridengine/internal/config"
	"gridengine/internal/engine"
	"gridengine/internal/grouplog"
	"gridengine/internal/repository"
	"gridengine/pkg/utils"

	_ "github.com/lib/pq"
)

var (
	symbol    string
	point     float64
	stopsLevel uint32
)

func main() {
	rootCmd.Flags().StringVarP(&symbol, "symbol", "s", "BTCUSDT", "symbol to replay ticks for")
	rootCmd.Flags().Float64Var(&point, "point", 0.01, "broker point size for the symbol")
	rootCmd.Flags().Uint32Var(&stopsLevel, "stops-level", 10, "broker minimum stop distance, in points")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "simulate <fixture.csv>",
	Short: "Replay a tick fixture through one symbol engine",
	Long: "Replay a tick fixture (CSV rows of ask,bid,positions_count, no header)\n" +
		"through one symbol engine, printing the resulting status as JSON after each tick.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation(args[0])
	},
}

func runSimulation(fixturePath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	logger := utils.InitLogger(utils.LogConfig{Level: "warn"})
	repos := engine.Repositories{
		State:  repository.NewStateRepository(db),
		Pair:   repository.NewPairRepository(db),
		Ticket: repository.NewTicketRepository(db),
		Trade:  repository.NewTradeRepository(db),
	}

	fake := broker.NewFake()
	fake.SetSymbolInfo(symbol, broker.SymbolInfo{Point: point, StopsLevelPoints: stopsLevel})

	e := engine.New(symbol, cfg.Engine, fake, repos, grouplog.NewHubWriter(nil, logger), logger)
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	f, err := os.Open(fixturePath)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	encoder := json.NewEncoder(os.Stdout)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read fixture row: %w", err)
		}
		if len(row) < 2 {
			continue
		}

		ask, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return fmt.Errorf("parse ask %q: %w", row[0], err)
		}
		bid, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return fmt.Errorf("parse bid %q: %w", row[1], err)
		}
		var positions uint64
		if len(row) >= 3 {
			positions, err = strconv.ParseUint(row[2], 10, 32)
			if err != nil {
				return fmt.Errorf("parse positions_count %q: %w", row[2], err)
			}
		}

		fake.SetQuote(symbol, ask, bid, 0)
		if err := e.InjectTick(ctx, ask, bid, uint32(positions)); err != nil {
			return fmt.Errorf("inject tick: %w", err)
		}
		if err := encoder.Encode(e.Status()); err != nil {
			return fmt.Errorf("encode status: %w", err)
		}
	}

	return e.Shutdown(ctx)
}
