// Command variance runs a one-shot variance recompute against the
// database and prints any budget overrun alerts. It is meant for cron
// and for ad-hoc checks from a shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tracelight/ppm-backend/internal/logger"
	"github.com/tracelight/ppm-backend/internal/store/postgres"
	"github.com/tracelight/ppm-backend/internal/variance"
)

func main() {
	godotenv.Load()

	var (
		dsn      = flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL env)")
		projects = flag.String("projects", "", "comma-separated project numbers to recompute (all when empty)")
		minRatio = flag.String("min-ratio", "", "only alert on variance ratios above this value")
		timeout  = flag.Duration("timeout", 2*time.Minute, "overall run timeout")
	)
	flag.Parse()

	log := logger.New()

	if *dsn == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pool.Close()

	aggregator := variance.NewAggregator(
		postgres.NewCommitmentRepo(pool),
		postgres.NewActualRepo(pool),
		postgres.NewVarianceRepo(pool),
		log,
	)

	var projectNumbers []string
	if *projects != "" {
		projectNumbers = strings.Split(*projects, ",")
	}

	result, err := aggregator.Recompute(ctx, projectNumbers...)
	if err != nil {
		log.Fatal().Err(err).Msg("Variance recompute failed")
	}

	opts := variance.ScanOptions{}
	if *minRatio != "" {
		ratio, err := decimal.NewFromString(*minRatio)
		if err != nil {
			log.Fatal().Err(err).Str("min_ratio", *minRatio).Msg("Invalid min-ratio")
		}
		opts.MinRatio = &ratio
	}

	alerts := variance.Scan(result, opts)

	fmt.Printf("recomputed %d variance groups, %d alerts\n", len(result), len(alerts))
	for _, alert := range alerts {
		fmt.Printf("  [%s] %s\n", alert.Severity, alert.Message)
	}

	if len(alerts) > 0 {
		os.Exit(1)
	}
}
