package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/coeus/config"
	"github.com/alejandrodnm/coeus/internal/adapters/csvinput"
	"github.com/alejandrodnm/coeus/internal/adapters/notify"
	"github.com/alejandrodnm/coeus/internal/adapters/storage"
	"github.com/alejandrodnm/coeus/internal/adapters/yahoo"
	"github.com/alejandrodnm/coeus/internal/application/analysis"
	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/alejandrodnm/coeus/internal/marketdata"
	"github.com/alejandrodnm/coeus/internal/observability"
	"github.com/alejandrodnm/coeus/internal/ports"
)

// Códigos de salida.
const (
	exitOK       = 0
	exitFailure  = 1
	exitBadInput = 2
)

func main() {
	os.Exit(run())
}

// run monta las dependencias y ejecuta el modo pedido. Separado de main
// para que los defers (caché, señales) corran antes de os.Exit.
func run() int {
	configPath := flag.String("config", "config/config.yaml", "path to config file (\"\" = defaults + env)")
	tradesPath := flag.String("trades", "", "CSV file with closed trades (\"-\" = stdin)")
	compare := flag.Bool("compare", false, "compare every trade against the benchmark")
	benchmark := flag.String("benchmark", "", "benchmark symbol (overrides config, e.g. ^GSPC)")
	serve := flag.Bool("serve", false, "start the HTTP API instead of a one-shot run")
	noCache := flag.Bool("no-cache", false, "skip the SQLite price cache")
	output := flag.String("output", notify.OutputTable, "report output: table|json")
	verbose := flag.Bool("verbose", false, "set log level to debug and print the full valuation series")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		return exitFailure
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *benchmark != "" {
		cfg.Analysis.Benchmark = *benchmark
	}
	if *compare {
		cfg.Analysis.Compare = true
	}
	if *noCache {
		cfg.Storage.Disabled = true
	}
	setupLogger(cfg.Log)

	slog.Info("coeus starting",
		"config", *configPath,
		"benchmark", cfg.Analysis.Benchmark,
		"compare", cfg.Analysis.Compare,
		"risk", cfg.Analysis.Risk,
		"cache", !cfg.Storage.Disabled,
		"serve", *serve,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := observability.NewMetrics("coeus")

	var provider ports.MarketDataProvider = yahoo.NewClient(yahoo.Config{
		BaseURL:    cfg.API.YahooBase,
		RatePerSec: cfg.API.RatePerSec,
		Burst:      cfg.API.Burst,
		Timeout:    cfg.APITimeout(),
	})
	if !cfg.Storage.Disabled {
		cache, err := storage.NewSQLiteCache(cfg.Storage.DSN, cfg.Retention())
		if err != nil {
			slog.Error("failed to open price cache", "err", err, "dsn", cfg.Storage.DSN)
			return exitFailure
		}
		defer cache.Close()
		provider = marketdata.NewCachedProvider(provider, cache, m)
	}

	fetcher := marketdata.NewFetcher(marketdata.Config{
		Workers:   cfg.Analysis.FetchWorkers,
		Attempts:  cfg.Analysis.FetchAttempts,
		Timeout:   cfg.FetchTimeout(),
		RetryWait: cfg.RetryWait(),
	}, provider, m)

	acfg := analysis.Config{
		Benchmark:    cfg.Analysis.Benchmark,
		Compare:      cfg.Analysis.Compare,
		Risk:         cfg.Analysis.Risk,
		RiskFreeRate: cfg.Analysis.RiskFreeRate,
	}

	if *serve {
		if err := runServer(ctx, cfg, analysis.New(acfg, fetcher, nil, m), m); err != nil {
			slog.Error("server exited with error", "err", err)
			return exitFailure
		}
		slog.Info("coeus stopped cleanly")
		return exitOK
	}

	return runOnce(ctx, *tradesPath, analysis.New(acfg, fetcher, notify.NewConsole(*output, *verbose), m))
}

// runOnce lee los trades, ejecuta un análisis y devuelve el código de salida.
// El informe lo imprime el reporter del analizador.
func runOnce(ctx context.Context, path string, a *analysis.Analyzer) int {
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: coeus -trades trades.csv [-compare] [-benchmark ^GSPC] [-output table|json]")
		return exitBadInput
	}

	rows, err := readTrades(path)
	if err != nil {
		slog.Error("failed to read trades", "err", err, "path", path)
		return exitBadInput
	}

	report, err := a.Run(ctx, rows)
	if err != nil {
		slog.Error("analysis failed", "err", err)
		if analysis.IsClientError(err) {
			return exitBadInput
		}
		return exitFailure
	}
	if report.HasIssues() {
		slog.Warn("analysis completed with issues",
			"rejected", len(report.Rejected),
			"warnings", len(report.Warnings),
		)
	}
	return exitOK
}

func readTrades(path string) ([]domain.RawTrade, error) {
	if path == "-" {
		return csvinput.Read(os.Stdin)
	}
	return csvinput.ReadFile(path)
}

// setupLogger escribe a stderr: stdout queda para el informe.
func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
