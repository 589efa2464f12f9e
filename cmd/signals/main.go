package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rxtech-lab/argo-signals/internal/bridge"
	"github.com/rxtech-lab/argo-signals/internal/collector"
	"github.com/rxtech-lab/argo-signals/internal/config"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/server"
	"github.com/rxtech-lab/argo-signals/internal/signal/contextbuilder"
	"github.com/rxtech-lab/argo-signals/internal/store"
)

func loadConfig(cmd *cli.Command) (config.Config, error) {
	path := cmd.String("config")
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

// runAction starts the collectors, the fusion orchestrator and the status
// server, and blocks until interrupted.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	db, err := store.Open(cfg.StorePath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collectorConfig := collector.NewConfig(cfg.Symbol).
		WithExchange(cfg.Exchange).
		WithReconnectDelay(cfg.ReconnectDelay()).
		WithMaxReconnectAttempts(cfg.MaxReconnectAttempts)

	books := collector.NewOrderBookCollector(collectorConfig, db).WithLogger(log)
	liquidations := collector.NewLiquidationCollector(collectorConfig, db).WithLogger(log)
	funding := collector.NewFundingCollector(collectorConfig, db).WithLogger(log)

	stats := map[string]*collector.Stats{
		"orderbook":   books.Stats(),
		"liquidation": liquidations.Stats(),
		"funding":     funding.Stats(),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return books.Run(groupCtx) })
	group.Go(func() error { return liquidations.Run(groupCtx) })
	group.Go(func() error { return funding.Run(groupCtx) })

	if cfg.NewsAPIKey != "" {
		news := collector.NewNewsCollector(collector.NewNewsConfig(cfg.NewsAPIKey), db).WithLogger(log)
		stats["news"] = news.Stats()
		group.Go(func() error { return news.Run(groupCtx) })
	}

	builder := contextbuilder.New(db, cfg.Symbol, cfg.Exchange)
	if cfg.ExternalMarket != "" {
		builder = builder.WithExternalMarket(cfg.ExternalMarket)
	}

	signals := bridge.NewSharedMicroSignals()
	orchestrator := bridge.NewOrchestrator(builder, bridge.OrchestratorConfig{
		UpdateInterval: cfg.UpdateInterval(),
		Symbol:         cfg.Symbol,
		Exchange:       cfg.Exchange,
	}, signals).WithLogger(log)

	orchestrator.Start(groupCtx)
	group.Go(func() error {
		<-orchestrator.Done()

		return nil
	})

	statusServer := server.New(cfg.ListenAddr, signals, stats).
		WithFilter(bridge.NewFilter(cfg.Filter)).
		WithLogger(log)
	group.Go(func() error { return statusServer.Start(groupCtx) })

	log.Info("signal service started",
		zap.String("symbol", cfg.Symbol),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Duration("update_interval", cfg.UpdateInterval()),
	)

	return group.Wait()
}

// backfillAction downloads historical OHLCV candles into the store.
func backfillAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	db, err := store.Open(cfg.StorePath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	collectorConfig := collector.NewConfig(cfg.Symbol).WithExchange(cfg.Exchange)

	backfill := collector.NewOhlcvBackfill(collectorConfig, db).
		WithLogger(log).
		WithProgressBar()

	total, err := backfill.Backfill(ctx, cmd.String("interval"), cmd.Timestamp("start"), cmd.Timestamp("end"))
	if err != nil {
		return err
	}

	log.Info("backfill finished", zap.Int("candles", total))

	return nil
}

// schemaAction prints the JSON schema for the config file.
func schemaAction(_ context.Context, _ *cli.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML config file",
	}

	cmd := &cli.Command{
		Name:  "signals",
		Usage: "Crypto market microstructure signal service",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Collect market data and serve fused signals",
				Flags:  []cli.Flag{configFlag},
				Action: runAction,
			},
			{
				Name:  "backfill",
				Usage: "Download historical OHLCV candles into the store",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Kline interval, e.g. 1m, 5m, 1h",
						Value:   "1m",
					},
					&cli.TimestampFlag{
						Name:     "start",
						Aliases:  []string{"s"},
						Usage:    "Start date in `YYYY-MM-DD` format",
						Required: true,
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					&cli.TimestampFlag{
						Name:    "end",
						Aliases: []string{"e"},
						Usage:   "End date in `YYYY-MM-DD` format. Defaults to now.",
						Value:   time.Now(),
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
				},
				Action: backfillAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the config file JSON schema",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
