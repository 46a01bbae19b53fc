// Package main provides the couple dice Telnet server.
// It wires configuration, storage, the catalog, rule scripts, and the roll
// service behind a Telnet front end.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cory-johannsen/coupledice/internal/catalog"
	"github.com/cory-johannsen/coupledice/internal/config"
	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/diceserver"
	"github.com/cory-johannsen/coupledice/internal/frontend/command"
	"github.com/cory-johannsen/coupledice/internal/frontend/handlers"
	"github.com/cory-johannsen/coupledice/internal/frontend/telnet"
	"github.com/cory-johannsen/coupledice/internal/observability"
	"github.com/cory-johannsen/coupledice/internal/scripting"
	"github.com/cory-johannsen/coupledice/internal/server"
	"github.com/cory-johannsen/coupledice/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	autoMigrate := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting couple dice server",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("timezone", cfg.Dice.Timezone),
		zap.Int("daily_free_rolls", cfg.Dice.DailyFreeRolls),
	)

	if *autoMigrate {
		res, err := postgres.Migrate(cfg.Database.DSN(), "up", 0)
		if err != nil {
			logger.Fatal("applying migrations", zap.Error(err))
		}
		logger.Info("migrations applied",
			zap.Uint("version", res.Version),
			zap.Bool("no_change", res.NoChange),
		)
	}

	ctx := context.Background()
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	defaults, err := catalog.Load(cfg.Dice.CatalogPath)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.Int("items", defaults.Len()),
		zap.Int("payer", len(defaults.ByCategory(dice.CategoryPayer))),
		zap.Int("meal", len(defaults.ByCategory(dice.CategoryMeal))),
		zap.Int("activity", len(defaults.ByCategory(dice.CategoryActivity))),
	)

	var filter diceserver.CatalogFilter
	if cfg.Dice.ScriptDir != "" {
		rules := scripting.NewFilter(logger)
		if err := rules.LoadDir(cfg.Dice.ScriptDir, cfg.Dice.ScriptInstructionLimit); err != nil {
			logger.Fatal("loading catalog rules", zap.Error(err))
		}
		defer rules.Close()
		filter = rules
	}

	loc, err := cfg.Dice.Location()
	if err != nil {
		logger.Fatal("loading timezone", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	picker := dice.NewPicker(dice.NewCryptoSource(logger), cfg.Dice.RepeatThreshold)
	composer := dice.NewComposer(picker, cfg.Dice.Shares(), diceserver.SystemClock{}, loc)
	service := diceserver.NewService(diceserver.Options{
		Defaults:       defaults,
		Outcomes:       postgres.NewOutcomeRepository(pool.DB()),
		Rolls:          postgres.NewRollRepository(pool.DB()),
		Roller:         dice.NewLoggedComposer(composer, logger),
		Filter:         filter,
		Location:       loc,
		DailyFreeRolls: cfg.Dice.DailyFreeRolls,
		Metrics:        metrics,
		Logger:         logger,
	})

	accounts := postgres.NewAccountRepository(pool.DB())
	diceHandler := handlers.NewDiceHandler(service, command.DefaultRegistry(), logger)
	authHandler := handlers.NewAuthHandler(accounts, diceHandler, logger)
	telnetAcceptor := telnet.NewAcceptor(cfg.Telnet, authHandler, logger)

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	if cfg.Metrics.Enabled {
		lifecycle.Add("metrics", server.NewHTTPService(cfg.Metrics.Addr, observability.Handler(reg), 5*time.Second))
	}

	lifecycle.Add("telnet", &server.FuncService{
		StartFn: func() error {
			return telnetAcceptor.ListenAndServe()
		},
		StopFn: func() {
			telnetAcceptor.Stop()
		},
	})

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Bool("rules", filter != nil),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
