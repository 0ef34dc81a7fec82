package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riskwatch/internal/alerts"
	"riskwatch/internal/api"
	"riskwatch/internal/catalog"
	"riskwatch/internal/config"
	"riskwatch/internal/dispatch"
	"riskwatch/internal/engine"
	"riskwatch/internal/history"
	"riskwatch/internal/ingest"
	"riskwatch/internal/logging"
	"riskwatch/internal/model"
	"riskwatch/internal/rules"
	"riskwatch/internal/storage"
	"riskwatch/internal/trend"
)

var version = "0.3.0"

func main() {
	configPath := flag.String("config", "riskwatch.yaml", "path to config file (yaml or json)")
	simulateDays := flag.Int("simulate", 0, "seed N days of simulated history on startup")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("riskwatch", version)
		return
	}

	var cfgMgr *config.Manager
	resolved := config.ResolvePath(*configPath)
	if _, err := os.Stat(resolved); err == nil {
		m, err := config.NewManager(resolved)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		cfgMgr = m
	} else {
		cfgMgr = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := cfgMgr.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("riskwatch starting", "version", version, "config", cfgMgr.Path())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alertStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	historyStore := history.NewStore(cfg.History.StoreLimit)

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	var repo rules.Repository
	if store != nil {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := store.Init(initCtx); err != nil {
			cancel()
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		cancel()
		defer store.Close()
		repo = storage.RuleRepo{S: store}
	}

	router := dispatch.NewRouter(cfg.Dispatch, alertStore, logger)
	defer router.Close()

	ruleEngine := rules.NewEngine(router, logger)
	core := engine.NewEngine(cfg, logger, historyStore, alertStore, ruleEngine, repo, store)

	if cfg.Catalog.Path != "" {
		if cat, err := catalog.Load(config.ResolvePath(cfg.Catalog.Path)); err == nil {
			core.UpdateCatalog(cat)
			logger.Info("catalog loaded", "path", cfg.Catalog.Path, "indicators", catalog.IndicatorCount(cat))
		} else if !os.IsNotExist(err) {
			logger.Error("catalog load failed", "err", err)
			os.Exit(1)
		} else {
			logger.Warn("catalog file missing, waiting for push", "path", cfg.Catalog.Path)
		}
	}

	if err := core.LoadRules(ctx); err != nil {
		logger.Error("rule load failed", "err", err)
		os.Exit(1)
	}

	if store != nil {
		if persisted, err := store.LoadHistory(ctx, cfg.History.StoreLimit); err != nil {
			logger.Warn("history load failed", "err", err)
		} else {
			for _, entry := range persisted {
				historyStore.Append(entry)
			}
		}
	}
	if *simulateDays > 0 && historyStore.Len() == 0 {
		sim := trend.NewSimulator(time.Now().UnixNano()).WithCatalog(core.Catalog())
		for _, entry := range sim.Generate(*simulateDays, time.Now().UTC()) {
			core.AppendHistory(ctx, entry)
		}
		logger.Info("seeded simulated history", "days", *simulateDays)
	}

	historyCh := make(chan model.HistoryEntry, cfg.Ingest.ChannelBuffer)
	ingest.StartKafka(ctx, cfgMgr, historyCh, logger)

	if core.Catalog() != nil {
		core.Process(ctx)
	}
	core.Start(ctx, historyCh)

	api.Start(ctx, cfgMgr, historyStore, alertStore, core, logger, version)

	if cfgMgr.Path() != "" {
		go cfgMgr.Watch(3*time.Second,
			func(next *config.Config) {
				core.UpdateConfig(next)
				logger.Info("config reloaded")
			},
			func(err error) {
				logger.Warn("config reload failed", "err", err)
			},
			ctx.Done(),
		)
	}

	<-ctx.Done()
	logger.Info("riskwatch stopped")
}
