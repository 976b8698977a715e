package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mixlend/config"
	"mixlend/core"
	"mixlend/native/collateral"
	"mixlend/native/tokens"
	"mixlend/observability/logging"
	"mixlend/rpc"
	"mixlend/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MIXLEND_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("mixlend", env, cfg.LogFile)

	registry := tokens.Default()
	if cfg.TokensFile != "" {
		registry, err = tokens.LoadFile(cfg.TokensFile)
		if err != nil {
			logger.Error("Failed to load token registry", slog.Any("error", err))
			os.Exit(1)
		}
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	params := collateral.DefaultRiskParameters()
	if cfg.MaxLTVBps != 0 {
		params.MaxLTVBps = cfg.MaxLTVBps
	}

	node := core.NewNode(db, registry, params, logger)

	server := rpc.NewServer(node,
		rpc.WithRateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
	)

	logger.Info("rpc server listening",
		slog.String("address", cfg.RPCAddress),
		slog.Uint64("maxLTVBps", params.MaxLTVBps),
		slog.Int("tokens", len(registry.List())),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
