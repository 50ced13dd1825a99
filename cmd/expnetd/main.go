package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expnet/config"
	"expnet/core"
	"expnet/core/events"
	"expnet/observability/logging"
	"expnet/rpc"
	"expnet/services/archiver"
	"expnet/state"
	"expnet/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("expnetd", "", "").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("expnetd", cfg.Environment, cfg.LogFile)
	logger.Info("starting settlement node", "network", cfg.NetworkName, "dataDir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir + "/state")
	if err != nil {
		logger.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	platformWallet, err := cfg.PlatformWalletBytes()
	if err != nil {
		logger.Error("invalid platform wallet", "error", err)
		os.Exit(1)
	}

	manager := state.NewManager(db)
	node, err := core.NewNode(manager, platformWallet, cfg.PlatformFeeBps)
	if err != nil {
		logger.Error("failed to construct node", "error", err)
		os.Exit(1)
	}

	journal, err := events.OpenJournal(cfg.EventJournalPath, nil)
	if err != nil {
		logger.Error("failed to open event journal", "error", err)
		os.Exit(1)
	}
	defer journal.Close()
	if err := node.Bus().SetJournal(journal); err != nil {
		logger.Error("failed to attach event journal", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := archiver.Open(cfg.ReceiptArchivePath, logger)
	if err != nil {
		logger.Error("failed to open receipt archive", "error", err)
		os.Exit(1)
	}
	defer archive.Close()
	go func() {
		if err := archive.Run(ctx, node.EventsSubscribe); err != nil && ctx.Err() == nil {
			logger.Error("receipt archiver stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics endpoint listening", "address", cfg.MetricsAddress)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
			logger.Error("metrics endpoint failed", "error", err)
		}
	}()

	server := rpc.NewServer(node)
	go func() {
		logger.Info("rpc server listening", "address", cfg.RPCAddress)
		if err := server.Start(cfg.RPCAddress); err != nil {
			logger.Error("rpc server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
}
