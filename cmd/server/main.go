package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/perch/pkg/config"
	"github.com/yurifrl/perch/pkg/server"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "perch-server",
	})

	cfg, err := config.BuildServer()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	logger.SetLevel(cfg.Level())

	api, err := server.NewPlaidAPI(cfg.ClientID, cfg.Secret, cfg.Environment)
	if err != nil {
		logger.Fatal("failed to create plaid client", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(api, logger)
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logger.Info("starting server", "addr", addr, "plaid_env", cfg.Environment)
	if err := srv.Start(ctx, addr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
