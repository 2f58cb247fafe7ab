package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"milesync/internal/auth"
	"milesync/internal/config"
	"milesync/internal/programs"
	"milesync/internal/server"
	"milesync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger := cfg.NewLogger()

	registry := programs.Default()
	if strings.TrimSpace(cfg.ProgramsFile) != "" {
		registry, err = programs.LoadFile(cfg.ProgramsFile)
		must(err)
	}

	must(cfg.Require("AUTH_SECRET", cfg.AuthSecret))
	tokens, err := auth.NewTokens(cfg.AuthSecret, cfg.AuthIssuer)
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()
	must(db.SetMetadata("server_started_at", time.Now().UTC().Format(time.RFC3339)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	router := server.SetupRouter(cfg, server.NewHandler(db, registry, tokens, cfg, logger))
	must(server.Run(ctx, cfg.ServerAddr, router, logger))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
