// kestreld - the kestrel chat daemon.
//
// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelchat/kestrel/internal/config"
	"github.com/kestrelchat/kestrel/internal/provider"
	"github.com/kestrelchat/kestrel/internal/server"
)

// Version information (set at build time)
var Version = "0.1.0"

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.kestrel/config.toml)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("kestreld %s\n", Version)
		return
	}

	if err := run(*configPath); err != nil {
		log.Printf("FATAL | err=%v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	completer := provider.NewClientWithConfig(&provider.ClientConfig{
		BaseURL:      cfg.Provider.BaseURL,
		APIKey:       cfg.Provider.APIKey,
		Timeout:      time.Duration(cfg.Provider.TimeoutSecs) * time.Second,
		DefaultModel: cfg.Provider.DefaultModel,
		MaxTokens:    cfg.Provider.MaxTokens,
		Temperature:  cfg.Provider.Temperature,
	})

	srv := server.NewServer(cfg, completer)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("SIGNAL_RECEIVED | signal=%s", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
