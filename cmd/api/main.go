package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/MediSynth-io/authkit/internal/api"
	"github.com/MediSynth-io/authkit/internal/auth"
	"github.com/MediSynth-io/authkit/internal/config"
	"github.com/MediSynth-io/authkit/internal/logging"
	"github.com/MediSynth-io/authkit/internal/store"
)

const version = "0.1.0"

var configLoad = func(path string) (*config.Config, error) {
	if path == "" {
		return config.Init()
	}
	return config.LoadConfig(path)
}

// initializeAPI wires configuration, logging, the credential store and the
// token manager. The returned closer releases the store.
func initializeAPI(ctx context.Context, configPath string) (*api.Api, io.Closer, *zap.SugaredLogger, error) {
	cfg, err := configLoad(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("jwt: %w (set JWT_SECRET)", err)
	}

	users, closer, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	a, err := api.NewApi(*cfg, users, tokens, logger)
	if err != nil {
		closer.Close()
		return nil, nil, nil, err
	}
	return a, closer, logger, nil
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults to $CONFIG_DIR/app.yml)")
	flag.Parse()

	log.Printf("Starting authkit API v%s", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, closer, logger, err := initializeAPI(ctx, *configPath)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck
	defer closer.Close()

	if err := a.Serve(ctx); err != nil {
		logger.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
}
