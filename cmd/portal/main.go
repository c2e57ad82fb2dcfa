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

	"github.com/MediSynth-io/authkit/internal/config"
	"github.com/MediSynth-io/authkit/internal/logging"
	"github.com/MediSynth-io/authkit/internal/portal"
	"github.com/MediSynth-io/authkit/internal/store"
)

const version = "0.1.0"

var configLoad = func(path string) (*config.Config, error) {
	if path == "" {
		return config.Init()
	}
	return config.LoadConfig(path)
}

func initializePortal(ctx context.Context, configPath string) (*portal.Portal, io.Closer, *zap.SugaredLogger, error) {
	cfg, err := configLoad(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}

	users, closer, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	authorize, err := portal.Authorizer(*cfg, users, logger)
	if err != nil {
		closer.Close()
		return nil, nil, nil, err
	}

	p, err := portal.New(*cfg, authorize, logger)
	if err != nil {
		closer.Close()
		return nil, nil, nil, fmt.Errorf("portal: %w (set NEXTAUTH_SECRET)", err)
	}
	return p, closer, logger, nil
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults to $CONFIG_DIR/app.yml)")
	flag.Parse()

	log.Printf("Starting authkit portal v%s", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closer, logger, err := initializePortal(ctx, *configPath)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck
	defer closer.Close()

	if err := p.Serve(ctx); err != nil {
		logger.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
}
