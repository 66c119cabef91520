package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/toolbench-backend/internal/events"
	"github.com/yungbote/toolbench-backend/internal/platform/logger"
	"github.com/yungbote/toolbench-backend/internal/seed"
	"github.com/yungbote/toolbench-backend/internal/store"
)

func main() {
	manifestPath := flag.String("manifest", "seed.yaml", "path to the seed manifest")
	timeout := flag.Duration("timeout", 60*time.Second, "overall apply timeout")
	flag.Parse()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Store
	cfg := store.ConfigFromEnv()
	s := store.New(events.New(), log)
	if err := s.Init(ctx, cfg); err != nil {
		log.Error("Store init failed", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer s.Close(context.Background())

	// Manifest
	manifest, err := seed.Load(*manifestPath)
	if err != nil {
		log.Error("Manifest load failed", "path", *manifestPath, "error", err)
		os.Exit(1)
	}

	if err := seed.NewApplier(s, log).Apply(ctx, manifest); err != nil {
		log.Error("Seed apply failed", "error", err)
		os.Exit(1)
	}
	if err := s.Save(ctx); err != nil {
		log.Error("Save failed", "error", err)
		os.Exit(1)
	}
	log.Info("Seed applied",
		"fields", len(manifest.Fields),
		"supertags", len(manifest.Supertags),
		"nodes", len(manifest.Nodes),
		"relations", len(manifest.Relations),
	)
}
