package main

import (
	"context"
	"flag"
	"log"
	"webshot/internal/capture"
	"webshot/internal/config"
	"webshot/internal/egress"
	"webshot/internal/environment"
	"webshot/internal/fallback"
	"webshot/internal/runnable"
	"webshot/internal/screenshot"
	"webshot/internal/storage"
)

func main() {
	var envFile string
	var debug bool
	flag.StringVar(&envFile, "env-file", config.EnvOrDefault("ENV_FILE", ".env"), "Dotenv file loaded before reading the environment")
	flag.BoolVar(&debug, "debug", config.EnvOrDefault("DEBUG", false), "Enable text logs and pprof endpoints")
	flag.Parse()

	runnable.Debug = debug

	if err := config.LoadDotEnv(envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	c, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	provider, err := environment.NewProvider(c.Mode, c.Environment)
	if err != nil {
		log.Fatalf("Failed to create environment provider: %v", err)
	}

	session := capture.DefaultSessionConfig(c.Mode)
	if c.NavigationTimeout > 0 {
		session.Timeout = c.NavigationTimeout
	}
	if c.Mode == environment.Dev {
		session.SettleDelay = c.SettleDelay
	}

	s, err := storage.NewBackend(ctx, c.StorageBackend, c.Backend())
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	service, err := screenshot.New(screenshot.Config{
		Mode:             c.Mode,
		Provider:         provider,
		Engine:           capture.NewPlaywrightEngine(),
		Session:          session,
		BatchSettleDelay: c.BatchSettleDelay,
		Defaults: capture.Options{
			Width:  c.ViewportWidth,
			Height: c.ViewportHeight,
		},
		Publisher: egress.NewPublisher(s),
		Secondaries: fallback.Secondaries(fallback.SecondaryConfig{
			Credential: config.Credential,
			Timeout:    c.FallbackTimeout,
		}),
	})
	if err != nil {
		log.Fatalf("Failed to create screenshot service: %v", err)
	}

	if err := runnable.NewServer(c, service).Start(ctx); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
