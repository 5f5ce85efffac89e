package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"
	"webshot/internal/capture"
	"webshot/internal/config"
	"webshot/internal/egress"
	"webshot/internal/environment"
	"webshot/internal/fallback"
	"webshot/internal/runnable"
	"webshot/internal/screenshot"
	"webshot/internal/storage"

	"golang.org/x/sync/errgroup"
)

func main() {
	c, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var mode string
	var backend string
	var directory string
	var format string
	var quality int
	var fullPage bool
	var viewportWidth int
	var viewportHeight int
	var timeout time.Duration
	var delay time.Duration
	var chromePath string
	var chromeDevtoolsProtocolURL string
	var batch bool
	var parallelism int
	flag.StringVar(&mode, "mode", string(c.Mode), "Execution mode (dev, serverless or edge)")
	flag.StringVar(&backend, "storage", config.EnvOrDefault("STORAGE_BACKEND", "file"), "Storage backend (imagebed, s3, file or none)")
	flag.StringVar(&directory, "directory", c.Directory, "Output directory for the file backend")
	flag.StringVar(&format, "format", config.EnvOrDefault("FORMAT", "png"), "Output format (png or jpeg)")
	flag.IntVar(&quality, "quality", config.EnvOrDefault("QUALITY", 0), "JPEG quality between 1 and 100")
	flag.BoolVar(&fullPage, "full-page", config.EnvOrDefault("FULL_PAGE", false), "Capture the full scrollable page")
	flag.IntVar(&viewportWidth, "viewport-width", c.ViewportWidth, "Viewport width in pixels")
	flag.IntVar(&viewportHeight, "viewport-height", c.ViewportHeight, "Viewport height in pixels")
	flag.DurationVar(&timeout, "timeout", c.NavigationTimeout, "Navigation timeout, 0 for the mode default")
	flag.DurationVar(&delay, "delay", c.SettleDelay, "Delay before capturing in dev mode")
	flag.StringVar(&chromePath, "chrome-path", c.Environment.ChromePath, "Browser executable used in dev mode")
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", c.Environment.Endpoint, "DevTools endpoint used in edge mode (e.g., ws://localhost:9222)")
	flag.BoolVar(&batch, "batch", false, "Capture all urls in one browser session")
	flag.IntVar(&parallelism, "parallelism", 2, "Concurrent captures when not in batch mode")

	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		log.Fatalf("url not specified")
	}

	logger, err := runnable.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	c.Mode, err = environment.ParseMode(mode)
	if err != nil {
		log.Fatalf("Failed to parse mode: %v", err)
	}
	c.Directory = directory
	c.Environment.ChromePath = chromePath
	c.Environment.Endpoint = chromeDevtoolsProtocolURL
	if display := os.Getenv("DISPLAY"); display != "" {
		c.Environment.Headless = false
	}

	ctx := context.Background()

	provider, err := environment.NewProvider(c.Mode, c.Environment)
	if err != nil {
		log.Fatalf("Failed to create environment provider: %v", err)
	}

	s, err := storage.NewBackend(ctx, backend, c.Backend())
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	session := capture.DefaultSessionConfig(c.Mode)
	if timeout > 0 {
		session.Timeout = timeout
	}
	if c.Mode == environment.Dev {
		session.SettleDelay = delay
	}

	service, err := screenshot.New(screenshot.Config{
		Mode:             c.Mode,
		Provider:         provider,
		Engine:           capture.NewPlaywrightEngine(),
		Session:          session,
		BatchSettleDelay: c.BatchSettleDelay,
		Publisher:        egress.NewPublisher(s),
		Secondaries: fallback.Secondaries(fallback.SecondaryConfig{
			Credential: config.Credential,
			Timeout:    c.FallbackTimeout,
		}),
	})
	if err != nil {
		log.Fatalf("Failed to create screenshot service: %v", err)
	}

	options := capture.Options{
		Width:    viewportWidth,
		Height:   viewportHeight,
		Format:   capture.Format(format),
		FullPage: fullPage,
		Quality:  quality,
	}

	var results []screenshot.Outcome
	if batch {
		outcome, err := service.CaptureBatch(ctx, urls, options)
		if err != nil {
			log.Fatalf("Failed to capture batch: %v", err)
		}
		results = outcome.Results
	} else {
		results = make([]screenshot.Outcome, len(urls))

		eg, ctx := errgroup.WithContext(ctx)
		eg.SetLimit(parallelism)
		for i, u := range urls {
			eg.Go(func() error {
				results[i] = service.Capture(ctx, u, options)
				return nil
			})
		}
		_ = eg.Wait()
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}

	for _, r := range results {
		if !r.Success {
			os.Exit(1)
		}
	}
}
