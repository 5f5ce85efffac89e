package capture

import (
	"context"
	"time"
	"webshot/internal/environment"
)

// Engine launches browsers for a resolved environment profile.
type Engine interface {
	Launch(ctx context.Context, profile environment.Profile) (Browser, error)
}

type Browser interface {
	NewPage(o PageOptions) (Page, error)
	Close() error
}

type Page interface {
	Goto(url string, wait WaitPolicy, timeout time.Duration) error
	Screenshot(o ScreenshotOptions) ([]byte, error)
	Close() error
}

type WaitPolicy string

const (
	// WaitNetworkIdle waits until the network has been quiet for a while.
	WaitNetworkIdle WaitPolicy = "networkidle"
	// WaitDOMContentLoaded waits only for initial DOM construction.
	WaitDOMContentLoaded WaitPolicy = "domcontentloaded"
)

type PageOptions struct {
	Viewport          Viewport
	DeviceScaleFactor float64
	UserAgent         string
	Timeout           time.Duration
}

type ScreenshotOptions struct {
	Format   Format
	FullPage bool
	// Quality is zero for lossless formats.
	Quality int
}

const DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// SessionConfig holds the per-environment knobs of a capture session.
type SessionConfig struct {
	Wait WaitPolicy
	// Timeout caps every page operation; a shorter Request.Timeout wins.
	Timeout     time.Duration
	SettleDelay time.Duration
	UserAgent   string
}

func DefaultSessionConfig(mode environment.Mode) SessionConfig {
	c := SessionConfig{
		Wait:        WaitNetworkIdle,
		Timeout:     30 * time.Second,
		SettleDelay: 2 * time.Second,
		UserAgent:   DesktopUserAgent,
	}
	if mode.Hosted() {
		c.Wait = WaitDOMContentLoaded
		c.Timeout = 25 * time.Second
	}
	return c
}

// DefaultBatchSettleDelay replaces SettleDelay for batch items.
const DefaultBatchSettleDelay = 1500 * time.Millisecond
