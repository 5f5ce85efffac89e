package capture

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
	"webshot/internal/environment"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/xerrors"
)

type playwrightEngine struct {
	installOnce sync.Once
	installErr  error
	options     *playwright.RunOptions
}

// NewPlaywrightEngine drives Chromium-family browsers through playwright. The
// browsers themselves come from the environment profile; only the driver is
// installed here.
func NewPlaywrightEngine() Engine {
	return &playwrightEngine{
		options: &playwright.RunOptions{
			SkipInstallBrowsers: true,
			Verbose:             false,
			Stdout:              io.Discard,
			Stderr:              io.Discard,
		},
	}
}

func (e *playwrightEngine) install() error {
	e.installOnce.Do(func() {
		if err := playwright.Install(e.options); err != nil {
			e.installErr = xerrors.Errorf("failed to install playwright driver: %w", err)
		}
	})
	return e.installErr
}

func (e *playwrightEngine) Launch(ctx context.Context, profile environment.Profile) (Browser, error) {
	if err := e.install(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(e.options)
	if err != nil {
		return nil, xerrors.Errorf("failed to start playwright: %w", err)
	}

	var browser playwright.Browser
	if profile.Endpoint != "" {
		browser, err = pw.Chromium.ConnectOverCDP(profile.Endpoint)
		if err != nil {
			_ = pw.Stop()
			return nil, xerrors.Errorf("failed to connect to browser via CDP at %s: %w", profile.Endpoint, err)
		}
	} else {
		options := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(profile.Headless),
			Args:     profile.LaunchArgs,
		}
		if profile.ExecutablePath != "" {
			options.ExecutablePath = playwright.String(profile.ExecutablePath)
		}
		browser, err = pw.Chromium.Launch(options)
		if err != nil {
			_ = pw.Stop()
			return nil, xerrors.Errorf("failed to launch %s: %w", profile.ExecutablePath, err)
		}
	}

	if profile.Warning != "" {
		slog.Warn("launched browser with limited automation support", "family", profile.Family)
	}

	return &playwrightBrowser{
		pw:      pw,
		browser: browser,
	}, nil
}

type playwrightBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func (b *playwrightBrowser) NewPage(o PageOptions) (Page, error) {
	page, err := b.browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{
			Width:  o.Viewport.Width,
			Height: o.Viewport.Height,
		},
		DeviceScaleFactor: playwright.Float(o.DeviceScaleFactor),
		UserAgent:         playwright.String(o.UserAgent),
	})
	if err != nil {
		return nil, err
	}

	if o.Timeout > 0 {
		page.SetDefaultTimeout(milliseconds(o.Timeout))
		page.SetDefaultNavigationTimeout(milliseconds(o.Timeout))
	}

	return &playwrightPage{
		page: page,
	}, nil
}

func (b *playwrightBrowser) Close() error {
	closeErr := b.browser.Close()
	if err := b.pw.Stop(); err != nil && closeErr == nil {
		return xerrors.Errorf("failed to stop playwright: %w", err)
	}
	return closeErr
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string, wait WaitPolicy, timeout time.Duration) error {
	options := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}
	if wait == WaitNetworkIdle {
		options.WaitUntil = playwright.WaitUntilStateNetworkidle
	}
	if timeout > 0 {
		options.Timeout = playwright.Float(milliseconds(timeout))
	}

	_, err := p.page.Goto(url, options)
	return err
}

func (p *playwrightPage) Screenshot(o ScreenshotOptions) ([]byte, error) {
	options := playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(o.FullPage),
	}

	switch o.Format {
	case JPEG:
		options.Type = playwright.ScreenshotTypeJpeg
		if o.Quality > 0 {
			options.Quality = playwright.Int(o.Quality)
		}
	default:
		options.Type = playwright.ScreenshotTypePng
	}

	return p.page.Screenshot(options)
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
