package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"webshot/internal/classify"
	"webshot/internal/environment"

	"golang.org/x/xerrors"
)

// Session owns one browser for its whole lifetime and at most one page at a
// time. It is not safe for concurrent use.
type Session struct {
	browser   Browser
	config    SessionConfig
	closeOnce sync.Once
	closeErr  error
}

// Open launches a browser for profile. A failed launch is a LaunchFailure
// unless the engine reported a missing executable.
func Open(ctx context.Context, engine Engine, profile environment.Profile, config SessionConfig) (*Session, error) {
	browser, err := engine.Launch(ctx, profile)
	if err != nil {
		err = xerrors.Errorf("failed to launch browser %s: %w", profile.Family, err)
		if classify.Classify(err).Kind == classify.ConfigurationError {
			return nil, err
		}
		return nil, classify.Wrap(classify.LaunchFailure, err)
	}

	return &Session{
		browser: browser,
		config:  config,
	}, nil
}

// Shoot captures r in a fresh page and closes that page before returning.
func (s *Session) Shoot(ctx context.Context, r Request) (*Shot, error) {
	timeout := r.Timeout
	if s.config.Timeout > 0 && (timeout <= 0 || s.config.Timeout < timeout) {
		timeout = s.config.Timeout
	}

	page, err := s.browser.NewPage(PageOptions{
		Viewport:          r.Viewport,
		DeviceScaleFactor: 1,
		UserAgent:         s.config.UserAgent,
		Timeout:           timeout,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create new page: %w", err)
	}

	var once sync.Once
	closePage := func() {
		once.Do(func() {
			if err := page.Close(); err != nil {
				slog.Warn("failed to close page", "url", r.URL, "error", err)
			}
		})
	}
	defer closePage()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closePage()
		case <-done:
		}
	}()
	defer close(done)

	if err := page.Goto(r.URL, s.config.Wait, timeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, xerrors.Errorf("navigation to %s aborted: %w", r.URL, ctxErr)
		}
		return nil, xerrors.Errorf("failed to navigate to %s: %w", r.URL, err)
	}

	if s.config.SettleDelay > 0 {
		timer := time.NewTimer(s.config.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, xerrors.Errorf("settle delay for %s aborted: %w", r.URL, ctx.Err())
		}
	}

	o := ScreenshotOptions{
		Format:   r.Format,
		FullPage: r.FullPage,
	}
	if r.Format == JPEG {
		o.Quality = r.Quality
	}
	data, err := page.Screenshot(o)
	if err != nil {
		return nil, xerrors.Errorf("failed to take screenshot of %s: %w", r.URL, err)
	}

	return NewShot(data, r.Format)
}

// Close closes the browser once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.browser.Close(); err != nil {
			slog.Warn("failed to close browser", "error", err)
			s.closeErr = xerrors.Errorf("failed to close browser: %w", err)
		}
	})
	return s.closeErr
}

// Run performs one capture in its own session.
func Run(ctx context.Context, engine Engine, profile environment.Profile, config SessionConfig, r Request) (*Shot, error) {
	s, err := Open(ctx, engine, profile, config)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = s.Close()
	}()

	return s.Shoot(ctx, r)
}
