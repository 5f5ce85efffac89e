// Package capturetest provides an in-memory capture.Engine that records how
// browsers and pages are opened and closed.
package capturetest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"time"
	"webshot/internal/capture"
	"webshot/internal/environment"
)

type Counts struct {
	Launches      int
	BrowserCloses int
	Pages         int
	PageCloses    int
	// MaxOpenPages is the highest number of pages open at the same time.
	MaxOpenPages int
}

type Engine struct {
	LaunchErr     error
	NewPageErr    error
	ScreenshotErr error
	// NavigateErrs maps a URL to the error navigating to it fails with.
	NavigateErrs map[string]error

	mu        sync.Mutex
	counts    Counts
	openPages int
	visited   []string
	profiles  []environment.Profile
	waits     []capture.WaitPolicy
}

func (e *Engine) Launch(ctx context.Context, profile environment.Profile) (capture.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.profiles = append(e.profiles, profile)
	if e.LaunchErr != nil {
		return nil, e.LaunchErr
	}
	e.counts.Launches++
	return &browser{engine: e}, nil
}

func (e *Engine) Counts() Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts
}

// Visited lists navigated URLs in order.
func (e *Engine) Visited() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.visited...)
}

func (e *Engine) Profiles() []environment.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]environment.Profile(nil), e.profiles...)
}

func (e *Engine) Waits() []capture.WaitPolicy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]capture.WaitPolicy(nil), e.waits...)
}

type browser struct {
	engine *Engine
}

func (b *browser) NewPage(o capture.PageOptions) (capture.Page, error) {
	e := b.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.NewPageErr != nil {
		return nil, e.NewPageErr
	}
	e.counts.Pages++
	e.openPages++
	if e.openPages > e.counts.MaxOpenPages {
		e.counts.MaxOpenPages = e.openPages
	}
	return &page{engine: e, options: o}, nil
}

func (b *browser) Close() error {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()
	b.engine.counts.BrowserCloses++
	return nil
}

type page struct {
	engine  *Engine
	options capture.PageOptions
}

func (p *page) Goto(url string, wait capture.WaitPolicy, timeout time.Duration) error {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	e.visited = append(e.visited, url)
	e.waits = append(e.waits, wait)
	return e.NavigateErrs[url]
}

func (p *page) Screenshot(o capture.ScreenshotOptions) ([]byte, error) {
	p.engine.mu.Lock()
	err := p.engine.ScreenshotErr
	p.engine.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return Image(p.options.Viewport.Width, p.options.Viewport.Height, o.Format)
}

func (p *page) Close() error {
	p.engine.mu.Lock()
	defer p.engine.mu.Unlock()
	p.engine.counts.PageCloses++
	p.engine.openPages--
	return nil
}

// Image encodes a solid width x height image in format.
func Image(width int, height int, format capture.Format) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff})
		}
	}

	var buf bytes.Buffer
	var err error
	if format == capture.JPEG {
		err = jpeg.Encode(&buf, img, nil)
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
