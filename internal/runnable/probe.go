package runnable

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type prober interface {
	ProbeBrowser(ctx context.Context) error
}

// browserProbe remembers whether a browser could be resolved on the last run.
type browserProbe struct {
	prober  prober
	timeout time.Duration

	mu        sync.RWMutex
	available bool
	checkedAt time.Time
}

func newBrowserProbe(p prober, timeout time.Duration) *browserProbe {
	return &browserProbe{
		prober:  p,
		timeout: timeout,
	}
}

func (p *browserProbe) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.prober.ProbeBrowser(ctx)
	if err != nil {
		slog.Warn("browser is not available", "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = err == nil
	p.checkedAt = time.Now()
}

func (p *browserProbe) BrowserAvailable() (bool, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available, p.checkedAt
}
