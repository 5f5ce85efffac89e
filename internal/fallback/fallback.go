package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"webshot/internal/capture"
	"webshot/internal/classify"
	"webshot/internal/environment"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

// Strategy is one way of producing a screenshot.
type Strategy interface {
	Name() string
	// Available reports whether the strategy is configured, e.g. its
	// credential is present.
	Available() bool
	Capture(ctx context.Context, r capture.Request) (*capture.Shot, error)
}

type Result struct {
	Shot     *capture.Shot
	Strategy string
}

type Failure struct {
	Strategy string        `json:"strategy"`
	Kind     classify.Kind `json:"kind"`
	Message  string        `json:"message"`
	Detail   string        `json:"-"`
}

// Error is returned when no strategy produced a screenshot. It is always
// marked with the kind of the first failure.
type Error struct {
	Failures []Failure
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Strategy, f.Detail))
	}
	return "all capture strategies failed: " + strings.Join(parts, "; ")
}

type Orchestrator struct {
	mode       environment.Mode
	strategies []Strategy
	tracer     trace.Tracer
}

// New keeps the available strategies in priority order. Availability is
// decided here, once.
func New(mode environment.Mode, strategies ...Strategy) *Orchestrator {
	available := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if !s.Available() {
			slog.Debug("skipping unavailable capture strategy", "strategy", s.Name())
			continue
		}
		available = append(available, s)
	}

	return &Orchestrator{
		mode:       mode,
		strategies: available,
		tracer:     otel.Tracer("webshot/internal/fallback"),
	}
}

func (o *Orchestrator) AvailableStrategies() []string {
	names := make([]string, 0, len(o.strategies))
	for _, s := range o.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Capture tries strategies in order and stops at the first success. In dev
// mode only the first strategy is tried.
func (o *Orchestrator) Capture(ctx context.Context, r capture.Request) (*Result, error) {
	if len(o.strategies) == 0 {
		return nil, classify.Wrap(classify.ConfigurationError, xerrors.New("browser not available: no capture strategy is configured"))
	}

	var failures []Failure
	for i, s := range o.strategies {
		shot, err := o.attempt(ctx, s, r)
		if err == nil {
			if i > 0 {
				slog.Info("captured with fallback strategy", "strategy", s.Name(), "url", r.URL, "failed", len(failures))
			}
			return &Result{
				Shot:     shot,
				Strategy: s.Name(),
			}, nil
		}

		c := classify.Classify(err)
		failures = append(failures, Failure{
			Strategy: s.Name(),
			Kind:     c.Kind,
			Message:  c.Message,
			Detail:   c.Detail,
		})

		if !o.mode.Hosted() {
			break
		}
		if i < len(o.strategies)-1 {
			slog.Warn("capture strategy failed, falling back", "strategy", s.Name(), "kind", c.Kind, "error", err)
		}
	}

	return nil, classify.Wrap(failures[0].Kind, &Error{Failures: failures})
}

func (o *Orchestrator) attempt(ctx context.Context, s Strategy, r capture.Request) (*capture.Shot, error) {
	ctx, span := o.tracer.Start(ctx, "capture "+s.Name(), trace.WithAttributes(
		attribute.String("strategy", s.Name()),
		attribute.String("url", r.URL),
	))
	defer span.End()

	shot, err := s.Capture(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(classify.Classify(err).Kind))
		return nil, xerrors.Errorf("%s: %w", s.Name(), err)
	}
	return shot, nil
}

type automation struct {
	provider environment.Provider
	engine   capture.Engine
	config   capture.SessionConfig
}

// NewAutomation captures with a browser resolved by provider. It is always
// available; a missing browser surfaces as a ConfigurationError.
func NewAutomation(provider environment.Provider, engine capture.Engine, config capture.SessionConfig) Strategy {
	return &automation{
		provider: provider,
		engine:   engine,
		config:   config,
	}
}

func (a *automation) Name() string {
	return "automation"
}

func (a *automation) Available() bool {
	return true
}

func (a *automation) Capture(ctx context.Context, r capture.Request) (*capture.Shot, error) {
	profile, err := a.provider.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return capture.Run(ctx, a.engine, profile, a.config, r)
}
