package screenshot

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"webshot/internal/capture"
	"webshot/internal/classify"
	"webshot/internal/egress"
	"webshot/internal/environment"
	"webshot/internal/fallback"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

type Metadata struct {
	Size       int            `json:"size"`
	Format     capture.Format `json:"format"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Source     string         `json:"source"`
	BatchIndex int            `json:"batchIndex,omitempty"`
}

// Outcome is the terminal result of one capture. Success outcomes carry URL
// and Metadata; failures carry Kind and Message.
type Outcome struct {
	Success     bool   `json:"success"`
	OriginalURL string `json:"originalUrl,omitempty"`

	URL      string    `json:"url,omitempty"`
	Inline   bool      `json:"inline,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Bytes    []byte    `json:"-"`

	Kind     classify.Kind      `json:"errorKind,omitempty"`
	Message  string             `json:"error,omitempty"`
	Status   int                `json:"-"`
	Detail   string             `json:"details,omitempty"`
	Failures []fallback.Failure `json:"failures,omitempty"`
}

type Config struct {
	Mode     environment.Mode
	Provider environment.Provider
	Engine   capture.Engine
	Session  capture.SessionConfig
	// BatchSettleDelay replaces Session.SettleDelay for batch items.
	BatchSettleDelay time.Duration
	// Defaults fill zero fields of caller options.
	Defaults  capture.Options
	Publisher *egress.Publisher
	// Secondaries builds the fallback strategies tried after the browser.
	// It runs for every capture so credentials are read at invocation time.
	Secondaries func() []fallback.Strategy
}

type Service struct {
	config   Config
	captures metric.Int64Counter
	duration metric.Int64Histogram
}

func New(c Config) (*Service, error) {
	if c.Provider == nil || c.Engine == nil {
		return nil, xerrors.New("provider and engine are required")
	}
	if c.Publisher == nil {
		c.Publisher = egress.NewPublisher(nil)
	}
	if c.Secondaries == nil {
		c.Secondaries = func() []fallback.Strategy {
			return nil
		}
	}

	meter := otel.Meter("webshot/internal/screenshot")
	captures, err := meter.Int64Counter("screenshot_captures_total")
	if err != nil {
		return nil, xerrors.Errorf("failed to create counter: %w", err)
	}
	duration, err := meter.Int64Histogram("screenshot_capture_duration_milli_seconds")
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}

	return &Service{
		config:   c,
		captures: captures,
		duration: duration,
	}, nil
}

func (s *Service) Mode() environment.Mode {
	return s.config.Mode
}

func (s *Service) orchestrator() *fallback.Orchestrator {
	strategies := []fallback.Strategy{
		fallback.NewAutomation(s.config.Provider, s.config.Engine, s.config.Session),
	}
	strategies = append(strategies, s.config.Secondaries()...)
	return fallback.New(s.config.Mode, strategies...)
}

// ListAvailableStrategies names the configured strategies in priority order.
func (s *Service) ListAvailableStrategies() []string {
	return s.orchestrator().AvailableStrategies()
}

// ProbeBrowser reports whether a browser can be resolved for the current mode.
func (s *Service) ProbeBrowser(ctx context.Context) error {
	_, err := s.config.Provider.Resolve(ctx)
	return err
}

func (s *Service) Capture(ctx context.Context, raw string, o capture.Options) Outcome {
	now := time.Now()

	r, err := capture.NewRequest(raw, s.withDefaults(o))
	if err != nil {
		s.record(ctx, "", err, now)
		return s.failure(capture.Normalize(raw), err)
	}

	result, err := s.orchestrator().Capture(ctx, r)
	if err != nil {
		s.record(ctx, "", err, now)
		slog.Warn("failed to capture screenshot", "url", r.URL, "kind", classify.Classify(err).Kind, "error", err)
		return s.failure(r.URL, err)
	}
	s.record(ctx, result.Strategy, nil, now)

	return s.success(ctx, r.URL, result.Shot, result.Strategy)
}

func (s *Service) withDefaults(o capture.Options) capture.Options {
	if o.Width <= 0 {
		o.Width = s.config.Defaults.Width
	}
	if o.Height <= 0 {
		o.Height = s.config.Defaults.Height
	}
	if o.Timeout <= 0 {
		o.Timeout = s.config.Defaults.Timeout
	}
	return o
}

func (s *Service) success(ctx context.Context, u string, shot *capture.Shot, strategy string) Outcome {
	published := s.config.Publisher.Publish(ctx, shot.Bytes, shot.Format, u)

	return Outcome{
		Success:     true,
		OriginalURL: u,
		URL:         published.URL,
		Inline:      published.Inline,
		Metadata: &Metadata{
			Size:   len(shot.Bytes),
			Format: shot.Format,
			Width:  shot.Width,
			Height: shot.Height,
			Source: strategy,
		},
		Bytes: shot.Bytes,
	}
}

func (s *Service) failure(u string, err error) Outcome {
	c := classify.Classify(err)
	o := Outcome{
		OriginalURL: u,
		Kind:        c.Kind,
		Message:     c.Message,
		Status:      c.Status,
	}

	var aggregate *fallback.Error
	if errors.As(err, &aggregate) {
		o.Failures = aggregate.Failures
	}
	if !s.config.Mode.Hosted() {
		o.Detail = c.Detail
	}
	return o
}

func (s *Service) record(ctx context.Context, strategy string, err error, start time.Time) {
	kind := "none"
	if err != nil {
		kind = string(classify.Classify(err).Kind)
	}
	if strategy == "" {
		strategy = "none"
	}
	attributes := metric.WithAttributes(
		attribute.Key("strategy").String(strategy),
		attribute.Key("kind").String(kind),
	)
	s.captures.Add(ctx, 1, attributes)
	s.duration.Record(ctx, time.Since(start).Milliseconds(), attributes)
}
