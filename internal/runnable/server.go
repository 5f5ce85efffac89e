package runnable

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	"webshot/internal/config"
	"webshot/internal/myhttp"
	"webshot/internal/routes"
	"webshot/internal/screenshot"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

type Server struct {
	address                string
	terminationGracePeriod time.Duration
	lameduck               time.Duration
	keepAlive              bool
	maxConnections         int
	rateLimit              float64
	rateBurst              int
	probeSchedule          string
	service                *screenshot.Service
}

func NewServer(c config.Config, service *screenshot.Service) *Server {
	return &Server{
		address:                c.Address,
		terminationGracePeriod: config.EnvOrDefault("TERMINATION_GRACE_PERIOD", 60*time.Second),
		lameduck:               config.EnvOrDefault("LAMEDUCK", 1*time.Second),
		keepAlive:              config.EnvOrDefault("HTTP_KEEPALIVE", true),
		maxConnections:         config.EnvOrDefault("MAX_CONNECTIONS", 1024),
		rateLimit:              c.RateLimit,
		rateBurst:              c.RateBurst,
		probeSchedule:          c.BrowserProbeSchedule,
		service:                service,
	}
}

var Debug = false

// NewLogger builds the process logger: JSON on stderr with OpenTelemetry
// log data model keys, or text when Debug is set.
func NewLogger() (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("GO_LOG"); ok {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, xerrors.Errorf("failed to parse log level: %w", err)
		}
	}
	handlerOpts := &slog.HandlerOptions{
		Level: logLevel,
		// https://opentelemetry.io/docs/specs/otel/logs/data-model/
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				a.Key = "severitytext"
			case slog.MessageKey:
				a.Key = "body"
			}
			return a
		},
	}
	if Debug {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
}

func (s *Server) Start(ctx context.Context) error {
	runtime.SetMutexProfileFraction(1)
	runtime.SetBlockProfileRate(1)

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "webshot",
		ServerAddress:   os.Getenv("PYROSCOPE_ENDPOINT"),
		UploadRate:      60 * time.Second,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		},
	})
	if err != nil {
		return xerrors.Errorf("failed to create profiler: %w", err)
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	r, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName("webshot")),
	)
	if err != nil {
		return xerrors.Errorf("failed to create resource: %w", err)
	}
	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return xerrors.Errorf("failed to create trace exporter: %w", err)
	}
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(r),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(traceProvider))

	exporter, err := otelprometheus.New()
	if err != nil {
		return xerrors.Errorf("failed to create exporter: %w", err)
	}
	// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
	// https://github.com/prometheus/client_golang/blob/v1.20.4/prometheus/metric.go#L200
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(r), sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)
	meter := meterProvider.Meter("webshot")
	httpRequestsDurationMicroSeconds, err := meter.Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		return xerrors.Errorf("failed to create histogram: %w", err)
	}

	logger, err := NewLogger()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	probe := newBrowserProbe(s.service, 2*time.Minute)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(s.probeSchedule, func() {
		probe.Run(ctx)
	}); err != nil {
		return xerrors.Errorf("failed to schedule browser probe %q: %w", s.probeSchedule, err)
	}
	go probe.Run(ctx)
	scheduler.Start()
	defer scheduler.Stop()

	var limiter *rate.Limiter
	if s.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rateLimit), s.rateBurst)
	}
	mux := myhttp.NewServerMux(logger, httpRequestsDurationMicroSeconds, limiter)

	mux.HandleFuncWithLimit("GET /api/screenshot", routes.Screenshot(s.service))
	mux.HandleFuncWithLimit("POST /api/screenshot", routes.Screenshot(s.service))
	mux.HandleFuncWithLimit("POST /api/screenshots/batch", routes.Batch(s.service))
	mux.HandleFuncWithMiddleware("GET /api/strategies", routes.Strategies(s.service))
	mux.HandleFuncWithMiddleware("GET /health", routes.Health(s.service, probe))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if Debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler: mux,
	}
	server.SetKeepAlivesEnabled(s.keepAlive)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("serving", "address", s.address, "mode", s.service.Mode())
		if err := server.Serve(netutil.LimitListener(listener, s.maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return xerrors.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
		defer signal.Stop(quit)

		select {
		case <-quit:
			time.Sleep(s.lameduck)
		case <-egCtx.Done():
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.terminationGracePeriod)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return xerrors.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.terminationGracePeriod)
	defer cancel()

	if err := traceProvider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown trace provider: %w", err)
	}

	if err := meterProvider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown meter provider: %w", err)
	}

	if err := profiler.Stop(); err != nil {
		return xerrors.Errorf("failed to shutdown profiler: %w", err)
	}

	return nil
}
