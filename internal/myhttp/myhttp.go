package myhttp

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

func newServerMux(logger *slog.Logger, httpRequestsDurationMicroSeconds metric.Int64Histogram, limiter *rate.Limiter) *myRouter {
	return &myRouter{
		ServeMux:                         http.NewServeMux(),
		logger:                           logger,
		httpRequestsDurationMicroSeconds: httpRequestsDurationMicroSeconds,
		limiter:                          limiter,
	}
}

var NewServerMux = newServerMux
