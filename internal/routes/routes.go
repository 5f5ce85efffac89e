package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"webshot/internal/capture"
	"webshot/internal/classify"
	"webshot/internal/environment"
	"webshot/internal/screenshot"

	"golang.org/x/xerrors"
)

// Engine is what the routes need from the screenshot service.
type Engine interface {
	Mode() environment.Mode
	Capture(ctx context.Context, raw string, o capture.Options) screenshot.Outcome
	CaptureBatch(ctx context.Context, urls []string, o capture.Options) (*screenshot.BatchOutcome, error)
	ListAvailableStrategies() []string
}

// Options is the wire form of capture.Options.
type Options struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	FullPage bool   `json:"fullPage"`
	Quality  int    `json:"quality"`
	// TimeoutMs is milliseconds.
	TimeoutMs int `json:"timeout"`
}

func (o Options) capture() capture.Options {
	return capture.Options{
		Width:    o.Width,
		Height:   o.Height,
		Format:   capture.Format(strings.ToLower(o.Format)),
		FullPage: o.FullPage,
		Quality:  o.Quality,
		Timeout:  time.Duration(o.TimeoutMs) * time.Millisecond,
	}
}

func optionsFromQuery(r *http.Request) (Options, error) {
	q := r.URL.Query()
	o := Options{
		Format: q.Get("format"),
	}

	ints := map[string]*int{
		"width":   &o.Width,
		"height":  &o.Height,
		"quality": &o.Quality,
		"timeout": &o.TimeoutMs,
	}
	for key, dst := range ints {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Options{}, classify.Wrap(classify.InvalidRequest, xerrors.Errorf("invalid %s %q", key, v))
		}
		*dst = n
	}

	if v := q.Get("fullPage"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Options{}, classify.Wrap(classify.InvalidRequest, xerrors.Errorf("invalid fullPage %q", v))
		}
		o.FullPage = b
	}
	return o, nil
}

type errorResponse struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Kind    classify.Kind `json:"errorKind"`
	Details string        `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, mode environment.Mode, err error) {
	c := classify.Classify(err)
	response := errorResponse{
		Error: c.Message,
		Kind:  c.Kind,
	}
	if !mode.Hosted() {
		response.Details = c.Detail
	}
	writeJSON(w, c.Status, response)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error(fmt.Sprintf("failed to marshal json: %s", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
