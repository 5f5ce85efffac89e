package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"webshot/internal/capture"
	"webshot/internal/classify"
	"webshot/internal/environment"
	"webshot/internal/routes"
	"webshot/internal/screenshot"

	"github.com/google/go-cmp/cmp"
)

type fakeEngine struct {
	mode    environment.Mode
	outcome screenshot.Outcome
	batch   *screenshot.BatchOutcome
	err     error

	gotURL     string
	gotOptions capture.Options
	gotURLs    []string
}

func (e *fakeEngine) Mode() environment.Mode {
	return e.mode
}

func (e *fakeEngine) Capture(ctx context.Context, raw string, o capture.Options) screenshot.Outcome {
	e.gotURL = raw
	e.gotOptions = o
	return e.outcome
}

func (e *fakeEngine) CaptureBatch(ctx context.Context, urls []string, o capture.Options) (*screenshot.BatchOutcome, error) {
	e.gotURLs = urls
	return e.batch, e.err
}

func (e *fakeEngine) ListAvailableStrategies() []string {
	return []string{"automation", "apiflash"}
}

var success = screenshot.Outcome{
	Success:     true,
	OriginalURL: "https://example.com",
	URL:         "https://img.example/screenshots/screenshot_abc_1.png",
	Metadata:    &screenshot.Metadata{Size: 4, Format: capture.PNG, Width: 1280, Height: 720, Source: "automation"},
	Bytes:       []byte("\x89PNG"),
}

func decode(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()

	var v map[string]any
	if err := json.Unmarshal(body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json %q: %v", body.String(), err)
	}
	return v
}

func TestScreenshot(t *testing.T) {
	t.Run("Query", func(t *testing.T) {
		e := &fakeEngine{mode: environment.Dev, outcome: success}
		w := httptest.NewRecorder()

		routes.Screenshot(e)(w, httptest.NewRequest(http.MethodGet, "/api/screenshot?url=example.com&width=800&fullPage=true&timeout=5000", nil))

		if diff := cmp.Diff(http.StatusOK, w.Code); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("example.com", e.gotURL); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(capture.Options{Width: 800, FullPage: true, Timeout: 5 * time.Second}, e.gotOptions); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		body := decode(t, w.Body)
		if diff := cmp.Diff(true, body["success"]); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(success.URL, body["url"]); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("JSONBody", func(t *testing.T) {
		e := &fakeEngine{mode: environment.Dev, outcome: success}
		w := httptest.NewRecorder()

		routes.Screenshot(e)(w, httptest.NewRequest(http.MethodPost, "/api/screenshot", strings.NewReader(`{"url":"example.com","options":{"format":"JPEG","quality":70}}`)))

		if diff := cmp.Diff(http.StatusOK, w.Code); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(capture.Options{Format: capture.JPEG, Quality: 70}, e.gotOptions); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Binary", func(t *testing.T) {
		e := &fakeEngine{mode: environment.Dev, outcome: success}
		w := httptest.NewRecorder()

		routes.Screenshot(e)(w, httptest.NewRequest(http.MethodGet, "/api/screenshot?url=example.com&response=binary", nil))

		if diff := cmp.Diff("image/png", w.Header().Get("Content-Type")); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(success.Bytes, w.Body.Bytes()); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		e := &fakeEngine{mode: environment.Dev, outcome: screenshot.Outcome{
			OriginalURL: "http://nonexistent.invalid",
			Kind:        classify.HostNotFound,
			Message:     classify.HostNotFound.Message(),
			Status:      http.StatusNotFound,
			Detail:      "net::ERR_NAME_NOT_RESOLVED",
		}}
		w := httptest.NewRecorder()

		routes.Screenshot(e)(w, httptest.NewRequest(http.MethodGet, "/api/screenshot?url=http://nonexistent.invalid", nil))

		if diff := cmp.Diff(http.StatusNotFound, w.Code); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		body := decode(t, w.Body)
		want := map[string]any{
			"success":   false,
			"errorKind": "HostNotFound",
			"error":     classify.HostNotFound.Message(),
			"details":   "net::ERR_NAME_NOT_RESOLVED",
		}
		for key, value := range want {
			if diff := cmp.Diff(value, body[key]); diff != "" {
				t.Errorf("%s: (-want +got):\n%s", key, diff)
			}
		}
	})

	for name, target := range map[string]string{
		"MissingURL": "/api/screenshot",
		"BadWidth":   "/api/screenshot?url=example.com&width=wide",
		"BadBool":    "/api/screenshot?url=example.com&fullPage=maybe",
	} {
		target := target
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := &fakeEngine{mode: environment.Serverless}
			w := httptest.NewRecorder()

			routes.Screenshot(e)(w, httptest.NewRequest(http.MethodGet, target, nil))

			if diff := cmp.Diff(http.StatusBadRequest, w.Code); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			body := decode(t, w.Body)
			if _, ok := body["details"]; ok {
				t.Errorf("details must not be exposed in hosted mode")
			}
			if e.gotURL != "" {
				t.Errorf("engine called for an invalid request")
			}
		})
	}
}

func TestBatch(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		e := &fakeEngine{mode: environment.Dev, batch: &screenshot.BatchOutcome{
			ID:             "batch-1",
			Results:        []screenshot.Outcome{success},
			TotalRequested: 1,
			TotalSucceeded: 1,
		}}
		w := httptest.NewRecorder()

		routes.Batch(e)(w, httptest.NewRequest(http.MethodPost, "/api/screenshots/batch", strings.NewReader(`{"urls":["example.com"]}`)))

		if diff := cmp.Diff(http.StatusOK, w.Code); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"example.com"}, e.gotURLs); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		body := decode(t, w.Body)
		if diff := cmp.Diff(float64(1), body["totalSucceeded"]); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("batch-1", body["batchId"]); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		e := &fakeEngine{mode: environment.Dev, err: screenshot.ErrBatchTooLarge}
		w := httptest.NewRecorder()

		routes.Batch(e)(w, httptest.NewRequest(http.MethodPost, "/api/screenshots/batch", strings.NewReader(`{"urls":[]}`)))

		if diff := cmp.Diff(http.StatusBadRequest, w.Code); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		e := &fakeEngine{mode: environment.Dev}
		w := httptest.NewRecorder()

		routes.Batch(e)(w, httptest.NewRequest(http.MethodPost, "/api/screenshots/batch", strings.NewReader(`{"urls":`)))

		if diff := cmp.Diff(http.StatusBadRequest, w.Code); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}

type fixedProbe struct {
	available bool
	checkedAt time.Time
}

func (p fixedProbe) BrowserAvailable() (bool, time.Time) {
	return p.available, p.checkedAt
}

func TestHealth(t *testing.T) {
	e := &fakeEngine{mode: environment.Edge}
	w := httptest.NewRecorder()

	routes.Health(e, fixedProbe{available: true, checkedAt: time.Now()})(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	body := decode(t, w.Body)
	for key, want := range map[string]any{
		"status":           "healthy",
		"version":          routes.Version,
		"mode":             "edge",
		"browserAvailable": true,
	} {
		if diff := cmp.Diff(want, body[key]); diff != "" {
			t.Errorf("%s: (-want +got):\n%s", key, diff)
		}
	}
}

func TestStrategies(t *testing.T) {
	w := httptest.NewRecorder()

	routes.Strategies(&fakeEngine{})(w, httptest.NewRequest(http.MethodGet, "/api/strategies", nil))

	if diff := cmp.Diff(`{"strategies":["automation","apiflash"]}`, w.Body.String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
