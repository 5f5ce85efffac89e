package fallback_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
	"webshot/internal/capture"
	"webshot/internal/capture/capturetest"
	"webshot/internal/classify"
	"webshot/internal/fallback"

	"github.com/google/go-cmp/cmp"
)

func newRenderServer(t *testing.T, check func(r *http.Request), delay time.Duration) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server
	render := func(w http.ResponseWriter, r *http.Request) {
		check(r)
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url":       server.URL + "/image.png",
			"renderUrl": server.URL + "/image.png",
		})
	}
	mux.HandleFunc("GET /v1/urltoimage", render)
	mux.HandleFunc("POST /v1/render/sync", render)
	mux.HandleFunc("GET /image.png", func(w http.ResponseWriter, r *http.Request) {
		data, err := capturetest.Image(8, 6, capture.PNG)
		if err != nil {
			t.Error(err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestAPIFlash(t *testing.T) {
	server := newRenderServer(t, func(r *http.Request) {
		q := r.URL.Query()
		if diff := cmp.Diff("secret", q.Get("access_key")); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("https://example.com", q.Get("url")); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("json", q.Get("response_type")); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if q.Has("quality") {
			t.Errorf("quality must not be sent for png")
		}
	}, 0)

	s := fallback.NewAPIFlash(fallback.APIConfig{
		Credential: "secret",
		Endpoint:   server.URL + "/v1/urltoimage",
		Client:     server.Client(),
	})
	if !s.Available() {
		t.Fatal("expected strategy to be available")
	}

	shot, err := s.Capture(context.Background(), request(t))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([2]int{8, 6}, [2]int{shot.Width, shot.Height}); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestURLBox(t *testing.T) {
	server := newRenderServer(t, func(r *http.Request) {
		if diff := cmp.Diff("Bearer secret", r.Header.Get("Authorization")); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if diff := cmp.Diff("https://example.com", body["url"]); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	}, 0)

	s := fallback.NewURLBox(fallback.APIConfig{
		Credential: "secret",
		Endpoint:   server.URL + "/v1/render/sync",
		Client:     server.Client(),
	})

	shot, err := s.Capture(context.Background(), request(t))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(capture.PNG, shot.Format); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestAPIStrategyWithoutCredentialIsUnavailable(t *testing.T) {
	for _, s := range []fallback.Strategy{
		fallback.NewAPIFlash(fallback.APIConfig{}),
		fallback.NewURLBox(fallback.APIConfig{}),
	} {
		if s.Available() {
			t.Errorf("%s: expected unavailable", s.Name())
		}
	}
}

func TestAPIStrategyTimeout(t *testing.T) {
	server := newRenderServer(t, func(r *http.Request) {}, 200*time.Millisecond)

	s := fallback.NewAPIFlash(fallback.APIConfig{
		Credential: "secret",
		Endpoint:   server.URL + "/v1/urltoimage",
		Timeout:    20 * time.Millisecond,
		Client:     server.Client(),
	})

	_, err := s.Capture(context.Background(), request(t))
	if diff := cmp.Diff(classify.Timeout, classify.Classify(err).Kind); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestAPIStrategyErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid access key"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	s := fallback.NewAPIFlash(fallback.APIConfig{
		Credential: "wrong",
		Endpoint:   server.URL,
		Client:     server.Client(),
	})

	if _, err := s.Capture(context.Background(), request(t)); err == nil {
		t.Fatal("expected error")
	}
}

func TestAPIStrategyRejectsOversizedImage(t *testing.T) {
	data, err := capturetest.Image(64, 48, capture.PNG)
	if err != nil {
		t.Fatal(err)
	}

	for name, write := range map[string]func(w http.ResponseWriter){
		"ContentLength": func(w http.ResponseWriter) {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			_, _ = w.Write(data)
		},
		"Chunked": func(w http.ResponseWriter) {
			_, _ = w.Write(data[:16])
			w.(http.Flusher).Flush()
			_, _ = w.Write(data[16:])
		},
	} {
		write := write
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			var server *httptest.Server
			mux.HandleFunc("GET /v1/urltoimage", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]string{"url": server.URL + "/image.png"})
			})
			mux.HandleFunc("GET /image.png", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				write(w)
			})
			server = httptest.NewServer(mux)
			t.Cleanup(server.Close)

			s := fallback.NewAPIFlash(fallback.APIConfig{
				Credential:   "secret",
				Endpoint:     server.URL + "/v1/urltoimage",
				Client:       server.Client(),
				MaxImageSize: int64(len(data) - 1),
			})
			if _, err := s.Capture(context.Background(), request(t)); err == nil {
				t.Fatal("expected error for an image over the size limit")
			}
		})
	}

	t.Run("AtLimit", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		var server *httptest.Server
		mux.HandleFunc("GET /v1/urltoimage", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"url": server.URL + "/image.png"})
		})
		mux.HandleFunc("GET /image.png", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(data)
		})
		server = httptest.NewServer(mux)
		t.Cleanup(server.Close)

		s := fallback.NewAPIFlash(fallback.APIConfig{
			Credential:   "secret",
			Endpoint:     server.URL + "/v1/urltoimage",
			Client:       server.Client(),
			MaxImageSize: int64(len(data)),
		})
		shot, err := s.Capture(context.Background(), request(t))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(data, shot.Bytes); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}

func TestSecondaries(t *testing.T) {
	t.Run("AvailabilityFollowsCredentials", func(t *testing.T) {
		keys := map[string]string{"URLBOX_API_KEY": "secret"}
		build := fallback.Secondaries(fallback.SecondaryConfig{
			Credential: func(key string) string { return keys[key] },
			Timeout:    time.Second,
		})

		got := map[string]bool{}
		for _, s := range build() {
			got[s.Name()] = s.Available()
		}
		if diff := cmp.Diff(map[string]bool{"apiflash": false, "urlbox": true}, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}

		keys["APIFLASH_ACCESS_KEY"] = "rotated"
		if !build()[0].Available() {
			t.Errorf("expected a credential set after construction to be picked up")
		}
	})

	t.Run("NoRetryWithinStrategy", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.Header().Set("Retry-After", "0")
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}))
		t.Cleanup(server.Close)

		strategies := fallback.Secondaries(fallback.SecondaryConfig{
			Credential:       func(string) string { return "secret" },
			Timeout:          time.Second,
			APIFlashEndpoint: server.URL + "/v1/urltoimage",
			URLBoxEndpoint:   server.URL + "/v1/render/sync",
		})()

		for _, s := range strategies {
			if _, err := s.Capture(context.Background(), request(t)); err == nil {
				t.Errorf("%s: expected error", s.Name())
			}
		}
		if diff := cmp.Diff(int32(len(strategies)), atomic.LoadInt32(&hits)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}
