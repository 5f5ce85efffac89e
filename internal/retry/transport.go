package retry

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/xerrors"
)

// Transport retries a request on the outcomes selected by On. Requests with
// a body are retried only when the body can be rewound through GetBody.
type Transport struct {
	Base    http.RoundTripper
	Backoff Backoff
	On      *On
	// MaxRetryAfter caps a server supplied Retry-After.
	MaxRetryAfter time.Duration
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx := request.Context()

	for attempt := uint(0); ; attempt++ {
		response, err := t.base().RoundTrip(request)

		var again bool
		if err != nil {
			again = t.On != nil && t.On.CheckError(err)
		} else {
			again = t.On != nil && t.On.CheckResponse(response)
		}
		if !again {
			return response, err
		}

		wait, ok := t.backoff().Next(attempt)
		if !ok || (request.Body != nil && request.Body != http.NoBody && request.GetBody == nil) {
			return response, err
		}
		if response != nil {
			wait = t.retryAfter(response, wait)
			_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
			_ = response.Body.Close()
		}

		slog.Debug("retrying request", "url", request.URL.Redacted(), "attempt", attempt+1, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		if request.GetBody != nil {
			body, err := request.GetBody()
			if err != nil {
				return nil, xerrors.Errorf("failed to rewind request body: %w", err)
			}
			request = request.Clone(ctx)
			request.Body = body
		}
	}
}

func (t *Transport) retryAfter(response *http.Response, fallback time.Duration) time.Duration {
	v := response.Header.Get("Retry-After")
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	limit := t.MaxRetryAfter
	if limit <= 0 {
		limit = 10 * time.Second
	}
	return clamp(time.Duration(seconds)*time.Second, 0, limit)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) backoff() Backoff {
	if t.Backoff != nil {
		return t.Backoff
	}
	return NoRetry()
}

type ClientConfig struct {
	Timeout time.Duration
	// Attempts is the number of retries after the first try.
	Attempts uint
	// On defaults to DefaultOn.
	On            *On
	MaxRetryAfter time.Duration
}

// NewClient returns a client whose transport retries the outcomes selected
// by c.On with capped exponential backoff.
func NewClient(c ClientConfig) *http.Client {
	on := c.On
	if on == nil {
		on = DefaultOn()
	}
	return &http.Client{
		Timeout: c.Timeout,
		Transport: &Transport{
			Backoff:       Exponential(100*time.Millisecond, 2*time.Second, c.Attempts, nil),
			On:            on,
			MaxRetryAfter: c.MaxRetryAfter,
		},
	}
}
