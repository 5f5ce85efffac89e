package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"webshot/internal/capture"

	"golang.org/x/xerrors"
)

const (
	DefaultAPIFlashEndpoint = "https://api.apiflash.com/v1/urltoimage"
	DefaultURLBoxEndpoint   = "https://api.urlbox.com/v1/render/sync"

	DefaultAPITimeout = 30 * time.Second

	DefaultMaxImageSize = 20 << 20
)

type APIConfig struct {
	// Credential is the access key; the strategy is unavailable without it.
	Credential string
	Endpoint   string
	// Timeout bounds the render call and the image download together.
	Timeout time.Duration
	Client  *http.Client
	// MaxImageSize rejects larger downloads instead of truncating them.
	MaxImageSize int64
}

func (c APIConfig) withDefaults(endpoint string) APIConfig {
	if c.Endpoint == "" {
		c.Endpoint = endpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultAPITimeout
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.MaxImageSize <= 0 {
		c.MaxImageSize = DefaultMaxImageSize
	}
	return c
}

type renderFunc func(ctx context.Context, c APIConfig, r capture.Request) (*http.Request, error)

// apiStrategy asks a third-party service to render the page, then downloads
// the image it links to.
type apiStrategy struct {
	name   string
	config APIConfig
	render renderFunc
}

func NewAPIFlash(c APIConfig) Strategy {
	return &apiStrategy{
		name:   "apiflash",
		config: c.withDefaults(DefaultAPIFlashEndpoint),
		render: apiflashRequest,
	}
}

func NewURLBox(c APIConfig) Strategy {
	return &apiStrategy{
		name:   "urlbox",
		config: c.withDefaults(DefaultURLBoxEndpoint),
		render: urlboxRequest,
	}
}

func (s *apiStrategy) Name() string {
	return s.name
}

func (s *apiStrategy) Available() bool {
	return s.config.Credential != ""
}

func (s *apiStrategy) Capture(ctx context.Context, r capture.Request) (*capture.Shot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	request, err := s.render(ctx, s.config, r)
	if err != nil {
		return nil, xerrors.Errorf("failed to build render request: %w", err)
	}

	var rendered struct {
		URL       string `json:"url"`
		RenderURL string `json:"renderUrl"`
		Error     any    `json:"error"`
		Message   string `json:"message"`
	}
	if err := s.doJSON(request, &rendered); err != nil {
		return nil, err
	}
	imageURL := rendered.URL
	if imageURL == "" {
		imageURL = rendered.RenderURL
	}
	if imageURL == "" {
		return nil, xerrors.Errorf("render response has no image url: %v %s", rendered.Error, rendered.Message)
	}

	download, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to build image request: %w", err)
	}
	response, err := s.config.Client.Do(download)
	if err != nil {
		return nil, xerrors.Errorf("failed to download rendered image: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("image download returned %s", response.Status)
	}
	if response.ContentLength > s.config.MaxImageSize {
		return nil, xerrors.Errorf("rendered image is %d bytes, limit is %d", response.ContentLength, s.config.MaxImageSize)
	}
	data, err := io.ReadAll(io.LimitReader(response.Body, s.config.MaxImageSize+1))
	if err != nil {
		return nil, xerrors.Errorf("failed to read rendered image: %w", err)
	}
	if int64(len(data)) > s.config.MaxImageSize {
		return nil, xerrors.Errorf("rendered image exceeds %d bytes", s.config.MaxImageSize)
	}

	return capture.NewShot(data, r.Format)
}

func (s *apiStrategy) doJSON(request *http.Request, v any) error {
	response, err := s.config.Client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to call %s: %w", s.name, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return xerrors.Errorf("failed to read %s response: %w", s.name, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return xerrors.Errorf("%s returned %s: %s", s.name, response.Status, bytes.TrimSpace(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return xerrors.Errorf("failed to decode %s response: %w", s.name, err)
	}
	return nil
}

func apiflashRequest(ctx context.Context, c APIConfig, r capture.Request) (*http.Request, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("access_key", c.Credential)
	q.Set("url", r.URL)
	q.Set("format", string(r.Format))
	q.Set("width", strconv.Itoa(r.Viewport.Width))
	q.Set("height", strconv.Itoa(r.Viewport.Height))
	q.Set("full_page", strconv.FormatBool(r.FullPage))
	q.Set("response_type", "json")
	if r.Format == capture.JPEG && r.Quality > 0 {
		q.Set("quality", strconv.Itoa(r.Quality))
	}
	u.RawQuery = q.Encode()

	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

func urlboxRequest(ctx context.Context, c APIConfig, r capture.Request) (*http.Request, error) {
	payload := map[string]any{
		"url":       r.URL,
		"format":    string(r.Format),
		"width":     r.Viewport.Width,
		"height":    r.Viewport.Height,
		"full_page": r.FullPage,
	}
	if r.Format == capture.JPEG && r.Quality > 0 {
		payload["quality"] = r.Quality
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.Credential)
	request.Header.Set("Content-Type", "application/json")
	return request, nil
}

type SecondaryConfig struct {
	// Credential looks up a provider key by environment variable name.
	Credential       func(key string) string
	Timeout          time.Duration
	APIFlashEndpoint string
	URLBoxEndpoint   string
}

// Secondaries returns a builder for the third-party strategies in priority
// order. Credentials are looked up on every call. The shared client never
// retries: a failed provider hands over to the next strategy.
func Secondaries(c SecondaryConfig) func() []Strategy {
	client := &http.Client{Timeout: c.Timeout}
	return func() []Strategy {
		return []Strategy{
			NewAPIFlash(APIConfig{
				Credential: c.Credential("APIFLASH_ACCESS_KEY"),
				Endpoint:   c.APIFlashEndpoint,
				Timeout:    c.Timeout,
				Client:     client,
			}),
			NewURLBox(APIConfig{
				Credential: c.Credential("URLBOX_API_KEY"),
				Endpoint:   c.URLBoxEndpoint,
				Timeout:    c.Timeout,
				Client:     client,
			}),
		}
	}
}
