package capture

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"strings"
	"time"
	"webshot/internal/classify"

	"golang.org/x/xerrors"
)

type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

type Viewport struct {
	Width  int
	Height int
}

const (
	DefaultWidth   = 1280
	DefaultHeight  = 720
	DefaultTimeout = 30 * time.Second
)

// Options are the caller-tunable parts of a Request. Zero values select defaults.
type Options struct {
	Width    int
	Height   int
	Format   Format
	FullPage bool
	// Quality applies to JPEG only; setting it for PNG is rejected.
	Quality int
	Timeout time.Duration
}

// Request is an immutable, validated capture request. Pass it by value.
type Request struct {
	URL      string
	Viewport Viewport
	Format   Format
	FullPage bool
	Quality  int
	Timeout  time.Duration
}

// Normalize prefixes https:// when no http(s) scheme is present. Surrounding
// whitespace is trimmed first, so for a trimmed scheme-less host h the result
// is exactly "https://" + h.
func Normalize(raw string) string {
	u := strings.TrimSpace(raw)
	if hasPrefixFold(u, "http://") || hasPrefixFold(u, "https://") {
		return u
	}
	return "https://" + u
}

func hasPrefixFold(s string, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Validate reports whether u is an absolute HTTP or HTTPS URL.
func Validate(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return classify.Wrap(classify.InvalidRequest, xerrors.Errorf("failed to parse url %q: %w", u, err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return classify.Wrap(classify.InvalidRequest, xerrors.Errorf("unsupported scheme %q", parsed.Scheme))
	}
	if parsed.Hostname() == "" {
		return classify.Wrap(classify.InvalidRequest, xerrors.Errorf("url %q has no host", u))
	}
	return nil
}

func NewRequest(raw string, o Options) (Request, error) {
	u := Normalize(raw)
	if err := Validate(u); err != nil {
		return Request{}, err
	}

	r := Request{
		URL:      u,
		Viewport: Viewport{Width: o.Width, Height: o.Height},
		Format:   o.Format,
		FullPage: o.FullPage,
		Quality:  o.Quality,
		Timeout:  o.Timeout,
	}
	if r.Viewport.Width <= 0 {
		r.Viewport.Width = DefaultWidth
	}
	if r.Viewport.Height <= 0 {
		r.Viewport.Height = DefaultHeight
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}

	switch r.Format {
	case "":
		r.Format = PNG
	case PNG, JPEG:
	case "jpg":
		r.Format = JPEG
	default:
		return Request{}, classify.Wrap(classify.InvalidRequest, xerrors.Errorf("unsupported format %q", o.Format))
	}

	if r.Quality != 0 {
		if r.Format != JPEG {
			return Request{}, classify.Wrap(classify.InvalidRequest, xerrors.Errorf("quality is only valid for jpeg, got format %s", r.Format))
		}
		if r.Quality < 1 || r.Quality > 100 {
			return Request{}, classify.Wrap(classify.InvalidRequest, xerrors.Errorf("quality must be between 1 and 100, got %d", r.Quality))
		}
	}

	return r, nil
}

// Shot is a captured raster image.
type Shot struct {
	Bytes  []byte
	Width  int
	Height int
	Format Format
}

// NewShot checks that data is a non-empty image of the given format and
// reads its dimensions from the header.
func NewShot(data []byte, format Format) (*Shot, error) {
	if len(data) == 0 {
		return nil, xerrors.New("empty screenshot payload")
	}
	if got := http.DetectContentType(data); got != format.ContentType() {
		return nil, xerrors.Errorf("screenshot payload is %s, expected %s", got, format.ContentType())
	}

	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("failed to decode screenshot header: %w", err)
	}

	return &Shot{
		Bytes:  data,
		Width:  config.Width,
		Height: config.Height,
		Format: format,
	}, nil
}
