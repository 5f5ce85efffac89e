package environment

import (
	"context"
	"net/url"
)

type remoteProvider struct {
	endpoint string
}

// NewRemoteProvider validates the DevTools binding the host injects; no
// executable is resolved in this mode.
func NewRemoteProvider(endpoint string) Provider {
	return &remoteProvider{
		endpoint: endpoint,
	}
}

func (p *remoteProvider) Mode() Mode {
	return Edge
}

func (p *remoteProvider) Resolve(ctx context.Context) (Profile, error) {
	if p.endpoint == "" {
		return Profile{}, configurationError("browser binding not available: CHROME_DEVTOOLS_PROTOCOL_URL is not set")
	}

	u, err := url.Parse(p.endpoint)
	if err != nil {
		return Profile{}, configurationError("browser binding not available: invalid endpoint %q: %w", p.endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return Profile{}, configurationError("browser binding not available: unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Profile{}, configurationError("browser binding not available: endpoint %q has no host", p.endpoint)
	}

	return Profile{
		Mode:     Edge,
		Family:   "remote",
		Endpoint: p.endpoint,
		Headless: true,
	}, nil
}
