package environment

import (
	"context"
	"strings"
	"webshot/internal/classify"

	"golang.org/x/xerrors"
)

type Mode string

const (
	// Dev discovers a locally installed desktop browser.
	Dev Mode = "dev"
	// Serverless uses a managed headless Chromium suited to short-lived compute.
	Serverless Mode = "serverless"
	// Edge drives a browser the host exposes over the DevTools protocol.
	Edge Mode = "edge"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Dev, "":
		return Dev, nil
	case Serverless:
		return Serverless, nil
	case Edge:
		return Edge, nil
	}
	return "", xerrors.Errorf("unknown mode %q (want dev, serverless or edge)", s)
}

// Hosted reports whether m runs on shared hosting rather than a developer machine.
func (m Mode) Hosted() bool {
	return m != Dev
}

// Profile describes how to obtain a browser for one capture. It is resolved
// per capture and never reused across mode changes.
type Profile struct {
	Mode           Mode
	Family         string
	ExecutablePath string
	LaunchArgs     []string
	Headless       bool
	// Endpoint is the host-provided automation binding in Edge mode.
	Endpoint string
	// Warning is set when capture with this profile is not guaranteed to work.
	Warning string
}

// Provider resolves the browser profile of one environment mode.
type Provider interface {
	Mode() Mode
	Resolve(ctx context.Context) (Profile, error)
}

type Config struct {
	Headless bool

	// ChromePath overrides local browser discovery in Dev mode.
	ChromePath string

	// ManagedBrowserPath is a preinstalled managed binary (e.g. a function layer).
	ManagedBrowserPath string
	// ManagedBrowserDir is where the managed binary is downloaded to.
	ManagedBrowserDir string

	// Endpoint is the DevTools endpoint bound by the host in Edge mode.
	Endpoint string
}

func NewProvider(mode Mode, c Config) (Provider, error) {
	switch mode {
	case Dev:
		return NewLocalProvider(c.ChromePath, c.Headless), nil
	case Serverless:
		return NewManagedProvider(NewRodBinary(c.ManagedBrowserPath, c.ManagedBrowserDir)), nil
	case Edge:
		return NewRemoteProvider(c.Endpoint), nil
	}
	return nil, xerrors.Errorf("unknown mode %q", mode)
}

func configurationError(format string, args ...interface{}) error {
	return classify.Wrap(classify.ConfigurationError, xerrors.Errorf(format, args...))
}

func mergeArgs(groups ...[]string) []string {
	seen := map[string]struct{}{}
	var merged []string
	for _, group := range groups {
		for _, arg := range group {
			if _, ok := seen[arg]; ok {
				continue
			}
			seen[arg] = struct{}{}
			merged = append(merged, arg)
		}
	}
	return merged
}
