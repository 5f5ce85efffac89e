package environment

import (
	"context"

	"github.com/go-rod/rod/lib/launcher"
	"golang.org/x/xerrors"
)

// Binary is a managed headless browser distribution.
type Binary interface {
	ExecutablePath(ctx context.Context) (string, error)
	Args() []string
	Headless() bool
}

// serverlessArgs suit constrained, short-lived compute.
var serverlessArgs = []string{
	"--disable-gpu",
	"--disable-dev-shm-usage",
	"--disable-extensions",
	"--single-process",
	"--no-zygote",
	"--no-sandbox",
}

type managedProvider struct {
	binary Binary
}

func NewManagedProvider(b Binary) Provider {
	return &managedProvider{
		binary: b,
	}
}

func (p *managedProvider) Mode() Mode {
	return Serverless
}

func (p *managedProvider) Resolve(ctx context.Context) (Profile, error) {
	path, err := p.binary.ExecutablePath(ctx)
	if err != nil {
		return Profile{}, configurationError("browser not available: managed binary: %w", err)
	}
	if path == "" {
		return Profile{}, configurationError("browser not available: managed binary resolved no executable path")
	}

	return Profile{
		Mode:           Serverless,
		Family:         "Chromium (managed)",
		ExecutablePath: path,
		LaunchArgs:     mergeArgs(p.binary.Args(), serverlessArgs),
		Headless:       p.binary.Headless(),
	}, nil
}

type rodBinary struct {
	path    string
	rootDir string
	exists  func(string) bool
}

// NewRodBinary resolves a pinned Chromium revision through the rod launcher,
// downloading it into rootDir on first use. A non-empty path short-circuits
// the download when the file exists.
func NewRodBinary(path string, rootDir string) Binary {
	return &rodBinary{
		path:    path,
		rootDir: rootDir,
		exists:  fileExists,
	}
}

func (b *rodBinary) ExecutablePath(ctx context.Context) (string, error) {
	if b.path != "" {
		if b.exists(b.path) {
			return b.path, nil
		}
		return "", xerrors.Errorf("%s does not exist", b.path)
	}

	browser := launcher.NewBrowser()
	browser.Context = ctx
	if b.rootDir != "" {
		browser.RootDir = b.rootDir
	}

	path, err := browser.Get()
	if err != nil {
		return "", xerrors.Errorf("failed to get chromium revision %d: %w", browser.Revision, err)
	}
	return path, nil
}

func (b *rodBinary) Args() []string {
	return []string{
		"--allow-running-insecure-content",
		"--autoplay-policy=user-gesture-required",
		"--disable-component-update",
		"--disable-domain-reliability",
		"--disable-features=AudioServiceOutOfProcess,IsolateOrigins,site-per-process",
		"--disable-print-preview",
		"--disable-setuid-sandbox",
		"--disable-site-isolation-trials",
		"--disable-speech-api",
		"--disk-cache-size=33554432",
		"--hide-scrollbars",
		"--ignore-gpu-blocklist",
		"--mute-audio",
		"--no-default-browser-check",
		"--no-pings",
		"--use-gl=swiftshader",
	}
}

func (b *rodBinary) Headless() bool {
	return true
}
