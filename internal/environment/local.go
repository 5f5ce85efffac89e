package environment

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// Family is a browser family with its install locations per GOOS.
type Family struct {
	Name  string
	Paths map[string][]string
	Args  []string
	// Limited families ignore part of the automation switches; headless
	// capture is attempted with a minimal argument set.
	Limited bool
}

var baselineArgs = []string{
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-background-networking",
	"--disable-sync",
	"--hide-scrollbars",
	"--mute-audio",
}

// Families is ordered by preference.
var Families = []Family{
	{
		Name: "Google Chrome",
		Paths: map[string][]string{
			"linux": {
				"/usr/bin/google-chrome",
				"/usr/bin/google-chrome-stable",
				"/opt/google/chrome/chrome",
			},
			"darwin": {
				"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			},
			"windows": {
				`C:\Program Files\Google\Chrome\Application\chrome.exe`,
				`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			},
		},
		Args: []string{"--disable-blink-features=AutomationControlled"},
	},
	{
		Name: "Chromium",
		Paths: map[string][]string{
			"linux": {
				"/usr/bin/chromium",
				"/usr/bin/chromium-browser",
				"/snap/bin/chromium",
			},
			"darwin": {
				"/Applications/Chromium.app/Contents/MacOS/Chromium",
			},
			"windows": {
				`C:\Program Files\Chromium\Application\chrome.exe`,
			},
		},
		Args: []string{"--disable-blink-features=AutomationControlled", "--disable-component-update"},
	},
	{
		Name: "Microsoft Edge",
		Paths: map[string][]string{
			"linux": {
				"/usr/bin/microsoft-edge",
				"/usr/bin/microsoft-edge-stable",
			},
			"darwin": {
				"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			},
			"windows": {
				`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
				`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
			},
		},
		Args: []string{"--disable-blink-features=AutomationControlled", "--disable-features=msImplicitSignin"},
	},
	{
		Name: "Brave",
		Paths: map[string][]string{
			"linux": {
				"/usr/bin/brave-browser",
				"/opt/brave.com/brave/brave",
			},
			"darwin": {
				"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
			},
			"windows": {
				`C:\Program Files\BraveSoftware\Brave-Browser\Application\brave.exe`,
			},
		},
		Args: []string{"--disable-blink-features=AutomationControlled", "--disable-brave-update"},
	},
	{
		Name: "Opera",
		Paths: map[string][]string{
			"linux": {
				"/usr/bin/opera",
			},
			"darwin": {
				"/Applications/Opera.app/Contents/MacOS/Opera",
			},
			"windows": {
				`C:\Program Files\Opera\opera.exe`,
			},
		},
		Limited: true,
	},
}

type localProvider struct {
	goos       string
	override   string
	headless   bool
	families   []Family
	fileExists func(string) bool
}

func NewLocalProvider(override string, headless bool) Provider {
	return &localProvider{
		goos:       runtime.GOOS,
		override:   override,
		headless:   headless,
		families:   Families,
		fileExists: fileExists,
	}
}

// NewLocalProviderFor is NewLocalProvider with an explicit platform, family
// table and existence probe.
func NewLocalProviderFor(goos string, families []Family, exists func(string) bool, override string, headless bool) Provider {
	return &localProvider{
		goos:       goos,
		override:   override,
		headless:   headless,
		families:   families,
		fileExists: exists,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (p *localProvider) Mode() Mode {
	return Dev
}

func (p *localProvider) Resolve(ctx context.Context) (Profile, error) {
	if p.override != "" {
		if !p.fileExists(p.override) {
			return Profile{}, configurationError("browser not available: CHROME_PATH %s does not exist", p.override)
		}
		return Profile{
			Mode:           Dev,
			Family:         "custom",
			ExecutablePath: p.override,
			LaunchArgs:     mergeArgs(baselineArgs),
			Headless:       p.headless,
		}, nil
	}

	for _, family := range p.families {
		for _, path := range family.Paths[p.goos] {
			if !p.fileExists(path) {
				continue
			}

			profile := Profile{
				Mode:           Dev,
				Family:         family.Name,
				ExecutablePath: path,
				Headless:       p.headless,
			}
			if family.Limited {
				profile.LaunchArgs = []string{"--no-first-run"}
				profile.Warning = family.Name + " has limited automation support; headless capture is not guaranteed"
				slog.Warn("using browser with limited automation support", "family", family.Name, "path", path)
			} else {
				profile.LaunchArgs = mergeArgs(baselineArgs, family.Args)
			}
			return profile, nil
		}
	}

	return Profile{}, configurationError("no supported browser found on %s; install one of: %s", p.goos, strings.Join(p.familyNames(), ", "))
}

func (p *localProvider) familyNames() []string {
	names := make([]string, 0, len(p.families))
	for _, family := range p.families {
		names = append(names, family.Name)
	}
	return names
}
