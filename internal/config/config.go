package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"
	"webshot/internal/environment"
	"webshot/internal/retry"
	"webshot/internal/storage"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"
)

func EnvOrDefault[T any](key string, defaultValue T) T {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case string:
		return any(value).(T)
	case int:
		if intValue, err := strconv.Atoi(value); err == nil {
			return any(intValue).(T)
		}
	case uint:
		if uintValue, err := strconv.ParseUint(value, 10, 0); err == nil {
			return any(uint(uintValue)).(T)
		}
	case float64:
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return any(floatValue).(T)
		}
	case bool:
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return any(boolValue).(T)
		}
	case time.Duration:
		if durationValue, err := time.ParseDuration(value); err == nil {
			return any(durationValue).(T)
		}
	}

	return defaultValue
}

// LoadDotEnv reads files (default .env) into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return xerrors.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

type Config struct {
	Mode        environment.Mode
	Environment environment.Config

	// NavigationTimeout overrides the per-mode session timeout when set.
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	BatchSettleDelay  time.Duration
	ViewportWidth     int
	ViewportHeight    int

	// StorageBackend is one of imagebed, s3, file or none.
	StorageBackend string
	UploadEndpoint string
	UploadPrefix   string
	S3Bucket       string
	S3EndpointURL  string
	S3PublicURL    string
	Directory      string
	// UploadRetry configures the upload client. Captures are never retried.
	UploadRetry retry.ClientConfig

	FallbackTimeout time.Duration

	Address              string
	RateLimit            float64
	RateBurst            int
	BrowserProbeSchedule string
}

func Load() (Config, error) {
	mode, err := environment.ParseMode(EnvOrDefault("WEBSHOT_MODE", "dev"))
	if err != nil {
		return Config{}, xerrors.Errorf("failed to parse WEBSHOT_MODE: %w", err)
	}

	c := Config{
		Mode: mode,
		Environment: environment.Config{
			Headless:           EnvOrDefault("HEADLESS", true),
			ChromePath:         EnvOrDefault("CHROME_PATH", ""),
			ManagedBrowserPath: EnvOrDefault("MANAGED_BROWSER_PATH", ""),
			ManagedBrowserDir:  EnvOrDefault("MANAGED_BROWSER_DIR", ""),
			Endpoint:           EnvOrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""),
		},
		NavigationTimeout: EnvOrDefault("NAVIGATION_TIMEOUT", time.Duration(0)),
		SettleDelay:       EnvOrDefault("SETTLE_DELAY", 2*time.Second),
		BatchSettleDelay:  EnvOrDefault("BATCH_SETTLE_DELAY", 1500*time.Millisecond),
		ViewportWidth:     EnvOrDefault("VIEWPORT_WIDTH", 1280),
		ViewportHeight:    EnvOrDefault("VIEWPORT_HEIGHT", 720),

		StorageBackend: EnvOrDefault("STORAGE_BACKEND", "imagebed"),
		UploadEndpoint: EnvOrDefault("UPLOAD_ENDPOINT", ""),
		UploadPrefix:   EnvOrDefault("UPLOAD_PREFIX", ""),
		S3Bucket:       EnvOrDefault("S3_BUCKET", ""),
		S3EndpointURL:  EnvOrDefault("S3_ENDPOINT_URL", ""),
		S3PublicURL:    EnvOrDefault("S3_PUBLIC_URL", ""),
		Directory:      EnvOrDefault("DIRECTORY", "/tmp"),
		UploadRetry: retry.ClientConfig{
			Timeout:       EnvOrDefault("UPLOAD_TIMEOUT", 30*time.Second),
			Attempts:      EnvOrDefault("UPLOAD_RETRY_ATTEMPTS", uint(2)),
			MaxRetryAfter: EnvOrDefault("UPLOAD_MAX_RETRY_AFTER", 10*time.Second),
		},

		FallbackTimeout: EnvOrDefault("FALLBACK_TIMEOUT", 30*time.Second),

		Address:              EnvOrDefault("ADDRESS", "0.0.0.0:3000"),
		RateLimit:            EnvOrDefault("RATE_LIMIT", 2.0),
		RateBurst:            EnvOrDefault("RATE_BURST", 4),
		BrowserProbeSchedule: EnvOrDefault("BROWSER_PROBE_SCHEDULE", "@every 5m"),
	}

	c.UploadRetry.On, err = retry.ParseOn(EnvOrDefault("UPLOAD_RETRY_ON", "connect-failure"))
	if err != nil {
		return Config{}, xerrors.Errorf("failed to parse UPLOAD_RETRY_ON: %w", err)
	}

	switch c.StorageBackend {
	case "imagebed", "s3", "file", "none":
	default:
		return Config{}, xerrors.Errorf("unknown STORAGE_BACKEND %q (want imagebed, s3, file or none)", c.StorageBackend)
	}
	if c.StorageBackend == "s3" && c.S3Bucket == "" {
		return Config{}, xerrors.New("S3_BUCKET is required for the s3 storage backend")
	}

	return c, nil
}

// Backend returns the settings storage.NewBackend needs for c.
func (c Config) Backend() storage.BackendConfig {
	return storage.BackendConfig{
		ImageBed: storage.ImageBedConfig{
			Endpoint: c.UploadEndpoint,
			Prefix:   c.UploadPrefix,
		},
		S3: storage.S3Config{
			Bucket:      c.S3Bucket,
			Prefix:      c.UploadPrefix,
			EndpointURL: c.S3EndpointURL,
			PublicURL:   c.S3PublicURL,
		},
		File: storage.FileConfig{
			Directory: c.Directory,
			Prefix:    c.UploadPrefix,
		},
		Client: retry.NewClient(c.UploadRetry),
	}
}

// Credential reads a fallback strategy credential. It is looked up on every
// call so rotated keys apply without a restart.
func Credential(key string) string {
	return os.Getenv(key)
}
