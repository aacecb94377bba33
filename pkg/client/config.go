package client

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Config configures a Validator. APIURL and LicenseKey are required;
// everything else has a usable default.
type Config struct {
	// APIURL is the base URL of the license server, e.g.
	// "https://licenses.example.com/api/v1". A trailing slash is trimmed.
	APIURL string

	// LicenseKey is the key this client validates.
	LicenseKey string

	// APIKey authenticates the client application against the validation
	// endpoint (X-API-Key header). Optional if the server does not require it.
	APIKey string

	// AppVersion is reported with each validation for the activity log.
	AppVersion string

	// CacheDir is where the offline verdict cache lives.
	// Defaults to ~/.licensify.
	CacheDir string

	// Timeout bounds each validation request. Defaults to 5s. The client
	// never waits indefinitely on the network.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification. Intended
	// for development against self-signed servers only.
	InsecureSkipVerify bool

	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (c *Config) withDefaults() (*Config, error) {
	if c == nil {
		return nil, errors.New("client: config is required")
	}

	out := *c
	out.APIURL = strings.TrimRight(strings.TrimSpace(out.APIURL), "/")
	if out.APIURL == "" {
		return nil, errors.New("client: APIURL is required")
	}
	if strings.TrimSpace(out.LicenseKey) == "" {
		return nil, errors.New("client: LicenseKey is required")
	}

	if out.Timeout <= 0 {
		out.Timeout = defaultTimeout
	}

	if out.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		out.CacheDir = filepath.Join(home, ".licensify")
	}

	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}

	return &out, nil
}
