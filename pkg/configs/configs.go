// Package configs resolves credentials and settings of the client.
//
// Credentials come from, in order of precedence: environment variables
// (with `.env` in the working directory loaded first), then the profile
// in `~/.spb/config`.
package configs

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
)

const (
	EnvAccessKey       = "SPB_ACCESS_KEY"
	EnvTeamName        = "SPB_TEAM_NAME"
	EnvAPIBase         = "SPB_API_BASE"
	EnvProfile         = "SPB_PROFILE"
	EnvBulkBytesMax    = "SPB_BULK_UPLOAD_BYTES_MAX"
	EnvBulkObjectMax   = "SPB_BULK_UPLOAD_OBJECT_MAX"
	EnvTimeout         = "SPB_TIMEOUT"
	DefaultAPIBase     = "https://api.superb-ai.com"
	DefaultProfile     = "default"
	DefaultBytesMax    = 256_000_000
	DefaultObjectMax   = 100
	DefaultWaitTimeout = 300 * time.Second
)

// Credentials identify the caller.
type Credentials struct {
	AccessKey string
	TeamName  string
	APIBase   string

	// Profile is the profile name the credentials are looked up with.
	Profile string
}

// Settings tune the bulk pipeline.
type Settings struct {
	// BulkBytesMax is the upper limit of total bytes in an upload batch.
	BulkBytesMax int64

	// BulkObjectMax is the upper limit of assets in an upload batch.
	BulkObjectMax int

	// WaitTimeout is how long a synchronous bulk operation waits for its job.
	WaitTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		BulkBytesMax:  DefaultBytesMax,
		BulkObjectMax: DefaultObjectMax,
		WaitTimeout:   DefaultWaitTimeout,
	}
}

type loadOption struct {
	profile    string
	configPath string
	dotenv     string
}

type LoadOption func(*loadOption) *loadOption

// WithProfile looks up the profile instead of SPB_PROFILE.
func WithProfile(profile string) LoadOption {
	return func(lo *loadOption) *loadOption {
		lo.profile = profile
		return lo
	}
}

// WithConfigPath reads profiles from the path instead of ~/.spb/config.
func WithConfigPath(path string) LoadOption {
	return func(lo *loadOption) *loadOption {
		lo.configPath = path
		return lo
	}
}

// WithDotenv loads the file instead of `.env` in the working directory.
func WithDotenv(path string) LoadOption {
	return func(lo *loadOption) *loadOption {
		lo.dotenv = path
		return lo
	}
}

// DefaultConfigPath is `~/.spb/config`.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".spb", "config"), nil
}

// Load resolves credentials.
//
// Environment variables win over the profile file, key by key.
// Missing files are not errors: the result may lack a key or a team name,
// and the requestor reports it when a request is made.
func Load(options ...LoadOption) (Credentials, error) {
	lo := &loadOption{dotenv: ".env"}
	for _, opt := range options {
		lo = opt(lo)
	}

	if err := loadDotenv(lo.dotenv); err != nil {
		return Credentials{}, err
	}

	profile := lo.profile
	if profile == "" {
		profile = os.Getenv(EnvProfile)
	}
	if profile == "" {
		profile = DefaultProfile
	}

	creds := Credentials{
		AccessKey: os.Getenv(EnvAccessKey),
		TeamName:  os.Getenv(EnvTeamName),
		APIBase:   os.Getenv(EnvAPIBase),
		Profile:   profile,
	}
	if creds.APIBase == "" {
		creds.APIBase = DefaultAPIBase
	}
	if creds.AccessKey != "" && creds.TeamName != "" {
		return creds, nil
	}

	path := lo.configPath
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return creds, nil
		}
		path = p
	}
	fromFile, err := LoadProfile(path, profile)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return creds, nil
		}
		return creds, err
	}
	if creds.AccessKey == "" {
		creds.AccessKey = fromFile.AccessKey
	}
	if creds.TeamName == "" {
		creds.TeamName = fromFile.TeamName
	}
	return creds, nil
}

func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return xe.Wrap(err)
	}
	// godotenv.Load does not override variables already set.
	if err := godotenv.Load(path); err != nil {
		return xe.WrapWithNote("loading "+path, err)
	}
	return nil
}

// LoadSettings reads settings from environment variables over the defaults.
func LoadSettings() (Settings, error) {
	s := DefaultSettings()
	if v := os.Getenv(EnvBulkBytesMax); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return s, xe.Validation("%s should be a positive integer: %s", EnvBulkBytesMax, v)
		}
		s.BulkBytesMax = n
	}
	if v := os.Getenv(EnvBulkObjectMax); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return s, xe.Validation("%s should be a positive integer: %s", EnvBulkObjectMax, v)
		}
		s.BulkObjectMax = n
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return s, xe.Validation("%s should be seconds: %s", EnvTimeout, v)
		}
		s.WaitTimeout = time.Duration(n) * time.Second
	}
	return s, nil
}
