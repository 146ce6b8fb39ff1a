// Package config handles lifesync configuration.
//
// Configuration lives in a JSON file under the data directory.
// Provider secrets may additionally come from the process environment;
// the environment is only a bootstrap path, used until the first
// successful authorization lands the credential in the database.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir"`

	// Timezone for interpreting provider-local calendar dates
	// (nutrition days have no time component).
	Timezone string `json:"timezone"`

	// Providers
	Whoop      OAuthProviderConfig `json:"whoop"`
	Withings   OAuthProviderConfig `json:"withings"`
	Toggl      TogglConfig         `json:"toggl"`
	Cronometer CronometerConfig    `json:"cronometer"`
}

// OAuthProviderConfig is the bootstrap client metadata for an OAuth
// provider.
type OAuthProviderConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// TogglConfig is the bootstrap config for the static-token provider.
type TogglConfig struct {
	APIToken    string `json:"api_token"`
	WorkspaceID string `json:"workspace_id"`
}

// CronometerConfig configures the process-bridge provider.
type CronometerConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// HelperPath locates the cronometer-export binary. Empty means
	// look it up on PATH.
	HelperPath string `json:"helper_path"`
	// TimeoutSeconds bounds one helper invocation.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// HelperTimeout returns the bridge timeout as a duration.
func (c CronometerConfig) HelperTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir:  filepath.Join(home, ".lifesync"),
		Timezone: "America/Los_Angeles",
		Whoop: OAuthProviderConfig{
			RedirectURI: "http://localhost:8765/callback",
		},
		Withings: OAuthProviderConfig{
			RedirectURI: "http://localhost:8765/callback",
		},
		Cronometer: CronometerConfig{
			TimeoutSeconds: 60,
		},
	}
}

// Load loads config from file, falling back to defaults. Environment
// variables override file values for secrets so that nothing secret
// has to live on disk.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Whoop.ClientID, "WHOOP_CLIENT_ID")
	setIfEnv(&c.Whoop.ClientSecret, "WHOOP_CLIENT_SECRET")
	setIfEnv(&c.Whoop.RedirectURI, "WHOOP_REDIRECT_URI")

	setIfEnv(&c.Withings.ClientID, "WITHINGS_CLIENT_ID")
	setIfEnv(&c.Withings.ClientSecret, "WITHINGS_CLIENT_SECRET")
	setIfEnv(&c.Withings.RedirectURI, "WITHINGS_REDIRECT_URI")

	setIfEnv(&c.Toggl.APIToken, "TOGGL_API_TOKEN")
	setIfEnv(&c.Toggl.WorkspaceID, "TOGGL_WORKSPACE_ID")

	setIfEnv(&c.Cronometer.Username, "CRONOMETER_USERNAME")
	setIfEnv(&c.Cronometer.Password, "CRONOMETER_PASSWORD")
	setIfEnv(&c.Cronometer.HelperPath, "CRONOMETER_EXPORT_PATH")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Bootstrap returns the statically configured credential for a
// provider, or nil when nothing is configured. The credential store
// consults this only when it has no persisted row.
func (c *Config) Bootstrap(provider core.Provider) *core.Credential {
	switch provider {
	case core.ProviderWhoop:
		if c.Whoop.ClientID == "" {
			return nil
		}
		return &core.Credential{
			Provider:     provider,
			ClientID:     c.Whoop.ClientID,
			ClientSecret: c.Whoop.ClientSecret,
			RedirectURI:  c.Whoop.RedirectURI,
			AccessToken:  os.Getenv("WHOOP_ACCESS_TOKEN"),
			RefreshToken: os.Getenv("WHOOP_REFRESH_TOKEN"),
		}
	case core.ProviderWithings:
		if c.Withings.ClientID == "" {
			return nil
		}
		return &core.Credential{
			Provider:     provider,
			ClientID:     c.Withings.ClientID,
			ClientSecret: c.Withings.ClientSecret,
			RedirectURI:  c.Withings.RedirectURI,
			AccessToken:  os.Getenv("WITHINGS_ACCESS_TOKEN"),
			RefreshToken: os.Getenv("WITHINGS_REFRESH_TOKEN"),
		}
	case core.ProviderToggl:
		if c.Toggl.APIToken == "" {
			return nil
		}
		return &core.Credential{
			Provider:    provider,
			APIToken:    c.Toggl.APIToken,
			WorkspaceID: c.Toggl.WorkspaceID,
		}
	case core.ProviderCronometer:
		if c.Cronometer.Username == "" {
			return nil
		}
		return &core.Credential{
			Provider: provider,
			Username: c.Cronometer.Username,
			Password: c.Cronometer.Password,
		}
	}
	return nil
}
