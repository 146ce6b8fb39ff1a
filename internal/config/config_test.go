package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DataDir == "" {
		t.Error("DataDir should have a default")
	}
	if cfg.Whoop.RedirectURI != "http://localhost:8765/callback" {
		t.Errorf("Whoop redirect = %q", cfg.Whoop.RedirectURI)
	}
	if cfg.Cronometer.HelperTimeout() != 60*time.Second {
		t.Errorf("helper timeout = %v, want 60s", cfg.Cronometer.HelperTimeout())
	}
}

func TestHelperTimeoutFallback(t *testing.T) {
	c := CronometerConfig{TimeoutSeconds: 0}
	if c.HelperTimeout() != 60*time.Second {
		t.Errorf("zero timeout = %v, want 60s fallback", c.HelperTimeout())
	}

	c.TimeoutSeconds = 120
	if c.HelperTimeout() != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m", c.HelperTimeout())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() error = %v for a missing file", err)
	}
	if cfg.Timezone == "" {
		t.Error("expected default timezone")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Toggl.APIToken = "file-token"
	cfg.Toggl.WorkspaceID = "123"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Toggl.APIToken != "file-token" || loaded.Toggl.WorkspaceID != "123" {
		t.Errorf("toggl config = %+v, want round-tripped values", loaded.Toggl)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Toggl.APIToken = "file-token"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	setEnv(t, "TOGGL_API_TOKEN", "env-token")

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Toggl.APIToken != "env-token" {
		t.Errorf("APIToken = %q, want env to win", loaded.Toggl.APIToken)
	}
}

func TestBootstrap(t *testing.T) {
	cfg := Default()
	cfg.Whoop.ClientID = "whoop-client"
	cfg.Toggl.APIToken = "toggl-token"
	cfg.Toggl.WorkspaceID = "77"

	cred := cfg.Bootstrap(core.ProviderWhoop)
	if cred == nil || cred.ClientID != "whoop-client" {
		t.Errorf("whoop bootstrap = %+v", cred)
	}

	cred = cfg.Bootstrap(core.ProviderToggl)
	if cred == nil || cred.APIToken != "toggl-token" || cred.WorkspaceID != "77" {
		t.Errorf("toggl bootstrap = %+v", cred)
	}

	// Unconfigured providers bootstrap to nothing.
	if cred := cfg.Bootstrap(core.ProviderWithings); cred != nil {
		t.Errorf("withings bootstrap = %+v, want nil", cred)
	}
	if cred := cfg.Bootstrap(core.ProviderCronometer); cred != nil {
		t.Errorf("cronometer bootstrap = %+v, want nil", cred)
	}
}

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	original := os.Getenv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if original == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, original)
		}
	})
}
