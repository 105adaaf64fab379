package env

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MILLIS_API_TOKEN", "tok")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PLATFORM_TIMEOUT_MS", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.StoreDriver != "mongo" {
		t.Errorf("StoreDriver = %q, want mongo", cfg.StoreDriver)
	}
	if cfg.PlatformTimeout() != 30*time.Second {
		t.Errorf("PlatformTimeout() = %v, want 30s", cfg.PlatformTimeout())
	}
	if cfg.MillisAPIURL != "https://api-west.millis.ai" {
		t.Errorf("MillisAPIURL = %q", cfg.MillisAPIURL)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("MILLIS_API_TOKEN", "")

	if _, err := Load(""); err == nil {
		t.Error("Load() expected error when MILLIS_API_TOKEN is empty")
	}
}

func TestLoad_MissingEnvFileIsTolerated(t *testing.T) {
	t.Setenv("MILLIS_API_TOKEN", "tok")

	if _, err := Load("does-not-exist.env"); err != nil {
		t.Errorf("Load() error = %v, want nil for missing .env", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "memory driver accepted",
			cfg:     Config{MillisAPIToken: "t", StoreDriver: "memory", PlatformTimeoutMs: 1000},
			wantErr: false,
		},
		{
			name:    "unknown driver rejected",
			cfg:     Config{MillisAPIToken: "t", StoreDriver: "firestore", PlatformTimeoutMs: 1000},
			wantErr: true,
		},
		{
			name:    "non-positive timeout rejected",
			cfg:     Config{MillisAPIToken: "t", StoreDriver: "mongo", PlatformTimeoutMs: 0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
