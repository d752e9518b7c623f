package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"buffer threshold too high", func(c *Config) {
			c.WebRTC.BufferedAmountLowThreshold = c.WebRTC.MaxBufferedAmount
		}, ErrInvalidBufferConfig},
		{"zero packet size", func(c *Config) { c.WebRTC.PacketSize = 0 }, ErrInvalidPacketSize},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }, ErrInvalidDataDir},
		{"negative decimals", func(c *Config) { c.Display.PercentDecimals = -1 }, ErrInvalidPercentDecimals},
		{"too many decimals", func(c *Config) { c.Display.PercentDecimals = 5 }, ErrInvalidPercentDecimals},
		{"unknown progress style", func(c *Config) { c.Display.ProgressStyle = "fancy" }, ErrInvalidProgressStyle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSignalling(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.ValidateSignalling(); !errors.Is(err, ErrInvalidFirebaseConfig) {
		t.Errorf("expected ErrInvalidFirebaseConfig, got %v", err)
	}

	cfg.Firebase.CredentialsPath = "creds.json"
	if err := cfg.ValidateSignalling(); !errors.Is(err, ErrInvalidFirebaseProjectID) {
		t.Errorf("expected ErrInvalidFirebaseProjectID, got %v", err)
	}

	cfg.Firebase.ProjectID = "project"
	if err := cfg.ValidateSignalling(); !errors.Is(err, ErrInvalidFirebaseDatabaseURL) {
		t.Errorf("expected ErrInvalidFirebaseDatabaseURL, got %v", err)
	}

	cfg.Firebase.DatabaseURL = "https://example.firebaseio.com"
	if err := cfg.ValidateSignalling(); err != nil {
		t.Errorf("expected valid signalling config, got %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	yaml := `
storage:
  data_dir: /tmp/trebleshot
  store_file: records.json
display:
  percent_decimals: 2
device:
  name: laptop
`
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Device.Name != "laptop" {
		t.Errorf("device name = %q, want laptop", cfg.Device.Name)
	}
	if cfg.Device.ID == "" {
		t.Error("device id default should survive unmarshalling")
	}
	if cfg.Display.PercentDecimals != 2 {
		t.Errorf("percent decimals = %d, want 2", cfg.Display.PercentDecimals)
	}
	if !cfg.Display.LoadThumbnails {
		t.Error("load thumbnails default should survive unmarshalling")
	}
	if got, want := cfg.StorePath(), filepath.Join("/tmp/trebleshot", "records.json"); got != want {
		t.Errorf("StorePath() = %q, want %q", got, want)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("webrtc.packet_size", 0)

	if _, err := Load(v); !errors.Is(err, ErrInvalidPacketSize) {
		t.Errorf("expected ErrInvalidPacketSize, got %v", err)
	}
}
