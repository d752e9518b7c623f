package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"trebleshot/pkg/types"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

var (
	ErrInvalidBufferConfig        = errors.New("buffered amount low threshold must be less than max buffered amount")
	ErrInvalidPacketSize          = errors.New("packet size must be greater than 0")
	ErrInvalidFirebaseConfig      = errors.New("Firebase credentials path must be set")
	ErrInvalidFirebaseProjectID   = errors.New("Firebase project ID must be set")
	ErrInvalidFirebaseDatabaseURL = errors.New("Firebase database URL must be set")
	ErrInvalidDataDir             = errors.New("data directory must be set")
	ErrInvalidPercentDecimals     = errors.New("percent decimals must be between 0 and 4")
	ErrInvalidProgressStyle       = errors.New("progress style must be items or total")
)

// Config holds all application configuration
type Config struct {
	WebRTC   WebRTCConfig   `mapstructure:"webrtc"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Display  DisplayConfig  `mapstructure:"display"`
	Device   DeviceConfig   `mapstructure:"device"`
}

// WebRTCConfig holds WebRTC-specific configuration
type WebRTCConfig struct {
	ICEServers                 []webrtc.ICEServer `mapstructure:"ice_servers"`
	BufferedAmountLowThreshold uint64             `mapstructure:"buffered_amount_low_threshold"`
	MaxBufferedAmount          uint64             `mapstructure:"max_buffered_amount"`
	PacketSize                 int                `mapstructure:"packet_size"`
}

// FirebaseConfig holds Firebase client configuration
type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	DatabaseURL     string `mapstructure:"database_url"`
	CredentialsPath string `mapstructure:"credentials_path"`
}

// StorageConfig locates the transfer record store and received files
type StorageConfig struct {
	DataDir     string `mapstructure:"data_dir"`
	DownloadDir string `mapstructure:"download_dir"`
	StoreFile   string `mapstructure:"store_file"`
}

// DisplayConfig controls how the browse view is rendered
type DisplayConfig struct {
	LoadThumbnails  bool   `mapstructure:"load_thumbnails"`
	PercentDecimals int    `mapstructure:"percent_decimals"`
	ProgressStyle   string `mapstructure:"progress_style"` // "items": one bar per item, "total": a single bar
}

const (
	ProgressItems = "items"
	ProgressTotal = "total"
)

// DeviceConfig identifies this device to peers
type DeviceConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "trebleshot"
	}

	return &Config{
		WebRTC: WebRTCConfig{
			ICEServers: []webrtc.ICEServer{
				{
					URLs: []string{"stun:stun.l.google.com:19302"},
				},
			},
			BufferedAmountLowThreshold: 512 * 1024,  // 512 KB
			MaxBufferedAmount:          1024 * 1024, // 1 MB
			PacketSize:                 16 * 1024,   // 16 KB packets
		},
		Storage: StorageConfig{
			DataDir:     filepath.Join(home, ".trebleshot"),
			DownloadDir: filepath.Join(home, "Downloads", "TrebleShot"),
			StoreFile:   "transfers.json",
		},
		Display: DisplayConfig{
			LoadThumbnails:  true,
			PercentDecimals: 0,
			ProgressStyle:   ProgressItems,
		},
		Device: DeviceConfig{
			ID:   uuid.NewSHA1(uuid.NameSpaceDNS, []byte(hostname)).String(),
			Name: hostname,
		},
	}
}

// Load unmarshals viper settings over the defaults and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StorePath returns the path of the JSON transfer store
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Storage.StoreFile) {
		return c.Storage.StoreFile
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.StoreFile)
}

// DeviceInfo returns the identity this device announces to peers
func (c *Config) DeviceInfo() types.DeviceInfo {
	return types.DeviceInfo{ID: c.Device.ID, Name: c.Device.Name}
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.WebRTC.BufferedAmountLowThreshold >= c.WebRTC.MaxBufferedAmount {
		return ErrInvalidBufferConfig
	}
	if c.WebRTC.PacketSize <= 0 {
		return ErrInvalidPacketSize
	}
	if c.Storage.DataDir == "" || c.Storage.StoreFile == "" {
		return ErrInvalidDataDir
	}
	if c.Display.PercentDecimals < 0 || c.Display.PercentDecimals > 4 {
		return ErrInvalidPercentDecimals
	}
	if c.Display.ProgressStyle != ProgressItems && c.Display.ProgressStyle != ProgressTotal {
		return ErrInvalidProgressStyle
	}
	return nil
}

// ValidateSignalling checks the settings needed to reach the Firebase session store.
func (c *Config) ValidateSignalling() error {
	if c.Firebase.CredentialsPath == "" {
		return ErrInvalidFirebaseConfig
	}
	if c.Firebase.ProjectID == "" {
		return ErrInvalidFirebaseProjectID
	}
	if c.Firebase.DatabaseURL == "" {
		return ErrInvalidFirebaseDatabaseURL
	}
	return nil
}
