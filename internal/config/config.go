// Package config manages the service configuration file. The file is JSON,
// created with defaults on first load, and safe for concurrent access
// through the manager.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string `json:"addr"`
	MaxUploadSizeMB int    `json:"max_upload_size_mb"`
}

// StorageConfig holds the on-disk layout: uploaded sources, converted
// output, and the job database.
type StorageConfig struct {
	UploadDir string `json:"upload_dir"`
	OutputDir string `json:"output_dir"`
	DBPath    string `json:"db_path"`
}

// RenderConfig holds the external renderer settings.
type RenderConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
	DPI            int `json:"dpi"`
}

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	Render  RenderConfig  `json:"render"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadSizeMB: 100,
		},
		Storage: StorageConfig{
			UploadDir: "./data/uploads",
			OutputDir: "./data/output",
			DBPath:    "./data/mdforge.db",
		},
		Render: RenderConfig{
			TimeoutSeconds: 120,
			DPI:            150,
		},
	}
}

// ConfigManager loads, serves, and persists the configuration. All methods
// are safe for concurrent use.
type ConfigManager struct {
	mu     sync.RWMutex
	path   string
	config *Config
}

func NewConfigManager(path string) *ConfigManager {
	return &ConfigManager{path: path, config: DefaultConfig()}
}

// Load reads the config file, creating it with defaults when missing.
// Fields absent from the file keep their default values.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.path)
	if os.IsNotExist(err) {
		cm.config = DefaultConfig()
		return cm.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	cm.config = cfg
	return nil
}

// Get returns a copy of the current configuration. Mutating the copy does
// not affect the manager.
func (cm *ConfigManager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	cfg := *cm.config
	return &cfg
}

// Save persists the current configuration.
func (cm *ConfigManager) Save() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.saveLocked()
}

func (cm *ConfigManager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(cm.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(cm.path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Update applies dotted-key settings ("server.addr", "render.dpi") and
// persists the result. An unknown key fails the whole update with nothing
// applied or saved.
func (cm *ConfigManager) Update(updates map[string]interface{}) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	next := *cm.config
	for key, value := range updates {
		if err := applyKey(&next, key, value); err != nil {
			return err
		}
	}
	cm.config = &next
	return cm.saveLocked()
}

func applyKey(cfg *Config, key string, value interface{}) error {
	switch key {
	case "server.addr":
		return setString(&cfg.Server.Addr, key, value)
	case "server.max_upload_size_mb":
		return setInt(&cfg.Server.MaxUploadSizeMB, key, value)
	case "storage.upload_dir":
		return setString(&cfg.Storage.UploadDir, key, value)
	case "storage.output_dir":
		return setString(&cfg.Storage.OutputDir, key, value)
	case "storage.db_path":
		return setString(&cfg.Storage.DBPath, key, value)
	case "render.timeout_seconds":
		return setInt(&cfg.Render.TimeoutSeconds, key, value)
	case "render.dpi":
		return setInt(&cfg.Render.DPI, key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func setString(dst *string, key string, value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("config key %s: expected string, got %T", key, value)
	}
	*dst = s
	return nil
}

// setInt accepts both int and float64 so values arriving through JSON
// request bodies work unconverted.
func setInt(dst *int, key string, value interface{}) error {
	switch v := value.(type) {
	case int:
		*dst = v
	case float64:
		*dst = int(v)
	default:
		return fmt.Errorf("config key %s: expected number, got %T", key, value)
	}
	return nil
}
