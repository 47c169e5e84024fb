package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"gradegrid/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server ServerConfig `toml:"server"`
	Paths  PathConfig   `toml:"paths"`
	Upload UploadConfig `toml:"upload"`
	Export ExportConfig `toml:"export"`
	Shell  ShellConfig  `toml:"shell"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Host    string `toml:"host"`
	Port    string `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

// PathConfig holds file system paths. Packaged builds keep their data under
// the user's config directory; unpackaged runs use the working directory.
type PathConfig struct {
	Packaged     bool   `toml:"packaged"`
	DataDir      string `toml:"data_dir"`
	UploadsDir   string `toml:"uploads_dir"`
	DownloadsDir string `toml:"downloads_dir"`
}

// UploadConfig holds upload limits
type UploadConfig struct {
	MaxMB int64 `toml:"max_mb"`
}

// ExportConfig controls the generated workbook
type ExportConfig struct {
	SheetName    string `toml:"sheet_name"`
	DownloadName string `toml:"download_name"`
	PreviewRows  int    `toml:"preview_rows"`
}

// ShellConfig controls the desktop window
type ShellConfig struct {
	OpenWindow       bool     `toml:"open_window"`
	QuitOnLastWindow bool     `toml:"quit_on_last_window"`
	WindowGrace      Duration `toml:"window_grace"`
}

// Duration reads Go duration strings such as "3s" from TOML
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    "8000",
			GinMode: "release",
		},
		Upload: UploadConfig{MaxMB: 50},
		Export: ExportConfig{
			SheetName:    "TransformedData",
			DownloadName: "transformed_data.xls",
			PreviewRows:  25,
		},
		Shell: ShellConfig{
			OpenWindow: true,
			// macOS apps stay alive after their last window closes
			QuitOnLastWindow: runtime.GOOS != "darwin",
			WindowGrace:      Duration{3 * time.Second},
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file named
// by GRADEGRID_CONFIG, and environment variables, in that order of
// precedence (environment wins).
func Load() (*Config, error) {
	config := Default()

	if path := os.Getenv("GRADEGRID_CONFIG"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, errors.Wrap(err, "failed to load config file")
		}
	}

	loadServerConfig(&config.Server)
	loadPathConfig(&config.Paths)
	loadUploadConfig(&config.Upload)
	loadExportConfig(&config.Export)
	loadShellConfig(&config.Shell)

	if err := config.resolvePaths(); err != nil {
		return nil, errors.Wrap(err, "failed to resolve data directories")
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Addr returns host:port for the HTTP server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// URL returns the address the desktop window loads
func (c *Config) URL() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + host + ":" + c.Server.Port + "/"
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Upload.MaxMB * 1024 * 1024
}

// LockPath is the single-instance lock file
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "gradegrid.lock")
}

func loadFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse config %s: %w", path, err))
	}
	return nil
}

func loadServerConfig(c *ServerConfig) {
	c.Host = getEnvOrDefault("HOST", c.Host)
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.GinMode = getEnvOrDefault("GIN_MODE", c.GinMode)
}

func loadPathConfig(c *PathConfig) {
	c.Packaged = getEnvBoolOrDefault("GRADEGRID_PACKAGED", c.Packaged)
	c.DataDir = getEnvOrDefault("GRADEGRID_DATA_DIR", c.DataDir)
	c.UploadsDir = getEnvOrDefault("UPLOADS_DIR", c.UploadsDir)
	c.DownloadsDir = getEnvOrDefault("DOWNLOADS_DIR", c.DownloadsDir)
}

func loadUploadConfig(c *UploadConfig) {
	c.MaxMB = int64(getEnvIntOrDefault("MAX_UPLOAD_MB", int(c.MaxMB)))
}

func loadExportConfig(c *ExportConfig) {
	c.SheetName = getEnvOrDefault("EXPORT_SHEET_NAME", c.SheetName)
	c.DownloadName = getEnvOrDefault("DOWNLOAD_NAME", c.DownloadName)
	c.PreviewRows = getEnvIntOrDefault("PREVIEW_ROWS", c.PreviewRows)
}

func loadShellConfig(c *ShellConfig) {
	c.OpenWindow = getEnvBoolOrDefault("OPEN_WINDOW", c.OpenWindow)
	c.QuitOnLastWindow = getEnvBoolOrDefault("QUIT_ON_LAST_WINDOW", c.QuitOnLastWindow)
	c.WindowGrace.Duration = getEnvDurationOrDefault("WINDOW_GRACE", c.WindowGrace.Duration)
}

// resolvePaths fills in the data, uploads and downloads directories
func (c *Config) resolvePaths() error {
	if c.Paths.DataDir == "" {
		if c.Paths.Packaged {
			base, err := os.UserConfigDir()
			if err != nil {
				return err
			}
			c.Paths.DataDir = filepath.Join(base, "gradegrid")
		} else {
			c.Paths.DataDir = "."
		}
	}
	if c.Paths.UploadsDir == "" {
		c.Paths.UploadsDir = filepath.Join(c.Paths.DataDir, "uploads")
	}
	if c.Paths.DownloadsDir == "" {
		c.Paths.DownloadsDir = filepath.Join(c.Paths.DataDir, "downloads")
	}
	return nil
}

func validateConfig(config *Config) error {
	port, err := strconv.Atoi(config.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return errors.ConfigInvalid(fmt.Sprintf("invalid port %q", config.Server.Port))
	}
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("invalid gin mode %q", config.Server.GinMode))
	}
	if config.Upload.MaxMB <= 0 {
		return errors.ConfigInvalid("upload limit must be positive")
	}
	if strings.TrimSpace(config.Export.SheetName) == "" {
		return errors.ConfigInvalid("export sheet name is required")
	}
	if len(config.Export.SheetName) > 31 {
		return errors.ConfigInvalid("export sheet name exceeds 31 characters")
	}
	if strings.TrimSpace(config.Export.DownloadName) == "" {
		return errors.ConfigInvalid("download name is required")
	}
	if config.Shell.WindowGrace.Duration < 0 {
		return errors.ConfigInvalid("window grace must not be negative")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
