// Package config provides configuration management for the Cutroom Engine.
// Configuration is loaded from an optional TOML file with environment
// variable overrides; every setting has a sensible default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".cutroom"

	// Environment variable names
	EnvPort        = "CUTROOM_PORT"
	EnvLogLevel    = "CUTROOM_LOG_LEVEL"
	EnvDataDir     = "CUTROOM_DATA_DIR"
	EnvConfigFile  = "CUTROOM_CONFIG"
	EnvFFmpegPath  = "CUTROOM_FFMPEG"
	EnvFFprobePath = "CUTROOM_FFPROBE"
	EnvWatchDir    = "CUTROOM_WATCH_DIR"
	EnvGatewayURL  = "CUTROOM_GATEWAY_URL"
	EnvURLPolicy   = "CUTROOM_URL_POLICY"

	// Database filename
	DBFilename = "cutroom.db"

	// Config filename looked up in the data dir when EnvConfigFile is unset
	ConfigFilename = "engine.toml"

	// Filmstrip defaults
	DefaultStripCacheEntries = 100
	DefaultFailureTTL        = 30 * time.Second
	DefaultExtractionTimeout = 20 * time.Second
	DefaultFrameWidth        = 48
	DefaultFrameHeight       = 27

	// Autosave debounce interval
	DefaultAutosaveInterval = 2 * time.Second

	// Remote URL validation policies
	PolicyStrict     = "strict"
	PolicyPermissive = "permissive"
	PolicyCustom     = "custom"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	StoreDir() string
	CacheDir() string
	FFmpegPath() string
	FFprobePath() string
	WatchDir() string
	GatewayURLTemplate() string
	URLPolicy() string
	AllowedOrigins() []string
	StripCacheEntries() int
	FailureTTL() time.Duration
	ExtractionTimeout() time.Duration
	FrameWidth() int
	FrameHeight() int
	AutosaveInterval() time.Duration
}

// fileConfig mirrors the TOML layout of engine.toml.
type fileConfig struct {
	Server struct {
		Port int `toml:"port"`
	} `toml:"server"`
	Logging struct {
		Level string `toml:"level"`
	} `toml:"logging"`
	Media struct {
		FFmpegPath  string `toml:"ffmpeg_path"`
		FFprobePath string `toml:"ffprobe_path"`
		WatchDir    string `toml:"watch_dir"`
	} `toml:"media"`
	Storage struct {
		DataDir            string `toml:"data_dir"`
		GatewayURLTemplate string `toml:"gateway_url_template"`
	} `toml:"storage"`
	Security struct {
		URLPolicy      string   `toml:"url_policy"`
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"security"`
	Filmstrip struct {
		CacheEntries      int `toml:"cache_entries"`
		FailureTTLSeconds int `toml:"failure_ttl_seconds"`
		TimeoutSeconds    int `toml:"timeout_seconds"`
		FrameWidth        int `toml:"frame_width"`
		FrameHeight       int `toml:"frame_height"`
	} `toml:"filmstrip"`
}

// EnvConfig reads configuration from an optional TOML file and the environment
type EnvConfig struct {
	port              int
	logLevel          string
	dataDir           string
	ffmpegPath        string
	ffprobePath       string
	watchDir          string
	gatewayURL        string
	urlPolicy         string
	allowedOrigins    []string
	stripCacheEntries int
	failureTTL        time.Duration
	extractionTimeout time.Duration
	frameWidth        int
	frameHeight       int
	autosaveInterval  time.Duration
}

// New creates a new EnvConfig with defaults, TOML file values, and
// environment variable overrides applied in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		ffmpegPath:        "ffmpeg",
		ffprobePath:       "ffprobe",
		urlPolicy:         PolicyStrict,
		stripCacheEntries: DefaultStripCacheEntries,
		failureTTL:        DefaultFailureTTL,
		extractionTimeout: DefaultExtractionTimeout,
		frameWidth:        DefaultFrameWidth,
		frameHeight:       DefaultFrameHeight,
		autosaveInterval:  DefaultAutosaveInterval,
	}

	// The data dir override has to land before the default config file
	// lookup resolves against it.
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.loadEnv()

	switch cfg.urlPolicy {
	case PolicyStrict, PolicyPermissive, PolicyCustom:
	default:
		return nil, fmt.Errorf("invalid url policy %q", cfg.urlPolicy)
	}

	return cfg, nil
}

func (c *EnvConfig) loadFile() error {
	path := os.Getenv(EnvConfigFile)
	if path == "" {
		path = filepath.Join(c.dataDir, ConfigFilename)
	}

	if _, err := os.Stat(path); err != nil {
		// A missing config file is not an error; an explicitly
		// configured but unreadable one is.
		if os.Getenv(EnvConfigFile) != "" {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return nil
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Server.Port != 0 {
		c.port = fc.Server.Port
	}
	if fc.Logging.Level != "" {
		c.logLevel = fc.Logging.Level
	}
	if fc.Media.FFmpegPath != "" {
		c.ffmpegPath = fc.Media.FFmpegPath
	}
	if fc.Media.FFprobePath != "" {
		c.ffprobePath = fc.Media.FFprobePath
	}
	if fc.Media.WatchDir != "" {
		c.watchDir = fc.Media.WatchDir
	}
	if fc.Storage.DataDir != "" {
		c.dataDir = fc.Storage.DataDir
	}
	if fc.Storage.GatewayURLTemplate != "" {
		c.gatewayURL = fc.Storage.GatewayURLTemplate
	}
	if fc.Security.URLPolicy != "" {
		c.urlPolicy = fc.Security.URLPolicy
	}
	if len(fc.Security.AllowedOrigins) > 0 {
		c.allowedOrigins = fc.Security.AllowedOrigins
	}
	if fc.Filmstrip.CacheEntries > 0 {
		c.stripCacheEntries = fc.Filmstrip.CacheEntries
	}
	if fc.Filmstrip.FailureTTLSeconds > 0 {
		c.failureTTL = time.Duration(fc.Filmstrip.FailureTTLSeconds) * time.Second
	}
	if fc.Filmstrip.TimeoutSeconds > 0 {
		c.extractionTimeout = time.Duration(fc.Filmstrip.TimeoutSeconds) * time.Second
	}
	if fc.Filmstrip.FrameWidth > 0 {
		c.frameWidth = fc.Filmstrip.FrameWidth
	}
	if fc.Filmstrip.FrameHeight > 0 {
		c.frameHeight = fc.Filmstrip.FrameHeight
	}

	return nil
}

func (c *EnvConfig) loadEnv() {
	if p := os.Getenv(EnvPort); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			c.port = port
		}
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if fp := os.Getenv(EnvFFmpegPath); fp != "" {
		c.ffmpegPath = fp
	}
	if fp := os.Getenv(EnvFFprobePath); fp != "" {
		c.ffprobePath = fp
	}
	if wd := os.Getenv(EnvWatchDir); wd != "" {
		c.watchDir = wd
	}
	if gw := os.Getenv(EnvGatewayURL); gw != "" {
		c.gatewayURL = gw
	}
	if up := os.Getenv(EnvURLPolicy); up != "" {
		c.urlPolicy = up
	}
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// StoreDir returns the content-addressed object store directory
func (c *EnvConfig) StoreDir() string {
	return filepath.Join(c.dataDir, "store")
}

// CacheDir returns the cache directory path
func (c *EnvConfig) CacheDir() string {
	return filepath.Join(c.dataDir, "cache")
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) WatchDir() string {
	return c.watchDir
}

// GatewayURLTemplate returns the remote storage gateway template.
// The object key replaces the %s placeholder.
func (c *EnvConfig) GatewayURLTemplate() string {
	return c.gatewayURL
}

func (c *EnvConfig) URLPolicy() string {
	return c.urlPolicy
}

func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *EnvConfig) StripCacheEntries() int {
	return c.stripCacheEntries
}

func (c *EnvConfig) FailureTTL() time.Duration {
	return c.failureTTL
}

func (c *EnvConfig) ExtractionTimeout() time.Duration {
	return c.extractionTimeout
}

func (c *EnvConfig) FrameWidth() int {
	return c.frameWidth
}

func (c *EnvConfig) FrameHeight() int {
	return c.frameHeight
}

func (c *EnvConfig) AutosaveInterval() time.Duration {
	return c.autosaveInterval
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
