package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the monkeys configuration.
type Config struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Filter     FilterConfig     `yaml:"filter"`
	Run        RunConfig        `yaml:"run"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Storage    StorageConfig    `yaml:"storage"`
	Report     ReportConfig     `yaml:"report"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CorpusConfig describes where the corpus comes from and how it is split.
type CorpusConfig struct {
	Key         string   `yaml:"key"`         // blob in the store (default: input.txt)
	Path        string   `yaml:"path"`        // local file, overrides key
	Anchor      string   `yaml:"anchor"`      // work boundary line
	Boilerplate []string `yaml:"boilerplate"` // lines dropped before segmentation (default: pg100 license)
	Strategy    string   `yaml:"strategy"`    // suffixarray, scan (default: suffixarray)
}

// FilterConfig holds membership filter parameters.
type FilterConfig struct {
	Prefix     string `yaml:"prefix"`
	VectorBits uint64 `yaml:"vector_bits"`
	HashCount  int    `yaml:"hash_count"`
	Family     string `yaml:"family"` // xxh64, sha256 (default: xxh64)
}

// RunConfig holds the search loop parameters.
type RunConfig struct {
	WindowLength  int    `yaml:"window_length"`
	BatchSize     int    `yaml:"batch_size"`
	Workers       int    `yaml:"workers"`        // 0 = GOMAXPROCS
	MaxIterations uint64 `yaml:"max_iterations"` // 0 = unbounded
}

// CheckpointConfig holds checkpoint and stop settings.
type CheckpointConfig struct {
	Every              uint64 `yaml:"every"`        // 0 = only after hits
	MaxFailures        int    `yaml:"max_failures"` // consecutive
	StopKey            string `yaml:"stop_key"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

// StorageConfig selects and tunes the blob store.
type StorageConfig struct {
	Driver           string       `yaml:"driver"` // fs, redis, badger, memory (default: fs)
	Path             string       `yaml:"path"`   // fs root or badger directory
	Addrs            []string     `yaml:"addrs"`
	Username         string       `yaml:"username"`
	Password         string       `yaml:"password"`
	DB               int          `yaml:"db"`
	Namespace        string       `yaml:"namespace"`
	ReadinessTimeout int          `yaml:"readiness_timeout_sec"`
	Compression      string       `yaml:"compression"` // none, snappy (default: snappy)
	SyncWrites       bool         `yaml:"sync_writes"`
	GCIntervalSec    int          `yaml:"gc_interval_sec"`
	Retry            RetrySection `yaml:"retry"`
}

// RetrySection bounds retries of transient storage failures.
type RetrySection struct {
	MaxTries          int `yaml:"max_tries"`
	InitialIntervalMs int `yaml:"initial_interval_ms"`
	MaxIntervalMs     int `yaml:"max_interval_ms"`
}

// ReportConfig holds artifact rendering settings.
type ReportConfig struct {
	Width    int    `yaml:"width"`
	LocalDir string `yaml:"local_dir"` // optional local mirror
}

// HTTPConfig holds status server settings.
type HTTPConfig struct {
	Enabled         bool `yaml:"enabled"`
	Port            int  `yaml:"port"`
	ReadTimeoutSec  int  `yaml:"read_timeout_sec"`
	WriteTimeoutSec int  `yaml:"write_timeout_sec"`
	ShutdownSec     int  `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds status server authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Storage drivers.
const (
	DriverFS     = "fs"
	DriverRedis  = "redis"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

var (
	drivers      = []string{DriverFS, DriverRedis, DriverBadger, DriverMemory}
	compressions = []string{"none", "snappy"}
	families     = []string{"xxh64", "sha256"}
	strategies   = []string{"suffixarray", "scan"}
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Corpus.Key == "" {
		c.Corpus.Key = "input.txt"
	}
	if c.Corpus.Anchor == "" {
		c.Corpus.Anchor = "by william shakespeare"
	}
	if c.Corpus.Strategy == "" {
		c.Corpus.Strategy = "suffixarray"
	}
	if c.Filter.Prefix == "" {
		c.Filter.Prefix = "shakespeare1"
	}
	if c.Filter.VectorBits == 0 {
		c.Filter.VectorBits = 100_000_000
	}
	if c.Filter.HashCount <= 0 {
		c.Filter.HashCount = 6
	}
	if c.Filter.Family == "" {
		c.Filter.Family = "xxh64"
	}
	if c.Run.WindowLength <= 0 {
		c.Run.WindowLength = 9
	}
	if c.Run.BatchSize <= 0 {
		c.Run.BatchSize = 1_000_000
	}
	if c.Checkpoint.MaxFailures <= 0 {
		c.Checkpoint.MaxFailures = 5
	}
	if c.Checkpoint.StopKey == "" {
		c.Checkpoint.StopKey = "stop"
	}
	if c.Checkpoint.ShutdownTimeoutSec <= 0 {
		c.Checkpoint.ShutdownTimeoutSec = 30
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFS
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data"
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = "monkeys:"
	}
	if c.Storage.ReadinessTimeout <= 0 {
		c.Storage.ReadinessTimeout = 10
	}
	if c.Storage.Compression == "" {
		c.Storage.Compression = "snappy"
	}
	if c.Storage.GCIntervalSec <= 0 {
		c.Storage.GCIntervalSec = 300
	}
	if c.Storage.Retry.MaxTries <= 0 {
		c.Storage.Retry.MaxTries = 5
	}
	if c.Storage.Retry.InitialIntervalMs <= 0 {
		c.Storage.Retry.InitialIntervalMs = 200
	}
	if c.Storage.Retry.MaxIntervalMs <= 0 {
		c.Storage.Retry.MaxIntervalMs = 5000
	}
	if c.Report.Width <= 0 {
		c.Report.Width = 720
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Corpus.Anchor) == "" {
		return fmt.Errorf("corpus.anchor is required")
	}
	if !slices.Contains(strategies, c.Corpus.Strategy) {
		return fmt.Errorf("corpus.strategy must be one of %v, got %q", strategies, c.Corpus.Strategy)
	}
	if c.Filter.VectorBits == 0 {
		return fmt.Errorf("filter.vector_bits must be positive")
	}
	if c.Filter.HashCount < 1 || c.Filter.HashCount > 32 {
		return fmt.Errorf("filter.hash_count must be between 1 and 32, got %d", c.Filter.HashCount)
	}
	if !slices.Contains(families, c.Filter.Family) {
		return fmt.Errorf("filter.family must be one of %v, got %q", families, c.Filter.Family)
	}
	if c.Run.WindowLength < 1 || c.Run.WindowLength > 255 {
		return fmt.Errorf("run.window_length must be between 1 and 255, got %d", c.Run.WindowLength)
	}
	if c.Run.BatchSize <= 0 {
		return fmt.Errorf("run.batch_size must be positive, got %d", c.Run.BatchSize)
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("run.workers must not be negative, got %d", c.Run.Workers)
	}
	if !slices.Contains(drivers, c.Storage.Driver) {
		return fmt.Errorf("storage.driver must be one of %v, got %q", drivers, c.Storage.Driver)
	}
	if c.Storage.Driver == DriverRedis && len(c.Storage.Addrs) == 0 {
		return fmt.Errorf("storage.addrs is required for the redis driver")
	}
	if !slices.Contains(compressions, c.Storage.Compression) {
		return fmt.Errorf("storage.compression must be one of %v, got %q", compressions, c.Storage.Compression)
	}
	if c.Storage.Retry.MaxIntervalMs < c.Storage.Retry.InitialIntervalMs {
		return fmt.Errorf("storage.retry.max_interval_ms must be at least initial_interval_ms")
	}
	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
