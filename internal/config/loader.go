package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "deepscan-ls.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional. A .env file
// next to it is loaded into the environment first; variables that are
// already set win over it.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(filepath.Join(filepath.Dir(yamlPath), ".env")); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// CLIFlags holds command-line overrides. Nil fields were not given.
type CLIFlags struct {
	ConfigPath *string
	LogLevel   *string
	Server     *string
	DebugAddr  *string
}

// ParseFlags parses server flags. Unknown flags are an error; --stdio and
// --clientProcessId are accepted because editors pass them unconditionally.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("deepscan-ls", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		configPath, logLevel, server, debugAddr string
	)
	fs.StringVar(&configPath, "config", "", "path to YAML config")
	fs.StringVar(&configPath, "c", "", "path to YAML config (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	fs.StringVar(&server, "server", "", "DeepScan server URL")
	fs.StringVar(&debugAddr, "debug-addr", "", "listen address of the debug HTTP server")
	fs.Bool("stdio", true, "communicate over stdio (always on)")
	fs.Int("clientProcessId", 0, "editor process id (ignored)")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = &configPath
		case "log-level":
			flags.LogLevel = &logLevel
		case "server":
			flags.Server = &server
		case "debug-addr":
			flags.DebugAddr = &debugAddr
		}
	})
	return flags, nil
}

// LoadWithCLI loads the configuration and applies flags on top. It returns
// the YAML path that was used.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, "", err
	}
	applyCLI(cfg, flags)

	if err := validate(cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}
	return cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.Server != nil {
		cfg.DeepScan.Server = *flags.Server
	}
	if flags.DebugAddr != nil {
		cfg.Debug.Addr = *flags.DebugAddr
	}
}

// loadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Returns nil if the file does not exist.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.DeepScan.Server, "DEEPSCAN_SERVER")
	setString(&cfg.DeepScan.Proxy, "DEEPSCAN_PROXY")
	setString(&cfg.DeepScan.UserAgent, "DEEPSCAN_USER_AGENT")
	setString(&cfg.DeepScan.AccessToken, "DEEPSCAN_TOKEN")
	setStrings(&cfg.DeepScan.FileSuffixes, "DEEPSCAN_FILE_SUFFIXES")
	setStrings(&cfg.DeepScan.IgnoreRules, "DEEPSCAN_IGNORE_RULES")
	setStrings(&cfg.DeepScan.IgnorePatterns, "DEEPSCAN_IGNORE_PATTERNS")

	setInt(&cfg.Inspection.MaxLines, "DEEPSCAN_MAX_LINES")
	setInt(&cfg.Inspection.MaxChars, "DEEPSCAN_MAX_CHARS")
	setDuration(&cfg.Inspection.Timeout, "DEEPSCAN_TIMEOUT")
	setInt(&cfg.Inspection.MaxConcurrent, "DEEPSCAN_MAX_CONCURRENT")

	setInt(&cfg.Breaker.MaxFailures, "DEEPSCAN_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DEEPSCAN_BREAKER_TIMEOUT")

	setInt64(&cfg.Cache.L1MaxSizeMB, "DEEPSCAN_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TokenInfoTTL, "DEEPSCAN_CACHE_TOKEN_INFO_TTL")
	setInt(&cfg.Cache.InspectedURIs, "DEEPSCAN_CACHE_INSPECTED_URIS")

	setString(&cfg.Logging.Level, "DEEPSCAN_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DEEPSCAN_LOG_SERVICE")
	setString(&cfg.Logging.Format, "DEEPSCAN_LOG_FORMAT")
	setBool(&cfg.Logging.Async, "DEEPSCAN_LOG_ASYNC")

	setBool(&cfg.Telemetry.Enabled, "DEEPSCAN_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.Telemetry.Insecure, "DEEPSCAN_OTEL_INSECURE")

	setString(&cfg.Debug.Addr, "DEEPSCAN_DEBUG_ADDR")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.DeepScan.Server == "" {
		return errors.New("deepscan.server is required")
	}
	if cfg.Inspection.MaxLines < 1 {
		return errors.New("inspection.max_lines must be >= 1")
	}
	if cfg.Inspection.MaxChars < 1 {
		return errors.New("inspection.max_chars must be >= 1")
	}
	if cfg.Inspection.Timeout <= 0 {
		return errors.New("inspection.timeout must be > 0")
	}
	if cfg.Inspection.MaxConcurrent < 1 {
		return errors.New("inspection.max_concurrent must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.InspectedURIs < 1 {
		return errors.New("cache.inspected_uris must be >= 1")
	}
	switch cfg.Logging.Format {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("logging.format %q must be auto, json or text", cfg.Logging.Format)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setStrings splits a comma-separated value, dropping empty items.
func setStrings(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
