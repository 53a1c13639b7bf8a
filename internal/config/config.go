// Package config provides hierarchical configuration loading for the DeepScan
// language server.
// Precedence: defaults < YAML file < environment variables < CLI flags.
// Settings pushed by the editor at runtime override the deepscan section.
package config

import "time"

// Config holds all runtime configuration for the language server.
type Config struct {
	DeepScan   DeepScan   `yaml:"deepscan"`
	Inspection Inspection `yaml:"inspection"`
	Breaker    Breaker    `yaml:"breaker"`
	Cache      Cache      `yaml:"cache"`
	Logging    Logging    `yaml:"logging"`
	Telemetry  Telemetry  `yaml:"telemetry"`
	Debug      Debug      `yaml:"debug"`
}

// DeepScan holds the defaults for the remote service. The editor may
// override all of them through initializationOptions and
// workspace/didChangeConfiguration.
type DeepScan struct {
	Server         string   `yaml:"server"`
	Proxy          string   `yaml:"proxy"`
	UserAgent      string   `yaml:"user_agent"`
	AccessToken    string   `yaml:"access_token"`
	FileSuffixes   []string `yaml:"file_suffixes"`   // Extra suffixes submitted as JavaScript
	IgnoreRules    []string `yaml:"ignore_rules"`    // Rule codes dropped from results
	IgnorePatterns []string `yaml:"ignore_patterns"` // gitignore-style globs
}

// Inspection holds limits applied to every inspection.
type Inspection struct {
	MaxLines      int           `yaml:"max_lines"`      // Documents above are skipped (default: 10000)
	MaxChars      int           `yaml:"max_chars"`      // Documents above are skipped (default: 500000)
	Timeout       time.Duration `yaml:"timeout"`        // Bound on one remote request (default: 30s)
	MaxConcurrent int           `yaml:"max_concurrent"` // Inspections in flight at once (default: 4)
}

// Breaker holds circuit breaker configuration for the remote service.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Cache holds in-process cache configuration.
type Cache struct {
	L1MaxSizeMB   int64         `yaml:"l1_max_size_mb"`
	TokenInfoTTL  time.Duration `yaml:"token_info_ttl"`
	InspectedURIs int           `yaml:"inspected_uris"` // Bound on remembered inspected documents
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Format  string `yaml:"format"` // "auto" | "json" | "text"
	Async   bool   `yaml:"async"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Debug holds the optional debug HTTP server configuration.
type Debug struct {
	Addr string `yaml:"addr"` // Empty disables the server
}

// Defaults returns a Config with the values used when nothing is configured.
func Defaults() Config {
	return Config{
		DeepScan: DeepScan{
			Server:    "https://deepscan.io",
			UserAgent: "deepscan-ls",
		},
		Inspection: Inspection{
			MaxLines:      10000,
			MaxChars:      500000,
			Timeout:       30 * time.Second,
			MaxConcurrent: 4,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			L1MaxSizeMB:   8,
			TokenInfoTTL:  5 * time.Minute,
			InspectedURIs: 4096,
		},
		Logging: Logging{
			Level:   "info",
			Service: "deepscan-ls",
			Format:  "auto",
		},
		Telemetry: Telemetry{
			Endpoint:    "localhost:4317",
			ServiceName: "deepscan-ls",
			Insecure:    true,
		},
	}
}
