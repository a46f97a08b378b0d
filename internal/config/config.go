// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON or YAML config file and
// environment variables.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port" yaml:"port"`

	// BackupPath is the file that mirrors the in-memory record.
	BackupPath string `json:"backup_path" yaml:"backup_path"`

	// DatabaseDSN switches the backup to PostgreSQL when set.
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	// Digest names the fingerprint algorithm ("hmac-sha256" or "blake2b-256").
	Digest string `json:"digest" yaml:"digest"`

	// LogLevel is the minimum zap level.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert" yaml:"tls_cert"`
	TLSKey  string `json:"tls_key" yaml:"tls_key"`

	// RateLimit is the sustained number of verify/recover requests per second
	// allowed per client; zero disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	// RateBurst is the token bucket size for RateLimit.
	RateBurst int `json:"rate_burst" yaml:"rate_burst"`

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// Config is the path to the Config file.
	Config string `json:"-" yaml:"-"`
}

// Parse parses the process command line and environment. It exits on invalid
// input, matching flag.ExitOnError.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

// ParseArgs builds Options from args and getenv. Flags are applied first, then
// the config file, then environment variables.
func ParseArgs(args []string, getenv func(string) string) (*Options, error) {
	options := &Options{}
	var origins string

	fs := flag.NewFlagSet("sealkeeper", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", "localhost:8090", "run on ip:port server")
	fs.StringVar(&options.BackupPath, "b", "database.json", "backup file path")
	fs.StringVar(&options.DatabaseDSN, "d", "", "db address; enables the PostgreSQL backup")
	fs.StringVar(&options.Digest, "digest", "hmac-sha256", "fingerprint algorithm")
	fs.StringVar(&options.LogLevel, "l", "info", "log level")
	fs.StringVar(&options.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&options.TLSKey, "tls-key", "", "TLS private key file")
	fs.Float64Var(&options.RateLimit, "rps", 5, "verify/recover requests per second per client")
	fs.IntVar(&options.RateBurst, "burst", 10, "verify/recover burst per client")
	fs.StringVar(&origins, "origins", "*", "comma separated CORS origins")
	fs.StringVar(&options.Config, "config", "", "path to config file")
	fs.StringVar(&options.Config, "c", "", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	options.AllowedOrigins = splitList(origins)

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if err := loadFile(options.Config, options); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(options, getenv); err != nil {
		return nil, err
	}

	return options, nil
}

// TLSEnabled reports whether both TLS files are configured.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

// loadFile merges a JSON or YAML config file into options. A missing file is
// ignored.
func loadFile(path string, options *Options) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, options)
	default:
		err = json.Unmarshal(data, options)
	}
	if err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

func applyEnv(options *Options, getenv func(string) string) error {
	if serverAddress := getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if backupPath := getenv("BACKUP_PATH"); backupPath != "" {
		options.BackupPath = backupPath
	}
	if dsn := getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if alg := getenv("DIGEST_ALGORITHM"); alg != "" {
		options.Digest = alg
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}
	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		options.AllowedOrigins = splitList(origins)
	}
	if rps := getenv("RATE_LIMIT"); rps != "" {
		v, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT %q: %w", rps, err)
		}
		options.RateLimit = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
