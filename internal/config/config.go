// Package config defines the run configuration and loads it in layers:
// built-in defaults, an optional YAML file, then SONGETL_* environment
// variables. The resulting Config is built once in main and passed by
// reference; no other package reads the environment.
//
// Example songetl.yaml (trimmed):
//
//	input:
//	  base: s3://udacity-dend
//	output:
//	  base: s3://my-lake/sparkify
//	  overwrite: true
//	transform:
//	  timezone: UTC
//	  matcher: exact
//	metrics:
//	  backend: pushgateway
//	  pushgateway_url: http://pushgateway:9091
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/zeebo/errs"

	"songetl/internal/objectstore"
)

// Error is the error class for configuration failures.
var Error = errs.Class("config")

const (
	// EnvPrefix prefixes every environment override. A double underscore
	// separates nesting levels: SONGETL_OUTPUT__BATCH_SIZE -> output.batch_size.
	EnvPrefix = "SONGETL_"
	// PathEnvVar names an explicit config file.
	PathEnvVar = "SONGETL_CONFIG"
	// DefaultPath is used when PathEnvVar is unset and the file exists.
	DefaultPath = "songetl.yaml"
)

// Config is the full run configuration.
type Config struct {
	Input     InputConfig     `koanf:"input"`
	Output    OutputConfig    `koanf:"output"`
	S3        S3Config        `koanf:"s3"`
	Transform TransformConfig `koanf:"transform"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
}

// InputConfig locates the two record families under a common base.
type InputConfig struct {
	Base     string `koanf:"base"`
	SongPath string `koanf:"song_path"`
	LogPath  string `koanf:"log_path"`
	// Pattern is matched against base names at any depth.
	Pattern string `koanf:"pattern"`
}

// OutputConfig selects the sink.
type OutputConfig struct {
	Base string `koanf:"base"`
	// Kind is parquet, postgres or sqlite; empty derives it from Base.
	Kind      string `koanf:"kind"`
	Overwrite bool   `koanf:"overwrite"`
	BatchSize int    `koanf:"batch_size"`
}

// S3Config holds object store credentials. Empty keys fall back to the AWS
// SDK default chain.
type S3Config struct {
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	SessionToken    string `koanf:"session_token"`
	ForcePathStyle  bool   `koanf:"force_path_style"`
}

// TransformConfig tunes the normalizers.
type TransformConfig struct {
	// Timezone is an IANA name used to derive ts_timestamp; empty means the
	// process local zone.
	Timezone string `koanf:"timezone"`
	// Matcher is exact or folded.
	Matcher string `koanf:"matcher"`
}

// RuntimeConfig controls concurrency.
type RuntimeConfig struct {
	// ReaderWorkers bounds concurrent file reads; 0 means GOMAXPROCS.
	ReaderWorkers int `koanf:"reader_workers"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend        string `koanf:"backend"` // none | pushgateway | datadog
	PushgatewayURL string `koanf:"pushgateway_url"`
	DatadogAddr    string `koanf:"datadog_addr"`
	Job            string `koanf:"job"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json | console
	Caller bool   `koanf:"caller"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			SongPath: "song_data",
			LogPath:  "log_data",
			Pattern:  "*.json",
		},
		Output: OutputConfig{
			Overwrite: true,
			BatchSize: 5000,
		},
		Transform: TransformConfig{
			Matcher: "exact",
		},
		Metrics: MetricsConfig{
			Backend: "none",
			Job:     "songetl",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load layers defaults, the config file and the environment. path overrides
// the file lookup; an explicitly named file that does not exist is an error,
// a missing DefaultPath is not.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, Error.New("load defaults: %v", err)
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv(PathEnvVar)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, Error.New("load %s: %v", path, err)
		}
	} else if explicit {
		return nil, Error.New("config file %s: %v", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, Error.New("load environment: %v", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, Error.New("unmarshal: %v", err)
	}
	return cfg, nil
}

// envKey maps SONGETL_OUTPUT__BATCH_SIZE to output.batch_size. The config
// file variable itself is not a setting.
func envKey(key string) string {
	if key == PathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// ApplyArgs sets the input and output bases from positional arguments. Empty
// values leave the loaded settings in place.
func (c *Config) ApplyArgs(input, output string) {
	if input != "" {
		c.Input.Base = input
	}
	if output != "" {
		c.Output.Base = output
	}
}

// SongLocation is the catalog root.
func (c *Config) SongLocation() string { return JoinLocation(c.Input.Base, c.Input.SongPath) }

// LogLocation is the event log root.
func (c *Config) LogLocation() string { return JoinLocation(c.Input.Base, c.Input.LogPath) }

// TimeLocation resolves Transform.Timezone.
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Transform.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Transform.Timezone)
	if err != nil {
		return nil, Error.New("transform.timezone: %v", err)
	}
	return loc, nil
}

// UsesS3 reports whether either end of the run lives in an object store.
func (c *Config) UsesS3() bool {
	return objectstore.IsURL(c.Input.Base) || objectstore.IsURL(c.Output.Base)
}

// ObjectStore converts the S3 section.
func (c *Config) ObjectStore() objectstore.Config {
	return objectstore.Config{
		Region:          c.S3.Region,
		Endpoint:        c.S3.Endpoint,
		AccessKeyID:     c.S3.AccessKeyID,
		SecretAccessKey: c.S3.SecretAccessKey,
		SessionToken:    c.S3.SessionToken,
		ForcePathStyle:  c.S3.ForcePathStyle,
	}
}

// JoinLocation appends a relative path to a directory or s3:// base.
func JoinLocation(base, rel string) string {
	if rel == "" {
		return base
	}
	if objectstore.IsURL(base) {
		return strings.TrimRight(base, "/") + "/" + strings.Trim(rel, "/")
	}
	return filepath.Join(base, rel)
}
