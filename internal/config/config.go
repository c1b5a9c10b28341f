// Package config loads the bootserver configuration from defaults, an
// optional YAML file and BOOTSERVER_* environment variables, in
// increasing order of precedence. CLI flags override all of these.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "BOOTSERVER"

type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// RootDir is the boot artifact directory served by all listeners.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`

	HTTP    HTTPConfig    `mapstructure:"http"    yaml:"http"`
	HTTPS   HTTPSConfig   `mapstructure:"https"   yaml:"https"`
	TFTP    TFTPConfig    `mapstructure:"tftp"    yaml:"tftp"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Streams StreamsConfig `mapstructure:"streams" yaml:"streams"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
}

type HTTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type HTTPSConfig struct {
	Enabled  bool   `mapstructure:"enabled"   yaml:"enabled"`
	Host     string `mapstructure:"host"      yaml:"host"`
	Port     int    `mapstructure:"port"      yaml:"port"`
	CertFile string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile  string `mapstructure:"key_file"  yaml:"key_file"`
}

type TFTPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host"    yaml:"host"`
	Port    int    `mapstructure:"port"    yaml:"port"`

	// AckTimeout is how long a transfer waits for each ACK before
	// aborting. There is no retransmission.
	AckTimeout time.Duration `mapstructure:"ack_timeout" yaml:"ack_timeout"`

	// MaxSessions bounds concurrent transfers.
	MaxSessions int `mapstructure:"max_sessions" yaml:"max_sessions"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type StreamsConfig struct {
	// Manifest is an optional stream manifest file to load and watch.
	Manifest string `mapstructure:"manifest" yaml:"manifest"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("root_dir", "./boot-artifacts")
	v.SetDefault("http.host", "")
	v.SetDefault("http.port", 8080)
	v.SetDefault("https.enabled", false)
	v.SetDefault("https.host", "")
	v.SetDefault("https.port", 8443)
	v.SetDefault("https.cert_file", "")
	v.SetDefault("https.key_file", "")
	v.SetDefault("tftp.enabled", true)
	v.SetDefault("tftp.host", "")
	v.SetDefault("tftp.port", 6969)
	v.SetDefault("tftp.ack_timeout", "5s")
	v.SetDefault("tftp.max_sessions", 64)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("streams.manifest", "")
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error while reading config file %s: %w", path, err)
		}
	}

	var cfg Config

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error while building config decoder: %w", err)
	}

	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("error while decoding config: %w", err)
	}

	return &cfg, nil
}

// YAML renders the effective configuration, for `bootserver config`.
func (c *Config) YAML() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("error while marshalling config: %w", err)
	}

	return string(b), nil
}
