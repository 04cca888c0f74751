// Package config resolves server settings from defaults, an optional config
// file, the environment and command line flags, in increasing precedence.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. STUB_PORT.
const EnvPrefix = "STUB"

// Keys understood by Load.
const (
	KeyHost           = "host"
	KeyPort           = "port"
	KeyDataDirectory  = "data-directory"
	KeyBackend        = "backend"
	KeyAllowedOrigins = "allowed-origins"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyStrictLoad     = "strict-load"
)

// legacyEnv are the unprefixed variables the sync server used.
var legacyEnv = map[string]string{
	KeyHost:           "HOST",
	KeyPort:           "PORT",
	KeyDataDirectory:  "DATA_DIR",
	KeyBackend:        "STORE_BACKEND",
	KeyAllowedOrigins: "ALLOWED_ORIGINS",
}

// Config holds the resolved settings.
type Config struct {
	Host           string
	Port           int
	DataDirectory  string
	Backend        string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
	StrictLoad     bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		DataDirectory:  "data",
		Backend:        "json",
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RegisterFlags adds a flag for every key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(KeyHost, d.Host, "bind address")
	fs.IntP(KeyPort, "p", d.Port, "port number")
	fs.StringP(KeyDataDirectory, "d", d.DataDirectory, "directory holding <collection>.json files")
	fs.String(KeyBackend, d.Backend, "collection source (json|sqlite|memory)")
	fs.StringSlice(KeyAllowedOrigins, d.AllowedOrigins, "CORS allowed origins")
	fs.String(KeyLogLevel, d.LogLevel, "log level (debug|info|warn|error)")
	fs.String(KeyLogFormat, d.LogFormat, "log format (text|json)")
	fs.Bool(KeyStrictLoad, d.StrictLoad, "fail requests for collections whose file cannot be parsed")
}

// Load resolves the configuration. file may be empty; flags may be nil.
func Load(file string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setupDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", file)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv is consulted first, so STUB_* wins over the legacy names.
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, err
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, errors.Wrap(err, "bind flags")
		}
	}

	cfg := Config{
		Host:           v.GetString(KeyHost),
		Port:           v.GetInt(KeyPort),
		DataDirectory:  v.GetString(KeyDataDirectory),
		Backend:        v.GetString(KeyBackend),
		AllowedOrigins: splitOrigins(v.GetStringSlice(KeyAllowedOrigins)),
		LogLevel:       strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:      strings.ToLower(v.GetString(KeyLogFormat)),
		StrictLoad:     v.GetBool(KeyStrictLoad),
	}
	return cfg, cfg.Validate()
}

func setupDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyHost, d.Host)
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyDataDirectory, d.DataDirectory)
	v.SetDefault(KeyBackend, d.Backend)
	v.SetDefault(KeyAllowedOrigins, d.AllowedOrigins)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyStrictLoad, d.StrictLoad)
}

// splitOrigins accepts both list values and comma separated strings, as
// environment variables arrive as a single string.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DataDirectory == "" {
		return errors.New("data directory must not be empty")
	}
	switch c.Backend {
	case "json", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown backend %q (supported: json, sqlite, memory)", c.Backend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (supported: text, json)", c.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
