package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/kartoza/antiox-predictor/internal/predict"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppName is used for the config file name, env prefix and data directory
const AppName = "antiox"

// Config holds the application configuration
type Config struct {
	Port     int    `mapstructure:"port"`
	Endpoint string `mapstructure:"endpoint"`
	DataDir  string `mapstructure:"data_dir"`
	Headless bool   `mapstructure:"headless"`
	History  bool   `mapstructure:"history"`
	Verbose  bool   `mapstructure:"verbose"`
	Version  string `mapstructure:"-"`
}

// HistoryPath is the location of the prediction history database
func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// flag name -> config key
var flagKeys = map[string]string{
	"port":     "port",
	"endpoint": "endpoint",
	"data-dir": "data_dir",
	"headless": "headless",
	"history":  "history",
	"verbose":  "verbose",
}

// Loader reads configuration from defaults, an optional YAML file, ANTIOX_*
// environment variables and command-line flags, in increasing priority.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a loader. An empty configFile searches for antiox.yaml
// in the working directory and the data store directory.
func NewLoader(configFile string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		if dir, err := DataStoreDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("endpoint", predict.DefaultEndpoint)
	v.SetDefault("data_dir", "")
	v.SetDefault("headless", false)
	v.SetDefault("history", true)
	v.SetDefault("verbose", false)

	return &Loader{v: v}
}

// BindFlags lets explicitly set flags override file and env values
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file (if any) and decodes the merged configuration
func (l *Loader) Load() (Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file failed: %w", err)
		}
	}
	return l.decode()
}

// ConfigFile returns the file in use, or "" when running on defaults
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the re-decoded configuration whenever the config
// file changes. Decode errors are passed to onError. It reports whether a file
// is being watched.
func (l *Loader) Watch(onChange func(Config), onError func(error)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
	return true
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return Config{}, fmt.Errorf("parsing config failed: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := DataStoreDir()
		if err != nil {
			return Config{}, err
		}
		cfg.DataDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the decoded configuration
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q must be an absolute http(s) URL", c.Endpoint)
	}
	return nil
}

// DataStoreDir is the per-user directory for settings and history
func DataStoreDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}
