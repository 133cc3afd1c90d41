package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read from the working directory when no path is given
const DefaultConfigFile = "kvstems.yaml"

// Environment variables the site credentials and folders are read from
var envBindings = map[string]string{
	"site.username":   "KV_USERNAME",
	"site.password":   "KV_PASSWORD",
	"site.login_url":  "KV_LOGIN_URL",
	"download_folder": "DOWNLOAD_FOLDER",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
	envFile    string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envFile:    ".env",
	}
}

// WithEnvFile overrides the .env file read before the environment
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load reads .env, the config file and the environment, in that order of
// increasing precedence over the defaults
func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		// Existing environment wins over .env
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	// AutomaticEnv only sees keys viper already knows about
	setDefaults(v, "", reflect.ValueOf(DefaultConfig()).Elem())

	configPath := l.GetConfigPath()
	explicit := l.configPath != ""
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	v.SetEnvPrefix("KVSTEMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every leaf of cfg under its mapstructure key path
func setDefaults(v *viper.Viper, prefix string, cfg reflect.Value) {
	t := cfg.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if name == "" || name == "-" || !field.IsExported() {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		value := cfg.Field(i)
		if value.Kind() == reflect.Struct {
			setDefaults(v, key, value)
			continue
		}
		v.SetDefault(key, value.Interface())
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return DefaultConfigFile
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
