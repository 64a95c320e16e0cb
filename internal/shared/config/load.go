package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	configPath string
	homeDir    func() (string, error)
}

// WithConfigPath reads the configuration from path instead of searching.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithHomeDir overrides the home directory lookup.
func WithHomeDir(homeDir func() (string, error)) Option {
	return func(o *loadOptions) {
		o.homeDir = homeDir
	}
}

// Load merges defaults, the configuration file and FOCUSVAULT_* environment
// variables, in increasing priority, and validates the result.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{homeDir: os.UserHomeDir}
	for _, opt := range opts {
		opt(&options)
	}

	home := resolveHome(options.homeDir)
	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}

	v := viper.New()
	if err := setDefaults(v, Default(home)); err != nil {
		return Config{}, meta, err
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := ResolveConfigPath(options.configPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath(expandHome("~/"+defaultConfigDir, home))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, meta, fmt.Errorf("read config file: %w", err)
		}
	} else {
		meta.path = v.ConfigFileUsed()
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return Config{}, meta, fmt.Errorf("decode config: %w", err)
	}
	normalize(&cfg, home)

	for _, key := range v.AllKeys() {
		switch {
		case envSet(key):
			meta.sources[key] = SourceEnv
		case v.InConfig(key):
			meta.sources[key] = SourceFile
		default:
			meta.sources[key] = SourceDefault
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, meta, err
	}
	return cfg, meta, nil
}

// EnvKey returns the environment variable that overrides a dotted key.
func EnvKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(EnvKey(key))
	return ok
}

// setDefaults registers every leaf of cfg as a viper default so that
// AutomaticEnv can override keys that are absent from the file.
func setDefaults(v *viper.Viper, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	flatten("", tree, v.SetDefault)
	return nil
}

func flatten(prefix string, tree map[string]any, set func(string, any)) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(full, nested, set)
			continue
		}
		set(full, value)
	}
}

func normalize(cfg *Config, home string) {
	cfg.Store.Dir = expandHome(strings.TrimSpace(cfg.Store.Dir), home)
	cfg.Store.IDStrategy = strings.ToLower(strings.TrimSpace(cfg.Store.IDStrategy))
	cfg.Notifications.LogFile = expandHome(strings.TrimSpace(cfg.Notifications.LogFile), home)
	cfg.Observability.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Observability.Logging.Level))
	cfg.Observability.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Observability.Logging.Format))
	cfg.Observability.Metrics.TextfilePath = expandHome(strings.TrimSpace(cfg.Observability.Metrics.TextfilePath), home)
	cfg.Observability.Tracing.Output = expandHome(strings.TrimSpace(cfg.Observability.Tracing.Output), home)
}
