package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes environment overrides, e.g. MEDIVIEW_DASHBOARD_PORT.
const EnvPrefix = "MEDIVIEW"

// Options configures a Manager.
type Options struct {
	// ConfigFile overrides the search for config.yaml.
	ConfigFile string

	// SearchPaths are searched in order for config.yaml when ConfigFile is
	// empty. Defaults to the working directory and ~/.mediview.
	SearchPaths []string

	// EnvFile is loaded into the environment before anything is read.
	// Missing files are ignored. Defaults to ".env".
	EnvFile string

	Logger *slog.Logger
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v      *viper.Viper
	logger *slog.Logger

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	return NewManagerWithOptions(Options{ConfigFile: cfgFile})
}

// NewManagerWithOptions is NewManager with full control over lookup.
func NewManagerWithOptions(opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}
	if opts.SearchPaths == nil {
		opts.SearchPaths = []string{".", "$HOME/.mediview"}
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	cm := &Manager{
		v:         viper.New(),
		logger:    opts.Logger,
		callbacks: make([]func(*Config), 0),
	}
	if err := cm.initViper(opts); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// loadEnvFile loads a dotenv file without overriding variables that are
// already set.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(opts Options) error {
	for _, entry := range DefaultEntries() {
		cm.v.SetDefault(entry.Key, entry.Value)
	}

	// Environment variables with MEDIVIEW_ prefix
	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	// Config file
	if opts.ConfigFile != "" {
		cm.v.SetConfigFile(opts.ConfigFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		for _, p := range opts.SearchPaths {
			cm.v.AddConfigPath(p)
		}
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a validated Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the config file that was read, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. It reports false
// when there is no config file to watch. A reload that fails validation is
// logged and the previous config stays in effect.
func (cm *Manager) WatchConfig() bool {
	if cm.v.ConfigFileUsed() == "" {
		return false
	}
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("ignoring config reload", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		cm.logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
	return true
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(defaultDocument())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# mediview configuration
# The API key uses ${ENV_VAR} syntax to reference an environment variable.
# Set it in your shell or in .env: MEDIVIEW_API_KEY=xxx
# Any key can be overridden with MEDIVIEW_<SECTION>_<KEY>, e.g. MEDIVIEW_DASHBOARD_PORT=3001

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
