package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultBaseURL         = "http://127.0.0.1:8000"
	defaultPort            = "8080"
	defaultTimeout         = 30 * time.Second
	defaultRateLimit       = 10.0
	defaultRateBurst       = 20
	defaultCacheMaxSize    = 100
	defaultCleanupInterval = 5 * time.Minute
	defaultSearchLimit     = 20
	defaultDebounce        = 300 * time.Millisecond
	defaultHealthInterval  = 30 * time.Second
	defaultMaxRetries      = 3
	defaultBaseDelay       = time.Second
	defaultMaxDelay        = 30 * time.Second
)

type Config struct {
	config *viper.Viper
	env    string

	mu        sync.Mutex
	listeners []func()
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
		env:    env,
	}

	return cfg, nil
}

// OnChange registers fn to run after the config file is rewritten. The first registration starts the file watch.
func (c *Config) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, fn)
	if len(c.listeners) > 1 || c.config.ConfigFileUsed() == "" {
		return
	}

	c.config.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		slog.Info("config file changed", "file", event.Name, "op", event.Op.String())
		c.mu.Lock()
		listeners := append([]func(){}, c.listeners...)
		c.mu.Unlock()
		for _, listener := range listeners {
			listener()
		}
	})
	c.config.WatchConfig()
}

func (c *Config) GetEnv() string {
	return c.env
}

// IsDevelopment gates request/response debug logging.
func (c *Config) IsDevelopment() bool {
	return c.env == "development" || c.env == envLocal
}

func (c *Config) GetAPIBaseURL() string {
	return c.getString("NEXT_PUBLIC_API_BASE_URL", "api.base_url", defaultBaseURL)
}

func (c *Config) GetPort() string {
	return c.getString("PORT", "server.port", defaultPort)
}

func (c *Config) GetHTTPTimeout() time.Duration {
	return c.getDuration("HTTP_TIMEOUT", "api.timeout", defaultTimeout)
}

func (c *Config) GetRateLimit() float64 {
	if rate := c.config.GetFloat64("api.rate_limit"); rate > 0 {
		return rate
	}
	return defaultRateLimit
}

func (c *Config) GetRateBurst() int {
	return c.getInt("api.rate_burst", defaultRateBurst)
}

func (c *Config) GetCacheMaxSize() int {
	return c.getInt("cache.max_size", defaultCacheMaxSize)
}

func (c *Config) GetCacheCleanupInterval() time.Duration {
	return c.getDuration("", "cache.cleanup_interval", defaultCleanupInterval)
}

func (c *Config) GetSearchLimit() int {
	return c.getInt("search.limit", defaultSearchLimit)
}

func (c *Config) GetSearchDebounce() time.Duration {
	return c.getDuration("", "search.debounce", defaultDebounce)
}

func (c *Config) GetHealthInterval() time.Duration {
	return c.getDuration("", "health.interval", defaultHealthInterval)
}

func (c *Config) GetMaxRetries() int {
	return c.getInt("retry.max_retries", defaultMaxRetries)
}

func (c *Config) GetRetryBaseDelay() time.Duration {
	return c.getDuration("", "retry.base_delay", defaultBaseDelay)
}

func (c *Config) GetRetryMaxDelay() time.Duration {
	return c.getDuration("", "retry.max_delay", defaultMaxDelay)
}

func (c *Config) GetKVDBPath() string {
	return c.getString("KVDB_PATH", "database.kvdb_path", "")
}

func (c *Config) GetIndexPath() string {
	return c.getString("INDEX_PATH", "database.index_path", "")
}

func (c *Config) GetStoragePath() string {
	return c.getString("STORAGE_PATH", "database.storage_path", "")
}

func (c *Config) getString(envKey, yamlKey, fallback string) string {
	value := c.config.GetString(envKey)
	if len(value) == 0 {
		value = c.config.GetString(yamlKey)
	}
	if len(value) == 0 {
		value = fallback
	}

	return value
}

func (c *Config) getInt(yamlKey string, fallback int) int {
	if value := c.config.GetInt(yamlKey); value > 0 {
		return value
	}
	return fallback
}

func (c *Config) getDuration(envKey, yamlKey string, fallback time.Duration) time.Duration {
	if envKey != "" {
		if value := c.config.GetDuration(envKey); value > 0 {
			return value
		}
	}
	if value := c.config.GetDuration(yamlKey); value > 0 {
		return value
	}
	return fallback
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
