// config.go: settings struct for cyanwatch and functions to load and save it.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/logger"
)

// ProviderSettings configures the water-quality data provider client.
type ProviderSettings struct {
	BaseURL           string        // provider API root, e.g. https://provider.example/api
	Timeout           time.Duration // per-request timeout
	RequestsPerSecond float64       // client-side rate limit
	Burst             int           // rate limiter burst size
	CacheTTL          time.Duration // how long a fetched response counts as fresh
	UserAgent         string        // User-Agent header sent to the provider
}

// BackendSettings configures the user backend (locations and batch jobs).
type BackendSettings struct {
	BaseURL  string        // backend API root
	Timeout  time.Duration // per-request timeout
	Token    string        // bearer token for the current session
	Username string        // account name, used as location owner
}

// SyncSettings configures the synchronization engine.
type SyncSettings struct {
	DataType string // initial data series: weekly or daily
}

// BatchSettings configures CSV upload validation and job polling.
type BatchSettings struct {
	PollInterval      time.Duration // status poll interval
	MaxRows           int           // max CSV rows including header
	MaxFilenameLength int           // max upload filename length
	Extension         string        // accepted file extension without dot
	Columns           []string      // accepted header column names
}

// MetricsSettings configures Prometheus collectors.
type MetricsSettings struct {
	Enabled bool   // true to register collectors
	Listen  string // optional address for the /metrics endpoint
}

// DatastoreSettings configures the local job history database.
type DatastoreSettings struct {
	Enabled bool   // true to persist job history
	Path    string // path to sqlite database
}

// MQTTSettings contains settings for MQTT integration.
type MQTTSettings struct {
	Enabled  bool   // true to publish events over MQTT
	Broker   string // MQTT (tcp://host:port)
	Topic    string // topic prefix
	ClientID string // MQTT client id
	Username string // MQTT username
	Password string // MQTT password
}

// Settings contains all configuration options for cyanwatch.
type Settings struct {
	Debug bool // true to enable debug mode

	Provider  ProviderSettings
	Backend   BackendSettings
	Sync      SyncSettings
	Batch     BatchSettings
	Logging   logger.LoggingConfig
	Metrics   MetricsSettings
	Datastore DatastoreSettings
	MQTT      MQTTSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads .env, the configuration file and environment variables into Settings.
// An empty configFile searches the default config paths; a missing file is not
// an error and yields defaults.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	// .env is optional
	_ = godotenv.Load()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and env bindings, then reads the config file.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment variable issues", logger.Error(err))
	}

	err := viper.ReadInConfig()
	if err == nil {
		GetLogger().Debug("config loaded", logger.String("path", viper.ConfigFileUsed()))
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && configFile == "" {
		GetLogger().Debug("no config file found, using defaults")
		return nil
	}

	return errors.New(err).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("config_file", configFile).
		Build()
}

// GetSettings returns the most recently loaded settings
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. The write goes through a temp
// file and rename so a crash never leaves a truncated config behind.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	const dirPermissions = 0o755
	if err := os.MkdirAll(filepath.Dir(configPath), dirPermissions); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// cross-device rename, fall back to copy
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// DefaultSettings returns settings populated only from registered defaults.
func DefaultSettings() (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	return settings, nil
}
