// env.go - environment variable configuration and validation for cyanwatch
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "CYANWATCH_DEBUG", validateEnvBool},

		{"provider.baseurl", "CYANWATCH_PROVIDER_URL", validateEnvURL},
		{"provider.timeout", "CYANWATCH_PROVIDER_TIMEOUT", validateEnvDuration},
		{"provider.requestspersecond", "CYANWATCH_PROVIDER_RPS", validateEnvPositiveFloat},

		{"backend.baseurl", "CYANWATCH_BACKEND_URL", validateEnvURL},
		{"backend.token", "CYANWATCH_TOKEN", nil},
		{"backend.username", "CYANWATCH_USERNAME", nil},

		{"sync.datatype", "CYANWATCH_DATA_TYPE", validateEnvDataType},

		{"batch.pollinterval", "CYANWATCH_POLL_INTERVAL", validateEnvDuration},

		{"datastore.enabled", "CYANWATCH_DATASTORE_ENABLED", validateEnvBool},
		{"datastore.path", "CYANWATCH_DATASTORE_PATH", nil},

		{"mqtt.enabled", "CYANWATCH_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "CYANWATCH_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "CYANWATCH_MQTT_USERNAME", nil},
		{"mqtt.password", "CYANWATCH_MQTT_PASSWORD", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host, got '%s'", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f <= 0 {
		return fmt.Errorf("must be greater than 0, got %g", f)
	}
	return nil
}

func validateEnvDataType(value string) error {
	switch strings.ToLower(value) {
	case DataTypeWeekly, DataTypeDaily:
		return nil
	default:
		return fmt.Errorf("must be one of: %s, %s", DataTypeWeekly, DataTypeDaily)
	}
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
