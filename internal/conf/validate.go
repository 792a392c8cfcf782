// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateProviderSettings(&s.Provider) },
		func(s *Settings) error { return validateBackendSettings(&s.Backend) },
		func(s *Settings) error { return validateSyncSettings(&s.Sync) },
		func(s *Settings) error { return validateBatchSettings(&s.Batch) },
		func(s *Settings) error { return validateDatastoreSettings(&s.Datastore) },
		func(s *Settings) error { return validateMQTTSettings(&s.MQTT) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s base URL is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s base URL must use http or https, got '%s'", name, raw)
	}
	return nil
}

func validateProviderSettings(settings *ProviderSettings) error {
	var errs []string

	if err := validateBaseURL("provider", settings.BaseURL); err != nil {
		errs = append(errs, err.Error())
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "provider timeout must be positive")
	}
	if settings.RequestsPerSecond <= 0 {
		errs = append(errs, "provider requests per second must be greater than 0")
	}
	if settings.Burst < 1 {
		errs = append(errs, "provider burst must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("provider settings errors: %v", errs)
	}
	return nil
}

func validateBackendSettings(settings *BackendSettings) error {
	if err := validateBaseURL("backend", settings.BaseURL); err != nil {
		return err
	}
	if settings.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	return nil
}

func validateSyncSettings(settings *SyncSettings) error {
	settings.DataType = strings.ToLower(settings.DataType)
	if settings.DataType != DataTypeWeekly && settings.DataType != DataTypeDaily {
		return fmt.Errorf("sync data type must be %s or %s, got '%s'", DataTypeWeekly, DataTypeDaily, settings.DataType)
	}
	return nil
}

func validateBatchSettings(settings *BatchSettings) error {
	var errs []string

	if settings.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Sprintf("batch poll interval must be at least %s", MinPollInterval))
	}
	if settings.MaxRows < 2 {
		errs = append(errs, "batch max rows must allow a header and one location")
	}
	if settings.MaxFilenameLength < 1 {
		errs = append(errs, "batch max filename length must be positive")
	}
	settings.Extension = strings.TrimPrefix(strings.ToLower(settings.Extension), ".")
	if settings.Extension == "" {
		errs = append(errs, "batch extension must not be empty")
	}
	if len(settings.Columns) != 3 {
		errs = append(errs, fmt.Sprintf("batch columns must list exactly 3 names, got %d", len(settings.Columns)))
	}

	if len(errs) > 0 {
		return fmt.Errorf("batch settings errors: %v", errs)
	}
	return nil
}

func validateDatastoreSettings(settings *DatastoreSettings) error {
	if settings.Enabled && settings.Path == "" {
		return fmt.Errorf("datastore path is required when datastore is enabled")
	}
	return nil
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.Broker == "" {
		return fmt.Errorf("MQTT broker URL is required when MQTT is enabled")
	}
	if settings.Topic == "" {
		return fmt.Errorf("MQTT topic is required when MQTT is enabled")
	}
	return nil
}
