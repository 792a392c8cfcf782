// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig registers defaults on the global viper instance.
func setDefaultConfig() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("provider.baseurl", "https://cyan.epa.gov/cyan/cyano")
	v.SetDefault("provider.timeout", DefaultProviderTimeout)
	v.SetDefault("provider.requestspersecond", 10.0)
	v.SetDefault("provider.burst", 5)
	v.SetDefault("provider.cachettl", DefaultCacheTTL)
	v.SetDefault("provider.useragent", "cyanwatch")

	v.SetDefault("backend.baseurl", "http://localhost:8080/cyan/app/api")
	v.SetDefault("backend.timeout", DefaultBackendTimeout)
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.username", "")

	v.SetDefault("sync.datatype", "weekly")

	v.SetDefault("batch.pollinterval", DefaultPollInterval)
	v.SetDefault("batch.maxrows", DefaultMaxBatchRows)
	v.SetDefault("batch.maxfilenamelength", DefaultMaxFilenameLength)
	v.SetDefault("batch.extension", "csv")
	v.SetDefault("batch.columns", []string{"latitude", "longitude", "type"})

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/cyanwatch.log")
	v.SetDefault("logging.file_output.level", "debug")
	v.SetDefault("logging.file_output.max_size", 50)
	v.SetDefault("logging.file_output.max_age", 30)
	v.SetDefault("logging.file_output.max_rotated_files", 5)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", "")

	v.SetDefault("datastore.enabled", true)
	v.SetDefault("datastore.path", "cyanwatch.db")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "cyanwatch")
	v.SetDefault("mqtt.clientid", "cyanwatch")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
}
