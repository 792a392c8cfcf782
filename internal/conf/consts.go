// conf/consts.go hard coded constants
package conf

import "time"

const (
	DefaultProviderTimeout   = 30 * time.Second
	DefaultBackendTimeout    = 15 * time.Second
	DefaultCacheTTL          = 6 * time.Hour
	DefaultPollInterval      = 2000 * time.Millisecond
	DefaultMaxBatchRows      = 1000
	DefaultMaxFilenameLength = 128

	MinPollInterval = 100 * time.Millisecond

	DataTypeWeekly = "weekly"
	DataTypeDaily  = "daily"
)
