// Package conf provides configuration management for cyanwatch.
package conf

import "github.com/tphakala/cyanwatch/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger each time since the central logger is set after configuration loads.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
