package observability

import "github.com/tphakala/cyanwatch/internal/logger"

var log = logger.Global().Module("metrics")
