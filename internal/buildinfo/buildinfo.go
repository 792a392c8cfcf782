// Package buildinfo holds build-time metadata injected with
// -ldflags "-X github.com/tphakala/cyanwatch/internal/buildinfo.version=...".
package buildinfo

import "fmt"

var (
	version   = ""
	buildDate = ""
)

// Info is the build metadata of the running binary.
type Info struct {
	Version   string
	BuildDate string
}

// Get returns the build metadata, "unknown" for values not injected.
func Get() Info {
	return Info{
		Version:   orUnknown(version),
		BuildDate: orUnknown(buildDate),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (built %s)", i.Version, i.BuildDate)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
