package version

import (
	"fmt"
	"runtime/debug"
)

// Name is the binary name.
const Name = "swissk"

// Set via -ldflags "-X github.com/OSchengdu/swissK-agent/internal/version.Version=...".
var (
	Version   = "0.1.0"
	Commit    = ""
	BuildDate = "unknown"
)

// Revision returns the injected commit, falling back to the VCS revision
// recorded by the Go toolchain, then to "dev".
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				if len(s.Value) > 12 {
					return s.Value[:12]
				}
				return s.Value
			}
		}
	}
	return "dev"
}

// Full returns "swissk <version> (commit:<rev>, built:<date>)".
func Full() string {
	return fmt.Sprintf("%s %s (commit:%s, built:%s)", Name, Version, Revision(), BuildDate)
}
