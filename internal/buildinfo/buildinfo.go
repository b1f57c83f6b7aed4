// Package buildinfo holds version metadata stamped at compile time via
// ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns a one-line summary for startup logging.
func String() string {
	return fmt.Sprintf("mixagent %s (%s) built %s", Version, GitCommit, BuildTime)
}

// UserAgent returns the User-Agent header for outbound HTTP calls.
func UserAgent() string {
	return fmt.Sprintf("mixagent/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}
