// Package version provides build-time version information.
package version

import "fmt"

// Set at build time with -ldflags "-X meme-reveal/internal/version.Version=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns a one-line description for -version output and logs.
func String() string {
	return fmt.Sprintf("meme-reveal %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
