// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/tocha/internal/version.Version=v1.2.0
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata for logs and --version output.
func String() string {
	return fmt.Sprintf("tocha %s (commit %s, built %s)", Version, Commit, Date)
}
