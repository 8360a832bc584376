// Package version reports build information set through ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/docflow/internal/version.Version=v1.0.0"
package version

import "fmt"

var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version for CLI output.
func String() string {
	return fmt.Sprintf("docflow %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
