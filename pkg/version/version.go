package version

import "fmt"

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/ucifleet/ucifleet/pkg/version.Version=v1.0.0 \
//	  -X github.com/ucifleet/ucifleet/pkg/version.GitCommit=abc1234 \
//	  -X github.com/ucifleet/ucifleet/pkg/version.BuildDate=2026-01-01"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a single-line version string for `ucifleet version`.
func Info() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
