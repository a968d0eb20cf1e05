// Package buildinfo carries version metadata stamped at build time via
// -ldflags "-X github.com/tally-dev/tally/internal/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
