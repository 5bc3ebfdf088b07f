// Package version exposes build metadata set via ldflags.
package version

//nolint:revive // Overridden at build time with -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
