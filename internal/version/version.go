// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/ordersync/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/ordersync/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "log/slog"

// Build-time variables (set via ldflags)
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ")"
}

// UserAgent is sent on REST requests and the realtime handshake.
func UserAgent() string {
	return "ordersync/" + Version
}

// LogAttr groups the build info for a startup log line.
func LogAttr() slog.Attr {
	return slog.Group("build", "version", Version, "commit", Commit)
}
