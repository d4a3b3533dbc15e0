// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/dabbawala/ordersync/internal/version.Version=1.0.0 \
//	                   -X github.com/dabbawala/ordersync/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/dabbawala/ordersync/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	// Version is the semantic version, e.g. "0.3.0".
	Version = "dev"

	// Commit is the short git commit hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp in ISO 8601.
	BuildTime = "unknown"
)

// String formats the full version line for startup logs.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
