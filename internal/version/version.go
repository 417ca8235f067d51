// Package version exposes the seam build version.
package version

// Version is the seam release version. Overridden at build time via
// -ldflags "-X github.com/teradata-labs/seam/internal/version.Version=...".
var Version = "0.4.1"

// Get returns the current version string.
func Get() string {
	return Version
}
