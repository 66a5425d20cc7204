// Package version exposes build metadata injected at link time.
package version

// Populated via -ldflags "-X github.com/Sumatoshi-tech/deadwood/pkg/version.Version=...".
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"
)
