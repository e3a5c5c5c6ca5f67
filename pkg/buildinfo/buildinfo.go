// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/matzehuels/tractstory/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/tractstory/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/tractstory/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/tractstory
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the semantic version (e.g., "v1.2.3").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the formatted build information. When the binary was
// built without ldflags, the module version and VCS revision recorded by
// the Go toolchain are used instead.
func String() string {
	v, c, d := resolve()
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", v, c, d)
}

// Template returns the version template string for cobra.
func Template() string {
	v, c, d := resolve()
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", v, c, d)
}

func resolve() (version, commit, date string) {
	version, commit, date = Version, Commit, Date
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "none":
			commit = s.Value
		case s.Key == "vcs.time" && date == "unknown":
			date = s.Value
		}
	}
	return
}
