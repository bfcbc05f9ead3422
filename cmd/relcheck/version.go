package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"relcheck/internal/update"
)

// Version information - injected at build time via ldflags
var (
	Version   = "dev"
	Build     = "unknown"
	BuildTime = ""

	// BuildChannel is the release track this binary was built for. It is
	// used when the configured channel is not recognized.
	BuildChannel = "official"
)

var readBuildInfo = debug.ReadBuildInfo

// installedVersion is the default for --current. Builds without ldflags fall
// back to the module version recorded by "go install", when it is a plain
// release version.
func installedVersion() string {
	if Version != "dev" {
		return Version
	}
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return Version
	}
	v := strings.TrimPrefix(info.Main.Version, "v")
	if _, err := update.ParseVersion(v); err != nil {
		return Version
	}
	return v
}

// printVersion prints the version information
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "relcheck version %s", Version)

	if Build != "unknown" && Build != "" {
		_, _ = fmt.Fprintf(w, " (build: %s)", Build)
	}

	if BuildTime != "" {
		_, _ = fmt.Fprintf(w, " [%s]", BuildTime)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Channel: %s\n", BuildChannel)
	_, _ = fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// Try to get build info for development builds
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && len(setting.Value) > 7 {
					_, _ = fmt.Fprintf(w, "Commit: %s\n", setting.Value[:7])
					break
				}
			}
		}
	}
}
