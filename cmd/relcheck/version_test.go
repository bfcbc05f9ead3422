package main

import (
	"bytes"
	"runtime/debug"
	"strings"
	"testing"
)

func TestPrintVersion(t *testing.T) {
	tests := []struct {
		name          string
		version       string
		build         string
		buildTime     string
		expectContain []string
	}{
		{
			name:          "dev build",
			version:       "dev",
			build:         "unknown",
			buildTime:     "",
			expectContain: []string{"relcheck version dev", "Channel: official", "Go version:", "OS/Arch:"},
		},
		{
			name:          "release build with commit",
			version:       "0.1.0",
			build:         "abc1234",
			buildTime:     "2025-11-22_12:00:00",
			expectContain: []string{"relcheck version 0.1.0", "(build: abc1234)", "[2025-11-22_12:00:00]", "Go version:", "OS/Arch:"},
		},
		{
			name:          "release build without buildtime",
			version:       "1.0.0",
			build:         "def5678",
			buildTime:     "",
			expectContain: []string{"relcheck version 1.0.0", "(build: def5678)", "Go version:", "OS/Arch:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origVersion := Version
			origBuild := Build
			origBuildTime := BuildTime
			defer func() {
				Version = origVersion
				Build = origBuild
				BuildTime = origBuildTime
			}()

			Version = tt.version
			Build = tt.build
			BuildTime = tt.buildTime

			var buf bytes.Buffer
			printVersion(&buf)
			output := buf.String()

			for _, expected := range tt.expectContain {
				if !strings.Contains(output, expected) {
					t.Errorf("Expected output to contain %q, but got:\n%s", expected, output)
				}
			}
			if tt.build == "unknown" && strings.Contains(output, "(build:") {
				t.Errorf("unknown build should be omitted:\n%s", output)
			}
		})
	}
}

func TestVersionVariablesDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	if Build == "" {
		t.Error("Build should have a default value")
	}
	if BuildChannel == "" {
		t.Error("BuildChannel should have a default value")
	}
}

func TestInstalledVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		module  string
		noInfo  bool
		want    string
	}{
		{name: "ldflags version wins", version: "1.4.0", module: "v2.0.0", want: "1.4.0"},
		{name: "go install release", version: "dev", module: "v1.3.0", want: "1.3.0"},
		{name: "go install pre-release", version: "dev", module: "v1.3.0-beta.1", want: "1.3.0-beta.1"},
		{name: "local checkout", version: "dev", module: "(devel)", want: "dev"},
		{name: "pseudo version", version: "dev", module: "v0.0.0-20240501120000-abcdef123456", want: "dev"},
		{name: "no build info", version: "dev", noInfo: true, want: "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origVersion := Version
			origRead := readBuildInfo
			defer func() {
				Version = origVersion
				readBuildInfo = origRead
			}()

			Version = tt.version
			readBuildInfo = func() (*debug.BuildInfo, bool) {
				if tt.noInfo {
					return nil, false
				}
				return &debug.BuildInfo{Main: debug.Module{Path: "relcheck", Version: tt.module}}, true
			}
			if got := installedVersion(); got != tt.want {
				t.Errorf("installedVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}
