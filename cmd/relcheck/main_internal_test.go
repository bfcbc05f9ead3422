package main

import (
	"bytes"
	"flag"
	"strings"
	"testing"
	"time"

	"relcheck/internal/config"
	apperrors "relcheck/internal/errors"
	"relcheck/internal/update"
)

func setupTestConfig(t *testing.T, overrides map[string]any) {
	t.Helper()
	cleanup := config.ResetForTesting(t)
	t.Cleanup(cleanup)
	base := map[string]any{
		config.KeyOwner: "acme",
		config.KeyRepo:  "app",
	}
	for k, v := range overrides {
		base[k] = v
	}
	if err := config.ApplyOverrides(base); err != nil {
		t.Fatalf("apply overrides: %v", err)
	}
}

func buildRuntimeOptionsForArgs(t *testing.T, args []string, overrides map[string]any) (runtimeOptions, string, error) {
	t.Helper()
	setupTestConfig(t, overrides)

	fs := flag.NewFlagSet("relcheck-test", flag.ContinueOnError)
	flags := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	visited := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = struct{}{}
	})

	var warn bytes.Buffer
	opts, err := computeRuntimeOptions(fs, flags, visited, &warn)
	return opts, warn.String(), err
}

func TestComputeRuntimeOptions_Defaults(t *testing.T) {
	opts, warn, err := buildRuntimeOptionsForArgs(t, nil, nil)
	if err != nil {
		t.Fatalf("computeRuntimeOptions: %v", err)
	}
	if warn != "" {
		t.Fatalf("unexpected warning %q", warn)
	}
	if opts.channel != update.ChannelOfficial {
		t.Errorf("channel = %v, want official", opts.channel)
	}
	if opts.timeout != config.DefaultTimeout {
		t.Errorf("timeout = %v, want %v", opts.timeout, config.DefaultTimeout)
	}
	if opts.owner != "acme" || opts.repo != "app" {
		t.Errorf("repository = %s/%s", opts.owner, opts.repo)
	}
	if opts.apiURL != "https://api.github.com" {
		t.Errorf("apiURL = %q", opts.apiURL)
	}
	if opts.outputFormat != "rich" || opts.jsonOutput {
		t.Errorf("output = %q json=%v", opts.outputFormat, opts.jsonOutput)
	}
	if !opts.historyEnabled || opts.cacheTTL != 0 {
		t.Errorf("history enabled=%v ttl=%v", opts.historyEnabled, opts.cacheTTL)
	}
	if opts.current != installedVersion() {
		t.Errorf("current = %q, want build version %q", opts.current, installedVersion())
	}
}

func TestComputeRuntimeOptions_FlagsOverrideConfig(t *testing.T) {
	opts, _, err := buildRuntimeOptionsForArgs(t, []string{
		"--channel=beta",
		"--owner=octo",
		"--repo=tool",
		"--timeout=2s",
		"--api-url=http://mirror.local/",
		"--output-format=plain",
		"--current=1.4.0",
	}, map[string]any{
		config.KeyChannel:      "all",
		config.KeyTimeout:      30 * time.Second,
		config.KeyOutputFormat: "dark",
	})
	if err != nil {
		t.Fatalf("computeRuntimeOptions: %v", err)
	}
	if opts.channel != update.ChannelBeta {
		t.Errorf("channel = %v, want beta", opts.channel)
	}
	if opts.owner != "octo" || opts.repo != "tool" {
		t.Errorf("repository = %s/%s", opts.owner, opts.repo)
	}
	if opts.timeout != 2*time.Second {
		t.Errorf("timeout = %v", opts.timeout)
	}
	if opts.apiURL != "http://mirror.local/" {
		t.Errorf("apiURL = %q", opts.apiURL)
	}
	if opts.outputFormat != "plain" {
		t.Errorf("outputFormat = %q", opts.outputFormat)
	}
	if opts.current != "1.4.0" {
		t.Errorf("current = %q", opts.current)
	}
}

func TestComputeRuntimeOptions_ConfigValuesApply(t *testing.T) {
	opts, _, err := buildRuntimeOptionsForArgs(t, nil, map[string]any{
		config.KeyChannel:         "all",
		config.KeyAssetPrefix:     "app_",
		config.KeyAssetExtensions: "apk, zip",
		config.KeyHistoryCacheTTL: 10 * time.Minute,
		config.KeyOutputJSON:      true,
		config.KeyPerPage:         50,
	})
	if err != nil {
		t.Fatalf("computeRuntimeOptions: %v", err)
	}
	if opts.channel != update.ChannelAll {
		t.Errorf("channel = %v, want all", opts.channel)
	}
	if opts.matcher.Prefix != "app_" {
		t.Errorf("matcher prefix = %q", opts.matcher.Prefix)
	}
	if strings.Join(opts.matcher.Extensions, ",") != "apk,zip" {
		t.Errorf("matcher extensions = %v", opts.matcher.Extensions)
	}
	if opts.cacheTTL != 10*time.Minute || !opts.jsonOutput || opts.perPage != 50 {
		t.Errorf("ttl=%v json=%v perPage=%d", opts.cacheTTL, opts.jsonOutput, opts.perPage)
	}
}

func TestComputeRuntimeOptions_NoCacheDisablesTTL(t *testing.T) {
	opts, _, err := buildRuntimeOptionsForArgs(t, []string{"--no-cache"}, map[string]any{
		config.KeyHistoryCacheTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("computeRuntimeOptions: %v", err)
	}
	if opts.cacheTTL != 0 {
		t.Fatalf("cacheTTL = %v, want 0", opts.cacheTTL)
	}
}

func TestComputeRuntimeOptions_NonPositiveTimeoutUsesDefault(t *testing.T) {
	opts, _, err := buildRuntimeOptionsForArgs(t, []string{"--timeout=0s"}, nil)
	if err != nil {
		t.Fatalf("computeRuntimeOptions: %v", err)
	}
	if opts.timeout != config.DefaultTimeout {
		t.Fatalf("timeout = %v, want default", opts.timeout)
	}
}

func TestComputeRuntimeOptions_UnknownConfiguredChannelFallsBack(t *testing.T) {
	origBuild := BuildChannel
	BuildChannel = "beta"
	t.Cleanup(func() { BuildChannel = origBuild })

	opts, warn, err := buildRuntimeOptionsForArgs(t, nil, map[string]any{config.KeyChannel: "nightly"})
	if err != nil {
		t.Fatalf("computeRuntimeOptions: %v", err)
	}
	if opts.channel != update.ChannelBeta {
		t.Fatalf("channel = %v, want build channel beta", opts.channel)
	}
	if !strings.Contains(warn, `"nightly"`) {
		t.Errorf("expected a warning naming the bad channel, got %q", warn)
	}
}

func TestComputeRuntimeOptions_Errors(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		overrides map[string]any
		wantCode  apperrors.Code
		wantText  string
	}{
		{
			name:     "unknown channel flag",
			args:     []string{"--channel=nightly"},
			wantText: "unknown channel",
		},
		{
			name:      "missing owner",
			overrides: map[string]any{config.KeyOwner: ""},
			wantCode:  apperrors.CodeConfigurationError,
		},
		{
			name:     "blank repo flag",
			args:     []string{"--repo= "},
			wantCode: apperrors.CodeConfigurationError,
		},
		{
			name:     "interactive json",
			args:     []string{"--interactive", "--json"},
			wantText: "cannot be combined",
		},
		{
			name:     "negative history",
			args:     []string{"--history=-1"},
			wantText: "must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildRuntimeOptionsForArgs(t, tt.args, tt.overrides)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantCode != "" && !apperrors.IsCode(err, tt.wantCode) {
				t.Errorf("error code = %q, want %q (%v)", apperrors.CodeOf(err), tt.wantCode, err)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantText)
			}
		})
	}
}

func TestComputeRuntimeOptions_HistoryAndSetChannelNeedNoRepository(t *testing.T) {
	for _, args := range [][]string{{"--history=5"}, {"--set-channel=beta"}} {
		opts, _, err := buildRuntimeOptionsForArgs(t, args, map[string]any{
			config.KeyOwner: "",
			config.KeyRepo:  "",
		})
		if err != nil {
			t.Fatalf("%v: unexpected error %v", args, err)
		}
		if opts.historyCount == 0 && opts.setChannel == "" {
			t.Fatalf("%v: flag not applied", args)
		}
	}
}

func TestResolveChannel(t *testing.T) {
	origBuild := BuildChannel
	t.Cleanup(func() { BuildChannel = origBuild })

	tests := []struct {
		name     string
		build    string
		want     update.Channel
		wantWarn bool
	}{
		{"official", "official", update.ChannelOfficial, false},
		{" Beta ", "official", update.ChannelBeta, false},
		{"ALL", "official", update.ChannelAll, false},
		{"nightly", "beta", update.ChannelBeta, true},
		{"", "all", update.ChannelAll, false},
		{"bogus", "bogus", update.ChannelOfficial, true},
	}
	for _, tt := range tests {
		BuildChannel = tt.build
		var warn bytes.Buffer
		got := resolveChannel(tt.name, &warn)
		if got != tt.want {
			t.Errorf("resolveChannel(%q) with build %q = %v, want %v", tt.name, tt.build, got, tt.want)
		}
		if (warn.Len() > 0) != tt.wantWarn {
			t.Errorf("resolveChannel(%q) warning = %q, want warning=%v", tt.name, warn.String(), tt.wantWarn)
		}
	}
}

func TestFlagWasExplicitlySet(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("channel", "official", "")
	fs.String("owner", "acme", "")
	if err := fs.Parse([]string{"--channel=official"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	visited := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = struct{}{}
	})

	if !flagWasExplicitlySet(fs, "channel", visited) {
		t.Error("channel was passed explicitly, even with the default value")
	}
	if flagWasExplicitlySet(fs, "owner", visited) {
		t.Error("owner was not passed")
	}
	if flagWasExplicitlySet(fs, "missing", visited) {
		t.Error("unknown flags are never set")
	}
}
