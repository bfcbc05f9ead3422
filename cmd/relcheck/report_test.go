package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "relcheck/internal/errors"
	"relcheck/internal/history"
	"relcheck/internal/update"

	"github.com/charmbracelet/x/ansi"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"timeout", apperrors.New(apperrors.CodeTimeout, "x", context.DeadlineExceeded), exitTimeout},
		{"wrapped timeout", fmt.Errorf("check: %w", apperrors.New(apperrors.CodeTimeout, "x", nil)), exitTimeout},
		{"invalid version", apperrors.New(apperrors.CodeInvalidVersion, "x", nil), exitUsage},
		{"config", apperrors.New(apperrors.CodeConfigurationError, "x", nil), exitUsage},
		{"fetch", apperrors.New(apperrors.CodeFeedFetch, "x", nil), exitFailure},
		{"parse", apperrors.New(apperrors.CodeFeedParse, "x", nil), exitFailure},
		{"canceled", apperrors.New(apperrors.CodeCanceled, "x", context.Canceled), exitFailure},
		{"plain", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.err); got != tt.want {
			t.Errorf("%s: exitCodeFor() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestBuildJSONReport(t *testing.T) {
	rep := buildJSONReport(update.ChannelOfficial, " 1.0.0 ", updateOutcome(), true, nil)
	if rep.Status != "update_available" || rep.Channel != "official" || rep.CurrentVersion != "1.0.0" {
		t.Fatalf("report = %+v", rep)
	}
	if !rep.Cached || rep.CheckedAt == nil || !rep.CheckedAt.Equal(testNow) {
		t.Fatalf("cached=%v checkedAt=%v", rep.Cached, rep.CheckedAt)
	}
	if rep.Release == nil || rep.Release.AssetName != "app_1.1.0.apk" || rep.Release.PublishedAt != nil {
		t.Fatalf("release = %+v", rep.Release)
	}
	if rep.Error != nil {
		t.Fatalf("unexpected error block %+v", rep.Error)
	}

	up := buildJSONReport(update.ChannelBeta, "2.0.0", upToDate(), false, nil)
	if up.Status != "up_to_date" || up.Release != nil {
		t.Fatalf("up to date report = %+v", up)
	}

	fetchErr := apperrors.New(apperrors.CodeFeedFetch, "fetch release feed",
		&update.StatusError{StatusCode: 502})
	failed := buildJSONReport(update.ChannelAll, "1.0.0", update.Outcome{}, false, fetchErr)
	if failed.Status != history.StatusFailed || failed.Error == nil {
		t.Fatalf("failed report = %+v", failed)
	}
	if failed.Error.Code != "feed_fetch" || failed.Error.HTTPStatus != 502 {
		t.Fatalf("error block = %+v", failed.Error)
	}
}

func TestNewJSONReleaseKeepsPublishedAt(t *testing.T) {
	res := updateOutcome().Result
	res.PublishedAt = testNow
	got := newJSONRelease(res)
	if got.PublishedAt == nil || !got.PublishedAt.Equal(testNow) {
		t.Fatalf("PublishedAt = %v", got.PublishedAt)
	}
}

func TestPrintReport(t *testing.T) {
	var out, errOut bytes.Buffer
	printReport(&out, &errOut, upToDate(), nil, "plain", 80, true)
	if !strings.HasPrefix(out.String(), "You are on the latest official version (1.0.0).\n") {
		t.Fatalf("stdout = %q", out.String())
	}
	if !strings.Contains(out.String(), "(cached result from ") {
		t.Errorf("cached note missing: %q", out.String())
	}

	out.Reset()
	timeout := apperrors.New(apperrors.CodeTimeout, "update check timed out after 1s", context.DeadlineExceeded)
	printReport(&out, &errOut, update.Outcome{}, timeout, "plain", 80, false)
	if out.Len() != 0 {
		t.Errorf("errors must not go to stdout: %q", out.String())
	}
	if !strings.HasPrefix(errOut.String(), "Error: ") || !strings.Contains(errOut.String(), "timed out") {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestPrintTagResult(t *testing.T) {
	res := updateOutcome().Result
	res.Channel = update.ChannelBeta
	res.VersionName = "1.2.0-beta.1"

	var out, errOut bytes.Buffer
	printTagResult(&out, &errOut, "v1.2.0-beta.1", res, true, "plain", 80)
	got := out.String()
	if !strings.HasPrefix(got, "Release 1.2.0-beta.1 (beta)\n") {
		t.Fatalf("stdout = %q", got)
	}
	if strings.Contains(got, "installed") {
		t.Errorf("tag lookups have no installed version: %q", got)
	}
	if !strings.Contains(got, "app_1.1.0.apk") {
		t.Errorf("asset line missing: %q", got)
	}
}

func TestPrintHistory(t *testing.T) {
	var empty bytes.Buffer
	printHistory(&empty, nil, "plain")
	if empty.String() != "No checks recorded yet.\n" {
		t.Fatalf("empty history = %q", empty.String())
	}

	entries := []history.Entry{
		{
			CheckedAt:      testNow,
			Repository:     "acme/app",
			Channel:        "official",
			CurrentVersion: "1.0.0",
			Status:         "update_available",
			LatestVersion:  "1.1.0",
		},
		{
			CheckedAt:      testNow.Add(-time.Hour),
			Channel:        "beta",
			CurrentVersion: "1.0.0",
			Status:         history.StatusFailed,
			ErrorCode:      "timeout",
		},
		{
			CheckedAt:      testNow.Add(-2 * time.Hour),
			Channel:        "all",
			CurrentVersion: "1.0.0",
			Status:         "up_to_date",
		},
	}
	for _, format := range []string{"plain", "rich"} {
		var out bytes.Buffer
		printHistory(&out, entries, format)
		got := ansi.Strip(out.String())
		lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
		if len(lines) < 4 {
			t.Fatalf("%s: expected header and three rows:\n%s", format, got)
		}
		for _, want := range []string{"CHECKED", "REPOSITORY", "acme/app", "INSTALLED", "1.1.0", "timeout", "up_to_date", "-"} {
			if !strings.Contains(got, want) {
				t.Errorf("%s: output missing %q:\n%s", format, want, got)
			}
		}
		if format == "plain" && strings.ContainsAny(got, "╭│") {
			t.Errorf("plain history should not draw borders:\n%s", got)
		}
	}
}
