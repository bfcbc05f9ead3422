package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "relcheck/internal/errors"
	"relcheck/internal/history"
	"relcheck/internal/ui"
	"relcheck/internal/update"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitTimeout = 3
)

// exitCodeFor maps a check error to the process exit status.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeTimeout:
		return exitTimeout
	case apperrors.CodeInvalidVersion, apperrors.CodeConfigurationError:
		return exitUsage
	default:
		return exitFailure
	}
}

type jsonReport struct {
	Status         string       `json:"status"`
	Channel        string       `json:"channel"`
	CurrentVersion string       `json:"current_version"`
	CheckedAt      *time.Time   `json:"checked_at,omitempty"`
	Cached         bool         `json:"cached,omitempty"`
	Release        *jsonRelease `json:"release,omitempty"`
	Error          *jsonError   `json:"error,omitempty"`
}

type jsonRelease struct {
	Version     string     `json:"version"`
	Channel     string     `json:"channel"`
	AssetName   string     `json:"asset_name,omitempty"`
	DownloadURL string     `json:"download_url"`
	ReleaseURL  string     `json:"release_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Changelog   string     `json:"changelog,omitempty"`
}

type jsonError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

func newJSONRelease(res update.Result) *jsonRelease {
	r := &jsonRelease{
		Version:     res.VersionName,
		Channel:     res.Channel.String(),
		AssetName:   res.AssetName,
		DownloadURL: res.DownloadURL,
		ReleaseURL:  res.ReleaseURL,
		Changelog:   res.Changelog,
	}
	if !res.PublishedAt.IsZero() {
		published := res.PublishedAt
		r.PublishedAt = &published
	}
	return r
}

func buildJSONReport(channel update.Channel, current string, outcome update.Outcome, cached bool, err error) jsonReport {
	rep := jsonReport{
		Channel:        channel.String(),
		CurrentVersion: strings.TrimSpace(current),
		Cached:         cached,
	}
	if err != nil {
		rep.Status = history.StatusFailed
		rep.Error = &jsonError{
			Code:       string(apperrors.CodeOf(err)),
			Message:    err.Error(),
			HTTPStatus: update.StatusCodeOf(err),
		}
		return rep
	}
	rep.Status = outcome.Status.String()
	if !outcome.CheckedAt.IsZero() {
		checked := outcome.CheckedAt
		rep.CheckedAt = &checked
	}
	if outcome.UpdateAvailable() {
		rep.Release = newJSONRelease(outcome.Result)
	}
	return rep
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes the answer of a check. Failures go to errW; an up to
// date result is an ordinary line on w.
func printReport(w, errW io.Writer, outcome update.Outcome, err error, format string, width int, cached bool) {
	if err != nil {
		_, _ = fmt.Fprintf(errW, "Error: %s\n", ui.ErrorMessage(err))
		return
	}
	_, _ = fmt.Fprintln(w, ui.RenderOutcome(outcome, format, width))
	if cached {
		_, _ = fmt.Fprintf(w, "(cached result from %s)\n", outcome.CheckedAt.Local().Format(time.DateTime))
	}
}

// printTagResult writes the answer of a by-tag lookup.
func printTagResult(w, errW io.Writer, tag string, res update.Result, found bool, format string, width int) {
	if !found {
		_, _ = fmt.Fprintf(errW, "Error: no installable release found for tag %q\n", tag)
		return
	}
	outcome := update.Outcome{Status: update.StatusUpdateAvailable, Result: res}
	rendered := ui.RenderOutcome(outcome, format, width)
	// the installed version plays no part in a tag lookup
	lines := strings.SplitN(rendered, "\n", 2)
	header := fmt.Sprintf("Release %s (%s)", res.VersionName, res.Channel)
	if len(lines) == 2 {
		_, _ = fmt.Fprintf(w, "%s\n%s\n", header, lines[1])
		return
	}
	_, _ = fmt.Fprintln(w, header)
}

var (
	styleTableHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleTableCell   = lipgloss.NewStyle().Padding(0, 1)
)

// printHistory lists recorded checks, newest first.
func printHistory(w io.Writer, entries []history.Entry, format string) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No checks recorded yet.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := e.LatestVersion
		if e.ErrorCode != "" {
			result = e.ErrorCode
		}
		if result == "" {
			result = "-"
		}
		repository := e.Repository
		if repository == "" {
			repository = "-"
		}
		rows = append(rows, []string{
			e.CheckedAt.Local().Format(time.DateTime),
			repository,
			e.Channel,
			e.CurrentVersion,
			e.Status,
			result,
		})
	}

	border := lipgloss.RoundedBorder()
	if strings.EqualFold(strings.TrimSpace(format), ui.FormatPlain) {
		border = lipgloss.HiddenBorder()
	}
	t := table.New().
		Border(border).
		Headers("CHECKED", "REPOSITORY", "CHANNEL", "INSTALLED", "STATUS", "RESULT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			return styleTableCell
		})
	// a hidden border still renders an empty top line
	_, _ = fmt.Fprintln(w, strings.TrimPrefix(t.String(), "\n"))
}
