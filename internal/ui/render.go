package ui

import (
	"fmt"
	"strings"

	apperrors "relcheck/internal/errors"
	"relcheck/internal/update"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/cellbuf"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

const (
	FormatRich  = "rich"
	FormatLight = "light"
	FormatDark  = "dark"
	FormatPlain = "plain"
)

// hasDarkBackground is swapped in tests.
var hasDarkBackground = termenv.HasDarkBackground

// markdownStyle maps an output format to a glamour standard style. The
// second result is false for formats that skip markdown rendering.
func markdownStyle(format string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatPlain:
		return "", false
	case FormatLight:
		return "light", true
	case FormatDark:
		return "dark", true
	default:
		if hasDarkBackground() {
			return "dark", true
		}
		return "light", true
	}
}

// NewMarkdownRenderer returns a function rendering changelog markdown for
// the given output format and width. Rendering failures fall back to plain
// word wrapping.
func NewMarkdownRenderer(format string, width int) func(string) string {
	if width <= 0 {
		width = 80
	}
	fallback := func(input string) string {
		return wordwrap.String(strings.TrimSpace(input), width)
	}

	style, ok := markdownStyle(format)
	if !ok {
		return fallback
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	return func(input string) string {
		if strings.TrimSpace(input) == "" {
			return ""
		}
		out, err := renderer.Render(input)
		if err != nil {
			return fallback(input)
		}
		return strings.TrimSpace(out)
	}
}

// Truncate shortens s to width display cells, keeping escape sequences
// intact.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// ErrorMessage describes a failed check for people.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidVersion:
		return fmt.Sprintf("The installed version is not a valid version string (%v).", err)
	case apperrors.CodeTimeout:
		return "Checking for updates timed out. Try again later."
	case apperrors.CodeCanceled:
		return "Update check canceled."
	case apperrors.CodeFeedFetch:
		switch status := update.StatusCodeOf(err); status {
		case 0:
			return "Could not reach the release server. Check your network connection."
		case 403, 429:
			return fmt.Sprintf("The release server refused the request (HTTP %d); the API rate limit may be exhausted. Set update.token to raise it.", status)
		case 404:
			return "No release was found for the configured repository (HTTP 404)."
		default:
			return fmt.Sprintf("The release server answered with HTTP %d.", status)
		}
	case apperrors.CodeFeedParse:
		return "The release feed could not be read."
	case apperrors.CodeConfigurationError:
		return fmt.Sprintf("Configuration problem: %v", err)
	default:
		return fmt.Sprintf("Update check failed: %v", err)
	}
}

// OutcomeSummary is the one-line answer for a successful check.
func OutcomeSummary(o update.Outcome) string {
	if !o.UpdateAvailable() {
		return fmt.Sprintf("You are on the latest %s version (%s).", o.Channel, o.CurrentVersion)
	}
	return fmt.Sprintf("Version %s is available on the %s channel (installed: %s).",
		o.Result.VersionName, o.Result.Channel, o.CurrentVersion)
}

// RenderOutcome formats a successful check for terminal output. Up to date
// renders as a single neutral line.
func RenderOutcome(o update.Outcome, format string, width int) string {
	plain := strings.EqualFold(strings.TrimSpace(format), FormatPlain)
	if !o.UpdateAvailable() {
		if plain {
			return OutcomeSummary(o)
		}
		return styleSuccess.Render("✔ ") + styleText.Render(OutcomeSummary(o))
	}

	res := o.Result
	var b strings.Builder
	if plain {
		b.WriteString(OutcomeSummary(o))
		b.WriteString("\n")
		writeField(&b, "Asset", res.AssetName, true, width)
		writeField(&b, "Download", res.DownloadURL, true, width)
		writeField(&b, "Release", res.ReleaseURL, true, width)
	} else {
		b.WriteString(styleVersion.Render("⬆ "+res.VersionName) + " " +
			styleMeta.Render(fmt.Sprintf("(%s, installed %s)", res.Channel, o.CurrentVersion)))
		b.WriteString("\n")
		writeField(&b, "Asset", res.AssetName, false, width)
		writeField(&b, "Download", res.DownloadURL, false, width)
		writeField(&b, "Release", res.ReleaseURL, false, width)
	}
	if notes := NewMarkdownRenderer(format, width)(res.Changelog); notes != "" {
		b.WriteString("\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// fieldWidth matches the label column of styleField.
const fieldWidth = 10

func writeField(b *strings.Builder, name, value string, plain bool, width int) {
	if strings.TrimSpace(value) == "" {
		return
	}
	value = wrapValue(value, width-fieldWidth)
	if plain {
		fmt.Fprintf(b, "%-*s%s\n", fieldWidth, name+":", value)
		return
	}
	b.WriteString(styleField.Render(name+":") + styleText.Render(value) + "\n")
}

// wrapValue hard-wraps long unbroken values such as URLs, indenting
// continuation lines under the label column.
func wrapValue(value string, limit int) string {
	if limit <= 0 || ansi.StringWidth(value) <= limit {
		return value
	}
	wrapped := cellbuf.Wrap(value, limit, "/-_")
	return strings.ReplaceAll(wrapped, "\n", "\n"+strings.Repeat(" ", fieldWidth))
}
