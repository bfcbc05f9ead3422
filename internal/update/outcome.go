package update

import (
	"errors"
	"fmt"
	"time"
)

// Result describes the release a check resolved to.
type Result struct {
	VersionName string
	Changelog   string
	DownloadURL string
	AssetName   string

	Channel     Channel
	PublishedAt time.Time
	ReleaseURL  string
}

// Status distinguishes the two successful outcomes of a check.
type Status int

const (
	// StatusUpToDate means no candidate is newer than the installed version.
	StatusUpToDate Status = iota
	// StatusUpdateAvailable means Outcome.Result holds a newer release.
	StatusUpdateAvailable
)

// String returns a stable name for logs and persisted history.
func (s Status) String() string {
	switch s {
	case StatusUpdateAvailable:
		return "update_available"
	case StatusUpToDate:
		return "up_to_date"
	default:
		return "unknown"
	}
}

// Outcome is the answer of a check that did not fail. Being up to date is an
// ordinary outcome, not an error.
type Outcome struct {
	Status         Status
	Result         Result
	Channel        Channel
	CurrentVersion Version
	CheckedAt      time.Time
	Candidates     int
}

// UpdateAvailable reports whether Result is populated.
func (o Outcome) UpdateAvailable() bool {
	return o.Status == StatusUpdateAvailable
}

// Report carries the single delivery of an asynchronous check.
type Report struct {
	Outcome Outcome
	Err     error
}

// StatusError records a non-success transport response.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCodeOf returns the transport status carried by a fetch error, or 0.
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
