package update

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	apperrors "relcheck/internal/errors"
)

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name               string     `json:"name"`
	BrowserDownloadURL string     `json:"browser_download_url"`
	ContentType        string     `json:"content_type"`
	Size               int64      `json:"size"`
	CreatedAt          *time.Time `json:"created_at"`
}

// RawRelease is a release object as served by the GitHub releases API.
type RawRelease struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	HTMLURL     string     `json:"html_url"`
	PublishedAt *time.Time `json:"published_at"`
	Prerelease  bool       `json:"prerelease"`
	Draft       bool       `json:"draft"`
	Assets      []Asset    `json:"assets"`
}

func (r RawRelease) validate() error {
	if r.TagName == "" {
		return fmt.Errorf("release is missing tag_name")
	}
	if r.PublishedAt == nil && !r.Draft {
		return fmt.Errorf("release %s is missing published_at", r.TagName)
	}
	for i, a := range r.Assets {
		if a.Name == "" {
			return fmt.Errorf("release %s asset %d is missing name", r.TagName, i)
		}
		if a.BrowserDownloadURL == "" {
			return fmt.Errorf("release %s asset %s is missing browser_download_url", r.TagName, a.Name)
		}
	}
	return nil
}

// Feed is one decoded feed response. The concrete type depends on the
// endpoint the channel reads: LatestFeed or ListFeed.
type Feed interface {
	// Candidates expands the feed into channel-tagged entries in feed order.
	Candidates(m AssetMatcher) []Candidate
	isFeed()
}

// LatestFeed is the single-object response of the "latest release" endpoint.
type LatestFeed struct {
	Release RawRelease
}

func (LatestFeed) isFeed() {}

// Candidates expands the release and keeps only official entries. Assets
// without a variant marker count as official on this endpoint.
func (f LatestFeed) Candidates(m AssetMatcher) []Candidate {
	var out []Candidate
	for _, c := range m.expand(f.Release, ChannelOfficial) {
		if c.Channel == ChannelOfficial {
			out = append(out, c)
		}
	}
	return out
}

// ListFeed is the array response of the release list endpoint.
type ListFeed struct {
	Releases       []RawRelease
	PreReleaseOnly bool
}

func (ListFeed) isFeed() {}

// Candidates expands every release, or only pre-releases when
// PreReleaseOnly is set.
func (f ListFeed) Candidates(m AssetMatcher) []Candidate {
	var out []Candidate
	for _, r := range f.Releases {
		if f.PreReleaseOnly && !r.Prerelease {
			continue
		}
		fallback := ChannelOfficial
		if r.Prerelease {
			fallback = ChannelBeta
		}
		out = append(out, m.expand(r, fallback)...)
	}
	return out
}

// DecodeFeed decodes a response body using the parse path of the channel:
// an object for official, an array for beta and all.
func DecodeFeed(body []byte, channel Channel) (Feed, error) {
	switch channel {
	case ChannelOfficial:
		release, err := decodeRelease(body)
		if err != nil {
			return nil, err
		}
		return LatestFeed{Release: release}, nil
	case ChannelBeta, ChannelAll:
		releases, err := decodeReleaseList(body)
		if err != nil {
			return nil, err
		}
		return ListFeed{Releases: releases, PreReleaseOnly: channel == ChannelBeta}, nil
	default:
		return nil, apperrors.New(apperrors.CodeConfigurationError,
			fmt.Sprintf("channel %s has no feed", channel), nil)
	}
}

func decodeRelease(body []byte) (RawRelease, error) {
	var release RawRelease
	if err := decodeStrict(body, '{', &release); err != nil {
		return RawRelease{}, feedParseError("decode release", err)
	}
	if err := release.validate(); err != nil {
		return RawRelease{}, feedParseError("invalid release", err)
	}
	return release, nil
}

func decodeReleaseList(body []byte) ([]RawRelease, error) {
	var releases []RawRelease
	if err := decodeStrict(body, '[', &releases); err != nil {
		return nil, feedParseError("decode release list", err)
	}
	for _, r := range releases {
		if err := r.validate(); err != nil {
			return nil, feedParseError("invalid release", err)
		}
	}
	return releases, nil
}

// decodeStrict rejects a body whose top-level JSON value is not the expected
// kind; a null or an array where an object is expected is a shape error.
func decodeStrict(body []byte, open byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty body")
	}
	if trimmed[0] != open {
		want := "object"
		if open == '[' {
			want = "array"
		}
		return fmt.Errorf("expected a JSON %s", want)
	}
	return json.Unmarshal(trimmed, v)
}

func feedParseError(msg string, err error) error {
	return apperrors.New(apperrors.CodeFeedParse, msg, err)
}

// Normalize decodes a feed body for the channel and returns its candidates
// sorted by creation time, newest first. Entries with equal timestamps keep
// their feed order.
func Normalize(body []byte, channel Channel, m AssetMatcher) ([]Candidate, error) {
	feed, err := DecodeFeed(body, channel)
	if err != nil {
		return nil, err
	}
	candidates := feed.Candidates(m)
	sortNewestFirst(candidates)
	return candidates, nil
}

func sortNewestFirst(candidates []Candidate) {
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
