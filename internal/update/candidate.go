package update

import (
	"path"
	"regexp"
	"strings"
	"time"
)

// Channel is a release track. Official, Beta and All are valid subscriptions;
// candidates are tagged Official, Beta or Other.
type Channel int

const (
	// ChannelOfficial tracks final releases from the "latest" endpoint.
	ChannelOfficial Channel = iota
	// ChannelBeta tracks pre-releases.
	ChannelBeta
	// ChannelAll considers every release regardless of its tag.
	ChannelAll
	// ChannelOther tags assets built for a variant no subscription names.
	ChannelOther
)

// String returns the configuration spelling of the channel.
func (c Channel) String() string {
	switch c {
	case ChannelOfficial:
		return "official"
	case ChannelBeta:
		return "beta"
	case ChannelAll:
		return "all"
	case ChannelOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseChannel maps a configuration value to a subscription channel. The
// long legacy names are accepted too. ok is false for anything else.
func ParseChannel(s string) (Channel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "official", "official_version", "stable":
		return ChannelOfficial, true
	case "beta", "beta_release_version", "prerelease":
		return ChannelBeta, true
	case "all", "all_version":
		return ChannelAll, true
	default:
		return ChannelOfficial, false
	}
}

// usesListEndpoint reports whether the channel reads the release list
// rather than the single latest release.
func (c Channel) usesListEndpoint() bool {
	return c == ChannelBeta || c == ChannelAll
}

// Candidate is one installable asset of one release, tagged with a channel.
type Candidate struct {
	VersionName string
	Channel     Channel
	CreatedAt   time.Time
	Note        string
	DownloadURL string
	AssetName   string
	ReleaseURL  string
}

// Result converts the candidate into the outward-facing answer.
func (c Candidate) Result() Result {
	return Result{
		VersionName: c.VersionName,
		Changelog:   c.Note,
		DownloadURL: c.DownloadURL,
		AssetName:   c.AssetName,
		Channel:     c.Channel,
		PublishedAt: c.CreatedAt,
		ReleaseURL:  c.ReleaseURL,
	}
}

// DefaultAssetExtensions are the installable artifact types recognised when
// no explicit list is configured.
var DefaultAssetExtensions = []string{".apk", ".tar.gz", ".tgz", ".zip"}

// variantMarkers maps lower-cased name tokens to the channel they imply.
var variantMarkers = map[string]Channel{
	"official":   ChannelOfficial,
	"release":    ChannelOfficial,
	"stable":     ChannelOfficial,
	"beta":       ChannelBeta,
	"pre":        ChannelBeta,
	"prerelease": ChannelBeta,
	"rc":         ChannelBeta,
	"releasea":   ChannelOther,
	"nightly":    ChannelOther,
	"dev":        ChannelOther,
}

var assetVersionRegex = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[\w.]+)?`)

// AssetMatcher decides which release assets are installable and derives the
// channel and version of each one from its file name.
type AssetMatcher struct {
	// Prefix, when set, must start the asset name (case-insensitive).
	Prefix string
	// Extensions lists accepted suffixes such as ".apk" or ".tar.gz".
	Extensions []string
}

// DefaultAssetMatcher accepts any asset with a default extension.
func DefaultAssetMatcher() AssetMatcher {
	return AssetMatcher{Extensions: DefaultAssetExtensions}
}

// stem returns the asset name without its extension, or ok=false when the
// asset is not installable.
func (m AssetMatcher) stem(name string) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	lower := strings.ToLower(name)
	if m.Prefix != "" && !strings.HasPrefix(lower, strings.ToLower(m.Prefix)) {
		return "", false
	}
	exts := m.Extensions
	if len(exts) == 0 {
		exts = DefaultAssetExtensions
	}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if strings.HasSuffix(lower, ext) && len(name) > len(ext) {
			return name[:len(name)-len(ext)], true
		}
	}
	return "", false
}

// variantOf returns the channel named by a marker token in the stem, if any.
// Tokens are separated by "_" or "-". Tokens outside the version win; after
// them the pre-release identifiers of the version are consulted, so both
// "app_beta_1.2.0" and "app-1.2.0-beta.1" are beta. The marker stays part
// of the version name.
func variantOf(stem string) (Channel, bool) {
	withoutVersion := assetVersionRegex.ReplaceAllString(stem, "")
	for _, token := range strings.FieldsFunc(withoutVersion, isTokenSeparator) {
		if ch, ok := variantMarkers[strings.ToLower(token)]; ok {
			return ch, true
		}
	}
	version := assetVersionRegex.FindString(stem)
	if i := strings.IndexByte(version, '-'); i >= 0 {
		for _, ident := range strings.FieldsFunc(version[i+1:], func(r rune) bool {
			return r == '.' || isTokenSeparator(r)
		}) {
			if ch, ok := variantMarkers[strings.ToLower(ident)]; ok {
				return ch, true
			}
		}
	}
	return ChannelOther, false
}

func isTokenSeparator(r rune) bool {
	return r == '_' || r == '-'
}

// versionOf returns the first version-looking token of the stem, or the
// release tag without its "v" prefix.
func versionOf(stem, tag string) string {
	if v := assetVersionRegex.FindString(stem); v != "" {
		return strings.TrimSuffix(v, ".")
	}
	return strings.TrimPrefix(strings.TrimSpace(tag), "v")
}

// expand turns one release into its installable candidates. fallback is the
// channel used for assets without a variant marker.
func (m AssetMatcher) expand(r RawRelease, fallback Channel) []Candidate {
	if r.Draft {
		return nil
	}
	var out []Candidate
	for _, a := range r.Assets {
		stem, ok := m.stem(a.Name)
		if !ok {
			continue
		}
		if len(m.Prefix) <= len(stem) {
			stem = stem[len(m.Prefix):]
		}
		ch, marked := variantOf(stem)
		if !marked {
			ch = fallback
		}
		var created time.Time
		if r.PublishedAt != nil {
			created = *r.PublishedAt
		}
		if a.CreatedAt != nil && !a.CreatedAt.IsZero() {
			created = *a.CreatedAt
		}
		out = append(out, Candidate{
			VersionName: versionOf(stem, r.TagName),
			Channel:     ch,
			CreatedAt:   created,
			Note:        r.Body,
			DownloadURL: a.BrowserDownloadURL,
			AssetName:   path.Base(a.Name),
			ReleaseURL:  r.HTMLURL,
		})
	}
	return out
}
