package update

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "relcheck/internal/errors"
)

// ErrInvalidVersion is wrapped by every version parse failure.
var ErrInvalidVersion = errors.New("invalid version format")

// Version represents a parsed dotted version with an optional pre-release.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease []string
	Raw        string
}

// versionRegex must match the whole input; no "v" prefix, no build metadata.
var versionRegex = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-([\w.]+))?$`)

// ParseVersion parses "MAJOR.MINOR.PATCH" with an optional "-pre.release"
// suffix. Anything else is an error wrapping ErrInvalidVersion.
func ParseVersion(s string) (Version, error) {
	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return Version{}, invalidVersion(s, nil)
	}

	var nums [3]int
	for i := range nums {
		n, err := strconv.Atoi(matches[i+1])
		if err != nil {
			return Version{}, invalidVersion(s, err)
		}
		nums[i] = n
	}

	var pre []string
	if matches[4] != "" {
		pre = strings.Split(matches[4], ".")
	}

	return Version{
		Major:      nums[0],
		Minor:      nums[1],
		Patch:      nums[2],
		PreRelease: pre,
		Raw:        s,
	}, nil
}

// MustParseVersion is ParseVersion for constants known to be valid.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func invalidVersion(s string, cause error) error {
	err := fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	if cause != nil {
		err = fmt.Errorf("%w (%v)", err, cause)
	}
	return apperrors.New(apperrors.CodeInvalidVersion, "parse version", err)
}

// String returns the canonical form without a prefix.
func (v Version) String() string {
	base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.PreRelease) > 0 {
		return base + "-" + strings.Join(v.PreRelease, ".")
	}
	return base
}

// IsPreRelease reports whether the version carries a pre-release suffix.
func (v Version) IsPreRelease() bool {
	return len(v.PreRelease) > 0
}

// Compare returns -1, 0 or 1 as v is less than, equal to or greater than other.
//
// A release is greater than any pre-release of the same triple. Pre-release
// identifiers are compared pairwise: purely numeric pairs as integers,
// anything else as plain strings. When one list is a prefix of the other the
// shorter one is less.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return compareInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return compareInt(v.Minor, other.Minor)
	}
	if v.Patch != other.Patch {
		return compareInt(v.Patch, other.Patch)
	}
	return comparePreRelease(v.PreRelease, other.PreRelease)
}

// GreaterThan returns true if v > other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// LessThan returns true if v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// Equal returns true if v == other.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Compare is the package-level form of Version.Compare.
func Compare(a, b Version) int {
	return a.Compare(b)
}

// CompareVersions parses both strings and compares them. A parse failure on
// either side is returned as-is; it is never reported as an ordering.
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func comparePreRelease(a, b []string) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return 1
	case len(b) == 0:
		return -1
	}

	for i := 0; ; i++ {
		if i >= len(a) && i >= len(b) {
			return 0
		}
		if i >= len(a) {
			return -1
		}
		if i >= len(b) {
			return 1
		}
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
}

func compareIdentifier(a, b string) int {
	if isNumeric(a) && isNumeric(b) {
		return compareNumeric(a, b)
	}
	return strings.Compare(a, b)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// compareNumeric orders digit strings by value without converting them, so
// long build counters cannot overflow.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return compareInt(len(a), len(b))
	}
	return strings.Compare(a, b)
}
