package update

import (
	"errors"
	"reflect"
	"testing"

	apperrors "relcheck/internal/errors"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantMajor int
		wantMinor int
		wantPatch int
		wantPre   []string
		wantErr   bool
	}{
		{
			name:      "simple version",
			input:     "1.2.3",
			wantMajor: 1, wantMinor: 2, wantPatch: 3,
		},
		{
			name:      "version with prerelease",
			input:     "1.2.3-beta.1",
			wantMajor: 1, wantMinor: 2, wantPatch: 3,
			wantPre: []string{"beta", "1"},
		},
		{
			name:      "underscore identifier",
			input:     "3.0.0-release_a.7",
			wantMajor: 3, wantMinor: 0, wantPatch: 0,
			wantPre: []string{"release_a", "7"},
		},
		{
			name:      "zero version",
			input:     "0.0.0",
			wantMajor: 0, wantMinor: 0, wantPatch: 0,
		},
		{
			name:      "large numbers",
			input:     "100.200.300",
			wantMajor: 100, wantMinor: 200, wantPatch: 300,
		},
		{name: "v prefix", input: "v1.2.3", wantErr: true},
		{name: "missing patch", input: "1.2", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "letters", input: "abc", wantErr: true},
		{name: "extra parts", input: "1.2.3.4", wantErr: true},
		{name: "hyphen in prerelease", input: "1.2.3-rc-1", wantErr: true},
		{name: "build metadata", input: "1.2.3+build", wantErr: true},
		{name: "trailing space", input: "1.2.3 ", wantErr: true},
		{name: "empty prerelease", input: "1.2.3-", wantErr: true},
		{name: "overflowing major", input: "99999999999999999999.0.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVersion(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseVersion(%q) expected error, got %+v", tt.input, v)
				}
				if !errors.Is(err, ErrInvalidVersion) {
					t.Errorf("error should wrap ErrInvalidVersion: %v", err)
				}
				if !apperrors.IsCode(err, apperrors.CodeInvalidVersion) {
					t.Errorf("error code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeInvalidVersion)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q) unexpected error: %v", tt.input, err)
			}
			if v.Major != tt.wantMajor || v.Minor != tt.wantMinor || v.Patch != tt.wantPatch {
				t.Errorf("triple = %d.%d.%d, want %d.%d.%d", v.Major, v.Minor, v.Patch, tt.wantMajor, tt.wantMinor, tt.wantPatch)
			}
			if !reflect.DeepEqual(v.PreRelease, tt.wantPre) {
				t.Errorf("PreRelease = %q, want %q", v.PreRelease, tt.wantPre)
			}
			if v.Raw != tt.input {
				t.Errorf("Raw = %q, want %q", v.Raw, tt.input)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	tests := []struct {
		v    Version
		want string
	}{
		{Version{Major: 1, Minor: 2, Patch: 3}, "1.2.3"},
		{Version{Major: 1, PreRelease: []string{"alpha", "2"}}, "1.0.0-alpha.2"},
		{Version{}, "0.0.0"},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"equal", "1.0.0", "1.0.0", 0},
		{"major greater", "2.0.0", "1.9.9", 1},
		{"major less", "1.0.0", "2.0.0", -1},
		{"minor greater", "1.2.0", "1.1.9", 1},
		{"minor less", "1.1.0", "1.2.0", -1},
		{"patch greater", "1.0.2", "1.0.1", 1},
		{"patch numeric not lexical", "1.0.10", "1.0.9", 1},
		{"release beats prerelease", "1.2.3", "1.2.3-beta.1", 1},
		{"prerelease below release", "1.2.3-beta.1", "1.2.3", -1},
		{"prerelease equal", "1.0.0-beta", "1.0.0-beta", 0},
		{"numeric identifiers numerically", "1.2.3-2", "1.2.3-10", -1},
		{"numeric identifiers with leading zeros", "1.2.3-007", "1.2.3-7", 0},
		{"shorter identifier list loses", "1.2.3-alpha", "1.2.3-alpha.1", -1},
		{"longer identifier list wins", "1.2.3-alpha.1", "1.2.3-alpha", 1},
		{"alpha before beta", "1.0.0-alpha", "1.0.0-beta", -1},
		{"mixed pair compared as strings", "1.0.0-2", "1.0.0-beta", -1},
		{"mixed pair string order", "1.0.0-10a", "1.0.0-9", -1},
		{"beta counter", "1.0.0-beta.11", "1.0.0-beta.2", 1},
		{"long numeric counter", "1.0.0-123456789012345678901", "1.0.0-99", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := MustParseVersion(tt.a)
			b := MustParseVersion(tt.b)
			if got := Compare(a, b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(b, a); got != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestCompareIsTotalOrderOnSample(t *testing.T) {
	sample := []string{
		"0.9.0", "1.0.0-alpha", "1.0.0-alpha.1", "1.0.0-alpha.beta",
		"1.0.0-beta", "1.0.0-beta.2", "1.0.0-beta.11", "1.0.0-rc.1",
		"1.0.0", "1.0.1-2", "1.0.1-10", "1.0.1", "1.1.0", "2.0.0",
	}
	versions := make([]Version, len(sample))
	for i, s := range sample {
		versions[i] = MustParseVersion(s)
	}

	for i, a := range versions {
		if Compare(a, a) != 0 {
			t.Errorf("Compare(%s, %s) should be 0", a, a)
		}
		for j, b := range versions {
			ab, ba := Compare(a, b), Compare(b, a)
			if ab != -ba {
				t.Errorf("antisymmetry broken for %s, %s: %d vs %d", a, b, ab, ba)
			}
			// the sample is listed in ascending order
			want := compareInt(i, j)
			if ab != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", a, b, ab, want)
			}
			for _, c := range versions {
				if ab < 0 && Compare(b, c) < 0 && Compare(a, c) >= 0 {
					t.Errorf("transitivity broken: %s < %s < %s", a, b, c)
				}
			}
		}
	}
}

func TestCompareVersionsSurfacesParseErrors(t *testing.T) {
	if _, err := CompareVersions("v1.2.3", "1.2.3"); !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("expected invalid version error for left side, got %v", err)
	}
	if _, err := CompareVersions("1.2.3", "1.2"); !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("expected invalid version error for right side, got %v", err)
	}

	got, err := CompareVersions("1.1.0", "1.0.0")
	if err != nil {
		t.Fatalf("CompareVersions() error: %v", err)
	}
	if got != 1 {
		t.Fatalf("CompareVersions(1.1.0, 1.0.0) = %d, want 1", got)
	}
}

func TestVersionHelpers(t *testing.T) {
	v1 := MustParseVersion("1.0.0")
	v2 := MustParseVersion("2.0.0-rc.1")

	if !v1.LessThan(v2) {
		t.Error("1.0.0 should be less than 2.0.0-rc.1")
	}
	if !v2.GreaterThan(v1) {
		t.Error("2.0.0-rc.1 should be greater than 1.0.0")
	}
	if !v1.Equal(v1) || v1.Equal(v2) {
		t.Error("Equal() mismatch")
	}
	if v1.IsPreRelease() || !v2.IsPreRelease() {
		t.Error("IsPreRelease() mismatch")
	}
}

func TestMustParseVersionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustParseVersion should panic on invalid input")
		}
	}()
	MustParseVersion("not-a-version")
}
