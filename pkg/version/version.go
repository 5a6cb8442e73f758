// Package version models class file versions and the version ranges in
// which JVM features are available.
package version

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PreviewMinor is the minor version used by preview-feature class files.
const PreviewMinor = 0xFFFF

// firstPreviewMajor is the first major version with preview releases (Java 12).
const firstPreviewMajor = 56

// Version is a class file version. Versions are totally ordered by
// (Major, Minor); preview releases sort above the release of the same major.
type Version struct {
	Major uint16
	Minor uint16
}

// Known class file versions.
var (
	V1_0_2 = Version{45, 3}
	V1_2   = Version{46, 0}
	V1_3   = Version{47, 0}
	V1_4   = Version{48, 0}
	V5     = Version{49, 0}
	V6     = Version{50, 0}
	V7     = Version{51, 0}
	V8     = Version{52, 0}
	V9     = Version{53, 0}
	V10    = Version{54, 0}
	V11    = Version{55, 0}
	V12    = Version{56, 0}
	V13    = Version{57, 0}
	V14    = Version{58, 0}
	V15    = Version{59, 0}
	V16    = Version{60, 0}
	V17    = Version{61, 0}
	V18    = Version{62, 0}
	V19    = Version{63, 0}
	V20    = Version{64, 0}
	V21    = Version{65, 0}
	V22    = Version{66, 0}
	V23    = Version{67, 0}
	V24    = Version{68, 0}
	V25    = Version{69, 0}

	// Never sorts above every real version and marks open-ended ranges.
	Never = Version{0xFFFF, 0xFFFF}
)

// Default is the target used when neither source nor configuration names one.
var Default = V8

// Known returns every named release version in ascending order.
func Known() []Version {
	return []Version{
		V1_0_2, V1_2, V1_3, V1_4, V5, V6, V7, V8, V9, V10, V11, V12, V13,
		V14, V15, V16, V17, V18, V19, V20, V21, V22, V23, V24, V25,
	}
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// AtLeast reports whether v sorts at or after o.
func (v Version) AtLeast(o Version) bool { return v.Compare(o) >= 0 }

// IsPreview reports whether v is a preview release.
func (v Version) IsPreview() bool {
	return v != Never && v.Minor == PreviewMinor && v.Major >= firstPreviewMajor
}

// Preview returns the preview release of v's major version.
func (v Version) Preview() Version {
	return Version{Major: v.Major, Minor: PreviewMinor}
}

// Release returns the non-preview release of v's major version.
func (v Version) Release() Version {
	if v.IsPreview() {
		return Version{Major: v.Major}
	}
	return v
}

// Java returns the Java SE release number for v (1 for 1.0.2 .. 1.4).
func (v Version) Java() int {
	if v.Major < V5.Major {
		return 1
	}
	return int(v.Major) - 44
}

func (v Version) String() string {
	if v == Never {
		return "never"
	}
	if v.IsPreview() {
		return fmt.Sprintf("%d-preview", v.Java())
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Min returns the lower of a and b.
func Min(a, b Version) Version {
	if a.Less(b) {
		return a
	}
	return b
}

// Max returns the higher of a and b.
func Max(a, b Version) Version {
	if a.Less(b) {
		return b
	}
	return a
}

// Parse accepts class file versions ("52", "52.0", "52.65535"), Java
// release names ("1.8", "8", "V8") and preview releases ("17-preview").
func Parse(s string) (Version, error) {
	text := strings.TrimSpace(s)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "V"), "v")
	if text == "" {
		return Version{}, fmt.Errorf("version: empty version")
	}

	if rel, ok := strings.CutSuffix(text, "-preview"); ok {
		v, err := Parse(rel)
		if err != nil {
			return Version{}, err
		}
		if v.Major < firstPreviewMajor {
			return Version{}, fmt.Errorf("version: %s has no preview release", v)
		}
		return v.Preview(), nil
	}

	majorText, minorText, hasMinor := strings.Cut(text, ".")
	major, err := strconv.ParseUint(majorText, 10, 16)
	if err != nil {
		return Version{}, fmt.Errorf("version: invalid version %q: %w", s, err)
	}

	// 1.x release names
	if major == 1 && hasMinor {
		n, err := strconv.ParseUint(minorText, 10, 16)
		if err != nil {
			return Version{}, fmt.Errorf("version: invalid version %q: %w", s, err)
		}
		if n <= 1 {
			return V1_0_2, nil
		}
		if n > math.MaxUint16-44 {
			return Version{}, fmt.Errorf("version: unknown release %q", s)
		}
		return Version{Major: uint16(44 + n)}, nil
	}

	// bare Java release number
	if !hasMinor && major < uint64(V1_0_2.Major) {
		if major < 5 {
			return Version{}, fmt.Errorf("version: unknown release %q", s)
		}
		return Version{Major: uint16(44 + major)}, nil
	}

	v := Version{Major: uint16(major)}
	if hasMinor {
		minor, err := strconv.ParseUint(minorText, 10, 16)
		if err != nil {
			return Version{}, fmt.Errorf("version: invalid version %q: %w", s, err)
		}
		v.Minor = uint16(minor)
	}
	if v.Less(V1_0_2) {
		return Version{}, fmt.Errorf("version: %s predates 45.3", v)
	}
	if v.Minor == PreviewMinor && v.Major < firstPreviewMajor {
		return Version{}, fmt.Errorf("version: %d has no preview release", v.Major)
	}
	return v, nil
}

// MustParse is Parse for tables and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
