package version

import (
	"errors"
	"fmt"
)

// MaxRangeDepth bounds how many times ranges may be intersected. Deeper
// compositions come from runaway alias or macro chains.
const MaxRangeDepth = 16

// ErrStructural marks build-time consistency violations in version and
// instruction tables. These are fatal before any assembly begins.
var ErrStructural = errors.New("structural inconsistency")

// Status is the availability of a feature at a given version.
type Status int

const (
	Unsupported Status = iota
	Supported
	Deprecated
)

func (s Status) String() string {
	switch s {
	case Supported:
		return "supported"
	case Deprecated:
		return "deprecated"
	default:
		return "unsupported"
	}
}

// Range is the span of versions in which a feature is available.
//
// A version v is supported when v < End and either v >= Start or v is a
// preview release at or after Preview. Versions in [Deprecate, End) are
// supported but deprecated.
type Range struct {
	name      string
	preview   Version
	start     Version
	deprecate Version
	end       Version
	depth     int
}

// NewRange validates preview <= start <= deprecate <= end.
func NewRange(name string, preview, start, deprecate, end Version) (Range, error) {
	r := Range{name: name, preview: preview, start: start, deprecate: deprecate, end: end}
	if err := r.validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// MustRange is NewRange for package-level tables; a violation panics.
func MustRange(name string, preview, start, deprecate, end Version) Range {
	r, err := NewRange(name, preview, start, deprecate, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Since returns an open-ended range starting at start.
func Since(name string, start Version) Range {
	return MustRange(name, start, start, Never, Never)
}

// Between returns a range that is deprecated at deprecate and removed at end.
func Between(name string, start, deprecate, end Version) Range {
	return MustRange(name, start, start, deprecate, end)
}

// PreviewSince returns an open-ended range available as a preview feature
// from preview and as a standard feature from start.
func PreviewSince(name string, preview, start Version) Range {
	return MustRange(name, preview, start, Never, Never)
}

func (r Range) validate() error {
	if r.preview.Compare(r.start) > 0 || r.start.Compare(r.deprecate) > 0 || r.deprecate.Compare(r.end) > 0 {
		return fmt.Errorf("%w: feature %s: range %s/%s/%s/%s is not ordered",
			ErrStructural, r.name, r.preview, r.start, r.deprecate, r.end)
	}
	return nil
}

func (r Range) Name() string { return r.name }

func (r Range) Start() Version { return r.start }

func (r Range) End() Version { return r.end }

func (r Range) DeprecatedAt() Version { return r.deprecate }

func (r Range) PreviewAt() Version { return r.preview }

// Depth is the number of intersections that produced r.
func (r Range) Depth() int { return r.depth }

// IsZero reports whether r is the zero Range (no bounds set).
func (r Range) IsZero() bool { return r == Range{} }

// IsSupported reports whether v can use the feature.
func (r Range) IsSupported(v Version) bool {
	if !v.Less(r.end) {
		return false
	}
	if v.AtLeast(r.start) {
		return true
	}
	return v.IsPreview() && v.AtLeast(r.preview)
}

// Status classifies v against the range.
func (r Range) Status(v Version) Status {
	if !r.IsSupported(v) {
		return Unsupported
	}
	if v.AtLeast(r.deprecate) {
		return Deprecated
	}
	return Supported
}

// Within reports whether r is no weaker than other, that is every version
// supported by r is also supported by other.
func (r Range) Within(other Range) bool {
	return r.start.AtLeast(other.start) && r.preview.AtLeast(other.preview) &&
		!other.end.Less(r.end)
}

// Intersect returns the tightest range satisfying both r and o. The result
// is one level deeper than the deeper input.
func (r Range) Intersect(o Range) (Range, error) {
	depth := max(r.depth, o.depth) + 1
	name := r.name
	if o.name != "" && o.name != r.name {
		name = r.name + "&" + o.name
	}
	if depth > MaxRangeDepth {
		return Range{}, fmt.Errorf("%w: feature %s: range nesting depth %d exceeds %d",
			ErrStructural, name, depth, MaxRangeDepth)
	}

	out := Range{
		name:      name,
		start:     Max(r.start, o.start),
		end:       Min(r.end, o.end),
		deprecate: Min(r.deprecate, o.deprecate),
		preview:   Max(r.preview, o.preview),
		depth:     depth,
	}
	// an empty intersection collapses to [start, start)
	if out.end.Less(out.start) {
		out.end = out.start
	}
	out.deprecate = Min(Max(out.deprecate, out.start), out.end)
	out.preview = Min(out.preview, out.start)
	return out, nil
}

func (r Range) String() string {
	s := fmt.Sprintf("%s[%s,%s)", r.name, r.start, r.end)
	if r.deprecate != r.end {
		s += fmt.Sprintf(" deprecated %s", r.deprecate)
	}
	if r.preview != r.start {
		s += fmt.Sprintf(" preview %s", r.preview)
	}
	return s
}

// JVM features gating instructions and directives.
var (
	Always          = Since("always", V1_0_2)
	Jsr             = Between("jsr", V1_0_2, V6, V7)
	LegacyMnemonic  = Between("legacy-mnemonic", V1_0_2, V1_0_2, Never)
	LdcClass        = Since("ldc-class", V5)
	InvokeDynamic   = Since("invokedynamic", V7)
	LdcMethodHandle = Since("ldc-method-handle", V7)
	InterfaceStatic = Since("interface-static-invoke", V8)
	DynamicConstant = Since("dynamic-constant", V11)
	StackMapTable   = Since("stack-map-table", V6)
)
