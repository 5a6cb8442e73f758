package diag

import "github.com/chazu/jasm/pkg/version"

// CheckSupported reports a version error when r is unavailable at v and a
// deprecation warning when it is deprecated there. It returns false only in
// the first case.
func (l *Log) CheckSupported(what string, r version.Range, v version.Version) bool {
	switch r.Status(v) {
	case version.Unsupported:
		l.Errorf(VersionGate, "%s requires %s; target is %s", what, describeRange(r), v)
		return false
	case version.Deprecated:
		l.Warnf(DeprecatedUse, VersionGate, "%s is deprecated since %s", what, r.DeprecatedAt())
	}
	return true
}

func describeRange(r version.Range) string {
	if r.End() == version.Never {
		return "version " + r.Start().String() + " or later"
	}
	return "a version in [" + r.Start().String() + ", " + r.End().String() + ")"
}
