// Package diag collects assembler diagnostics. Every detection site reports
// through a Log, which tracks error counts, enforces the flood threshold and
// mirrors each diagnostic to the jasm.diag logger.
package diag

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/tliron/commonlog"
)

// Severity orders diagnostics from informational to fatal.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Kind classifies what went wrong.
type Kind int

const (
	Structural Kind = iota
	Syntax
	TypeVerification
	VersionGate
	Unreachable
	Flood
	Label
	Limit
	Usage
)

var kindNames = [...]string{
	Structural:       "structural",
	Syntax:           "syntax",
	TypeVerification: "type",
	VersionGate:      "version",
	Unreachable:      "unreachable",
	Flood:            "flood",
	Label:            "label",
	Limit:            "limit",
	Usage:            "usage",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pos is a source position. Line is 1-based; 0 means unknown.
type Pos struct {
	File string
	Line int
}

func (p Pos) String() string {
	switch {
	case p.File == "" && p.Line == 0:
		return "<unknown>"
	case p.File == "":
		return fmt.Sprintf("line %d", p.Line)
	case p.Line == 0:
		return p.File
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Pos      Pos
	Severity Severity
	Kind     Kind
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// Err is a diagnostic carried as an error value.
type Err struct {
	Diagnostic
}

func (e *Err) Error() string { return e.Diagnostic.String() }

// Errorf builds a detached error diagnostic. Callers hand it to Log.Report.
func Errorf(kind Kind, format string, args ...any) *Err {
	return &Err{Diagnostic{Severity: Error, Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// ErrAborted is returned once the flood threshold has been crossed.
var ErrAborted = errors.New("diag: too many errors, assembly aborted")

// Class names a warning that can be switched on or off.
type Class string

const (
	UnusedLabel      Class = "unused-label"
	UnusedLocal      Class = "unused-local"
	DeprecatedUse    Class = "deprecated"
	FrameDivergence  Class = "frame-divergence"
	LimitBelowActual Class = "limit"
	UnreachableCode  Class = "unreachable"
)

// DefaultClasses are the warning classes enabled unless configured otherwise.
func DefaultClasses() map[Class]bool {
	return map[Class]bool{
		UnusedLabel:      false,
		UnusedLocal:      true,
		DeprecatedUse:    true,
		FrameDivergence:  true,
		LimitBelowActual: true,
		UnreachableCode:  true,
	}
}

// DefaultMaxErrors is the flood threshold when none is configured.
const DefaultMaxErrors = 25

// Log accumulates diagnostics for one assembly unit.
type Log struct {
	file      string
	line      int
	diags     []Diagnostic
	errors    int
	warnings  int
	method    int
	maxErrors int
	classes   map[Class]bool
	aborted   bool
	log       commonlog.Logger
}

// NewLog returns a log for file. A method may report maxErrors errors; the
// next one aborts the unit. maxErrors <= 0 disables the flood check.
func NewLog(file string, maxErrors int) *Log {
	return &Log{
		file:      file,
		maxErrors: maxErrors,
		classes:   DefaultClasses(),
		log:       commonlog.GetLogger("jasm.diag"),
	}
}

// SetClass enables or disables a warning class.
func (l *Log) SetClass(c Class, on bool) { l.classes[c] = on }

// Enabled reports whether warnings of class c are reported.
func (l *Log) Enabled(c Class) bool { return l.classes[c] }

// SetLine records the source line subsequent diagnostics attach to.
func (l *Log) SetLine(line int) { l.line = line }

// Pos returns the current position.
func (l *Log) Pos() Pos { return Pos{File: l.file, Line: l.line} }

// StartMethod resets the per-method error count.
func (l *Log) StartMethod() { l.method = 0 }

// MethodErrors is the number of errors since the last StartMethod.
func (l *Log) MethodErrors() int { return l.method }

// ErrorCount is the number of errors reported so far.
func (l *Log) ErrorCount() int { return l.errors }

// WarningCount is the number of warnings reported so far.
func (l *Log) WarningCount() int { return l.warnings }

// Aborted reports whether the flood threshold was crossed.
func (l *Log) Aborted() bool { return l.aborted }

// Diagnostics returns the reported diagnostics in report order.
func (l *Log) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), l.diags...)
}

// Report records d. A zero position is replaced with the current one.
func (l *Log) Report(d Diagnostic) {
	if d.Pos == (Pos{}) {
		d.Pos = l.Pos()
	}
	l.diags = append(l.diags, d)

	switch d.Severity {
	case Info:
		l.log.Debugf("%s", d)
	case Warning:
		l.warnings++
		l.log.Warningf("%s", d)
	default:
		l.errors++
		l.method++
		l.log.Errorf("%s", d)
	}
	if d.Severity == Fatal {
		l.aborted = true
	}

	if !l.aborted && l.maxErrors > 0 && l.method > l.maxErrors {
		l.aborted = true
		flood := Diagnostic{Pos: d.Pos, Severity: Fatal, Kind: Flood,
			Message: fmt.Sprintf("%d errors, giving up", l.errors)}
		l.diags = append(l.diags, flood)
		l.log.Criticalf("%s", flood)
	}
}

// ReportErr records err. *Err values keep their kind; anything else is a
// structural error. A nil err is ignored.
func (l *Log) ReportErr(err error) {
	if err == nil {
		return
	}
	var de *Err
	if errors.As(err, &de) {
		l.Report(de.Diagnostic)
		return
	}
	l.Report(Diagnostic{Severity: Error, Kind: Structural, Message: err.Error()})
}

// Errorf reports an error of the given kind at the current position.
func (l *Log) Errorf(kind Kind, format string, args ...any) {
	l.Report(Diagnostic{Severity: Error, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// ErrorAt reports an error at an explicit line.
func (l *Log) ErrorAt(line int, kind Kind, format string, args ...any) {
	l.Report(Diagnostic{Pos: Pos{File: l.file, Line: line}, Severity: Error, Kind: kind,
		Message: fmt.Sprintf(format, args...)})
}

// Warnf reports a warning of class c, if enabled.
func (l *Log) Warnf(c Class, kind Kind, format string, args ...any) {
	if !l.classes[c] {
		return
	}
	l.Report(Diagnostic{Severity: Warning, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// WarnAt reports a warning of class c at an explicit line, if enabled.
func (l *Log) WarnAt(line int, c Class, kind Kind, format string, args ...any) {
	if !l.classes[c] {
		return
	}
	l.Report(Diagnostic{Pos: Pos{File: l.file, Line: line}, Severity: Warning, Kind: kind,
		Message: fmt.Sprintf(format, args...)})
}

// Fatalf reports a fatal error and aborts the unit.
func (l *Log) Fatalf(kind Kind, format string, args ...any) {
	l.Report(Diagnostic{Severity: Fatal, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Infof records an informational note.
func (l *Log) Infof(format string, args ...any) {
	l.Report(Diagnostic{Severity: Info, Kind: Usage, Message: fmt.Sprintf(format, args...)})
}

// Failed reports whether the unit has errors or was aborted.
func (l *Log) Failed() bool { return l.errors > 0 || l.aborted }

// Summary writes diagnostics sorted by line, followed by totals and the
// outcome of the unit.
func (l *Log) Summary(w io.Writer) {
	diags := l.Diagnostics()
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Pos.Line < diags[j].Pos.Line })
	for _, d := range diags {
		if d.Severity == Info {
			continue
		}
		fmt.Fprintln(w, d)
	}
	outcome := "ok"
	if l.Failed() {
		outcome = "failed"
	}
	fmt.Fprintf(w, "%d error(s), %d warning(s): %s\n", l.errors, l.warnings, outcome)
}
