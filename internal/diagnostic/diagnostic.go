// Package diagnostic provides error reporting for the preprocessor.
//
// Nothing in the pipeline aborts a document because of one bad line.
// Problems are collected here with a code, a severity and the file and
// line they came from, and printed by the caller once processing ends.
package diagnostic

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Severity represents the severity level of a diagnostic.
type Severity uint8

const (
	// Error means a line was degraded (dropped, emptied or treated as false).
	Error Severity = iota
	// Warning is a non-blocking issue.
	Warning
	// Info is an informational message.
	Info
	// Note provides additional context for another diagnostic.
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Code identifies a class of diagnostic. The first letter gives its
// default severity.
type Code string

const (
	// Lex and parse errors (E00xx)
	CodeLex   Code = "E0001"
	CodeParse Code = "E0002"

	// Evaluation (x01xx)
	CodeType               Code = "E0101"
	CodeDivisionByZero     Code = "E0102"
	CodeUnknownVariable    Code = "W0103"
	CodeUndeclaredAssign   Code = "W0104"
	CodeRange              Code = "E0105"
	CodeNonBoolCondition   Code = "W0106"

	// Lookup (x02xx)
	CodeOverrideKey        Code = "E0201"
	CodeIncludeNotFound    Code = "E0202"
	CodeLoader             Code = "I0203"
	CodeUnresolvedInstance Code = "W0204"

	// Structure (x03xx)
	CodeBranch       Code = "E0301"
	CodeIncludeDepth Code = "E0302"
	CodeUnterminated Code = "W0303"

	// Output (E04xx)
	CodeGenerate Code = "E0401"
)

// Severity returns the default severity for the code.
func (c Code) Severity() Severity {
	switch {
	case strings.HasPrefix(string(c), "W"):
		return Warning
	case strings.HasPrefix(string(c), "I"):
		return Info
	case strings.HasPrefix(string(c), "N"):
		return Note
	}
	return Error
}

// Position is a location in a source file. Line and Column are 1-based;
// zero means unknown.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	var sb strings.Builder
	if p.File != "" {
		sb.WriteString(p.File)
		sb.WriteByte(':')
	}
	fmt.Fprintf(&sb, "%d", p.Line)
	if p.Column > 0 {
		fmt.Fprintf(&sb, ":%d", p.Column)
	}
	return sb.String()
}

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Pos      Position
	Snippet  string // Source line the diagnostic refers to
}

// Error returns a formatted error string.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s[%s]: %s", d.Pos, d.Severity, d.Code, d.Message)
}

// List collects diagnostics during processing. It is not safe for
// concurrent use.
type List struct {
	diagnostics []Diagnostic
	filter      *Filter
	errorCount  int
}

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// SetFilter installs a filter applied to every later Add.
func (dl *List) SetFilter(f *Filter) {
	dl.filter = f
}

// Add adds a diagnostic to the list, applying the filter.
func (dl *List) Add(d Diagnostic) {
	if dl.filter != nil {
		if dl.filter.IsDisabled(d.Code) {
			return
		}
		d.Severity = dl.filter.GetSeverity(d.Code, d.Severity)
	}
	dl.diagnostics = append(dl.diagnostics, d)
	if d.Severity == Error {
		dl.errorCount++
	}
}

// Report adds a diagnostic with the code's default severity.
func (dl *List) Report(code Code, pos Position, snippet string, format string, args ...any) {
	dl.Add(Diagnostic{
		Severity: code.Severity(),
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
		Snippet:  snippet,
	})
}

// HasErrors returns true if there are any error-level diagnostics.
func (dl *List) HasErrors() bool {
	return dl.errorCount > 0
}

// Diagnostics returns all collected diagnostics.
func (dl *List) Diagnostics() []Diagnostic {
	return dl.diagnostics
}

// Errors returns only error-level diagnostics.
func (dl *List) Errors() []Diagnostic {
	return dl.bySeverity(Error)
}

// Warnings returns only warning-level diagnostics.
func (dl *List) Warnings() []Diagnostic {
	return dl.bySeverity(Warning)
}

func (dl *List) bySeverity(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range dl.diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the total number of diagnostics.
func (dl *List) Count() int {
	return len(dl.diagnostics)
}

// ErrorCount returns the number of error-level diagnostics.
func (dl *List) ErrorCount() int {
	return dl.errorCount
}

// Clear removes all diagnostics.
func (dl *List) Clear() {
	dl.diagnostics = dl.diagnostics[:0]
	dl.errorCount = 0
}

// ----------------------------------------------------------------------------
// Formatting
// ----------------------------------------------------------------------------

// Format formats all diagnostics as a human-readable string.
func (dl *List) Format() string {
	var sb strings.Builder
	for i := range dl.diagnostics {
		sb.WriteString(FormatDiagnostic(&dl.diagnostics[i]))
	}
	return sb.String()
}

// FormatDiagnostic formats a single diagnostic with source context.
func FormatDiagnostic(d *Diagnostic) string {
	var sb strings.Builder
	sb.WriteString(d.Error())
	sb.WriteByte('\n')
	writeSnippet(&sb, d)
	return sb.String()
}

func writeSnippet(sb *strings.Builder, d *Diagnostic) {
	if d.Snippet == "" {
		return
	}
	fmt.Fprintf(sb, "    %s\n", strings.TrimRight(d.Snippet, "\r"))
	if d.Pos.Column > 0 {
		sb.WriteString(strings.Repeat(" ", d.Pos.Column-1+4) + "^\n")
	}
}

var severityColors = map[Severity]*color.Color{
	Error:   color.New(color.FgRed, color.Bold),
	Warning: color.New(color.FgYellow, color.Bold),
	Info:    color.New(color.FgCyan),
	Note:    color.New(color.FgBlue),
}

// WriteColor writes all diagnostics to w, coloring the severity. Whether
// escape codes are emitted follows color.NoColor.
func (dl *List) WriteColor(w io.Writer) error {
	bold := color.New(color.Bold)
	for i := range dl.diagnostics {
		d := &dl.diagnostics[i]
		var sb strings.Builder
		sb.WriteString(bold.Sprint(d.Pos.String()))
		sb.WriteString(": ")
		sb.WriteString(severityColors[d.Severity].Sprintf("%s[%s]", d.Severity, d.Code))
		sb.WriteString(": ")
		sb.WriteString(d.Message)
		sb.WriteByte('\n')
		writeSnippet(&sb, d)
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// Summary returns a one-line count such as "2 errors, 1 warning".
func (dl *List) Summary() string {
	warnings := len(dl.Warnings())
	return fmt.Sprintf("%d %s, %d %s",
		dl.errorCount, plural(dl.errorCount, "error"),
		warnings, plural(warnings, "warning"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// ----------------------------------------------------------------------------
// Filtering
// ----------------------------------------------------------------------------

// Filter controls which diagnostics are reported.
type Filter struct {
	// Rules maps codes to a severity override. Disabled codes map to
	// the off sentinel.
	Rules map[Code]Severity
}

const off = Severity(255)

// NewFilter creates a new filter with default settings.
func NewFilter() *Filter {
	return &Filter{Rules: make(map[Code]Severity)}
}

// SetRule sets the severity for a code.
func (f *Filter) SetRule(code Code, severity Severity) {
	f.Rules[code] = severity
}

// DisableRule disables a code.
func (f *Filter) DisableRule(code Code) {
	f.Rules[code] = off
}

// IsDisabled returns true if the code is disabled.
func (f *Filter) IsDisabled(code Code) bool {
	sev, ok := f.Rules[code]
	return ok && sev == off
}

// GetSeverity returns the severity for a code, or def if not overridden.
func (f *Filter) GetSeverity(code Code, def Severity) Severity {
	if sev, ok := f.Rules[code]; ok && sev != off {
		return sev
	}
	return def
}

// ParseRule parses a CLI rule of the form CODE=off|error|warning|info.
func (f *Filter) ParseRule(rule string) error {
	code, level, ok := strings.Cut(rule, "=")
	if !ok || code == "" {
		return fmt.Errorf("invalid diagnostic rule %q (want CODE=LEVEL)", rule)
	}
	switch strings.ToLower(level) {
	case "off":
		f.DisableRule(Code(code))
	case "error":
		f.SetRule(Code(code), Error)
	case "warning":
		f.SetRule(Code(code), Warning)
	case "info":
		f.SetRule(Code(code), Info)
	default:
		return fmt.Errorf("invalid diagnostic level %q in rule %q", level, rule)
	}
	return nil
}
