package directive

import (
	"regexp"
	"strings"
)

// Kind classifies a processed line.
type Kind uint8

const (
	KindPlain Kind = iota
	KindMacro
	KindInstance
	KindInclude
	KindOverride
	KindEmbed
	KindProg
)

var kindNames = [...]string{
	KindPlain:    "plain",
	KindMacro:    "macro",
	KindInstance: "instance",
	KindInclude:  "include",
	KindOverride: "override",
	KindEmbed:    "embed",
	KindProg:     "prog",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

var kindWords = map[string]Kind{
	"macro":    KindMacro,
	"static":   KindMacro,
	"instance": KindInstance,
	"dynamic":  KindInstance,
	"include":  KindInclude,
	"override": KindOverride,
	"embed":    KindEmbed,
	"prog":     KindProg,
}

var (
	// The payload ends at the first ">*" so conditions may use '>'.
	markerRe   = regexp.MustCompile(`\*<\$(.*?)>\*`)
	wordRe     = regexp.MustCompile(`^(\w+)(?:\s+(.*))?$`)
	overrideRe = regexp.MustCompile(`\w+\s*/\*<\$override\s+(.*?)>\*/`)
)

// marker is a directive found on a line.
type marker struct {
	kind   Kind
	arg    string // Text after the kind word, trimmed
	argCol int    // 1-based column of arg in the line
	start  int    // Byte range of the marker and its enclosing comment
	end    int
}

// extract finds the first directive marker on line. Lines without a
// marker, or whose marker names an unknown kind, are plain.
func extract(line string) (marker, bool) {
	loc := markerRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return marker{}, false
	}
	payload := line[loc[2]:loc[3]]
	trimmed := strings.TrimSpace(payload)
	offset := loc[2] + strings.Index(payload, trimmed)

	m := wordRe.FindStringSubmatchIndex(trimmed)
	if m == nil {
		return marker{}, false
	}
	kind, ok := kindWords[trimmed[m[2]:m[3]]]
	if !ok {
		return marker{}, false
	}

	mk := marker{kind: kind, start: loc[0], end: loc[1], argCol: offset + len(trimmed) + 1}
	if mk.start > 0 && line[mk.start-1] == '/' {
		mk.start--
	}
	if mk.end < len(line) && line[mk.end] == '/' {
		mk.end++
	}
	if m[4] >= 0 {
		mk.arg = strings.TrimSpace(trimmed[m[4]:m[5]])
		mk.argCol = offset + m[4] + 1
	}
	return mk, true
}

// Branch tags
type tag uint8

const (
	tagIf tag = iota
	tagElif
	tagElse
	tagEndif
)

var tagNames = [...]string{tagIf: "if", tagElif: "elif", tagElse: "else", tagEndif: "endif"}

func (t tag) String() string { return tagNames[t] }

// parseTag splits a branch argument into its tag and condition. The
// returned offset is the condition's byte offset within arg.
func parseTag(arg string) (t tag, cond string, offset int, ok bool) {
	m := wordRe.FindStringSubmatchIndex(arg)
	if m == nil {
		return 0, "", 0, false
	}
	if m[4] >= 0 {
		cond = arg[m[4]:m[5]]
		offset = m[4]
	}
	switch arg[m[2]:m[3]] {
	case "if":
		return tagIf, cond, offset, true
	case "elif":
		return tagElif, cond, offset, true
	case "else":
		return tagElse, "", 0, true
	case "endif":
		return tagEndif, "", 0, true
	}
	return 0, "", 0, false
}

// leadingSpace returns the indentation of line.
func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
