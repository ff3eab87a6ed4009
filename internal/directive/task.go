// Package directive implements the line-oriented directive engine.
//
// A Task reads shader source one line at a time. Lines carrying a marker
// such as /*<$macro if @a>*/ open, switch or close branches on a stack of
// frames; the innermost frame decides whether the following plain lines
// are kept. Macro branches are resolved against the context's defines and
// vanish from the output. Instance branches are reduced to a residual
// condition over the unknown variables and re-emitted as if(...) lines.
// Include and override markers splice in other files or instance text.
//
// Nothing here aborts a document: every problem is reported to the task's
// diagnostic list and the offending line falls back to false or empty.
package directive

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/HugoDaniel/pps/internal/ast"
	"github.com/HugoDaniel/pps/internal/diagnostic"
	"github.com/HugoDaniel/pps/internal/evaluator"
	"github.com/HugoDaniel/pps/internal/lexer"
	"github.com/HugoDaniel/pps/internal/parser"
	"github.com/HugoDaniel/pps/internal/printer"
	"github.com/HugoDaniel/pps/internal/simplifier"
	"github.com/HugoDaniel/pps/internal/source"
)

// State says whether the next plain line is kept.
type State uint8

const (
	Keep State = iota
	Skip
)

func (s State) String() string {
	if s == Skip {
		return "skip"
	}
	return "keep"
}

// Line is the result of processing one input line.
type Line struct {
	Text  string
	Kind  Kind
	State State // State after the line
}

// Output is a line of the processed document and the input line it
// came from.
type Output struct {
	Text string
	File string
	Line int
}

// Stats counts what a task has processed.
type Stats struct {
	Lines      int // Input lines, including those of included files
	Directives int
	Skipped    int // Plain lines dropped by a missed branch
	Includes   int
}

const maxIncludeDepth = 32

// Task processes one document. It is not safe for concurrent use.
type Task struct {
	ctx      *Context
	loader   Loader
	key      string
	diags    *diagnostic.List
	readFile func(path string) (string, error)
	eval     *evaluator.Evaluator

	stack     stack
	state     State
	file      string
	line      int
	raw       string
	including []string
	included  []Output
	stats     Stats
}

// Option configures a Task.
type Option func(*Task)

// WithLoader sets the loader consulted for includes, and its key.
func WithLoader(l Loader, key string) Option {
	return func(t *Task) {
		t.loader = l
		t.key = key
	}
}

// WithDiagnostics makes the task report into dl.
func WithDiagnostics(dl *diagnostic.List) Option {
	return func(t *Task) { t.diags = dl }
}

// WithFile sets the file name used in diagnostic positions.
func WithFile(name string) Option {
	return func(t *Task) { t.file = name }
}

// WithReadFile replaces the function used to read include files.
func WithReadFile(fn func(path string) (string, error)) Option {
	return func(t *Task) { t.readFile = fn }
}

// New creates a task over ctx. A nil ctx is an empty context.
func New(ctx *Context, opts ...Option) *Task {
	if ctx == nil {
		ctx = &Context{}
	}
	t := &Task{ctx: ctx, readFile: source.ReadFile}
	for _, opt := range opts {
		opt(t)
	}
	if t.diags == nil {
		t.diags = diagnostic.NewList()
	}
	t.eval = evaluator.New(ctx.Defines())
	return t
}

// State returns the state that applies to the next plain line.
func (t *Task) State() State { return t.state }

// Depth returns the number of open branches.
func (t *Task) Depth() int { return len(t.stack) }

// Stats returns the counters accumulated so far.
func (t *Task) Stats() Stats { return t.stats }

// Diagnostics returns the list the task reports into.
func (t *Task) Diagnostics() *diagnostic.List { return t.diags }

// Reset clears the branch stack, state and counters so the task can
// process another document. Diagnostics are kept.
func (t *Task) Reset() {
	t.stack = t.stack[:0]
	t.state = Keep
	t.line = 0
	t.including = nil
	t.included = nil
	t.stats = Stats{}
}

// Run processes every line of text and returns the lines that survive:
// kept plain lines, directive lines that produced text and the lines of
// included files.
func (t *Task) Run(text string) []string {
	lines := t.RunLines(text)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// RunLines is Run, keeping the origin of every surviving line.
func (t *Task) RunLines(text string) []Output {
	savedLine, savedRaw := t.line, t.raw
	t.line = 0

	var out []Output
	for _, raw := range source.SplitLines(text) {
		l := t.Process(raw)
		switch {
		case l.Kind == KindInclude:
			out = append(out, t.included...)
			t.included = nil
		case l.Kind == KindPlain && l.State == Skip:
		case l.Kind == KindPlain || l.Text != "":
			out = append(out, Output{Text: l.Text, File: t.file, Line: t.line})
		}
	}

	t.line, t.raw = savedLine, savedRaw
	return out
}

// Process handles the next line.
// An include line's Text is the whole kept content of the included file.
func (t *Task) Process(line string) Line {
	t.included = nil
	t.line++
	t.raw = line
	t.stats.Lines++

	mk, ok := extract(line)
	if !ok {
		if t.state == Skip {
			t.stats.Skipped++
			return Line{Kind: KindPlain, State: Skip}
		}
		return Line{Text: line, Kind: KindPlain, State: Keep}
	}
	t.stats.Directives++

	kind := mk.kind
	if kind == KindInstance && t.ctx.IsStatic {
		kind = KindMacro
	}

	out := Line{Kind: kind}
	switch kind {
	case KindMacro:
		t.macroBranch(mk)
		t.updateState()
	case KindInstance:
		out.Text = t.instanceBranch(mk, leadingSpace(line))
		t.updateState()
	case KindInclude:
		out.Text = t.include(mk)
	case KindOverride:
		out.Text = t.override(line, mk)
	case KindEmbed, KindProg:
		if t.state == Keep {
			rest := strings.TrimRight(line[:mk.start]+line[mk.end:], " \t")
			if strings.TrimSpace(rest) != "" {
				out.Text = rest
			}
		}
	}
	out.State = t.state
	return out
}

// Finish reports every branch still open at the end of the document and
// clears the stack.
func (t *Task) Finish() {
	for f := t.stack.pop(); f != nil; f = t.stack.pop() {
		t.diags.Report(diagnostic.CodeUnterminated, f.openedAt(), "",
			"%s branch is never closed with endif", f.kind())
	}
	t.state = Keep
}

func (t *Task) updateState() {
	if t.stack.inMissedBranch() {
		t.state = Skip
	} else {
		t.state = Keep
	}
}

func (t *Task) pos(col int) diagnostic.Position {
	return diagnostic.Position{File: t.file, Line: t.line, Column: col}
}

func (t *Task) report(code diagnostic.Code, col int, format string, args ...any) {
	t.diags.Report(code, t.pos(col), t.raw, format, args...)
}

// ----------------------------------------------------------------------------
// Branches
// ----------------------------------------------------------------------------

// popFrame pops the top frame if it was opened by a branch of kind want.
// Otherwise it reports the mismatch, leaves the stack alone and returns nil.
func (t *Task) popFrame(tg tag, want Kind, col int) frame {
	f := t.stack.top()
	if f == nil {
		t.report(diagnostic.CodeBranch, col, "%s without matching if", tg)
		return nil
	}
	if f.kind() != want {
		t.report(diagnostic.CodeBranch, col, "%s %s does not match the %s branch opened at %s",
			want, tg, f.kind(), f.openedAt())
		return nil
	}
	return t.stack.pop()
}

func (t *Task) macroBranch(mk marker) {
	tg, cond, off, ok := parseTag(mk.arg)
	if !ok {
		t.report(diagnostic.CodeBranch, mk.argCol, "unknown branch tag in %q", mk.arg)
		return
	}
	col := mk.argCol + off

	switch tg {
	case tagIf:
		f := &macroFrame{pos: t.pos(mk.argCol)}
		if !t.stack.inMissedBranch() {
			f.current = t.evalCondition(cond, col)
			f.chosenIf = f.current
		}
		t.stack.push(f)

	case tagElif, tagElse:
		prev, ok := t.popFrame(tg, KindMacro, mk.argCol).(*macroFrame)
		if !ok {
			return
		}
		f := &macroFrame{pos: prev.pos}
		if !t.stack.inMissedBranch() {
			switch {
			case prev.chosenIf:
				f.chosenIf = true
			case tg == tagElse:
				f.current = true
				f.chosenIf = true
			default:
				f.current = t.evalCondition(cond, col)
				f.chosenIf = f.current
			}
		}
		t.stack.push(f)

	case tagEndif:
		t.popFrame(tg, KindMacro, mk.argCol)
	}
}

func (t *Task) instanceBranch(mk marker, indent string) string {
	tg, cond, off, ok := parseTag(mk.arg)
	if !ok {
		t.report(diagnostic.CodeBranch, mk.argCol, "unknown branch tag in %q", mk.arg)
		return ""
	}
	col := mk.argCol + off

	switch tg {
	case tagIf:
		f := &instanceFrame{pos: t.pos(mk.argCol)}
		if !t.stack.inMissedBranch() {
			f.current, f.conditionText = t.residual(cond, col)
			f.enableElse = f.current
		}
		t.stack.push(f)
		if f.current {
			return indent + "if(" + f.conditionText + ")"
		}

	case tagElif:
		prev, ok := t.popFrame(tg, KindInstance, mk.argCol).(*instanceFrame)
		if !ok {
			return ""
		}
		f := &instanceFrame{pos: prev.pos}
		if !t.stack.inMissedBranch() {
			f.current, f.conditionText = t.residual(cond, col)
			f.enableElse = prev.enableElse || f.current
		}
		t.stack.push(f)
		if f.current {
			// Every earlier clause was eliminated, so this one starts the chain.
			if !prev.enableElse {
				return indent + "if(" + f.conditionText + ")"
			}
			return indent + "elif(" + f.conditionText + ")"
		}

	case tagElse:
		prev, ok := t.popFrame(tg, KindInstance, mk.argCol).(*instanceFrame)
		if !ok {
			return ""
		}
		f := &instanceFrame{pos: prev.pos}
		if !t.stack.inMissedBranch() {
			f.current = true
			f.enableElse = prev.enableElse
		}
		t.stack.push(f)
		if f.enableElse {
			return indent + "else"
		}

	case tagEndif:
		t.popFrame(tg, KindInstance, mk.argCol)
	}
	return ""
}

// parseCondition lexes and parses a branch condition. col is the
// condition's column in the line, used for diagnostics.
func (t *Task) parseCondition(cond string, col int) (ast.Node, bool) {
	lx := lexer.New(cond)
	tokens := lx.Tokenize()
	if errs := lx.Errors(); len(errs) > 0 {
		for _, err := range errs {
			t.report(diagnostic.CodeLex, col+err.Pos, "%s", err.Message)
		}
		return nil, false
	}

	node, errs := parser.NewFromTokens(tokens).Parse()
	if len(errs) > 0 {
		for _, err := range errs {
			t.report(diagnostic.CodeParse, col+err.Pos, "%s", err.Message)
		}
		return nil, false
	}
	return node, node != nil
}

// evalCondition evaluates a macro condition. Anything that prevents a
// value from being computed counts as false.
func (t *Task) evalCondition(cond string, col int) bool {
	node, ok := t.parseCondition(cond, col)
	if !ok {
		return false
	}

	t.eval.ResetWarnings()
	v, err := t.eval.Evaluate(node)
	for _, w := range t.eval.Warnings() {
		t.report(WarningCode(w), col, "%s", w)
	}
	if err != nil {
		t.report(ErrorCode(err), col, "%v", err)
		return false
	}
	if !v.IsBool() {
		t.report(diagnostic.CodeNonBoolCondition, col, "condition is %s %q, using its truth value", v.Kind, v)
	}
	return v.Truthy()
}

// WarningCode maps an evaluation warning to its diagnostic code.
func WarningCode(w evaluator.Warning) diagnostic.Code {
	if w.Kind == evaluator.UndeclaredAssignment {
		return diagnostic.CodeUndeclaredAssign
	}
	return diagnostic.CodeUnknownVariable
}

// ErrorCode maps an evaluation error to its diagnostic code.
func ErrorCode(err error) diagnostic.Code {
	switch {
	case errors.Is(err, evaluator.ErrDivisionByZero):
		return diagnostic.CodeDivisionByZero
	case errors.Is(err, evaluator.ErrRange):
		return diagnostic.CodeRange
	}
	return diagnostic.CodeType
}

// residual simplifies an instance condition against the known bools. It
// reports whether the clause is reachable, and if so the condition text
// to emit.
func (t *Task) residual(cond string, col int) (bool, string) {
	node, ok := t.parseCondition(cond, col)
	if !ok {
		return false, ""
	}
	simplified := simplifier.Simplify(node, t.ctx.Bools)
	if simplified == nil {
		return false, ""
	}

	text, errs := printer.Print(simplified, printer.Options{Renamer: instanceRenamer{t: t, col: col}})
	if len(errs) > 0 {
		for _, err := range errs {
			t.report(diagnostic.CodeGenerate, col, "%v", err)
		}
		return false, ""
	}
	return true, text
}

// instanceRenamer substitutes instance text for residual variables.
type instanceRenamer struct {
	t   *Task
	col int
}

func (r instanceRenamer) NameForVariable(name string) string {
	if text, ok := r.t.ctx.Instances[name]; ok {
		return text
	}
	r.t.report(diagnostic.CodeUnresolvedInstance, r.col, "no instance text for %s, emitting it unchanged", name)
	return name
}

// ----------------------------------------------------------------------------
// Include and override
// ----------------------------------------------------------------------------

func (t *Task) include(mk marker) string {
	if t.state == Skip {
		return ""
	}
	path := strings.Trim(mk.arg, "\" \t")
	if path == "" {
		t.report(diagnostic.CodeIncludeNotFound, mk.argCol, "include without a path")
		return ""
	}
	if len(t.including) >= maxIncludeDepth {
		t.report(diagnostic.CodeIncludeDepth, mk.argCol, "include of %q exceeds the depth limit of %d", path, maxIncludeDepth)
		return ""
	}
	if slices.Contains(t.including, path) {
		t.report(diagnostic.CodeIncludeDepth, mk.argCol, "include cycle: %s -> %s", strings.Join(t.including, " -> "), path)
		return ""
	}

	var parts []string
	name := path
	if text, full, ok := t.searchPrefixes(path); ok {
		parts = append(parts, text)
		name = full
	}
	if text, err := t.load(path); err == nil {
		parts = append(parts, text)
	} else if len(parts) == 0 {
		t.report(diagnostic.CodeLoader, mk.argCol, "%v", err)
	}
	if len(parts) == 0 {
		t.report(diagnostic.CodeIncludeNotFound, mk.argCol, "include %q not found", path)
		return ""
	}
	t.stats.Includes++

	content := parts[0]
	for _, part := range parts[1:] {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += part
	}

	savedFile := t.file
	t.file = name
	t.including = append(t.including, path)
	kept := t.RunLines(content)
	t.including = t.including[:len(t.including)-1]
	t.file = savedFile

	t.included = kept
	texts := make([]string, len(kept))
	for i, l := range kept {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

// searchPrefixes returns the first readable prefix/path file.
func (t *Task) searchPrefixes(path string) (text, full string, ok bool) {
	for _, prefix := range t.ctx.Prefixes {
		full := filepath.Join(prefix, path)
		text, err := t.readFile(full)
		if err != nil {
			continue
		}
		return text, full, true
	}
	return "", "", false
}

var errNoLoader = errors.New("no loader set")

func (t *Task) load(path string) (string, error) {
	if t.loader == nil {
		return "", errNoLoader
	}
	data, err := t.loader.GetShader(path, t.key)
	if err != nil {
		return "", fmt.Errorf("loader: %w", err)
	}
	if data == nil {
		return "", fmt.Errorf("loader has no %s", path)
	}
	return source.Decode(data)
}

// override replaces each identifier followed by an override marker with
// the marker key's instance text. A missing key empties the line. A marker
// with no identifier before it is dropped from the line.
func (t *Task) override(line string, mk marker) string {
	if t.state == Skip {
		return ""
	}
	if _, ok := t.ctx.Instances[mk.arg]; !ok {
		col := mk.argCol
		if loc := overrideRe.FindStringIndex(line); loc != nil {
			col = loc[0] + 1
		}
		t.report(diagnostic.CodeOverrideKey, col, "override key %s has no instance text", mk.arg)
		return ""
	}
	if !overrideRe.MatchString(line) {
		rest := line[:mk.start] + line[mk.end:]
		if strings.TrimSpace(rest) == "" {
			return ""
		}
		return strings.TrimRight(rest, " \t")
	}
	missing := false
	out := overrideRe.ReplaceAllStringFunc(line, func(match string) string {
		key := strings.TrimSpace(overrideRe.FindStringSubmatch(match)[1])
		if text, ok := t.ctx.Instances[key]; ok {
			return text
		}
		missing = true
		t.report(diagnostic.CodeOverrideKey, strings.Index(line, match)+1, "override key %s has no instance text", key)
		return match
	})
	if missing {
		return ""
	}
	return out
}
