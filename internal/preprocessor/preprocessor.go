// Package preprocessor provides the main preprocessing API.
//
// It feeds a document through the directive engine line by line, joins
// the surviving lines and tidies the result.
package preprocessor

import (
	"fmt"
	"strings"

	"github.com/HugoDaniel/pps/internal/ast"
	"github.com/HugoDaniel/pps/internal/diagnostic"
	"github.com/HugoDaniel/pps/internal/directive"
	"github.com/HugoDaniel/pps/internal/evaluator"
	"github.com/HugoDaniel/pps/internal/lexer"
	"github.com/HugoDaniel/pps/internal/parser"
	"github.com/HugoDaniel/pps/internal/printer"
	"github.com/HugoDaniel/pps/internal/simplifier"
	"github.com/HugoDaniel/pps/internal/source"
	"github.com/HugoDaniel/pps/internal/sourcemap"
)

// Options controls preprocessing.
type Options struct {
	// Context holds the defines, instance texts and include prefixes
	Context *directive.Context

	// Loader is consulted for includes, with Key as its decryption key
	Loader directive.Loader
	Key    string

	// FileName is used in diagnostic positions
	FileName string

	// ReadFile overrides how include files are read
	ReadFile func(path string) (string, error)

	// CollapseBlankLines folds runs of blank lines into one and drops
	// leading and trailing blank lines
	CollapseBlankLines bool

	// TrimTrailingSpace strips trailing spaces and tabs from every line
	TrimTrailingSpace bool

	// Filter adjusts or silences diagnostics by code
	Filter *diagnostic.Filter

	// SourceMap maps every output line back to its file and line, with
	// OutputName as the map's file
	SourceMap  bool
	OutputName string
}

// DefaultOptions returns options with output tidying enabled.
func DefaultOptions() Options {
	return Options{
		CollapseBlankLines: true,
		TrimTrailingSpace:  true,
	}
}

// Result contains the preprocessing output.
type Result struct {
	// Code is the processed document
	Code string

	// Diagnostics reported while processing, in order
	Diagnostics []diagnostic.Diagnostic

	// Stats about the run
	Stats Stats

	// SourceMap is set when Options.SourceMap is
	SourceMap *sourcemap.SourceMap
}

// HasErrors reports whether any error-level diagnostic was produced.
func (r Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == diagnostic.Error {
			return true
		}
	}
	return false
}

// Stats provides preprocessing statistics.
type Stats struct {
	OriginalSize int
	OutputSize   int
	InputLines   int // Including lines of included files
	OutputLines  int
	Directives   int
	Skipped      int // Plain lines removed by missed branches
	Includes     int
}

// Preprocessor processes documents with fixed options. Each call to
// Process uses its own directive engine, so one Preprocessor may be used
// from several goroutines.
type Preprocessor struct {
	options Options
}

// New creates a new preprocessor with the given options.
func New(options Options) *Preprocessor {
	return &Preprocessor{options: options}
}

// Process preprocesses src.
func (p *Preprocessor) Process(src string) Result {
	dl := diagnostic.NewList()
	if p.options.Filter != nil {
		dl.SetFilter(p.options.Filter)
	}

	opts := []directive.Option{directive.WithDiagnostics(dl)}
	if p.options.FileName != "" {
		opts = append(opts, directive.WithFile(p.options.FileName))
	}
	if p.options.Loader != nil {
		opts = append(opts, directive.WithLoader(p.options.Loader, p.options.Key))
	}
	if p.options.ReadFile != nil {
		opts = append(opts, directive.WithReadFile(p.options.ReadFile))
	}

	task := directive.New(p.options.Context, opts...)
	kept := task.RunLines(src)
	task.Finish()

	lines := p.tidy(kept)
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	code := ""
	if len(texts) > 0 {
		code = strings.Join(texts, "\n") + "\n"
	}

	ts := task.Stats()
	var sm *sourcemap.SourceMap
	if p.options.SourceMap {
		sm = sourceMap(p.options.OutputName, p.options.FileName, lines)
	}
	return Result{
		SourceMap:   sm,
		Code:        code,
		Diagnostics: dl.Diagnostics(),
		Stats: Stats{
			OriginalSize: len(src),
			OutputSize:   len(code),
			InputLines:   ts.Lines,
			OutputLines:  len(lines),
			Directives:   ts.Directives,
			Skipped:      ts.Skipped,
			Includes:     ts.Includes,
		},
	}
}

// ProcessFile reads, decodes and preprocesses the file at path. The file
// name is used in diagnostics unless Options.FileName is set.
func (p *Preprocessor) ProcessFile(path string) (Result, error) {
	text, err := source.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	pp := *p
	if pp.options.FileName == "" {
		pp.options.FileName = path
	}
	return pp.Process(text), nil
}

// tidy applies the formatting options. A blank line kept between two
// runs of code takes the origin of the first blank it replaces.
func (p *Preprocessor) tidy(kept []directive.Output) []directive.Output {
	var out []directive.Output
	var blank *directive.Output
	for i := range kept {
		line := kept[i]
		if p.options.TrimTrailingSpace {
			line.Text = strings.TrimRight(line.Text, " \t\r")
		}
		if p.options.CollapseBlankLines && strings.TrimSpace(line.Text) == "" {
			if blank == nil && len(out) > 0 {
				blank = &directive.Output{File: line.File, Line: line.Line}
			}
			continue
		}
		if blank != nil {
			out = append(out, *blank)
			blank = nil
		}
		out = append(out, line)
	}
	return out
}

// sourceMap maps each output line to its origin. Lines from the main
// document are attributed to name, or "<input>" when it is empty.
func sourceMap(output, name string, lines []directive.Output) *sourcemap.SourceMap {
	g := sourcemap.NewGenerator(output)
	for i, l := range lines {
		file := l.File
		if file == "" {
			file = name
		}
		if file == "" {
			file = "<input>"
		}
		g.AddLine(i+1, file, l.Line)
	}
	return g.Generate()
}

// ----------------------------------------------------------------------------
// Single expressions
// ----------------------------------------------------------------------------

func parseExpr(expr string, dl *diagnostic.List) ast.Node {
	lx := lexer.New(expr)
	tokens := lx.Tokenize()
	if errs := lx.Errors(); len(errs) > 0 {
		for _, err := range errs {
			dl.Report(diagnostic.CodeLex, diagnostic.Position{Line: 1, Column: err.Pos + 1}, expr, "%s", err.Message)
		}
		return nil
	}
	node, errs := parser.NewFromTokens(tokens).Parse()
	for _, err := range errs {
		dl.Report(diagnostic.CodeParse, diagnostic.Position{Line: 1, Column: err.Pos + 1}, expr, "%s", err.Message)
	}
	if len(errs) > 0 {
		return nil
	}
	return node
}

// Evaluate evaluates a directive expression or statement block against
// the context's defines.
func Evaluate(expr string, ctx *directive.Context) (evaluator.Value, []diagnostic.Diagnostic) {
	if ctx == nil {
		ctx = &directive.Context{}
	}
	dl := diagnostic.NewList()
	node := parseExpr(expr, dl)
	if node == nil {
		return evaluator.Null(), dl.Diagnostics()
	}

	v, warnings, err := evaluator.Evaluate(node, ctx.Defines())
	for _, w := range warnings {
		dl.Report(directive.WarningCode(w), diagnostic.Position{Line: 1}, expr, "%s", w)
	}
	if err != nil {
		dl.Report(directive.ErrorCode(err), diagnostic.Position{Line: 1}, expr, "%v", err)
	}
	return v, dl.Diagnostics()
}

// Generate simplifies a boolean expression against the context's bools and
// renders the residual condition with instance texts substituted. A
// statically false expression renders as "false".
func Generate(expr string, ctx *directive.Context) (string, []diagnostic.Diagnostic) {
	if ctx == nil {
		ctx = &directive.Context{}
	}
	dl := diagnostic.NewList()
	node := parseExpr(expr, dl)
	if node == nil {
		return "", dl.Diagnostics()
	}

	out, errs := printer.Print(simplifier.Simplify(node, ctx.Bools), printer.Options{
		Renamer: printer.MapRenamer(ctx.Instances),
	})
	for _, err := range errs {
		dl.Report(diagnostic.CodeGenerate, diagnostic.Position{Line: 1}, expr, "%v", err)
	}
	if len(errs) > 0 {
		return "", dl.Diagnostics()
	}
	return out, dl.Diagnostics()
}

// FormatStats renders stats as a one-line summary.
func FormatStats(s Stats) string {
	return fmt.Sprintf("%d -> %d lines, %d directives, %d includes, %d lines skipped",
		s.InputLines, s.OutputLines, s.Directives, s.Includes, s.Skipped)
}
