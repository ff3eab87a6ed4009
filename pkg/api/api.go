// Package api provides the public API for the shader preprocessor.
//
// This package is intended for programmatic use of the preprocessor.
// For CLI usage, see cmd/pps.
package api

import (
	"fmt"

	"github.com/HugoDaniel/pps/internal/diagnostic"
	"github.com/HugoDaniel/pps/internal/directive"
	"github.com/HugoDaniel/pps/internal/evaluator"
	"github.com/HugoDaniel/pps/internal/loader"
	"github.com/HugoDaniel/pps/internal/preprocessor"
)

// Version is the preprocessor version.
const Version = "0.3.0"

// Options controls preprocessing.
type Options struct {
	// Static resolves instance branches like macro branches.
	Static bool `json:"static"`

	// Bools, Ints and Strings define constants. Names may be given with
	// or without the leading '@'.
	Bools   map[string]bool   `json:"bools,omitempty"`
	Ints    map[string]int64  `json:"ints,omitempty"`
	Strings map[string]string `json:"strings,omitempty"`

	// Instances maps variables to the run-time text that replaces them.
	Instances map[string]string `json:"instances,omitempty"`

	// Prefixes are include search directories.
	Prefixes []string `json:"prefixes,omitempty"`

	// Files serves includes from memory, keyed by include path.
	Files map[string]string `json:"files,omitempty"`

	// Archive is an encrypted shader archive consulted after Files.
	Archive []byte `json:"archive,omitempty"`
	Key     string `json:"key,omitempty"`

	// FileName is used in diagnostic positions.
	FileName string `json:"fileName,omitempty"`

	// SourceMap requests a line-level source map of the output, with
	// OutputName as its file.
	SourceMap  bool   `json:"sourceMap,omitempty"`
	OutputName string `json:"outputName,omitempty"`

	// KeepBlankLines disables folding of blank line runs.
	KeepBlankLines bool `json:"keepBlankLines,omitempty"`

	// Diagnostics maps codes to off, error, warning or info.
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
}

// Diagnostic is a JSON-friendly diagnostic.
type Diagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
}

// Result contains the preprocessing output.
type Result struct {
	// Code is the processed shader source.
	Code string `json:"code"`

	// Diagnostics reported while processing, in order.
	Diagnostics []Diagnostic `json:"diagnostics"`

	// Errors holds the formatted error-level diagnostics plus any
	// failure to set up the run. If non-empty, Code may be incomplete.
	Errors []string `json:"errors"`

	OriginalSize int `json:"originalSize"`
	OutputSize   int `json:"outputSize"`
	Directives   int `json:"directives"`
	Includes     int `json:"includes"`

	// SourceMap is the source map as a JSON string, when requested.
	SourceMap string `json:"sourceMap,omitempty"`
}

// Process preprocesses source with default options.
func Process(source string) Result {
	return ProcessWithOptions(source, Options{})
}

// ProcessWithOptions preprocesses source with custom options.
func ProcessWithOptions(source string, opts Options) Result {
	popts, err := toOptions(opts)
	if err != nil {
		return Result{
			Diagnostics:  []Diagnostic{},
			Errors:       []string{err.Error()},
			OriginalSize: len(source),
		}
	}

	result := preprocessor.New(popts).Process(source)

	apiResult := Result{
		Code:         result.Code,
		Diagnostics:  convertDiagnostics(result.Diagnostics),
		Errors:       []string{},
		OriginalSize: result.Stats.OriginalSize,
		OutputSize:   result.Stats.OutputSize,
		Directives:   result.Stats.Directives,
		Includes:     result.Stats.Includes,
	}
	for _, d := range result.Diagnostics {
		if d.Severity == diagnostic.Error {
			apiResult.Errors = append(apiResult.Errors, d.Error())
		}
	}
	if result.SourceMap != nil {
		apiResult.SourceMap = result.SourceMap.ToJSON()
	}
	return apiResult
}

// EvaluateResult is the value of a standalone expression.
type EvaluateResult struct {
	// Kind is "null", "bool", "int" or "string".
	Kind        string       `json:"kind"`
	Value       any          `json:"value"`
	Text        string       `json:"text"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Evaluate evaluates a single expression against the constants in opts.
func Evaluate(expr string, opts Options) EvaluateResult {
	v, diags := preprocessor.Evaluate(expr, toContext(opts))
	out := EvaluateResult{
		Kind:        v.Kind.String(),
		Text:        v.String(),
		Diagnostics: convertDiagnostics(diags),
	}
	switch v.Kind {
	case evaluator.KindBool:
		out.Value = v.Bool
	case evaluator.KindInt:
		out.Value = v.Int
	case evaluator.KindString:
		out.Value = v.Str
	}
	return out
}

// Generate returns the residual run-time form of a boolean expression,
// with false constants removed and instance variables renamed.
func Generate(expr string, opts Options) (string, []Diagnostic) {
	code, diags := preprocessor.Generate(expr, toContext(opts))
	return code, convertDiagnostics(diags)
}

func toContext(opts Options) *directive.Context {
	return &directive.Context{
		Bools:     withAt(opts.Bools),
		Ints:      withAt(opts.Ints),
		Strings:   withAt(opts.Strings),
		Instances: withAt(opts.Instances),
		Prefixes:  opts.Prefixes,
		IsStatic:  opts.Static,
	}
}

func toOptions(opts Options) (preprocessor.Options, error) {
	popts := preprocessor.DefaultOptions()
	popts.Context = toContext(opts)
	popts.FileName = opts.FileName
	popts.Key = opts.Key
	popts.CollapseBlankLines = !opts.KeepBlankLines
	popts.SourceMap = opts.SourceMap
	popts.OutputName = opts.OutputName

	var archive *loader.Archive
	if len(opts.Archive) > 0 {
		a, err := loader.FromBytes(opts.Archive)
		if err != nil {
			return popts, fmt.Errorf("archive: %w", err)
		}
		archive = a
	}
	if opts.Files != nil || archive != nil {
		popts.Loader = directive.LoaderFunc(func(path, key string) ([]byte, error) {
			if text, ok := opts.Files[path]; ok {
				return []byte(text), nil
			}
			if archive != nil {
				return archive.GetShader(path, key)
			}
			return nil, fmt.Errorf("%w: %s", loader.ErrNotFound, path)
		})
	}

	if len(opts.Diagnostics) > 0 {
		filter := diagnostic.NewFilter()
		for code, level := range opts.Diagnostics {
			if err := filter.ParseRule(code + "=" + level); err != nil {
				return popts, err
			}
		}
		popts.Filter = filter
	}
	return popts, nil
}

func convertDiagnostics(diags []diagnostic.Diagnostic) []Diagnostic {
	result := make([]Diagnostic, len(diags))
	for i, d := range diags {
		result[i] = Diagnostic{
			Severity: d.Severity.String(),
			Code:     string(d.Code),
			Message:  d.Message,
			File:     d.Pos.File,
			Line:     d.Pos.Line,
			Column:   d.Pos.Column,
		}
	}
	return result
}

func withAt[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		if len(k) > 0 && k[0] != '@' {
			k = "@" + k
		}
		out[k] = v
	}
	return out
}
