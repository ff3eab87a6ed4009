package directive

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HugoDaniel/pps/internal/diagnostic"
)

// ----------------------------------------------------------------------------
// Test Helpers (esbuild-style)
// ----------------------------------------------------------------------------

func lines(ls ...string) string {
	return strings.Join(ls, "\n")
}

func run(t *testing.T, ctx *Context, src string, opts ...Option) (string, *diagnostic.List) {
	t.Helper()
	dl := diagnostic.NewList()
	task := New(ctx, append(opts, WithDiagnostics(dl))...)
	out := strings.Join(task.Run(src), "\n")
	task.Finish()
	return out, dl
}

func expectOutput(t *testing.T, name string, ctx *Context, src, expected string, opts ...Option) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		t.Helper()
		out, dl := run(t, ctx, src, opts...)
		if out != expected {
			t.Errorf("\ninput:\n%s\nexpected:\n%s\nactual:\n%s", src, expected, out)
		}
		if dl.HasErrors() {
			t.Errorf("unexpected errors:\n%s", dl.Format())
		}
	})
}

func expectDiagnostic(t *testing.T, dl *diagnostic.List, code diagnostic.Code) diagnostic.Diagnostic {
	t.Helper()
	for _, d := range dl.Diagnostics() {
		if d.Code == code {
			return d
		}
	}
	t.Fatalf("expected a %s diagnostic, got:\n%s", code, dl.Format())
	return diagnostic.Diagnostic{}
}

// fakeFiles serves include files from memory and counts reads.
type fakeFiles struct {
	files map[string]string
	reads int
}

func (f *fakeFiles) read(path string) (string, error) {
	f.reads++
	if text, ok := f.files[filepath.ToSlash(path)]; ok {
		return text, nil
	}
	return "", errors.New("no such file")
}

// ----------------------------------------------------------------------------
// Macro branches
// ----------------------------------------------------------------------------

var ifElse = lines(
	"before",
	"/*<$macro if @a>*/",
	"kept",
	"/*<$macro else>*/",
	"dropped",
	"/*<$macro endif>*/",
	"after",
)

func TestMacroIfElse(t *testing.T) {
	expectOutput(t, "true", &Context{Bools: map[string]bool{"@a": true}}, ifElse,
		lines("before", "kept", "after"))
	expectOutput(t, "false", &Context{Bools: map[string]bool{"@a": false}}, ifElse,
		lines("before", "dropped", "after"))
}

func TestMacroElifChain(t *testing.T) {
	src := lines(
		"/*<$macro if @n == 1>*/",
		"one",
		"/*<$macro elif @n > 0>*/",
		"positive",
		"/*<$macro elif @n == 2>*/",
		"two",
		"/*<$macro else>*/",
		"other",
		"/*<$macro endif>*/",
	)
	for _, tt := range []struct {
		n    int64
		want string
	}{
		{1, "one"},
		{2, "positive"},
		{-4, "other"},
	} {
		expectOutput(t, "n="+tt.want, &Context{Ints: map[string]int64{"@n": tt.n}}, src, tt.want)
	}
}

func TestMacroNested(t *testing.T) {
	src := lines(
		"/*<$macro if @outer>*/",
		"outer",
		"  /*<$macro if @inner>*/",
		"  inner",
		"  /*<$macro endif>*/",
		"/*<$macro endif>*/",
		"tail",
	)
	expectOutput(t, "both", &Context{Bools: map[string]bool{"@outer": true, "@inner": true}}, src,
		lines("outer", "  inner", "tail"))
	expectOutput(t, "outer only", &Context{Bools: map[string]bool{"@outer": true, "@inner": false}}, src,
		lines("outer", "tail"))
	expectOutput(t, "inner only", &Context{Bools: map[string]bool{"@outer": false, "@inner": true}}, src,
		"tail")
}

// An inner branch inside a missed branch is never evaluated, so its
// errors and warnings are never reported.
func TestMissedBranchIsNotEvaluated(t *testing.T) {
	src := lines(
		"/*<$macro if @off>*/",
		"/*<$macro if 1 / 0>*/",
		"a",
		"/*<$macro elif @undefined>*/",
		"b",
		"/*<$macro else>*/",
		"c",
		"/*<$macro endif>*/",
		"/*<$macro endif>*/",
		"done",
	)
	out, dl := run(t, &Context{Bools: map[string]bool{"@off": false}}, src)
	if out != "done" {
		t.Errorf("expected %q, got %q", "done", out)
	}
	if dl.Count() != 0 {
		t.Errorf("expected no diagnostics, got:\n%s", dl.Format())
	}
}

func TestMacroConditionWithGreaterThan(t *testing.T) {
	src := lines("/*<$macro if @n > 2>*/", "big", "/*<$macro endif>*/")
	expectOutput(t, "gt", &Context{Ints: map[string]int64{"@n": 3}}, src, "big")
}

func TestStaticAlias(t *testing.T) {
	src := lines("/*<$static if @a>*/", "x", "/*<$static endif>*/")
	expectOutput(t, "static", &Context{Bools: map[string]bool{"@a": true}}, src, "x")
}

func TestMacroStringCondition(t *testing.T) {
	src := lines(`/*<$macro if @mode + "_hi" == "fast_hi">*/`, "fast", "/*<$macro endif>*/")
	expectOutput(t, "strings", &Context{Strings: map[string]string{"@mode": "fast"}}, src, "fast")
}

func TestNonBoolCondition(t *testing.T) {
	src := lines("/*<$macro if @n>*/", "kept", "/*<$macro endif>*/")
	out, dl := run(t, &Context{Ints: map[string]int64{"@n": 3}}, src)
	if out != "kept" {
		t.Errorf("expected kept, got %q", out)
	}
	expectDiagnostic(t, dl, diagnostic.CodeNonBoolCondition)
}

// ----------------------------------------------------------------------------
// Instance branches
// ----------------------------------------------------------------------------

func TestInstanceElimination(t *testing.T) {
	ctx := &Context{
		Bools:     map[string]bool{"@b": false},
		Instances: map[string]string{"@a": "a_text"},
	}
	expectOutput(t, "and", ctx, lines(
		"/*<$instance if @a && @b>*/",
		"body",
		"/*<$instance endif>*/",
	), "")
	expectOutput(t, "or", ctx, lines(
		"/*<$instance if @a || @b>*/",
		"body",
		"/*<$instance endif>*/",
	), lines("if(a_text)", "body"))
}

func TestInstanceChain(t *testing.T) {
	ctx := &Context{
		Bools:     map[string]bool{"@off": false},
		Instances: map[string]string{"@x": "u.x", "@y": "u.y"},
	}
	expectOutput(t, "residual chain", ctx, lines(
		"/*<$instance if @off>*/",
		"A",
		"/*<$instance elif @x>*/",
		"B",
		"/*<$instance elif @y || @off>*/",
		"C",
		"/*<$instance else>*/",
		"D",
		"/*<$instance endif>*/",
	), lines("if(u.x)", "B", "elif(u.y)", "C", "else", "D"))

	expectOutput(t, "all clauses eliminated", ctx, lines(
		"/*<$instance if @off>*/",
		"A",
		"/*<$instance else>*/",
		"D",
		"/*<$instance endif>*/",
	), "D")
}

func TestInstanceIndentation(t *testing.T) {
	ctx := &Context{Instances: map[string]string{"@x": "u.x", "@y": "u.y"}}
	expectOutput(t, "indent", ctx, lines(
		"\t/*<$dynamic if @x || @y>*/",
		"\t{",
		"\t}",
		"\t/*<$dynamic endif>*/",
	), lines("\tif((u.x || u.y))", "\t{", "\t}"))
}

func TestInstanceUnresolvedName(t *testing.T) {
	out, dl := run(t, &Context{}, lines("/*<$instance if @q>*/", "body", "/*<$instance endif>*/"))
	if out != lines("if(@q)", "body") {
		t.Errorf("unexpected output %q", out)
	}
	expectDiagnostic(t, dl, diagnostic.CodeUnresolvedInstance)
}

func TestInstanceInsideMissedMacro(t *testing.T) {
	ctx := &Context{
		Bools:     map[string]bool{"@off": false},
		Instances: map[string]string{"@x": "u.x"},
	}
	expectOutput(t, "masked", ctx, lines(
		"/*<$macro if @off>*/",
		"/*<$instance if @x>*/",
		"body",
		"/*<$instance else>*/",
		"other",
		"/*<$instance endif>*/",
		"/*<$macro endif>*/",
	), "")
}

func TestStaticContextResolvesInstances(t *testing.T) {
	ctx := &Context{
		IsStatic:  true,
		Bools:     map[string]bool{"@x": true},
		Instances: map[string]string{"@x": "u.x"},
	}
	expectOutput(t, "static", ctx, lines(
		"/*<$instance if @x>*/",
		"yes",
		"/*<$instance else>*/",
		"no",
		"/*<$instance endif>*/",
	), "yes")
}

// ----------------------------------------------------------------------------
// Override
// ----------------------------------------------------------------------------

func TestOverride(t *testing.T) {
	ctx := &Context{Instances: map[string]string{"@sLinearWrap": "s10", "@sLinearClamp": "s20"}}
	expectOutput(t, "replace", ctx,
		"SamplerState s_LinearWrap : register(s0 /*<$override @sLinearWrap>*/);",
		"SamplerState s_LinearWrap : register(s10);")
	expectOutput(t, "replace two", ctx,
		"f(s0 /*<$override @sLinearWrap>*/, s1 /*<$override @sLinearClamp>*/);",
		"f(s10, s20);")

	out, dl := run(t, ctx, lines("a", "register(s2 /*<$override @missing>*/);", "b"))
	if out != lines("a", "b") {
		t.Errorf("missing key should empty the line, got %q", out)
	}
	if d := expectDiagnostic(t, dl, diagnostic.CodeOverrideKey); d.Pos.Line != 2 || d.Pos.Column != 10 {
		t.Errorf("unexpected position %s", d.Pos)
	}
}

func TestOverrideWithoutIdentifier(t *testing.T) {
	ctx := &Context{Instances: map[string]string{"@sLinearWrap": "s10"}}
	expectOutput(t, "marker dropped", ctx,
		"/*<$override @sLinearWrap>*/ tail",
		" tail")

	out, dl := run(t, ctx, lines("a", "/*<$override @missing>*/ tail", "b"))
	if out != lines("a", "b") {
		t.Errorf("missing key should empty the line, got %q", out)
	}
	if d := expectDiagnostic(t, dl, diagnostic.CodeOverrideKey); d.Pos.Line != 2 || d.Pos.Column != 14 {
		t.Errorf("unexpected position %s", d.Pos)
	}
}

func TestOverrideInMissedBranch(t *testing.T) {
	ctx := &Context{Bools: map[string]bool{"@a": false}}
	out, dl := run(t, ctx, lines(
		"/*<$macro if @a>*/",
		"x /*<$override @missing>*/",
		"/*<$macro endif>*/",
	))
	if out != "" || dl.Count() != 0 {
		t.Errorf("expected nothing, got %q\n%s", out, dl.Format())
	}
}

// ----------------------------------------------------------------------------
// Include
// ----------------------------------------------------------------------------

func TestIncludeFromPrefixes(t *testing.T) {
	fs := &fakeFiles{files: map[string]string{
		"second/common.wgsl": lines("fn common() {}", "/*<$macro if @a>*/", "const A = 1;", "/*<$macro endif>*/", ""),
	}}
	ctx := &Context{Prefixes: []string{"first", "second"}, Bools: map[string]bool{"@a": true}}
	expectOutput(t, "prefixes", ctx, lines(
		"/*<$include common.wgsl>*/",
		"fn main() {}",
	), lines("fn common() {}", "const A = 1;", "fn main() {}"), WithReadFile(fs.read))
}

// Prefixes name directories: a trailing separator is optional and a
// file-name fragment is not prepended.
func TestIncludePrefixIsDirectory(t *testing.T) {
	fs := &fakeFiles{files: map[string]string{
		"shaders/lib_common.wgsl": "fragment",
		"second/common.wgsl":      "directory",
	}}
	ctx := &Context{Prefixes: []string{"shaders/lib_", "second/"}}
	expectOutput(t, "directory prefix", ctx, "/*<$include common.wgsl>*/", "directory", WithReadFile(fs.read))
}

// Every surviving line knows the file and line it came from, including
// the lines of nested includes and emitted instance conditions.
func TestRunLinesOrigins(t *testing.T) {
	fs := &fakeFiles{files: map[string]string{
		"inc/outer.wgsl": lines("outer", "/*<$include inner.wgsl>*/"),
		"inc/inner.wgsl": lines("/*<$macro if @no>*/", "hidden", "/*<$macro endif>*/", "inner"),
	}}
	ctx := &Context{
		Prefixes:  []string{"inc"},
		Bools:     map[string]bool{"@no": false},
		Instances: map[string]string{"@i": "u.i"},
	}
	task := New(ctx, WithReadFile(fs.read), WithFile("main.wgsl"))
	got := task.RunLines(lines(
		"first",
		"/*<$include outer.wgsl>*/",
		"/*<$instance if @i>*/",
		"last",
		"/*<$instance endif>*/",
	))

	want := []Output{
		{Text: "first", File: "main.wgsl", Line: 1},
		{Text: "outer", File: filepath.Join("inc", "outer.wgsl"), Line: 1},
		{Text: "inner", File: filepath.Join("inc", "inner.wgsl"), Line: 4},
		{Text: "if(u.i)", File: "main.wgsl", Line: 3},
		{Text: "last", File: "main.wgsl", Line: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("origins (-want +got):\n%s", diff)
	}
}

func TestIncludeQuotedPath(t *testing.T) {
	fs := &fakeFiles{files: map[string]string{"inc/a.wgsl": "a"}}
	expectOutput(t, "quoted", &Context{Prefixes: []string{"inc"}},
		`/*<$include "a.wgsl">*/`, "a", WithReadFile(fs.read))
}

func TestIncludeConcatenatesFileAndLoader(t *testing.T) {
	fs := &fakeFiles{files: map[string]string{"inc/lib.wgsl": "from file"}}
	var gotKey string
	loader := LoaderFunc(func(path, key string) ([]byte, error) {
		gotKey = key
		if path == "lib.wgsl" {
			return []byte("from loader\n"), nil
		}
		return nil, nil
	})
	ctx := &Context{Prefixes: []string{"inc"}}
	expectOutput(t, "both", ctx, "/*<$include lib.wgsl>*/",
		lines("from file", "from loader"), WithReadFile(fs.read), WithLoader(loader, "secret"))
	if gotKey != "secret" {
		t.Errorf("loader got key %q", gotKey)
	}

	expectOutput(t, "loader only", &Context{}, "/*<$include lib.wgsl>*/",
		"from loader", WithLoader(loader, "secret"))
}

func TestIncludeNotFound(t *testing.T) {
	out, dl := run(t, &Context{Prefixes: []string{"nowhere"}}, lines("/*<$include missing.wgsl>*/", "x"),
		WithReadFile((&fakeFiles{}).read))
	if out != "x" {
		t.Errorf("unexpected output %q", out)
	}
	expectDiagnostic(t, dl, diagnostic.CodeIncludeNotFound)
	expectDiagnostic(t, dl, diagnostic.CodeLoader)
}

func TestIncludeCycle(t *testing.T) {
	fs := &fakeFiles{files: map[string]string{
		"inc/a.wgsl": lines("a1", "/*<$include b.wgsl>*/", "a2"),
		"inc/b.wgsl": lines("b1", "/*<$include a.wgsl>*/", "b2"),
	}}
	out, dl := run(t, &Context{Prefixes: []string{"inc"}}, "/*<$include a.wgsl>*/", WithReadFile(fs.read))
	if want := lines("a1", "b1", "b2", "a2"); out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
	d := expectDiagnostic(t, dl, diagnostic.CodeIncludeDepth)
	if d.Pos.File != filepath.Join("inc", "b.wgsl") || d.Pos.Line != 2 {
		t.Errorf("unexpected position %s", d.Pos)
	}
}

func TestIncludeSkippedInMissedBranch(t *testing.T) {
	fs := &fakeFiles{files: map[string]string{"inc/a.wgsl": "a"}}
	out, _ := run(t, &Context{Prefixes: []string{"inc"}, Bools: map[string]bool{"@a": false}}, lines(
		"/*<$macro if @a>*/",
		"/*<$include a.wgsl>*/",
		"/*<$macro endif>*/",
	), WithReadFile(fs.read))
	if out != "" || fs.reads != 0 {
		t.Errorf("include in a missed branch should not be read (out %q, %d reads)", out, fs.reads)
	}
}

// A branch opened inside an include stays open in the including document.
func TestIncludeSharesBranchStack(t *testing.T) {
	fs := &fakeFiles{files: map[string]string{
		"inc/open.wgsl": lines("/*<$macro if @a>*/", "inside"),
	}}
	expectOutput(t, "shared", &Context{Prefixes: []string{"inc"}, Bools: map[string]bool{"@a": false}}, lines(
		"/*<$include open.wgsl>*/",
		"hidden",
		"/*<$macro endif>*/",
		"shown",
	), "shown", WithReadFile(fs.read))
}

// ----------------------------------------------------------------------------
// Embed and prog
// ----------------------------------------------------------------------------

func TestEmbedAndProg(t *testing.T) {
	expectOutput(t, "stripped", &Context{}, lines(
		"a",
		"/*<$embed texture.bin>*/",
		"load(); /*<$prog main>*/",
		"b",
	), lines("a", "load();", "b"))
}

func TestUnknownKindIsPlain(t *testing.T) {
	src := "/*<$unknown thing>*/ code"
	expectOutput(t, "plain", &Context{}, src, src)
}

// ----------------------------------------------------------------------------
// Errors
// ----------------------------------------------------------------------------

func TestBranchErrors(t *testing.T) {
	t.Run("endif without if", func(t *testing.T) {
		out, dl := run(t, &Context{}, lines("a", "/*<$macro endif>*/", "b"))
		if out != lines("a", "b") {
			t.Errorf("unexpected output %q", out)
		}
		expectDiagnostic(t, dl, diagnostic.CodeBranch)
	})

	t.Run("mismatched kind", func(t *testing.T) {
		dl := diagnostic.NewList()
		task := New(&Context{Bools: map[string]bool{"@a": true}}, WithDiagnostics(dl), WithFile("m.wgsl"))
		task.Run(lines("/*<$macro if @a>*/", "/*<$instance endif>*/"))
		if task.Depth() != 1 {
			t.Errorf("mismatched endif should leave the stack alone, depth %d", task.Depth())
		}
		expectDiagnostic(t, dl, diagnostic.CodeBranch)

		task.Finish()
		d := expectDiagnostic(t, dl, diagnostic.CodeUnterminated)
		if d.Pos.File != "m.wgsl" || d.Pos.Line != 1 {
			t.Errorf("unterminated branch should point at its if, got %s", d.Pos)
		}
		if task.Depth() != 0 || task.State() != Keep {
			t.Error("Finish should clear the stack")
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, dl := run(t, &Context{}, "/*<$macro when @a>*/")
		expectDiagnostic(t, dl, diagnostic.CodeBranch)
	})
}

func TestConditionErrorsCountAsFalse(t *testing.T) {
	tests := []struct {
		name string
		cond string
		code diagnostic.Code
	}{
		{"lex", "@a $ @b", diagnostic.CodeLex},
		{"parse", "(@a", diagnostic.CodeParse},
		{"division", "1 / 0", diagnostic.CodeDivisionByZero},
		{"type", "true + 1", diagnostic.CodeType},
		{"empty", "", diagnostic.CodeParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := lines("/*<$macro if "+tt.cond+">*/", "then", "/*<$macro else>*/", "else", "/*<$macro endif>*/")
			out, dl := run(t, &Context{Bools: map[string]bool{"@a": true, "@b": true}}, src)
			if out != "else" {
				t.Errorf("expected else branch, got %q", out)
			}
			expectDiagnostic(t, dl, tt.code)
		})
	}
}

func TestDiagnosticColumn(t *testing.T) {
	_, dl := run(t, &Context{}, "/*<$macro if @a $ @b>*/", WithFile("c.wgsl"))
	d := expectDiagnostic(t, dl, diagnostic.CodeLex)
	if d.Pos.String() != "c.wgsl:1:17" {
		t.Errorf("expected c.wgsl:1:17, got %s", d.Pos)
	}
	if d.Snippet != "/*<$macro if @a $ @b>*/" {
		t.Errorf("unexpected snippet %q", d.Snippet)
	}
}

func TestUnknownVariableWarning(t *testing.T) {
	out, dl := run(t, &Context{}, lines("/*<$macro if @nope == 0>*/", "zero", "/*<$macro endif>*/"))
	if out != "zero" {
		t.Errorf("unknown variables evaluate to 0, got %q", out)
	}
	expectDiagnostic(t, dl, diagnostic.CodeUnknownVariable)
}

// ----------------------------------------------------------------------------
// Line-level API
// ----------------------------------------------------------------------------

func TestProcessStates(t *testing.T) {
	task := New(&Context{Bools: map[string]bool{"@a": false}})

	steps := []struct {
		line  string
		text  string
		kind  Kind
		state State
	}{
		{"x", "x", KindPlain, Keep},
		{"/*<$macro if @a>*/", "", KindMacro, Skip},
		{"y", "", KindPlain, Skip},
		{"/*<$macro else>*/", "", KindMacro, Keep},
		{"z", "z", KindPlain, Keep},
		{"/*<$macro endif>*/", "", KindMacro, Keep},
	}
	for _, step := range steps {
		got := task.Process(step.line)
		if got.Text != step.text || got.Kind != step.kind || got.State != step.state {
			t.Errorf("Process(%q) = {%q %s %s}, expected {%q %s %s}",
				step.line, got.Text, got.Kind, got.State, step.text, step.kind, step.state)
		}
	}

	stats := task.Stats()
	if stats.Lines != 6 || stats.Directives != 3 || stats.Skipped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	task.Reset()
	if task.Stats() != (Stats{}) || task.Depth() != 0 {
		t.Error("Reset should clear counters and stack")
	}
}
