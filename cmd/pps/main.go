// Command pps preprocesses shader source containing /*<$ ... >*/ directives.
//
// Usage:
//
//	pps [options] <input.wgsl>
//	cat input.wgsl | pps [options]
//	pps pack -o shaders.ppsa -key <key> [-C dir] <files...>
//
// Options:
//
//	-o <file>            Write output to file (default: stdout)
//	-sourcemap           Also write <file>.map mapping output lines to their sources
//	-static              Resolve instance branches at build time
//	-dynamic             Keep instance branches as run-time conditions (default)
//	-db name=true|false  Define a boolean (repeatable)
//	-di name=N           Define an integer (repeatable)
//	-ds name=text        Define a string (repeatable)
//	-r name=text         Replace an instance variable with text (repeatable)
//	-I <dir>             Add an include search directory (repeatable)
//	-archive <file>      Resolve includes from an encrypted shader archive
//	-key <key>           Archive key
//	-diag CODE=LEVEL     Set a diagnostic to off|error|warning|info (repeatable)
//	-config <file>       Use specific config file
//	-no-config           Ignore config files
//	-watch               Re-run whenever the input, an include or the config changes
//	-color <mode>        Color diagnostics: auto, always or never
//	-evaluate <expr>     Print the value of an expression and exit
//	-codegen <expr>      Print the run-time form of a condition and exit
//	-version             Print version and exit
//	-help                Print help and exit
//
// Config file:
//
//	pps looks for pps.json, pps.yaml or .ppsrc in the input's directory
//	and its parents. Config file options are overridden by CLI flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/HugoDaniel/pps/internal/config"
	"github.com/HugoDaniel/pps/internal/diagnostic"
	"github.com/HugoDaniel/pps/internal/loader"
	"github.com/HugoDaniel/pps/internal/preprocessor"
	"github.com/HugoDaniel/pps/internal/source"
	"github.com/HugoDaniel/pps/pkg/api"
)

var commit = "dev"

// errDiagnostics is returned when a run reported error-level diagnostics.
// The output has still been written.
var errDiagnostics = errors.New("preprocessing reported errors")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "pack" {
		err = runPack(os.Args[2:], os.Stderr)
	} else {
		err = run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	}
	if err != nil {
		if !errors.Is(err, errDiagnostics) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if !errors.Is(err, flag.ErrHelp) {
			os.Exit(1)
		}
	}
}

// cli holds the parsed command line.
type cli struct {
	outputFile  string
	sourceMap   bool
	configFile  string
	noConfig    bool
	static      bool
	dynamic     bool
	bools       boolDefines
	ints        intDefines
	strs        stringDefines
	instances   stringDefines
	prefixes    listFlag
	diags       listFlag
	archive     string
	key         string
	watch       bool
	colorMode   string
	evaluate    string
	codegen     string
	showVersion bool
	input       string
}

func parseFlags(args []string, stderr io.Writer) (*cli, error) {
	c := &cli{
		bools:     boolDefines{},
		ints:      intDefines{},
		strs:      stringDefines{},
		instances: stringDefines{},
	}

	fs := flag.NewFlagSet("pps", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.outputFile, "o", "", "Write output to `file`")
	fs.BoolVar(&c.sourceMap, "sourcemap", false, "Write a source map next to the -o file")
	fs.StringVar(&c.configFile, "config", "", "Use specific config `file`")
	fs.BoolVar(&c.noConfig, "no-config", false, "Ignore config files")
	fs.BoolVar(&c.static, "static", false, "Resolve instance branches at build time")
	fs.BoolVar(&c.dynamic, "dynamic", false, "Keep instance branches as run-time conditions")
	fs.Var(c.bools, "db", "Define a boolean `name=value` (repeatable)")
	fs.Var(c.ints, "di", "Define an integer `name=value` (repeatable)")
	fs.Var(c.strs, "ds", "Define a string `name=value` (repeatable)")
	fs.Var(c.instances, "r", "Replace instance variable `name=text` (repeatable)")
	fs.Var(&c.prefixes, "I", "Add include search `dir` (repeatable)")
	fs.Var(&c.diags, "diag", "Set diagnostic `CODE=LEVEL` (off, error, warning, info)")
	fs.StringVar(&c.archive, "archive", "", "Resolve includes from shader archive `file`")
	fs.StringVar(&c.key, "key", "", "Archive `key`")
	fs.BoolVar(&c.watch, "watch", false, "Re-run when the input, includes or config change")
	fs.StringVar(&c.colorMode, "color", "auto", "Color diagnostics: auto, always or never")
	fs.StringVar(&c.evaluate, "evaluate", "", "Print the value of `expr` and exit")
	fs.StringVar(&c.codegen, "codegen", "", "Print the run-time form of `expr` and exit")
	fs.BoolVar(&c.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "pps - shader preprocessor v%s\n\n", api.Version)
		fmt.Fprintf(stderr, "Usage: pps [options] <input.wgsl>\n")
		fmt.Fprintf(stderr, "       cat input.wgsl | pps [options]\n")
		fmt.Fprintf(stderr, "       pps pack -o shaders.ppsa -key <key> <files...>\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nConfig file:\n")
		fmt.Fprintf(stderr, "  Searches for pps.json, pps.yaml or .ppsrc in the input's and parent directories.\n")
		fmt.Fprintf(stderr, "  CLI flags override config file settings.\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  pps -db useShadow=false -r isRaster=pass.isRaster shader.wgsl -o out.wgsl\n")
		fmt.Fprintf(stderr, "  pps -static -I shaders/include shader.wgsl\n")
		fmt.Fprintf(stderr, "  pps -evaluate '@count * 2' -di count=4\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.static && c.dynamic {
		return nil, fmt.Errorf("-static and -dynamic are mutually exclusive")
	}
	if c.sourceMap && c.outputFile == "" {
		return nil, fmt.Errorf("-sourcemap needs -o")
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected one input file, got %d", fs.NArg())
	}
	c.input = fs.Arg(0)
	return c, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if err := setColor(c.colorMode); err != nil {
		return err
	}

	if c.showVersion {
		fmt.Fprintf(stdout, "pps v%s (%s)\n", api.Version, commit)
		return nil
	}

	cfg, configPath, err := c.loadConfig()
	if err != nil {
		return err
	}

	if c.evaluate != "" || c.codegen != "" {
		return runExpression(c, cfg, stdout, stderr)
	}

	if c.watch {
		if c.input == "" {
			return fmt.Errorf("-watch needs an input file")
		}
		return watch(ctx, c, configPath, stdout, stderr)
	}

	var text string
	if c.input != "" {
		text, err = source.ReadFile(c.input)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
	} else {
		if f, ok := stdin.(*os.File); ok {
			if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
				return fmt.Errorf("no input file specified")
			}
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		if text, err = source.Decode(data); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	if c.outputFile != "" && configPath != "" {
		fmt.Fprintf(stderr, "Using config: %s\n", configPath)
	}
	return processOnce(c, cfg, text, stdout, stderr)
}

// loadConfig finds and loads the config file and applies CLI overrides.
// The result is never nil.
func (c *cli) loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if !c.noConfig {
		if c.configFile != "" {
			cfg, err = config.LoadFile(c.configFile)
			if err != nil {
				return nil, "", fmt.Errorf("loading config file %s: %w", c.configFile, err)
			}
			path = c.configFile
		} else {
			startDir, _ := os.Getwd()
			if c.input != "" {
				startDir = filepath.Dir(c.input)
			}
			cfg, path, err = config.Load(startDir)
			if err != nil {
				return nil, "", fmt.Errorf("loading config: %w", err)
			}
		}
	}

	overrides := config.MergeOptions{
		Bools:     c.bools,
		Ints:      c.ints,
		Strings:   c.strs,
		Instances: c.instances,
		Prefixes:  c.prefixes,
		Archive:   c.archive,
		Key:       c.key,
	}
	switch {
	case c.static:
		overrides.Static = &c.static
	case c.dynamic:
		static := false
		overrides.Static = &static
	}
	if len(c.diags) > 0 {
		overrides.Diagnostics = make(map[string]string, len(c.diags))
		for _, rule := range c.diags {
			if err := diagnostic.NewFilter().ParseRule(rule); err != nil {
				return nil, "", err
			}
			code, level, _ := strings.Cut(rule, "=")
			overrides.Diagnostics[code] = level
		}
	}
	return cfg.Merge(overrides), path, nil
}

// options builds preprocessor options from cfg, opening the archive if
// one is configured. The returned close function is never nil.
func options(cfg *config.Config, fileName string) (preprocessor.Options, func() error, error) {
	noop := func() error { return nil }
	opts, err := cfg.ToOptions()
	if err != nil {
		return opts, noop, err
	}
	opts.FileName = fileName
	if cfg.Archive == "" {
		return opts, noop, nil
	}
	archive, err := loader.Open(cfg.Archive)
	if err != nil {
		return opts, noop, fmt.Errorf("opening archive: %w", err)
	}
	opts.Loader = archive
	return opts, archive.Close, nil
}

func processOnce(c *cli, cfg *config.Config, text string, stdout, stderr io.Writer) error {
	name := c.input
	if name == "" {
		name = "<stdin>"
	}
	opts, closeArchive, err := options(cfg, name)
	if err != nil {
		return err
	}
	defer closeArchive()
	if c.sourceMap {
		opts.SourceMap = true
		opts.OutputName = filepath.Base(c.outputFile)
	}

	result := preprocessor.New(opts).Process(text)
	if err := writeDiagnostics(stderr, result.Diagnostics); err != nil {
		return err
	}

	code := result.Code
	if result.SourceMap != nil {
		code += result.SourceMap.ToComment(false) + "\n"
		if err := os.WriteFile(c.outputFile+".map", []byte(result.SourceMap.ToJSON()), 0o644); err != nil {
			return fmt.Errorf("writing source map: %w", err)
		}
	}
	if err := writeOutput(c.outputFile, stdout, code); err != nil {
		return err
	}

	if c.outputFile != "" {
		fmt.Fprintf(stderr, "Processed: %s\n", preprocessor.FormatStats(result.Stats))
	}
	if result.HasErrors() {
		return errDiagnostics
	}
	return nil
}

func runExpression(c *cli, cfg *config.Config, stdout, stderr io.Writer) error {
	ctx := cfg.ToContext()
	var (
		out   string
		diags []diagnostic.Diagnostic
	)
	if c.evaluate != "" {
		v, d := preprocessor.Evaluate(c.evaluate, ctx)
		out, diags = v.String(), d
	} else {
		out, diags = preprocessor.Generate(c.codegen, ctx)
	}
	if err := writeDiagnostics(stderr, diags); err != nil {
		return err
	}
	fmt.Fprintln(stdout, out)
	for _, d := range diags {
		if d.Severity == diagnostic.Error {
			return errDiagnostics
		}
	}
	return nil
}

func writeOutput(path string, stdout io.Writer, code string) error {
	if path == "" {
		_, err := io.WriteString(stdout, code)
		return err
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func writeDiagnostics(w io.Writer, diags []diagnostic.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	dl := diagnostic.NewList()
	for _, d := range diags {
		dl.Add(d)
	}
	if err := dl.WriteColor(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, dl.Summary())
	return err
}

func setColor(mode string) error {
	switch mode {
	case "auto":
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid -color %q (want auto, always or never)", mode)
	}
	return nil
}
