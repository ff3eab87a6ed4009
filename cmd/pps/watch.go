package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/HugoDaniel/pps/internal/source"
)

// debounce is how long the watcher waits for a burst of changes to settle.
const debounce = 100 * time.Millisecond

// watcher re-runs the preprocessor whenever the input, an include
// directory or the config file changes.
type watcher struct {
	fs         *fsnotify.Watcher
	cli        *cli
	configPath string
	output     string
	stdout     io.Writer
	stderr     io.Writer
	runs       int
}

func watch(ctx context.Context, c *cli, configPath string, stdout, stderr io.Writer) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{
		fs:         fsw,
		cli:        c,
		configPath: configPath,
		stdout:     stdout,
		stderr:     stderr,
	}
	if c.outputFile != "" {
		w.output, _ = filepath.Abs(c.outputFile)
	}

	w.rebuild()
	if err := w.addDirs(); err != nil {
		return err
	}
	return w.loop(ctx)
}

// addDirs watches the input's directory, the config file's directory and
// every include prefix recursively.
func (w *watcher) addDirs() error {
	if err := w.fs.Add(filepath.Dir(w.cli.input)); err != nil {
		return fmt.Errorf("watching %s: %w", w.cli.input, err)
	}
	w.logInfo("watching input: %s", w.cli.input)

	if w.configPath != "" {
		if err := w.fs.Add(filepath.Dir(w.configPath)); err != nil {
			w.logError("failed to watch config dir: %v", err)
		} else {
			w.logInfo("watching config: %s", w.configPath)
		}
	}

	cfg, _, err := w.cli.loadConfig()
	if err != nil {
		return err
	}
	for _, dir := range cfg.Prefixes {
		if err := w.addRecursive(dir); err != nil {
			w.logError("failed to watch include dir %s: %v", dir, err)
		} else {
			w.logInfo("watching includes: %s", dir)
		}
	}
	return nil
}

func (w *watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *watcher) loop(ctx context.Context) error {
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			settle = time.After(debounce)

		case <-settle:
			settle = nil
			w.rebuild()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logError("watcher error: %v", err)
		}
	}
}

func (w *watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	if w.output != "" {
		if abs, err := filepath.Abs(event.Name); err == nil && abs == w.output {
			return false
		}
	}
	return true
}

// rebuild reloads the config and input and processes them again. Failures
// are logged and watching continues.
func (w *watcher) rebuild() {
	w.runs++
	cfg, _, err := w.cli.loadConfig()
	if err != nil {
		w.logError("%v", err)
		return
	}
	text, err := source.ReadFile(w.cli.input)
	if err != nil {
		w.logError("reading input: %v", err)
		return
	}
	err = processOnce(w.cli, cfg, text, w.stdout, w.stderr)
	switch {
	case errors.Is(err, errDiagnostics):
		w.logInfo("build %d finished with errors", w.runs)
	case err != nil:
		w.logError("%v", err)
	default:
		w.logInfo("build %d ok", w.runs)
	}
}

func (w *watcher) logInfo(format string, args ...any) {
	fmt.Fprintf(w.stderr, "%s %s\n", color.CyanString("[watch]"), fmt.Sprintf(format, args...))
}

func (w *watcher) logError(format string, args ...any) {
	fmt.Fprintf(w.stderr, "%s %s\n", color.CyanString("[watch]"), color.RedString(format, args...))
}
