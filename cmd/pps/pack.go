package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/HugoDaniel/pps/internal/loader"
)

// runPack implements "pps pack": it writes the given files, or every file
// under the given directories, into an encrypted shader archive. Entry
// names are the paths relative to -C.
func runPack(args []string, stderr io.Writer) error {
	fset := flag.NewFlagSet("pps pack", flag.ContinueOnError)
	fset.SetOutput(stderr)
	output := fset.String("o", "", "Write the archive to `file` (required)")
	key := fset.String("key", "", "Encryption `key`")
	base := fset.String("C", ".", "Name entries relative to `dir`")
	fset.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pps pack -o shaders.ppsa -key <key> [-C dir] <files or dirs...>\n\n")
		fset.PrintDefaults()
	}
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *output == "" || fset.NArg() == 0 {
		fset.Usage()
		return fmt.Errorf("pack needs -o and at least one input")
	}

	names, err := collect(*base, fset.Args())
	if err != nil {
		return err
	}

	f, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	w, err := loader.NewWriter(f, *key)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := w.AddFile(name, filepath.Join(*base, name)); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Packed %d shaders into %s\n", len(names), *output)
	return f.Close()
}

// collect expands inputs into entry names relative to base.
func collect(base string, inputs []string) ([]string, error) {
	var names []string
	add := func(path string) error {
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	}
	for _, in := range inputs {
		path := filepath.Join(base, in)
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := add(path); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			return add(p)
		})
		if err != nil {
			return nil, err
		}
	}
	return names, nil
}
