package main

import (
	"fmt"
	"strconv"
	"strings"
)

// boolDefines collects repeatable -db name=true|false flags.
type boolDefines map[string]bool

func (m boolDefines) String() string { return fmt.Sprint(map[string]bool(m)) }

func (m boolDefines) Set(s string) error {
	name, value, err := splitDefine(s)
	if err != nil {
		return err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: not a boolean: %q", name, value)
	}
	m[name] = b
	return nil
}

// intDefines collects repeatable -di name=N flags.
type intDefines map[string]int64

func (m intDefines) String() string { return fmt.Sprint(map[string]int64(m)) }

func (m intDefines) Set(s string) error {
	name, value, err := splitDefine(s)
	if err != nil {
		return err
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: not an integer: %q", name, value)
	}
	m[name] = i
	return nil
}

// stringDefines collects repeatable name=text flags (-ds and -r).
type stringDefines map[string]string

func (m stringDefines) String() string { return fmt.Sprint(map[string]string(m)) }

func (m stringDefines) Set(s string) error {
	name, value, err := splitDefine(s)
	if err != nil {
		return err
	}
	m[name] = value
	return nil
}

// listFlag collects repeatable string flags.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

func splitDefine(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid define %q (want name=value)", s)
	}
	return name, value, nil
}
