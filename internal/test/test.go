// Package test provides testing utilities for the preprocessor.
//
// This follows esbuild's testing patterns with helper functions
// for assertions, diffs, and common test patterns.
package test

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HugoDaniel/pps/internal/diagnostic"
)

// AssertEqual checks if two values are equal and reports a test error if not.
func AssertEqual[T comparable](t *testing.T, actual, expected T) {
	t.Helper()
	if actual != expected {
		t.Errorf("\nexpected: %v\nactual:   %v", expected, actual)
	}
}

// AssertEqualWithDiff checks if two strings are equal and shows a
// line diff if not.
func AssertEqualWithDiff(t *testing.T, actual, expected string) {
	t.Helper()
	if actual != expected {
		t.Errorf("\n%s", Diff(expected, actual))
	}
}

// AssertDiff compares arbitrary values with cmp.
func AssertDiff(t *testing.T, actual, expected any, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		t.Errorf("mismatch (-expected +actual):\n%s", diff)
	}
}

// Diff produces a line-by-line diff between two strings.
func Diff(expected, actual string) string {
	return "--- expected\n+++ actual\n" + cmp.Diff(strings.Split(expected, "\n"), strings.Split(actual, "\n"))
}

// Codes returns the codes of diags in order.
func Codes(diags []diagnostic.Diagnostic) []diagnostic.Code {
	codes := make([]diagnostic.Code, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
	}
	return codes
}

// AssertCodes checks that diags carry exactly the expected codes, in order.
func AssertCodes(t *testing.T, diags []diagnostic.Diagnostic, expected ...diagnostic.Code) {
	t.Helper()
	if actual := Codes(diags); !slices.Equal(actual, expected) {
		t.Errorf("\nexpected codes: %v\nactual codes:   %v", expected, actual)
		for i := range diags {
			t.Logf("  %s", diagnostic.FormatDiagnostic(&diags[i]))
		}
	}
}
