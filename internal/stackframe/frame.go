// Package stackframe implements the Assertion Diff / Stack Framer:
// parsing raw stack traces into classified frames (in-project vs.
// dependency vs. unresolved) and walking expected/actual assertion values
// into a structured diff. No other package in this module imports it;
// internal/document's Output Builder emits the stack frames and diff a
// TestError already carries.
package stackframe

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hansjm10/go-llm-reporter/internal/pathvalidate"
	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

// frameLinePattern matches a V8-style stack trace line's "at ..." prefix,
// e.g. "    at add (src/math.go:12:5)" or the bare
// "    at src/math.go:12:5" form frameworks emit without a named frame.
var frameLinePattern = regexp.MustCompile(`^\s*at\s+(.*)$`)

// locationPattern extracts the trailing "file:line:col", optionally
// wrapped in parentheses, from a frameLinePattern match's remainder.
var locationPattern = regexp.MustCompile(`\(?([^()\s]+):(\d+):(\d+)\)?\s*$`)

// dependencyDirPattern matches path segments that mark a frame as
// belonging to a third-party dependency rather than the project under
// test — the node_modules analogue spec.md §4.4 names, generalized to the
// handful of equivalent conventions across ecosystems.
var dependencyDirPattern = regexp.MustCompile(`(^|/)(node_modules|vendor|\.pnpm|site-packages)(/|$)`)

// RawFrame is one unparsed frame location, as a test framework reports it.
type RawFrame struct {
	File   string
	Line   int
	Column int
}

// ParseStackTrace extracts RawFrames from a raw multi-line stack trace
// string and classifies each against projectRoot.
func ParseStackTrace(raw, projectRoot string, windows bool) []testmodel.StackFrame {
	var frames []testmodel.StackFrame
	for _, line := range strings.Split(raw, "\n") {
		m := frameLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		loc := locationPattern.FindStringSubmatch(m[1])
		if loc == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(loc[2])
		col, _ := strconv.Atoi(loc[3])
		frames = append(frames, ClassifyFrame(projectRoot, RawFrame{File: loc[1], Line: lineNum, Column: col}, windows))
	}
	return frames
}

// ClassifyFrame resolves raw.File against projectRoot and sets InProject,
// InNodeModules and Unresolved per spec.md §4.4: InProject is true iff the
// file resolves inside the root and is not under a dependency directory;
// InNodeModules is true iff it matches the dependency-directory pattern.
// A frame whose file cannot be resolved against the root at all (it fails
// path validation or escapes the root) gets neither flag set and Unresolved is
// true instead — SPEC_FULL.md §11.5's documented extension of spec.md's
// two-flag classification.
func ClassifyFrame(projectRoot string, raw RawFrame, windows bool) testmodel.StackFrame {
	abs, err := pathvalidate.ResolveWithinRoot(projectRoot, raw.File, windows)
	if err != nil {
		return testmodel.StackFrame{
			FileRelative: raw.File,
			Line:         raw.Line,
			Column:       raw.Column,
			Unresolved:   true,
		}
	}

	rel, err := filepath.Rel(projectRoot, abs)
	if err != nil {
		rel = raw.File
	}
	inDependency := dependencyDirPattern.MatchString(filepath.ToSlash(rel))

	return testmodel.StackFrame{
		FileRelative:  rel,
		Line:          raw.Line,
		Column:        raw.Column,
		InProject:     !inDependency,
		InNodeModules: inDependency,
	}
}
