package stackframe

import (
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

// maxDiffDepth and maxDiffPaths cap traversal per spec.md §4.4: "depth 10
// and 20 reported paths; beyond that set truncated = true".
const (
	maxDiffDepth = 10
	maxDiffPaths = 20
)

// Diff walks expected and actual, both structured assertion values, and
// produces the changedPaths/missingKeys/extraKeys/lengthMismatch insight
// set. A cmp.Equal fast path avoids the custom walk entirely when the two
// values are already structurally identical — cheap relative to the
// per-field recursion below, and the common case for a passing assertion
// that still got routed through Diff by a caller that hadn't checked yet.
func Diff(expected, actual testmodel.Value) *testmodel.Diff {
	if expected == nil || actual == nil {
		return nil
	}
	if cmp.Equal(testmodel.ToJSONValue(expected), testmodel.ToJSONValue(actual)) {
		return &testmodel.Diff{Summary: "values are equal"}
	}

	w := &walker{}
	w.walk("$", expected, actual, 0)

	return &testmodel.Diff{
		Summary:        w.summary(),
		ChangedPaths:   w.changedPaths,
		MissingKeys:    w.missingKeys,
		ExtraKeys:      w.extraKeys,
		LengthMismatch: w.lengthMismatch,
		Truncated:      w.truncated,
	}
}

type walker struct {
	changedPaths   []testmodel.ChangedPath
	missingKeys    []string
	extraKeys      []string
	lengthMismatch *testmodel.LengthMismatch
	truncated      bool
}

func (w *walker) walk(path string, expected, actual testmodel.Value, depth int) {
	if depth > maxDiffDepth {
		w.truncated = true
		return
	}
	if cmp.Equal(testmodel.ToJSONValue(expected), testmodel.ToJSONValue(actual)) {
		return
	}

	eo, eok := expected.(testmodel.ValueObject)
	ao, aok := actual.(testmodel.ValueObject)
	if eok && aok {
		w.walkObject(path, eo, ao, depth)
		return
	}

	ea, eaok := expected.(testmodel.ValueArray)
	aa, aaok := actual.(testmodel.ValueArray)
	if eaok && aaok {
		w.walkArray(path, ea, aa, depth)
		return
	}

	w.addChanged(path, expected, actual)
}

func (w *walker) walkObject(path string, expected, actual testmodel.ValueObject, depth int) {
	remaining := make(map[string]struct{}, len(actual.Keys))
	for _, k := range actual.Keys {
		remaining[k] = struct{}{}
	}
	for _, k := range expected.Keys {
		av, ok := actual.Fields[k]
		if !ok {
			w.missingKeys = append(w.missingKeys, joinPath(path, k))
			continue
		}
		delete(remaining, k)
		w.walk(joinPath(path, k), expected.Fields[k], av, depth+1)
	}
	for _, k := range actual.Keys {
		if _, ok := remaining[k]; ok {
			w.extraKeys = append(w.extraKeys, joinPath(path, k))
		}
	}
}

func (w *walker) walkArray(path string, expected, actual testmodel.ValueArray, depth int) {
	if len(expected.Items) != len(actual.Items) {
		w.lengthMismatch = &testmodel.LengthMismatch{Expected: len(expected.Items), Actual: len(actual.Items)}
	}
	n := len(expected.Items)
	if len(actual.Items) < n {
		n = len(actual.Items)
	}
	for i := 0; i < n; i++ {
		w.walk(indexPath(path, i), expected.Items[i], actual.Items[i], depth+1)
	}
}

func (w *walker) addChanged(path string, expected, actual testmodel.Value) {
	if len(w.changedPaths) >= maxDiffPaths {
		w.truncated = true
		return
	}
	w.changedPaths = append(w.changedPaths, testmodel.ChangedPath{Path: path, Expected: expected, Actual: actual})
}

func (w *walker) summary() string {
	return fmt.Sprintf("%d changed path(s), %d missing key(s), %d extra key(s)",
		len(w.changedPaths), len(w.missingKeys), len(w.extraKeys))
}

func joinPath(path, key string) string {
	return path + "." + key
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
