package stackframe

import (
	"testing"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

func obj(fields map[string]testmodel.Value) testmodel.ValueObject {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return testmodel.ValueObject{Keys: keys, Fields: fields}
}

func TestDiff_EqualValuesReturnEqualSummary(t *testing.T) {
	a := testmodel.ValueInt{Value: 1}
	b := testmodel.ValueInt{Value: 1}
	d := Diff(a, b)
	if d == nil || d.Summary != "values are equal" {
		t.Fatalf("expected equal summary, got %+v", d)
	}
}

func TestDiff_ChangedPrimitiveField(t *testing.T) {
	expected := obj(map[string]testmodel.Value{"count": testmodel.ValueInt{Value: 1}})
	actual := obj(map[string]testmodel.Value{"count": testmodel.ValueInt{Value: 2}})

	d := Diff(expected, actual)
	if d == nil {
		t.Fatal("expected non-nil diff")
	}
	if len(d.ChangedPaths) != 1 || d.ChangedPaths[0].Path != "$.count" {
		t.Fatalf("unexpected changed paths: %+v", d.ChangedPaths)
	}
}

func TestDiff_MissingAndExtraKeys(t *testing.T) {
	expected := obj(map[string]testmodel.Value{"a": testmodel.ValueInt{Value: 1}, "b": testmodel.ValueInt{Value: 2}})
	actual := obj(map[string]testmodel.Value{"a": testmodel.ValueInt{Value: 1}, "c": testmodel.ValueInt{Value: 3}})

	d := Diff(expected, actual)
	if len(d.MissingKeys) != 1 || d.MissingKeys[0] != "$.b" {
		t.Errorf("unexpected missing keys: %+v", d.MissingKeys)
	}
	if len(d.ExtraKeys) != 1 || d.ExtraKeys[0] != "$.c" {
		t.Errorf("unexpected extra keys: %+v", d.ExtraKeys)
	}
}

func TestDiff_ArrayLengthMismatch(t *testing.T) {
	expected := testmodel.ValueArray{Items: []testmodel.Value{testmodel.ValueInt{Value: 1}, testmodel.ValueInt{Value: 2}}}
	actual := testmodel.ValueArray{Items: []testmodel.Value{testmodel.ValueInt{Value: 1}}}

	d := Diff(expected, actual)
	if d.LengthMismatch == nil || d.LengthMismatch.Expected != 2 || d.LengthMismatch.Actual != 1 {
		t.Fatalf("unexpected length mismatch: %+v", d.LengthMismatch)
	}
}

func TestDiff_CapsChangedPathsAndMarksTruncated(t *testing.T) {
	fields := map[string]testmodel.Value{}
	actualFields := map[string]testmodel.Value{}
	for i := 0; i < maxDiffPaths+5; i++ {
		key := string(rune('a' + i%26))
		fields[key] = testmodel.ValueInt{Value: int64(i)}
		actualFields[key] = testmodel.ValueInt{Value: int64(i + 1)}
	}
	d := Diff(obj(fields), obj(actualFields))
	if !d.Truncated {
		t.Error("expected Truncated to be set once the path cap is exceeded")
	}
	if len(d.ChangedPaths) > maxDiffPaths {
		t.Errorf("expected at most %d changed paths, got %d", maxDiffPaths, len(d.ChangedPaths))
	}
}
