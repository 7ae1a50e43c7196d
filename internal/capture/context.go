package capture

import "context"

// testIDKey is the unexported context-value key used for per-test
// attribution. Go has no implicit thread-local or async-local storage; a
// goroutine that wants attribution must be started with
// context.Context passed explicitly, e.g. go func(ctx context.Context){...}(ctx).
type testIDKey struct{}

// WithTestID returns a copy of ctx carrying testID as the ambient
// attribution value. Binding a new testID on a context that already
// carries one shadows the old value for the lifetime of the returned
// context only — the parent ctx is never mutated, so unbinding is purely
// structural: once a call returns its bound context, there is nothing left
// holding a reference to it.
func WithTestID(ctx context.Context, testID string) context.Context {
	return context.WithValue(ctx, testIDKey{}, testID)
}

// TestIDFromContext reports the testID bound into ctx by WithTestID, if
// any.
func TestIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(testIDKey{})
	if v == nil {
		return "", false
	}
	testID, ok := v.(string)
	return testID, ok && testID != ""
}
