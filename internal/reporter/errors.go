package reporter

import "fmt"

// ConfigError is raised only at Reporter construction, per spec.md §7.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("reporter: invalid configuration: %s", e.Reason)
}

// WriteError wraps a failure from the external Writer collaborator; it is
// surfaced to the caller unmodified in content, per spec.md §7.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("reporter: failed to write document: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
