package capture

import (
	"bytes"
	"io"
	"sync"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
	"github.com/hansjm10/go-llm-reporter/pkg/logging"
)

// StdioInterceptor is the raw-byte-level patch point for os.Stdout/
// os.Stderr. It always forwards the original bytes to the wrapped writer
// first — this path never changes what a human watching the real terminal
// sees — and, best-effort, attributes complete lines to the Manager's
// current active test for inclusion in that test's ConsoleBuffer, dropping
// lines that match a configured framework-noise pattern from capture (not
// from the terminal forward).
//
// Line buffering is maintained across Write call boundaries: a chunk that
// ends mid-line holds its tail in partial until the next Write or Detach
// supplies (or forces) the rest.
type StdioInterceptor struct {
	mu      sync.Mutex
	orig    io.Writer
	origin  testmodel.ConsoleOrigin
	manager *Manager
	level   testmodel.Level
	partial []byte
}

// NewStdioInterceptor wraps orig (typically os.Stdout or os.Stderr).
func NewStdioInterceptor(orig io.Writer, origin testmodel.ConsoleOrigin, manager *Manager) *StdioInterceptor {
	level := testmodel.LevelLog
	if origin == testmodel.OriginStderr {
		level = testmodel.LevelError
	}
	return &StdioInterceptor{orig: orig, origin: origin, manager: manager, level: level}
}

// Write implements io.Writer. The original writer's (n, err) is returned
// unmodified — including a non-nil err — so a caller relying on standard
// backpressure semantics (a "not ok" write) observes exactly what it would
// have without interception (spec.md §4.2 item 4).
func (s *StdioInterceptor) Write(p []byte) (int, error) {
	n, err := s.orig.Write(p)

	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("capture", nil, "recovered panic in stdio interceptor: %v", r)
			}
		}()
		s.capture(p)
	}()

	return n, err
}

func (s *StdioInterceptor) capture(p []byte) {
	s.mu.Lock()
	buf := append(s.partial, p...)
	var lines [][]byte
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, buf[:i])
		buf = buf[i+1:]
	}
	// buf may alias s.partial's backing array (append reuses spare capacity).
	// lines holds slices into that same array at lower offsets, so s.partial
	// must be reset to a freshly allocated copy, never written in place —
	// otherwise this reassignment overwrites bytes lines still points into.
	s.partial = bytes.Clone(buf)
	s.mu.Unlock()

	for _, line := range lines {
		s.emit(string(bytes.TrimRight(line, "\r")))
	}
}

func (s *StdioInterceptor) emit(line string) {
	if line == "" {
		return
	}
	if s.manager.isNoise(line) {
		return
	}
	testID, ok := s.manager.activeTestID()
	if !ok {
		// No active test to attribute to; the line is lost from capture
		// but was already forwarded to the real terminal above.
		return
	}
	s.manager.record(testID, s.level, []string{line}, s.origin)
}

// Detach hands any buffered partial line (even without a trailing newline)
// to capture and empties the line buffer; it does not stop capture, so a
// later Write is still captured. The underlying writer is left untouched —
// Write already forwarded every byte to it, and detaching only affects this
// interceptor's own line buffer.
func (s *StdioInterceptor) Detach() {
	s.mu.Lock()
	rest := s.partial
	s.partial = nil
	s.mu.Unlock()

	if len(rest) > 0 {
		s.emit(string(bytes.TrimRight(rest, "\r\n")))
	}
}
