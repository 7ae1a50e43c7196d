// Package capture implements Console Capture & Attribution: routing
// intercepted console output into the right test's ConsoleBuffer despite
// concurrent execution, with a raw-byte-level Stdio Interceptor (stdio.go)
// as a secondary, best-effort attribution layer for output that bypasses
// the context-bound path entirely.
package capture

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hansjm10/go-llm-reporter/internal/console"
	"github.com/hansjm10/go-llm-reporter/internal/dedup"
	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
	"github.com/hansjm10/go-llm-reporter/pkg/logging"
)

// DefaultGracePeriod is the spec.md §5 default buffer-retention window
// after StopCapture, during which late console events for the stopped test
// are still accepted.
const DefaultGracePeriod = 100 * time.Millisecond

// Config controls a Manager's buffer sizing, dedup behavior and noise
// filtering.
type Config struct {
	MaxConsoleBytes    int
	MaxConsoleLines    int
	IncludeDebugOutput bool
	GracePeriod        time.Duration
	Dedup              dedup.Config
	NoisePatterns      []string
}

// DefaultConfig returns the spec.md §6.3 defaults for the capture layer.
func DefaultConfig() Config {
	return Config{
		MaxConsoleBytes:    console.DefaultMaxBytes,
		MaxConsoleLines:    console.DefaultMaxLines,
		IncludeDebugOutput: false,
		GracePeriod:        DefaultGracePeriod,
		Dedup:              dedup.DefaultConfig(),
	}
}

// Manager is the Console Capture component. It owns one console.Buffer per
// live test, a dedup.Deduplicator (shared or per-test depending on
// cfg.Dedup.Scope), and the best-effort "active test" stack consulted by
// the Stdio Interceptor when no ambient context is available.
//
// mu guards every field below; it is held only across map/slice mutation,
// never across a Write to an underlying io.Writer, following the same
// never-lock-across-I/O discipline as internal/orchestrator's critical
// section.
type Manager struct {
	mu sync.Mutex

	cfg Config

	buffers       map[string]*console.Buffer
	perTestDedup  map[string]*dedup.Deduplicator
	globalDedup   *dedup.Deduplicator
	cleanupTimers map[string]*time.Timer
	activeStack   []string

	noisePatterns []*regexp.Regexp
}

// NewManager constructs a Manager. A malformed noise pattern is reported
// as a *NoisePatternError rather than silently ignored, so a config error
// surfaces at startup instead of a quietly-broken noise filter.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	m := &Manager{
		cfg:           cfg,
		buffers:       make(map[string]*console.Buffer),
		cleanupTimers: make(map[string]*time.Timer),
	}
	if cfg.Dedup.Scope == dedup.ScopeGlobal {
		m.globalDedup = dedup.New(cfg.Dedup)
	} else {
		m.perTestDedup = make(map[string]*dedup.Deduplicator)
	}
	for _, pat := range cfg.NoisePatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, &NoisePatternError{Pattern: pat, Err: err}
		}
		m.noisePatterns = append(m.noisePatterns, re)
	}
	return m, nil
}

// StartCapture installs per-test context by returning ctx bound with
// testID. Idempotent: calling it again for a testID that already has a
// live buffer reuses it rather than resetting accumulated output.
func (m *Manager) StartCapture(ctx context.Context, testID string) context.Context {
	m.ensureTest(testID)

	m.mu.Lock()
	m.activeStack = append(m.activeStack, testID)
	m.mu.Unlock()

	return WithTestID(ctx, testID)
}

// RunWithCapture executes fn with ctx bound to testID. This is the only
// guaranteed-attribution path (spec.md §4.2): every console call fn makes
// through the intercepted console methods sees the bound context. On
// return, unbinding is automatic — the bound context is a value derived
// from ctx and is discarded once this call returns; nothing in the parent
// ctx observes it.
func (m *Manager) RunWithCapture(ctx context.Context, testID string, fn func(ctx context.Context)) {
	bound := m.StartCapture(ctx, testID)
	fn(bound)
}

// StopCapture ends capture for testID and schedules the buffer's cleanup
// after the configured grace period, during which late events (arriving
// via Ingest) are still accepted.
func (m *Manager) StopCapture(testID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.cleanupTimers[testID]; ok {
		t.Stop()
	}
	m.cleanupTimers[testID] = time.AfterFunc(m.cfg.GracePeriod, func() {
		m.cleanup(testID)
	})
}

func (m *Manager) cleanup(testID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.buffers, testID)
	delete(m.cleanupTimers, testID)
	if m.perTestDedup != nil {
		delete(m.perTestDedup, testID)
	}
	for i, id := range m.activeStack {
		if id == testID {
			m.activeStack = append(m.activeStack[:i], m.activeStack[i+1:]...)
			break
		}
	}
}

// Ingest is the explicit, out-of-band ingestion path used when the
// framework reports logs without an active context — the authoritative
// source for late events, per spec.md §4.2.
func (m *Manager) Ingest(testID string, level testmodel.Level, args []string) bool {
	return m.record(testID, level, args, testmodel.OriginAPI)
}

// Write is the intercepted-console-method path: it reads the ambient
// attribution from ctx and, if present, routes the event into that test's
// buffer through the deduplicator. If ctx carries no testID, Write returns
// false and does nothing further — the caller (the intercepted console
// method) is expected to pass the call through to the original writer and
// rely on Ingest to attribute it later.
func (m *Manager) Write(ctx context.Context, level testmodel.Level, args []string, origin testmodel.ConsoleOrigin) (attributed bool) {
	testID, ok := TestIDFromContext(ctx)
	if !ok {
		return false
	}
	return m.record(testID, level, args, origin)
}

func (m *Manager) record(testID string, level testmodel.Level, args []string, origin testmodel.ConsoleOrigin) (attributed bool) {
	defer func() {
		if r := recover(); r != nil {
			// Capture failures degrade gracefully: the event is lost, but
			// the caller (a test) is never disrupted (spec.md §4.2).
			logging.Error("capture", nil, "recovered panic attributing console event for test %s: %v", testID, r)
			attributed = false
		}
	}()

	message := strings.Join(args, " ")
	nowMs := time.Now().UnixMilli()

	buf := m.ensureTest(testID)
	dd := m.dedupFor(testID)

	var meta *testmodel.Deduplication
	if dd != nil {
		isDup, entry := dd.IsDuplicate(level, message, testID, nowMs)
		if isDup {
			// Already represented by the first occurrence's ConsoleEvent,
			// whose Deduplication pointer aliases entry.Meta and so already
			// reflects the updated count.
			return true
		}
		if entry != nil {
			meta = entry.Meta
		}
	}

	buf.Append(testmodel.ConsoleEvent{
		Level:         level,
		Message:       message,
		Args:          args,
		Origin:        origin,
		Deduplication: meta,
		ArrivedAtMs:   nowMs,
	})
	return true
}

func (m *Manager) ensureTest(testID string) *console.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buf, ok := m.buffers[testID]; ok {
		return buf
	}
	buf := console.NewBuffer(m.cfg.MaxConsoleBytes, m.cfg.MaxConsoleLines, m.cfg.IncludeDebugOutput)
	m.buffers[testID] = buf
	if m.perTestDedup != nil {
		m.perTestDedup[testID] = dedup.New(m.cfg.Dedup)
	}
	return buf
}

func (m *Manager) dedupFor(testID string) *dedup.Deduplicator {
	if m.globalDedup != nil {
		return m.globalDedup
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perTestDedup[testID]
}

// Events returns the current contents of testID's ConsoleBuffer, or nil if
// no buffer exists (the test never captured, or its grace period already
// elapsed).
func (m *Manager) Events(testID string) []testmodel.ConsoleEvent {
	m.mu.Lock()
	buf, ok := m.buffers[testID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return buf.Events()
}

// activeTestID returns the most recently started, not-yet-cleaned-up
// test, used by the Stdio Interceptor as a best-effort attribution target
// when no explicit context is available. This is a documented heuristic,
// not a guarantee: os.Stdout/os.Stderr are process-global, not
// goroutine-scoped, so raw byte writes have no ambient context of their
// own. spec.md §4.2 names runWithCapture as "the only guaranteed-
// attribution path" for exactly this reason.
func (m *Manager) activeTestID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.activeStack) == 0 {
		return "", false
	}
	return m.activeStack[len(m.activeStack)-1], true
}

func (m *Manager) isNoise(line string) bool {
	for _, re := range m.noisePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
