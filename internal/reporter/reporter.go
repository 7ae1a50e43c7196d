// Package reporter implements the Reporter Facade: the single entry point
// a host test framework drives, wiring the Event Orchestrator, Console
// Capture, Output Builder, Late Truncator and Runtime Environment Probe
// together behind the inbound Hooks interface (spec.md §6.2).
package reporter

import (
	"time"

	"github.com/hansjm10/go-llm-reporter/internal/capture"
	"github.com/hansjm10/go-llm-reporter/internal/config"
	"github.com/hansjm10/go-llm-reporter/internal/dedup"
	"github.com/hansjm10/go-llm-reporter/internal/document"
	"github.com/hansjm10/go-llm-reporter/internal/envprobe"
	"github.com/hansjm10/go-llm-reporter/internal/orchestrator"
	"github.com/hansjm10/go-llm-reporter/internal/truncate"
	"github.com/hansjm10/go-llm-reporter/pkg/logging"
)

// Writer is the external persistence collaborator. Flush wraps an error
// from it in a *WriteError and returns that to the caller (spec.md §7).
type Writer interface {
	Write(doc *document.ReporterDocument) error
}

// Options carries everything beyond a *config.Config that a Reporter needs
// at construction but that doesn't belong in the on-disk config surface:
// the project root and whether paths are Windows-shaped (both stored on the
// Reporter; the document build does not classify stack frames, so neither
// affects the emitted document), and the optional framework-supplied
// metadata the probe can't introspect on its own.
type Options struct {
	ProjectRoot      string
	Windows          bool
	FrameworkVersion string
	PackageManager   string
	Writer           Writer
}

// Reporter is the Reporter Facade. It embeds *orchestrator.Orchestrator so
// every orchestrator.Hooks method is promoted automatically; OnRunEnd is
// overridden to additionally build, truncate and persist the document.
type Reporter struct {
	*orchestrator.Orchestrator

	cfg     *config.Config
	capture *capture.Manager
	env     envprobe.Snapshot
	writer  Writer

	projectRoot string
	windows     bool

	truncator *truncate.Truncator
	builder   *document.Builder
}

// New constructs a Reporter from a validated Config. A malformed noise
// pattern in cfg.Stdio.FilterPattern is the one construction-time
// *ConfigError this package raises, per spec.md §7.
func New(cfg *config.Config, opts Options) (*Reporter, error) {
	captureCfg := capture.Config{
		MaxConsoleBytes:    cfg.MaxConsoleBytes,
		MaxConsoleLines:    cfg.MaxConsoleLines,
		IncludeDebugOutput: cfg.IncludeDebugOutput,
		GracePeriod:        time.Duration(cfg.GracePeriodMs) * time.Millisecond,
		NoisePatterns:      cfg.Stdio.FilterPattern,
		Dedup: dedup.Config{
			Enabled:             cfg.DeduplicateLogs.Enabled,
			MaxCacheEntries:     cfg.DeduplicateLogs.MaxCacheEntries,
			IncludeSources:      cfg.DeduplicateLogs.IncludeSources,
			NormalizeWhitespace: cfg.DeduplicateLogs.NormalizeWhitespace,
			StripTimestamps:     cfg.DeduplicateLogs.StripTimestamps,
			StripAnsiCodes:      cfg.DeduplicateLogs.StripAnsiCodes,
			Scope:               cfg.DedupScope(),
		},
	}

	mgr, err := capture.NewManager(captureCfg)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	o := orchestrator.New(orchestrator.Config{
		GracePeriod: time.Duration(cfg.GracePeriodMs) * time.Millisecond,
		Capture:     mgr,
	})

	env := envprobe.Probe(o.RunID(), envprobe.Config{
		Enabled:                 cfg.EnvironmentMetadata.Enabled,
		IncludeOSVersion:        cfg.EnvironmentMetadata.IncludeOsVersion,
		IncludeNodeRuntime:      cfg.EnvironmentMetadata.IncludeNodeRuntime,
		IncludeFrameworkVersion: cfg.EnvironmentMetadata.IncludeVitest,
		IncludePackageManager:   cfg.EnvironmentMetadata.IncludePackageManager,
		IncludeCI:               cfg.EnvironmentMetadata.IncludeCi,
		FrameworkVersion:        opts.FrameworkVersion,
		PackageManager:          opts.PackageManager,
	})

	truncCfg := truncate.Config{}
	if cfg.Truncation.Enabled && cfg.Truncation.EnableLateTruncation {
		truncCfg.MaxTokens = cfg.Truncation.MaxTokens
	}

	r := &Reporter{
		Orchestrator: o,
		cfg:          cfg,
		capture:      mgr,
		env:          env,
		writer:       opts.Writer,
		projectRoot:  opts.ProjectRoot,
		windows:      opts.Windows,
		truncator:    truncate.New(truncCfg),
	}
	r.builder = document.NewBuilder(o, mgr, env)
	return r, nil
}

// OnRunStart satisfies the host framework's full inbound interface
// (spec.md §6.2); the orchestrator stamps its own start time at
// construction, so this is a log line, not a state transition.
func (r *Reporter) OnRunStart() {
	logging.Info("reporter", "run %s started", r.Orchestrator.RunID())
}

// OnRunEnd overrides the embedded Orchestrator's OnRunEnd to additionally
// assemble, truncate and persist the final document.
func (r *Reporter) OnRunEnd(reason string) {
	r.Orchestrator.OnRunEnd(reason)

	doc, err := r.Flush()
	if err != nil {
		logging.Error("reporter", err, "failed to write reporter document")
	}
	_ = doc
}

// Flush builds the document from current orchestrator state, applies the
// Late Truncator, persists it via the configured Writer (if any), and
// returns the final document. Call this after OnRunEnd.
func (r *Reporter) Flush() (*document.ReporterDocument, error) {
	doc := r.builder.Build()
	doc = r.truncator.Truncate(doc)

	if r.writer == nil {
		return doc, nil
	}
	if err := r.writer.Write(doc); err != nil {
		return doc, &WriteError{Err: err}
	}
	return doc, nil
}

// TruncationMetrics exposes the Late Truncator's bounded metrics ring
// buffer for diagnostics (SPEC_FULL.md §11.1).
func (r *Reporter) TruncationMetrics() []truncate.Metrics {
	return r.truncator.Metrics()
}

// Environment exposes the probed environment snapshot, mainly for a demo
// harness rendering it outside the final document.
func (r *Reporter) Environment() envprobe.Snapshot {
	return r.env
}

var _ orchestrator.Hooks = (*Reporter)(nil)
