// Package envprobe implements the Runtime Environment Probe: a one-shot
// snapshot of OS/runtime/CI metadata taken once per run and embedded under
// summary.environment in the final document.
package envprobe

import (
	"bufio"
	"os"
	"runtime"
	"strings"
)

// OSInfo mirrors the schema's summary.environment.os block.
type OSInfo struct {
	Platform string
	Arch     string
	Version  string
}

// RuntimeInfo mirrors the schema's summary.environment.node block. The
// field is named for the schema's stable JSON key (spec.md §6.1 is
// declared schema-stable); this module populates it with the Go runtime's
// own identity rather than a Node.js one — see DESIGN.md's internal/envprobe
// section for the documented decision.
type RuntimeInfo struct {
	Version string
	Runtime string
}

// Snapshot is the probed environment metadata for one run.
type Snapshot struct {
	RunID            string
	OS               OSInfo
	Runtime          RuntimeInfo
	FrameworkVersion string
	PackageManager   string
	CI               bool
}

// Config gates which optional facets Probe includes, mirroring spec.md
// §6.3's environmentMetadata options.
type Config struct {
	Enabled                 bool
	IncludeOSVersion        bool
	IncludeNodeRuntime      bool
	IncludeFrameworkVersion bool
	IncludePackageManager   bool
	IncludeCI               bool

	// FrameworkVersion and PackageManager are supplied by the host
	// framework adapter, which is the only place that knows them; the
	// probe itself has no way to introspect a caller's framework version.
	FrameworkVersion string
	PackageManager   string
}

// DefaultConfig returns the spec.md §6.3 defaults for environmentMetadata.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		IncludeOSVersion:   true,
		IncludeNodeRuntime: true,
		IncludeCI:          true,
	}
}

// Probe captures a Snapshot under cfg. Called once at reporter
// construction (spec.md §4.4: "captured once at construction").
func Probe(runID string, cfg Config) Snapshot {
	if !cfg.Enabled {
		return Snapshot{RunID: runID}
	}

	snap := Snapshot{
		RunID: runID,
		OS: OSInfo{
			Platform: runtime.GOOS,
			Arch:     runtime.GOARCH,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
		},
	}
	if cfg.IncludeNodeRuntime {
		snap.Runtime.Runtime = "go"
	}
	if cfg.IncludeOSVersion {
		snap.OS.Version = osRelease()
	}
	if cfg.IncludeCI {
		snap.CI = detectCI()
	}
	if cfg.IncludeFrameworkVersion {
		snap.FrameworkVersion = cfg.FrameworkVersion
	}
	if cfg.IncludePackageManager {
		snap.PackageManager = cfg.PackageManager
	}
	return snap
}

// detectCI reports whether any of the handful of widely-used CI
// environment variables are set.
func detectCI() bool {
	for _, key := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE", "JENKINS_URL"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// osRelease best-effort reads the distribution version from
// /etc/os-release (Linux); it returns "" on any other platform or if the
// file is unreadable, rather than failing the probe.
func osRelease() string {
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VERSION_ID=") {
			continue
		}
		return strings.Trim(strings.TrimPrefix(line, "VERSION_ID="), `"`)
	}
	return ""
}
