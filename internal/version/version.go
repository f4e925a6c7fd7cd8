// Package version provides build version information and runtime metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

var (
	// These are set via ldflags at build time
	Version = ""
	Commit  = ""
	Date    = ""

	once sync.Once

	// readBuildInfo is replaced in tests.
	readBuildInfo = debug.ReadBuildInfo
)

func ensureInitialized() {
	once.Do(func() {
		info, ok := readBuildInfo()
		if Version == "" {
			Version = moduleVersion(info, ok)
		}
		if Commit == "" {
			Commit = buildSetting(info, ok, "vcs.revision", "unknown")
			if len(Commit) > 12 {
				Commit = Commit[:12]
			}
			if buildSetting(info, ok, "vcs.modified", "false") == "true" {
				Commit += "-dirty"
			}
		}
		if Date == "" {
			Date = buildSetting(info, ok, "vcs.time", "unknown")
		}
	})
}

func moduleVersion(info *debug.BuildInfo, ok bool) string {
	if !ok || info == nil {
		return "dev"
	}
	v := info.Main.Version
	if v == "" || v == "(devel)" {
		return "dev"
	}
	return strings.TrimPrefix(v, "v")
}

func buildSetting(info *debug.BuildInfo, ok bool, key, fallback string) string {
	if !ok || info == nil {
		return fallback
	}
	for _, s := range info.Settings {
		if s.Key == key && s.Value != "" {
			return s.Value
		}
	}
	return fallback
}

// Reset clears resolved values so they are computed again.
func Reset() {
	Version, Commit, Date = "", "", ""
	once = sync.Once{}
}

// GetVersion returns the release version, "dev" for local builds.
func GetVersion() string {
	ensureInitialized()
	return Version
}

// GetCommit returns the short VCS revision.
func GetCommit() string {
	ensureInitialized()
	return Commit
}

// GetDate returns the build or commit date.
func GetDate() string {
	ensureInitialized()
	return Date
}

// Info returns a one-line description of the build.
func Info() string {
	ensureInitialized()
	return fmt.Sprintf("plexus-metrics %s (commit: %s, built: %s, %s, %s/%s)",
		Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
