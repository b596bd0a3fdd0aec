package version

import (
	"runtime/debug"
	"strings"
)

var (
	Version = "0.3.0"
	Commit  = ""
	Date    = "unknown"
)

// Resolve returns the version string. Release builds inject Commit through
// -ldflags; otherwise the VCS stamp recorded by the Go toolchain is used.
func Resolve() string {
	return resolveVersion(Version, Commit, buildSettings)
}

func resolveVersion(base, commit string, settings func() map[string]string) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix := strings.TrimSpace(commit)
	if suffix == "" {
		suffix = vcsSuffix(settings())
	}
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func vcsSuffix(settings map[string]string) string {
	revision := settings["vcs.revision"]
	if revision == "" {
		return ""
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if settings["vcs.modified"] == "true" {
		return revision + "-dirty"
	}
	return revision
}

func buildSettings() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	out := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		out[setting.Key] = setting.Value
	}
	return out
}
