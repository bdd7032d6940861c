// Package version reports which build of boxxy is running.
//
// Unlike a multi-binary monorepo that stamps every build through CI
// -ldflags, `go install github.com/queer/boxxy/cmd/boxxy@latest` is boxxy's
// primary distribution path, and that path never runs boxxy's own build
// rules. GitCommit/GitDirty/BuildTime are still overridable via -ldflags for
// packagers who want exact provenance:
//
//	go build -ldflags "-X github.com/queer/boxxy/internal/version.GitCommit=$(git rev-parse --short HEAD)"
//
// but when they're left unset, Info falls back to the VCS stamp the Go
// toolchain embeds automatically in module-aware builds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables may be set via -ldflags at build time; left unset, Info
// resolves them from the embedded build info instead.
var (
	// GitCommit is the short git SHA of the build, or "" to defer to the
	// toolchain-embedded VCS revision.
	GitCommit = ""

	// GitDirty indicates whether there were uncommitted changes, or "" to
	// defer to the toolchain-embedded vcs.modified setting.
	GitDirty = ""

	// BuildTime is the UTC timestamp of the build, or "" to defer to the
	// toolchain-embedded vcs.time setting.
	BuildTime = ""

	// Version is the semantic version. Set manually for tagged releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for `boxxy version`.
func Info() string {
	commit, dirty, buildTime := resolve()
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, buildTime)
}

// Full returns detailed version information including the Go toolchain.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// resolve fills in any of GitCommit/GitDirty/BuildTime left unset by
// -ldflags from runtime/debug.ReadBuildInfo's VCS settings, which `go
// build`/`go install` populate automatically from a git checkout.
func resolve() (commit string, dirty bool, buildTime string) {
	commit, dirty, buildTime = GitCommit, GitDirty == "true", BuildTime
	if commit != "" && GitDirty != "" && BuildTime != "" {
		return commit, dirty, buildTime
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		if commit == "" {
			commit = "unknown"
		}
		if buildTime == "" {
			buildTime = "unknown"
		}
		return commit, dirty, buildTime
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if commit == "" && len(setting.Value) >= 7 {
				commit = setting.Value[:7]
			}
		case "vcs.modified":
			if GitDirty == "" {
				dirty = setting.Value == "true"
			}
		case "vcs.time":
			if buildTime == "" {
				buildTime = setting.Value
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if buildTime == "" {
		buildTime = "unknown"
	}
	return commit, dirty, buildTime
}
