package version

import (
	"runtime"
	"runtime/debug"
	"time"
)

// Set with -ldflags "-X github.com/q962/tab-stash/internal/version.Version=...".
// Commit and BuildDate fall back to the VCS stamp of the build when unset.
var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = ""                // ex: abcd123
	BuildDate = ""                // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version() // go version
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if ok {
		Commit, BuildDate = fromBuildInfo(info, Commit, BuildDate)
	}
	if Commit == "" {
		Commit = "none"
	}
	if BuildDate == "" {
		BuildDate = time.Now().UTC().Format(time.RFC3339)
	}
}

func fromBuildInfo(info *debug.BuildInfo, commit, date string) (string, string) {
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		case "vcs.time":
			if date == "" {
				date = s.Value
			}
		}
	}
	return commit, date
}
