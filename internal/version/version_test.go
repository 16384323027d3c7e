package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2024-03-01T10:20:30Z"},
	}}

	commit, date := fromBuildInfo(info, "", "")
	if commit != "0123456" || date != "2024-03-01T10:20:30Z" {
		t.Errorf("fromBuildInfo() = %q, %q", commit, date)
	}

	commit, date = fromBuildInfo(info, "release", "today")
	if commit != "release" || date != "today" {
		t.Errorf("ldflags values should win, got %q, %q", commit, date)
	}
}
