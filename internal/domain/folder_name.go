package domain

import (
	"strings"
)

// savedFolderPrefix marks folders created automatically when a window is
// stashed. Their names carry the creation time.
const savedFolderPrefix = "saved-"

// FriendlyFolderName turns generated names such as
// "saved-2024-03-01T10:20:30.123Z" into "Saved Mar 1, 2024 10:20 AM"
// (local time). Any other name is returned unchanged.
func FriendlyFolderName(name string) string {
	rest, ok := strings.CutPrefix(name, savedFolderPrefix)
	if !ok {
		return name
	}
	t, err := ParseTimestamp(rest)
	if err != nil {
		return name
	}
	return "Saved " + t.Local().Format("Jan 2, 2006 3:04 PM")
}
