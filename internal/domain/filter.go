package domain

import (
	"strings"
)

// Query is a parsed search string: lowercased words, all of which must match.
type Query struct {
	Words []string
}

// ParseQuery lowercases and splits s on whitespace.
func ParseQuery(s string) Query {
	return Query{Words: strings.Fields(strings.ToLower(s))}
}

// IsEmpty reports whether the query matches everything.
func (q Query) IsEmpty() bool { return len(q.Words) == 0 }

// MatchItem reports whether every query word appears in the title or URL of
// item or, for folders, of any descendant. Words may match different nodes.
func (q Query) MatchItem(item DeletedItem) bool {
	if q.IsEmpty() {
		return true
	}
	for _, word := range q.Words {
		if !containsWord(item, word) {
			return false
		}
	}
	return true
}

func containsWord(item DeletedItem, word string) bool {
	switch it := item.(type) {
	case DeletedBookmark:
		return strings.Contains(strings.ToLower(it.Title), word) ||
			strings.Contains(strings.ToLower(it.URL), word)
	case DeletedFolder:
		if strings.Contains(strings.ToLower(it.Title), word) {
			return true
		}
		for _, child := range it.Children {
			if containsWord(child, word) {
				return true
			}
		}
	}
	return false
}
