package domain

import (
	"testing"
	"time"
)

func TestQueryMatchItem(t *testing.T) {
	tree := DeletedFolder{Title: "Research", Children: []DeletedItem{
		DeletedBookmark{Title: "Go Blog", URL: "https://go.dev/blog"},
		DeletedFolder{Title: "Papers", Children: []DeletedItem{
			DeletedBookmark{Title: "Raft", URL: "https://raft.github.io"},
		}},
	}}

	tests := []struct {
		name  string
		query string
		item  DeletedItem
		want  bool
	}{
		{name: "empty query", query: "   ", item: tree, want: true},
		{name: "bookmark title", query: "blog", item: DeletedBookmark{Title: "Go Blog"}, want: true},
		{name: "bookmark url", query: "go.dev", item: DeletedBookmark{URL: "https://go.dev"}, want: true},
		{name: "case insensitive", query: "GO", item: DeletedBookmark{Title: "go"}, want: true},
		{name: "no match", query: "rust", item: tree, want: false},
		{name: "folder title", query: "research", item: tree, want: true},
		{name: "nested child", query: "raft", item: tree, want: true},
		{name: "words across nodes", query: "papers blog", item: tree, want: true},
		{name: "one word missing", query: "papers rust", item: tree, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseQuery(tt.query).MatchItem(tt.item); got != tt.want {
				t.Errorf("MatchItem(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestFriendlyFolderName(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain name", input: "Reading list", want: "Reading list"},
		{name: "saved folder", input: "saved-2024-03-01T10:20:30.000Z", want: "Saved " + ts.Local().Format("Jan 2, 2006 3:04 PM")},
		{name: "saved prefix without date", input: "saved-stuff", want: "saved-stuff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FriendlyFolderName(tt.input); got != tt.want {
				t.Errorf("FriendlyFolderName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
