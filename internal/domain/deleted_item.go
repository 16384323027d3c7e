package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DeletedItem is a snapshot of something the user deleted.
//
// It is a closed union of two variants:
//   - DeletedBookmark: a single URL
//   - DeletedFolder: a titled, ordered list of further DeletedItems
//
// On the wire a JSON object carrying a "children" member is a folder,
// anything else is a bookmark.
type DeletedItem interface {
	// ItemTitle returns the title as it was at deletion time.
	ItemTitle() string

	isDeletedItem()
}

// DeletedBookmark is a deleted bookmark or tab.
type DeletedBookmark struct {
	// Title is the page title at deletion time.
	Title string `json:"title"`

	// URL is the bookmarked address.
	// Example: https://example.com/article
	URL string `json:"url"`

	// Favicon is the icon URL, if one was known.
	Favicon string `json:"favicon,omitempty"`
}

// DeletedFolder is a deleted folder together with everything it contained.
//
// Children is a copy of the tree at deletion time, not a live reference,
// so it can never contain cycles.
type DeletedFolder struct {
	Title    string        `json:"title"`
	Children []DeletedItem `json:"children"`
}

func (b DeletedBookmark) ItemTitle() string { return b.Title }
func (f DeletedFolder) ItemTitle() string   { return f.Title }

func (DeletedBookmark) isDeletedItem() {}
func (DeletedFolder) isDeletedItem()   {}

// MarshalJSON always emits "children", even for an empty folder,
// so the variant survives a round trip.
func (f DeletedFolder) MarshalJSON() ([]byte, error) {
	children := f.Children
	if children == nil {
		children = []DeletedItem{}
	}
	return json.Marshal(struct {
		Title    string        `json:"title"`
		Children []DeletedItem `json:"children"`
	}{f.Title, children})
}

// UnmarshalJSON decodes children through DecodeItem.
func (f *DeletedFolder) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title    string            `json:"title"`
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	children := make([]DeletedItem, 0, len(raw.Children))
	for i, c := range raw.Children {
		child, err := DecodeItem(c)
		if err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		children = append(children, child)
	}

	f.Title = raw.Title
	f.Children = children
	return nil
}

// DecodeItem decodes one DeletedItem from JSON, picking the variant
// from the shape of the object.
func DecodeItem(data []byte) (DeletedItem, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: item is not an object: %v", ErrMalformedRecord, err)
	}
	if probe == nil {
		return nil, fmt.Errorf("%w: item is null", ErrMalformedRecord)
	}

	if children, ok := probe["children"]; ok && !bytes.Equal(bytes.TrimSpace(children), []byte("null")) {
		var folder DeletedFolder
		if err := json.Unmarshal(data, &folder); err != nil {
			return nil, fmt.Errorf("%w: folder: %v", ErrMalformedRecord, err)
		}
		return folder, nil
	}

	var bookmark DeletedBookmark
	if err := json.Unmarshal(data, &bookmark); err != nil {
		return nil, fmt.Errorf("%w: bookmark: %v", ErrMalformedRecord, err)
	}
	return bookmark, nil
}
