package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRecord is returned when a stored value cannot be decoded.
// Stores are expected to only hold records written by this package.
var ErrMalformedRecord = errors.New("malformed deletion record")

// TimestampLayout is the textual form of DeletedAt, both in the record and
// as the key prefix. Fixed width UTC with milliseconds, so byte order is
// chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout (always UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout and, for records written by other
// tools, any RFC 3339 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad deleted_at %q", ErrMalformedRecord, s)
	}
	return t.UTC(), nil
}

// DeletionRecord is the persisted value of a deletion.
type DeletionRecord struct {
	DeletedAt string      `json:"deleted_at"`
	Item      DeletedItem `json:"item"`
}

// UnmarshalJSON decodes the item through DecodeItem.
func (r *DeletionRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		DeletedAt string          `json:"deleted_at"`
		Item      json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if raw.Item == nil {
		return fmt.Errorf("%w: missing item", ErrMalformedRecord)
	}

	item, err := DecodeItem(raw.Item)
	if err != nil {
		return err
	}

	r.DeletedAt = raw.DeletedAt
	r.Item = item
	return nil
}

// Record is a keyed DeletionRecord, as written to the store.
type Record struct {
	Key   string         `json:"key"`
	Value DeletionRecord `json:"value"`
}

// Deletion is the in-memory form of a DeletionRecord.
type Deletion struct {
	// Key addresses the record in the store.
	// Example: 2024-03-01T10:20:30.123Z-a1b2
	Key string `json:"key"`

	// DeletedAt is the parsed deleted_at timestamp.
	DeletedAt time.Time `json:"deleted_at"`

	// Item is the deleted thing. For folders the top-level title is the
	// display title; children keep their stored titles.
	Item DeletedItem `json:"item"`
}

// DecodeRecord parses a stored value.
func DecodeRecord(value []byte) (DeletionRecord, error) {
	var rec DeletionRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			return DeletionRecord{}, err
		}
		return DeletionRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec, nil
}

// EncodeRecord serializes a DeletionRecord for the store.
func EncodeRecord(rec DeletionRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deletion record: %w", err)
	}
	return data, nil
}

// NewDeletion derives the in-memory Deletion for key from a stored value.
// folderTitle formats the title of a top-level folder; nil leaves it as is.
func NewDeletion(key string, value []byte, folderTitle func(string) string) (*Deletion, error) {
	rec, err := DecodeRecord(value)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", key, err)
	}

	deletedAt, err := ParseTimestamp(rec.DeletedAt)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", key, err)
	}

	return &Deletion{
		Key:       key,
		DeletedAt: deletedAt,
		Item:      displayItem(rec.Item, folderTitle),
	}, nil
}

// displayItem retitles a top-level folder only. Children are shared, not
// converted.
func displayItem(item DeletedItem, folderTitle func(string) string) DeletedItem {
	folder, ok := item.(DeletedFolder)
	if !ok || folderTitle == nil {
		return item
	}
	return DeletedFolder{
		Title:    folderTitle(folder.Title),
		Children: folder.Children,
	}
}

// UnmarshalJSON decodes a Deletion as served by the HTTP API.
func (d *Deletion) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key       string          `json:"key"`
		DeletedAt time.Time       `json:"deleted_at"`
		Item      json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	item, err := DecodeItem(raw.Item)
	if err != nil {
		return err
	}
	d.Key = raw.Key
	d.DeletedAt = raw.DeletedAt
	d.Item = item
	return nil
}
