package domain

import (
	"regexp"
	"testing"
	"time"
)

var keyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z-[0-9a-f]{4}$`)

func TestKeyGeneratorFormat(t *testing.T) {
	g := NewKeyGenerator(nil, nil)
	key, ts := g.Next()

	if !keyPattern.MatchString(key) {
		t.Errorf("Next() key = %q, does not match %s", key, keyPattern)
	}
	if got := key[:len(TimestampLayout)]; got != FormatTimestamp(ts) {
		t.Errorf("key prefix = %q, want %q", got, FormatTimestamp(ts))
	}
}

func TestKeyGeneratorStrictlyIncreasing(t *testing.T) {
	frozen := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	suffixes := []string{"ffff", "0000", "aaaa"}
	i := 0
	g := NewKeyGenerator(
		func() time.Time { return frozen },
		func() string { s := suffixes[i%len(suffixes)]; i++; return s },
	)

	prev, _ := g.Next()
	for n := 0; n < 10; n++ {
		key, _ := g.Next()
		if key <= prev {
			t.Fatalf("Next() = %q, not greater than previous %q", key, prev)
		}
		prev = key
	}
}

func TestKeyGeneratorClockGoingBackwards(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	i := 0
	g := NewKeyGenerator(func() time.Time { t := times[i]; i++; return t }, func() string { return "0000" })

	first, _ := g.Next()
	second, ts := g.Next()
	if second <= first {
		t.Errorf("Next() = %q after %q, want greater", second, first)
	}
	if want := times[0].Add(time.Millisecond); !ts.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ts, want)
	}
}

func TestKeyTime(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		wantOK bool
	}{
		{name: "generated key", key: "2024-03-01T10:20:30.123Z-a1b2", wantOK: true},
		{name: "too short", key: "2024-03-01", wantOK: false},
		{name: "not a timestamp", key: "hello-world-this-is-long-enough", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := KeyTime(tt.key)
			if ok != tt.wantOK {
				t.Errorf("KeyTime(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
		})
	}
}

func TestRandomSuffix(t *testing.T) {
	s := RandomSuffix()
	if len(s) != SuffixLength {
		t.Errorf("RandomSuffix() = %q, want length %d", s, SuffixLength)
	}
}
