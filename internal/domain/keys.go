package domain

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SuffixLength is the length of the random part of a deletion key.
const SuffixLength = 4

// RandomSuffix returns SuffixLength random hex characters.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:SuffixLength]
}

// KeyGenerator issues deletion keys of the form "<timestamp>-<suffix>".
//
// Keys from one generator are strictly increasing: if the clock has not
// moved past the last issued millisecond, the timestamp is bumped by one
// millisecond. The random suffix keeps keys from different processes apart.
type KeyGenerator struct {
	mu     sync.Mutex
	last   time.Time
	now    func() time.Time
	suffix func() string
}

// NewKeyGenerator returns a generator using now and suffix. Nil arguments
// fall back to time.Now and RandomSuffix.
func NewKeyGenerator(now func() time.Time, suffix func() string) *KeyGenerator {
	if now == nil {
		now = time.Now
	}
	if suffix == nil {
		suffix = RandomSuffix
	}
	return &KeyGenerator{now: now, suffix: suffix}
}

// Next returns a fresh key and the timestamp it encodes.
func (g *KeyGenerator) Next() (string, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UTC().Truncate(time.Millisecond)
	if !ts.After(g.last) {
		ts = g.last.Add(time.Millisecond)
	}
	g.last = ts

	return FormatTimestamp(ts) + "-" + g.suffix(), ts
}

// KeyTime extracts the timestamp prefix of a key generated by KeyGenerator.
func KeyTime(key string) (time.Time, bool) {
	if len(key) < len(TimestampLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, key[:len(TimestampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
