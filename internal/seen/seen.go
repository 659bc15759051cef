// Package seen tracks ICAO addresses observed recently enough to be
// considered live traffic, backed by a TTL cache so entries expire on
// their own rather than needing an explicit eviction pass.
package seen

import (
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// DefaultTTL mirrors the 60-second address lifetime used by Mode-S
// decoders that brute-force XOR-scrambled parity against recently seen
// addresses.
const DefaultTTL = 60 * time.Second

// cleanupInterval controls how often go-cache sweeps expired entries;
// it does not affect Contains, which always re-checks expiry itself.
const cleanupInterval = 10 * time.Second

// Set is a thread-safe, expiring set of ICAO addresses.
type Set struct {
	c *cache.Cache
}

// New returns a Set whose entries expire after ttl.
func New(ttl time.Duration) *Set {
	return &Set{c: cache.New(ttl, cleanupInterval)}
}

// Add records addr as seen, resetting its TTL if already present.
func (s *Set) Add(addr uint32) {
	s.c.SetDefault(key(addr), struct{}{})
}

// Contains reports whether addr was added within the TTL window.
func (s *Set) Contains(addr uint32) bool {
	_, found := s.c.Get(key(addr))
	return found
}

// Len returns the number of addresses in the cache, including expired
// entries that the periodic sweep has not removed yet.
func (s *Set) Len() int {
	return s.c.ItemCount()
}

func key(addr uint32) string {
	return strconv.FormatUint(uint64(addr), 10)
}
