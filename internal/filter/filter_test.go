package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mutability/mlat-client/internal/modes"
	"github.com/mutability/mlat-client/internal/seen"
)

func addr(a uint32) *uint32 { return &a }

func TestAccept_NoFiltersAcceptsValid(t *testing.T) {
	f := New(Config{})
	msg := modes.Message{DF: 17, Valid: true, Address: addr(0x4840D6), Timestamp: 100}
	assert.True(t, f.Accept(msg, 0, 0))
	assert.Equal(t, uint64(1), f.Counters.Received)
	assert.Equal(t, uint64(0), f.Counters.Suppressed)
}

func TestAccept_OutlierDropped(t *testing.T) {
	f := New(Config{})
	msg := modes.Message{DF: 17, Valid: true, Address: addr(0x4840D6), Timestamp: 100}
	assert.False(t, f.Accept(msg, 1, 0))
	assert.Equal(t, uint64(1), f.Counters.Suppressed)
}

func TestAccept_BackwardTimestampDropped(t *testing.T) {
	f := New(Config{})
	msg := modes.Message{DF: 17, Valid: true, Address: addr(0x4840D6), Timestamp: 50}
	assert.False(t, f.Accept(msg, 0, 100))
}

func TestAccept_MLATMessagesGatedByFlag(t *testing.T) {
	f := New(Config{WantMLATMessages: false})
	msg := modes.Message{DF: 17, Valid: true, Address: addr(0x4840D6), Timestamp: modes.MagicMLAT + 2}
	assert.False(t, f.Accept(msg, 0, 0))
	assert.Equal(t, uint64(1), f.Counters.MLAT)

	f2 := New(Config{WantMLATMessages: true})
	assert.True(t, f2.Accept(msg, 0, 0))
	assert.Equal(t, uint64(1), f2.Counters.MLAT)
}

func TestAccept_InvalidMessagesGatedByFlag(t *testing.T) {
	msg := modes.Message{DF: 17, Valid: false, Timestamp: 10}

	f := New(Config{})
	assert.False(t, f.Accept(msg, 0, 0))

	f2 := New(Config{WantInvalidMessages: true})
	assert.True(t, f2.Accept(msg, 0, 0))
}

func TestAccept_ZeroTimestampGatedByFlag(t *testing.T) {
	msg := modes.Message{DF: 17, Valid: true, Address: addr(0x4840D6), Timestamp: 0}

	f := New(Config{})
	assert.False(t, f.Accept(msg, 0, 0))

	f2 := New(Config{WantZeroTimestamps: true})
	assert.True(t, f2.Accept(msg, 0, 0))
}

func TestAccept_ModeACFilterRestrictsSquawks(t *testing.T) {
	cfg := Config{ModeACFilter: map[uint32]bool{0x1200: true}}
	f := New(cfg)

	allowed := modes.Message{DF: modes.DFModeAC, Valid: true, Address: addr(0x1200), Timestamp: 10}
	assert.True(t, f.Accept(allowed, 0, 0))

	denied := modes.Message{DF: modes.DFModeAC, Valid: true, Address: addr(0x7700), Timestamp: 10}
	assert.False(t, f.Accept(denied, 0, 0))
}

func TestAccept_ModeACBypassesDefaultFilterChain(t *testing.T) {
	// A DefaultFilter keyed to want only DF17 must not affect Mode A/C,
	// which the DF-keyed chain never governs (DFModeAC isn't a CRC-backed
	// DF any such filter is meant to select against).
	cfg := Config{DefaultFilter: map[uint8]bool{17: true}}
	f := New(cfg)

	msg := modes.Message{DF: modes.DFModeAC, Valid: true, Address: addr(0x1200), Timestamp: 10}
	assert.True(t, f.Accept(msg, 0, 0))
}

func TestAccept_DefaultAndSpecificFilter(t *testing.T) {
	cfg := Config{
		DefaultFilter:  map[uint8]bool{17: true},
		SpecificFilter: map[uint8]map[uint32]bool{0: {0x4840D6: true}},
	}
	f := New(cfg)

	acceptedByDefault := modes.Message{DF: 17, Valid: true, Address: addr(0x111111), Timestamp: 10}
	assert.True(t, f.Accept(acceptedByDefault, 0, 0))

	deniedDF := modes.Message{DF: 4, Valid: true, Address: addr(0x999999), Timestamp: 10}
	assert.False(t, f.Accept(deniedDF, 0, 0))

	acceptedBySpecific := modes.Message{DF: 0, Valid: true, Address: addr(0x4840D6), Timestamp: 10}
	assert.True(t, f.Accept(acceptedBySpecific, 0, 0))
}

func TestAccept_UpdatesSeenSetForRelevantDF(t *testing.T) {
	s := seen.New(seen.DefaultTTL)
	f := New(Config{Seen: s})

	msg := modes.Message{DF: 17, Valid: true, Address: addr(0x4840D6), Timestamp: 10}
	f.Accept(msg, 0, 0)
	assert.True(t, s.Contains(0x4840D6))
}
