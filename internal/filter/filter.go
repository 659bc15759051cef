// Package filter applies the accept/drop and seen-set bookkeeping rules
// a Reader runs over every decoded message before handing it to a caller.
package filter

import (
	"github.com/mutability/mlat-client/internal/modes"
	"github.com/mutability/mlat-client/internal/seen"
)

// Config holds the boolean toggles and address filters a Filter
// consults. The zero value drops MLAT-origin, invalid and zero-timestamp
// messages (see the Want* toggles) and applies no DF/address restriction.
type Config struct {
	WantZeroTimestamps  bool
	WantMLATMessages    bool
	WantInvalidMessages bool

	// DefaultFilter[df], when the map is non-nil, gates DF df: true
	// accepts, false/absent drops, unless SpecificFilter overrides it.
	DefaultFilter map[uint8]bool

	// SpecificFilter[df] is a set of addresses that are accepted for
	// that DF regardless of DefaultFilter.
	SpecificFilter map[uint8]map[uint32]bool

	// ModeACFilter, when non-nil, restricts DF_MODEAC messages to
	// squawks present in the set.
	ModeACFilter map[uint32]bool

	// Seen, when non-nil, receives the addresses of valid DF 11/17/18
	// messages that get past the MLAT, outlier and backward-timestamp
	// checks, whether or not the later zero-timestamp and DF/address
	// checks accept them.
	Seen *seen.Set
}

// Counters tracks the bookkeeping spec.md assigns to the reader state:
// total messages seen, suppressed by filtering, and MLAT-origin messages
// counted even when accepted.
type Counters struct {
	Received   uint64
	Suppressed uint64
	MLAT       uint64
}

// Filter evaluates Config against one message and its timestamp-state
// verdict, and updates Counters and the Seen set as a side effect.
type Filter struct {
	Config
	Counters Counters
}

// New returns a Filter with the given configuration.
func New(cfg Config) *Filter {
	return &Filter{Config: cfg}
}

// Accept reports whether msg should be delivered to the caller. outliers
// is the current timestamp.State.Outliers() count as of this message;
// priorLastTimestamp is the timestamp.State.LastTimestamp() value from before
// this message was adopted, used for the backward-timestamp drop rule.
func (f *Filter) Accept(msg modes.Message, outliers int, priorLastTimestamp uint64) bool {
	f.Counters.Received++

	isMagic := modes.IsSynthetic(msg.Timestamp) && msg.Timestamp != 0
	if isMagic {
		f.Counters.MLAT++
		if !f.WantMLATMessages {
			f.Counters.Suppressed++
			return false
		}
	}

	if outliers > 0 {
		f.Counters.Suppressed++
		return false
	}

	if priorLastTimestamp != 0 && msg.Timestamp != 0 && msg.Timestamp < priorLastTimestamp {
		f.Counters.Suppressed++
		return false
	}

	if msg.DF == modes.DFModeAC {
		if f.ModeACFilter != nil && !f.ModeACFilter[msg.GetICAO()] {
			f.Counters.Suppressed++
			return false
		}
		return true
	}

	if !msg.Valid {
		if !f.WantInvalidMessages {
			f.Counters.Suppressed++
			return false
		}
		return true
	}

	if msg.DF == 11 || msg.DF == 17 || msg.DF == 18 {
		if f.Seen != nil && msg.Address != nil {
			f.Seen.Add(msg.GetICAO())
		}
	}

	if msg.Timestamp == 0 && !f.WantZeroTimestamps {
		f.Counters.Suppressed++
		return false
	}

	if f.DefaultFilter == nil && f.SpecificFilter == nil {
		return true
	}

	if specific := f.SpecificFilter[msg.DF]; specific != nil && specific[msg.GetICAO()] {
		return true
	}

	if f.DefaultFilter[msg.DF] {
		return true
	}

	f.Counters.Suppressed++
	return false
}
