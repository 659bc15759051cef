// Package timestamp implements the state machine that widens and
// sanity-checks hardware timestamps against wall-clock progress, as used
// by the Beast/Radarcape, AVR, and SBS frame parsers.
package timestamp

import (
	"time"

	"github.com/mutability/mlat-client/internal/modes"
)

// OutlierLimit is the number of consecutive outliers tolerated before an
// incoming timestamp is finally adopted into State.
const OutlierLimit = 1

// Verdict is the result of State.Check.
type Verdict int

const (
	InRange Verdict = iota
	Outlier
)

// State tracks the last accepted hardware timestamp paired with the
// monotonic wall-clock reading taken when it was accepted, plus a
// consecutive-outlier counter. A State belongs to one frame parser; a mode
// change that parser infers mid-stream only switches its frequency
// (SetFrequency) and keeps the timestamp history.
type State struct {
	Frequency uint64 // Hz of the timestamp counter; 0 disables checking entirely

	lastTimestamp uint64
	lastTsMono    int64 // monotonic milliseconds
	outliers      int

	// now is overridable in tests; defaults to a real monotonic clock read.
	now func() int64
}

// New returns a State for the given counter frequency.
func New(frequency uint64) *State {
	return &State{Frequency: frequency, now: monotonicMillis}
}

var monoBase = time.Now()

func monotonicMillis() int64 {
	return time.Since(monoBase).Milliseconds()
}

// LastTimestamp returns the last accepted timestamp.
func (s *State) LastTimestamp() uint64 { return s.lastTimestamp }

// Outliers returns the current consecutive-outlier count.
func (s *State) Outliers() int { return s.outliers }

// Reset clears all accumulated state and switches to a new frequency.
func (s *State) Reset(frequency uint64) {
	s.Frequency = frequency
	s.lastTimestamp = 0
	s.lastTsMono = 0
	s.outliers = 0
}

// SetFrequency switches the counter frequency without touching
// last_timestamp or the outlier counter. Used when a Beast status record
// flips the decoder between BEAST and RADARCAPE* mid-stream: spec.md
// §4.4 reconfigures frequency/epoch on that transition but does not
// discard the timestamp history.
func (s *State) SetFrequency(frequency uint64) {
	s.Frequency = frequency
}

// Check classifies ts against the current state without mutating
// lastTimestamp; it does advance the outlier counter, matching spec.md
// §4.7 (the counter is part of the "check" step, adoption is separate).
func (s *State) Check(ts uint64) Verdict {
	if modes.IsSynthetic(ts) {
		return InRange
	}
	if s.Frequency == 0 || s.lastTimestamp == 0 {
		return InRange
	}

	mono := s.now()
	tsElapsed := int64(ts) - int64(s.lastTimestamp)
	sysElapsed := (mono - s.lastTsMono) * int64(s.Frequency) / 1000
	maxOffset := int64(float64(s.Frequency) * 1.25)

	diff := tsElapsed - sysElapsed
	if diff < 0 {
		diff = -diff
	}
	if diff > maxOffset {
		s.outliers++
		return Outlier
	}
	s.outliers = 0
	return InRange
}

// Update applies spec.md §4.7's adoption rules: synthetic timestamps are a
// no-op; a small backward move is ignored; a lone outlier is tentatively
// discarded (adopted only on a second consecutive outlier); a Radarcape
// epoch rollover in progress holds last_timestamp steady.
func (s *State) Update(ts uint64, radarcapeMode bool) {
	if modes.IsSynthetic(ts) {
		return
	}
	if s.lastTimestamp == 0 || s.Frequency == 0 {
		s.adopt(ts)
		return
	}

	if s.lastTimestamp > ts && (s.lastTimestamp-ts) < 90*s.Frequency {
		return
	}

	if radarcapeMode && ts >= 86340*1_000_000_000 && s.lastTimestamp <= 60*1_000_000_000 {
		return
	}

	if s.outliers > 0 && s.outliers <= OutlierLimit {
		return
	}

	s.adopt(ts)
}

func (s *State) adopt(ts uint64) {
	s.lastTimestamp = ts
	s.lastTsMono = s.now()
}
