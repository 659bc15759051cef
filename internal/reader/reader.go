// Package reader is the wire-format-agnostic façade a multilateration
// client drives: it owns one mode at a time (Beast/Radarcape, AVR, SBS),
// dispatches Feed to the matching parser, and carries the filter/seen-set
// state those parsers share.
package reader

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mutability/mlat-client/internal/avr"
	"github.com/mutability/mlat-client/internal/beast"
	"github.com/mutability/mlat-client/internal/filter"
	"github.com/mutability/mlat-client/internal/modes"
	"github.com/mutability/mlat-client/internal/sbs"
	"github.com/mutability/mlat-client/internal/seen"
)

// Counter frequencies per spec.md §4.9.
const (
	freqBeastAVRMlat = 12_000_000
	freqRadarcape    = 1_000_000_000
	freqSBS          = 20_000_000
)

// Stats tracks per-connection counters, mirroring the teacher's
// ADSBProcessor.GetStats/reportStatistics idiom (mlat/client/stats.py's
// message/byte counters, supplemented per SPEC_FULL.md §5).
type Stats struct {
	Received   uint64
	Suppressed uint64
	MLAT       uint64
	ByDF       map[uint8]uint64
}

// Reader dispatches Feed to the parser matching its current mode. It is
// not safe for concurrent Feed calls (spec.md §5); the Seen set, if
// shared with other Readers, must be externally thread-safe (it is:
// internal/seen wraps go-cache).
type Reader struct {
	logger *logrus.Logger

	mode      string
	frequency uint64
	epoch     string

	filter *filter.Filter

	beastDecoder *beast.Decoder
	avrDecoder   *avr.Decoder
	sbsDecoder   *sbs.Decoder

	byDF    map[uint8]uint64
	lastErr error
}

// Option configures a Reader at construction time.
type Option func(*Reader)

// WithLogger attaches a logger; nil (the default) gets one that logs only
// at Error level.
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Reader) { r.logger = logger }
}

// WithFilterConfig installs the accept/drop rules and seen-set Feed
// consults for every decoded message.
func WithFilterConfig(cfg filter.Config) Option {
	return func(r *Reader) { r.filter = filter.New(cfg) }
}

// WithSeen attaches a seen-address set without the rest of a Config.
func WithSeen(s *seen.Set) Option {
	return func(r *Reader) {
		if r.filter == nil {
			r.filter = filter.New(filter.Config{})
		}
		r.filter.Seen = s
	}
}

// WithMode sets the initial mode (default modes.ModeNone).
func WithMode(mode string) Option {
	return func(r *Reader) { r.setMode(mode) }
}

// New returns a Reader in ModeNone until an option or SetMode selects a
// wire format.
func New(opts ...Option) *Reader {
	r := &Reader{
		mode: modes.ModeNone,
		byDF: make(map[uint8]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logrus.New()
		r.logger.SetLevel(logrus.ErrorLevel)
	}
	if r.filter == nil {
		r.filter = filter.New(filter.Config{})
	}
	r.wireDecoders()
	return r
}

// Mode returns the current wire format.
func (r *Reader) Mode() string { return r.mode }

// Frequency returns the counter frequency (Hz) associated with the
// current mode, per spec.md §4.9.
func (r *Reader) Frequency() uint64 { return r.frequency }

// Epoch returns the epoch label associated with the current mode
// ("utc_midnight" for RADARCAPE, "" otherwise).
func (r *Reader) Epoch() string { return r.epoch }

// Filter returns the Filter a Reader consults, for callers that want to
// read its Counters.
func (r *Reader) Filter() *filter.Filter { return r.filter }

// SetMode switches the active wire format, updating Frequency/Epoch.
// Switching away from BEAST/RADARCAPE* discards any in-progress Beast
// decoder state (partial frame, timestamp history); switching back
// starts a fresh one.
func (r *Reader) SetMode(mode string) { r.setMode(mode) }

func (r *Reader) setMode(mode string) {
	r.mode = mode
	switch mode {
	case modes.ModeBeast, modes.ModeRadarcape, modes.ModeRadarcapeEmulated:
		r.frequency = freqBeastAVRMlat
		if mode != modes.ModeBeast {
			r.frequency = freqRadarcape
		}
		r.epoch = ""
		if mode == modes.ModeRadarcape {
			r.epoch = "utc_midnight"
		}
	case modes.ModeAVRMlat:
		r.frequency = freqBeastAVRMlat
		r.epoch = ""
	case modes.ModeAVR:
		r.frequency = 0
		r.epoch = ""
	case modes.ModeSBS:
		r.frequency = freqSBS
		r.epoch = ""
	default:
		r.frequency = 0
		r.epoch = ""
	}
	if mode != modes.ModeBeast && mode != modes.ModeRadarcape && mode != modes.ModeRadarcapeEmulated {
		r.beastDecoder = nil
	}
	r.wireDecoders()
}

func (r *Reader) wireDecoders() {
	switch r.mode {
	case modes.ModeBeast, modes.ModeRadarcape, modes.ModeRadarcapeEmulated:
		if r.beastDecoder == nil {
			r.beastDecoder = beast.NewDecoder(r.logger)
		}
		r.beastDecoder.Filter = r.filter
	case modes.ModeAVR:
		r.avrDecoder = avr.NewDecoder(r.logger, false)
		r.avrDecoder.Filter = r.filter
	case modes.ModeAVRMlat:
		r.avrDecoder = avr.NewDecoder(r.logger, true)
		r.avrDecoder.Filter = r.filter
	case modes.ModeSBS:
		if r.sbsDecoder == nil {
			r.sbsDecoder = sbs.NewDecoder(r.logger)
		}
		r.sbsDecoder.Filter = r.filter
	}
}

// ModeErr reports that Feed was called with no mode selected (ModeNone),
// which spec.md §4.9 calls out as "operation not supported".
type ModeErr struct{}

func (e *ModeErr) Error() string { return "reader: no mode selected" }

// FrameErr wraps the underlying beast.FrameErr/avr.FrameErr/sbs.FrameErr a
// hard framing fault surfaces as, recording which mode was active when it
// was raised. LastError returns the most recent one.
type FrameErr struct {
	Mode string
	Err  error
}

func (e *FrameErr) Error() string {
	return fmt.Sprintf("reader: framing error in %s mode: %v", e.Mode, e.Err)
}

func (e *FrameErr) Unwrap() error { return e.Err }

// LastError returns the framing/mode error the most recent Feed call
// raised, or nil if it completed without one. spec.md §7's two-phase
// contract means a fault doesn't necessarily surface on the call that
// first encountered it (already-parsed messages drain first, with
// errorPending set); callers that see errorPending return true must call
// Feed again with the same unconsumed bytes and check LastError after
// that call to learn whether a real fault followed the drain.
func (r *Reader) LastError() error { return r.lastErr }

// Feed dispatches to the decoder matching the current mode and updates
// Stats from the underlying Filter's Counters as a side effect. Per
// spec.md's NON-GOALS, a hard framing error is never resynchronised past
// by skipping bytes; Feed reports it via errorPending plus LastError and
// leaves consumed exactly where the decoder stopped, so a caller that
// doesn't check LastError will stall on consumed==0 rather than silently
// losing data.
func (r *Reader) Feed(buf []byte, maxMessages int) (consumed int, msgs []modes.Message, errorPending bool) {
	r.lastErr = nil

	var out []modes.Message
	var pending bool
	var err error

	switch r.mode {
	case modes.ModeBeast, modes.ModeRadarcape, modes.ModeRadarcapeEmulated:
		consumed, out, pending, err = r.beastDecoder.Feed(buf, maxMessages)
	case modes.ModeAVR, modes.ModeAVRMlat:
		consumed, out, pending, err = r.avrDecoder.Feed(buf, maxMessages)
	case modes.ModeSBS:
		consumed, out, pending, err = r.sbsDecoder.Feed(buf, maxMessages)
	default:
		r.logger.Error("reader: feed called with no mode selected")
		r.lastErr = &ModeErr{}
		return 0, nil, true
	}

	if err != nil {
		r.lastErr = &FrameErr{Mode: r.mode, Err: err}
		r.logger.WithError(r.lastErr).Error("reader: framing error")
		pending = true
	}

	for _, m := range out {
		r.byDF[m.DF]++
	}

	return consumed, out, pending
}

// Stats reports cumulative counters since construction.
func (r *Reader) Stats() Stats {
	s := Stats{ByDF: make(map[uint8]uint64, len(r.byDF))}
	if r.filter != nil {
		s.Received = r.filter.Counters.Received
		s.Suppressed = r.filter.Counters.Suppressed
		s.MLAT = r.filter.Counters.MLAT
	}
	for df, n := range r.byDF {
		s.ByDF[df] = n
	}
	return s
}

// FrequencyForMode returns the counter frequency associated with mode
// without constructing a Reader, for callers (e.g. the CLI) that need to
// report it before the first Feed.
func FrequencyForMode(mode string) (uint64, error) {
	switch mode {
	case modes.ModeBeast, modes.ModeAVRMlat:
		return freqBeastAVRMlat, nil
	case modes.ModeRadarcape, modes.ModeRadarcapeEmulated:
		return freqRadarcape, nil
	case modes.ModeSBS:
		return freqSBS, nil
	case modes.ModeAVR, modes.ModeNone:
		return 0, nil
	default:
		return 0, fmt.Errorf("reader: unknown mode %q", mode)
	}
}
