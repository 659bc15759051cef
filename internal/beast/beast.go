// Package beast parses the Beast binary wire format and its Radarcape
// GPS-timestamp variant: ESC-framed records carrying Mode A/C and Mode S
// frames plus Radarcape status/position records.
package beast

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/mutability/mlat-client/internal/filter"
	"github.com/mutability/mlat-client/internal/modes"
	"github.com/mutability/mlat-client/internal/timestamp"
)

const esc = 0x1a

// Counter frequencies per spec.md §4.9, reused here since the
// parser itself drives mode transitions via the status record.
const (
	freqBeast     = 12_000_000
	freqRadarcape = 1_000_000_000
)

// Decoder parses one Beast/Radarcape byte stream. It is not safe for
// concurrent Feed calls.
type Decoder struct {
	logger *logrus.Logger

	AllowModeChange bool
	WantEvents      bool

	// Filter, when non-nil, is consulted for every decoded Mode A/C or
	// Mode S message; events always pass through unfiltered.
	Filter *filter.Filter

	mode               string // modes.ModeBeast, ModeRadarcape, or ModeRadarcapeEmulated
	radarcapeUTCBugfix bool
	ts                 *timestamp.State
}

// NewDecoder returns a Decoder starting in BEAST mode.
func NewDecoder(logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Decoder{
		logger:          logger,
		AllowModeChange: true,
		WantEvents:      true,
		mode:            modes.ModeBeast,
		ts:              timestamp.New(freqBeast),
	}
}

// Mode returns the decoder's current mode label.
func (d *Decoder) Mode() string { return d.mode }

// FrameErr reports a framing fault: the input stream lost 0x1A
// synchronization or presented an escape/type byte the parser doesn't
// understand.
type FrameErr struct {
	Offset int
	Reason string
}

func (e *FrameErr) Error() string {
	return fmt.Sprintf("beast: lost sync at offset %d: %s", e.Offset, e.Reason)
}

// recordShape describes one Beast/Radarcape record type: its payload
// length and whether it carries the 6-byte timestamp + 1-byte signal
// prefix.
type recordShape struct {
	payloadLen  int
	hasTSSignal bool
}

var shapes = map[byte]recordShape{
	'1': {payloadLen: 2, hasTSSignal: true},
	'2': {payloadLen: 7, hasTSSignal: true},
	'3': {payloadLen: 14, hasTSSignal: true},
	'4': {payloadLen: 14, hasTSSignal: true},
	'5': {payloadLen: 21, hasTSSignal: false},
}

// Feed parses as many complete records as fit in buf, up to maxMessages
// (0 means unbounded, sized to buf's worst case). It returns the number
// of bytes consumed, the decoded messages/events in wire order, and
// whether a framing error was swallowed to let already-parsed messages
// drain (errorPending == true means the next Feed call should surface
// the fault via its own FrameErr instead of parsing further).
func (d *Decoder) Feed(buf []byte, maxMessages int) (consumed int, out []modes.Message, errorPending bool, err error) {
	unbounded := maxMessages <= 0
	if unbounded {
		// Sized for the worst-case message density (a minimal Mode A/C
		// record is 11 bytes), plus slack for the loop's "+2" guard
		// below; Go's append growth makes the exact figure a sizing
		// hint only, not a hard cap.
		maxMessages = len(buf)/11 + 3
	}
	out = make([]modes.Message, 0, maxMessages)

	p := 0
	eod := len(buf)

	for p+2 <= eod && len(out)+2 < maxMessages {
		if buf[p] != esc {
			if len(out) > 0 {
				errorPending = true
				break
			}
			err := &FrameErr{Offset: p, Reason: fmt.Sprintf("expected 0x1A, found %#02x", buf[p])}
			d.logger.WithFields(logrus.Fields{"offset": p}).Debug(err.Error())
			return p, out, false, err
		}

		typ := buf[p+1]
		shape, ok := shapes[typ]
		if !ok {
			if len(out) > 0 {
				errorPending = true
				break
			}
			err := &FrameErr{Offset: p, Reason: fmt.Sprintf("unexpected record type %#02x", typ)}
			d.logger.WithFields(logrus.Fields{"offset": p, "type": typ}).Debug(err.Error())
			return p, out, false, err
		}

		m := p + 2
		recordEnd := m + shape.payloadLen
		if shape.hasTSSignal {
			recordEnd += 7
		}
		if recordEnd > eod {
			break
		}

		field := make([]byte, 0, shape.payloadLen+7)
		ok, escErr := readDoubled(buf, &m, &recordEnd, eod, &field)
		if escErr {
			if len(out) > 0 {
				errorPending = true
				break
			}
			return p, out, false, &FrameErr{Offset: m, Reason: "expected 0x1A after 0x1A escape"}
		}
		if !ok {
			// incomplete doubling-decoded region at end of window
			break
		}

		var ts uint64
		var signal byte
		var payload []byte
		if shape.hasTSSignal {
			ts = uint64(field[0])<<40 | uint64(field[1])<<32 | uint64(field[2])<<24 |
				uint64(field[3])<<16 | uint64(field[4])<<8 | uint64(field[5])
			signal = field[6]
			payload = field[7:]
		} else {
			payload = field
		}

		if typ == '4' {
			d.handleStatus(payload, &out)
			p = m
			continue
		}

		if typ == '5' {
			d.handlePosition(payload, &out)
			p = m
			continue
		}

		priorLast := d.ts.LastTimestamp()
		ts = d.processTimestamp(typ, ts, &out)

		msg := modes.Decode(payload)
		msg.Timestamp = ts
		msg.Signal = signal

		if d.Filter == nil || d.Filter.Accept(msg, d.ts.Outliers(), priorLast) {
			out = append(out, msg)
		}

		p = m
	}

	return p, out, errorPending, nil
}

// readDoubled copies *end-*pos logical bytes (after un-doubling any
// 0x1A escape) from buf starting at *pos into *field, advancing *pos and
// *end as doubled bytes are consumed. It returns (false, false) if the
// window ends inside the doubling-decoded region (caller should stop
// without consuming the record), or (false, true) if an escape was not
// doubled (framing error).
func readDoubled(buf []byte, pos, end *int, eod int, field *[]byte) (bool, bool) {
	want := *end - *pos
	for i := 0; i < want; i++ {
		if *pos >= eod {
			return false, false
		}
		b := buf[*pos]
		*pos++
		if b == esc {
			if *pos >= eod {
				return false, false
			}
			if buf[*pos] != esc {
				return false, true
			}
			*pos++
			*end++
			if *end > eod {
				return false, false
			}
		}
		*field = append(*field, b)
	}
	return true, false
}

// handleStatus processes a Radarcape status record (type '4'): updates
// the UTC bugfix flag, optionally switches decoder mode, and emits the
// configured events. It never decodes a Mode S message from this record.
func (d *Decoder) handleStatus(payload []byte, out *[]modes.Message) {
	d.radarcapeUTCBugfix = payload[2]&0x80 != 0

	if d.AllowModeChange {
		newMode := modes.ModeBeast
		if payload[0]&0x10 != 0 {
			if payload[2]&0x20 != 0 {
				newMode = modes.ModeRadarcapeEmulated
			} else {
				newMode = modes.ModeRadarcape
			}
		}

		if newMode != d.mode {
			d.logger.WithFields(logrus.Fields{"from": d.mode, "to": newMode}).Info("beast decoder mode changed")
			d.mode = newMode
			freq := uint64(freqBeast)
			epoch := ""
			if newMode == modes.ModeRadarcape || newMode == modes.ModeRadarcapeEmulated {
				freq = freqRadarcape
			}
			if newMode == modes.ModeRadarcape {
				epoch = "utc_midnight"
			}
			d.ts.SetFrequency(freq)

			if d.WantEvents {
				*out = append(*out, modes.Message{
					DF:        modes.DFEventModeChange,
					EventData: modes.ModeChangeEvent{Mode: newMode, Frequency: freq, Epoch: epoch},
				})
			}
		}
	}

	if d.WantEvents {
		settings := decodeSettings(payload[0])
		status := decodeGPSStatus(payload[2])
		*out = append(*out, modes.Message{
			DF: modes.DFEventRadarcapeStatus,
			EventData: modes.RadarcapeStatusEvent{
				Settings:          settings,
				TimestampPPSDelta: int32(int8(payload[1])),
				GPSStatus:         &status,
			},
		})
	}
}

// handlePosition processes a Radarcape position record (type '5'):
// three big-endian IEEE-754 floats at offsets 4, 8, 12.
func (d *Decoder) handlePosition(payload []byte, out *[]modes.Message) {
	if !d.WantEvents {
		return
	}
	lat := decodeFloat32BE(payload[4:8])
	lon := decodeFloat32BE(payload[8:12])
	alt := decodeFloat32BE(payload[12:16])
	*out = append(*out, modes.Message{
		DF:        modes.DFEventRadarcapePosition,
		EventData: modes.RadarcapePositionEvent{Lat: float64(lat), Lon: float64(lon), Alt: float64(alt)},
	})
}

func decodeFloat32BE(b []byte) float32 {
	bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return math.Float32frombits(bits)
}

// processTimestamp applies mode-dependent frame-start adjustment and the
// timestamp-check/jump-event/update sequence for a Mode A/C or Mode S
// record (type '1'..'3'). It returns the adjusted timestamp to attach to
// the decoded message.
func (d *Decoder) processTimestamp(typ byte, ts uint64, out *[]modes.Message) uint64 {
	if modes.IsSynthetic(ts) {
		return ts
	}

	radarcapeMode := d.mode == modes.ModeRadarcape || d.mode == modes.ModeRadarcapeEmulated

	if !radarcapeMode {
		if d.WantEvents && typ != '1' && d.ts.Check(ts) == timestamp.Outlier && d.ts.Outliers() > timestamp.OutlierLimit {
			*out = append(*out, modes.Message{
				DF:        modes.DFEventTimestampJump,
				EventData: modes.TimestampJumpEvent{LastTimestamp: d.ts.LastTimestamp()},
			})
		}

		var adjust uint64
		switch typ {
		case '1':
			adjust = 244
		case '2', '3':
			adjust = 768
		}
		if ts < adjust {
			ts = 0
		} else {
			ts -= adjust
		}
	} else {
		nanos := ts & 0x3FFFFFFF
		secs := ts >> 30

		if !d.radarcapeUTCBugfix {
			if secs == 0 {
				secs = 86399
			} else {
				secs--
			}
		}
		ts = nanos + secs*1_000_000_000

		var adjust uint64
		switch typ {
		case '1':
			adjust = 20300
		case '2':
			adjust = 64000
		case '3':
			adjust = 120000
		}
		if adjust <= ts {
			ts -= adjust
		} else {
			ts += 86400*1_000_000_000 - adjust
		}

		if d.WantEvents && d.ts.LastTimestamp() >= 86340*1_000_000_000 && ts <= 60*1_000_000_000 {
			*out = append(*out, modes.Message{DF: modes.DFEventEpochRollover, Timestamp: ts, EventData: modes.EpochRolloverEvent{}})
		} else if d.WantEvents && typ != '1' && d.ts.Check(ts) == timestamp.Outlier && d.ts.Outliers() > timestamp.OutlierLimit {
			*out = append(*out, modes.Message{
				DF:        modes.DFEventTimestampJump,
				EventData: modes.TimestampJumpEvent{LastTimestamp: d.ts.LastTimestamp()},
			})
		}
	}

	if typ != '1' {
		d.ts.Update(ts, radarcapeMode)
	}

	return ts
}
