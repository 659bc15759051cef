// Package avr parses the line-oriented AVR text wire format: hex-encoded
// Mode S/Mode A-C frames, optionally timestamped, terminated by ';' and a
// line ending.
package avr

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mutability/mlat-client/internal/filter"
	"github.com/mutability/mlat-client/internal/modes"
	"github.com/mutability/mlat-client/internal/timestamp"
)

// freqAVRMlat is the counter frequency AVRMLAT-mode timestamps are checked
// against; ModeAVR uses frequency 0, which disables timestamp checking
// entirely.
const freqAVRMlat = 12_000_000

// Decoder parses one AVR byte stream. It is not safe for concurrent Feed
// calls.
type Decoder struct {
	logger *logrus.Logger

	// WithTimestamp reports whether this decoder checks timestamps against
	// the AVRMLAT counter frequency. Whether a record carries a timestamp is
	// decided by its leading marker, not by this field. Set via NewDecoder.
	WithTimestamp bool

	Filter *filter.Filter

	ts *timestamp.State
}

// NewDecoder returns a Decoder. withTimestamp selects the ModeAVRMlat
// counter frequency for timestamp checking; without it checking is off.
// Framing is the same either way: '@', '%' and '<' records carry a
// timestamp, '*' and ':' records do not.
func NewDecoder(logger *logrus.Logger, withTimestamp bool) *Decoder {
	if logger == nil {
		logger = logrus.New()
	}
	freq := uint64(0)
	if withTimestamp {
		freq = freqAVRMlat
	}
	return &Decoder{
		logger:        logger,
		WithTimestamp: withTimestamp,
		ts:            timestamp.New(freq),
	}
}

// FrameErr reports a malformed AVR line: a marker byte AVR doesn't
// recognise, a non-hex digit, or a payload whose decoded length isn't 2,
// 7, or 14 bytes.
type FrameErr struct {
	Offset int
	Reason string
}

func (e *FrameErr) Error() string {
	return fmt.Sprintf("avr: framing error at offset %d: %s", e.Offset, e.Reason)
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	default:
		return b - 'A' + 10
	}
}

// Feed parses as many complete lines as fit in buf, up to maxMessages (0
// means unbounded, sized to buf's worst case). Return semantics mirror
// internal/beast.Decoder.Feed: errorPending defers a framing fault until
// already-parsed messages have drained.
func (d *Decoder) Feed(buf []byte, maxMessages int) (consumed int, out []modes.Message, errorPending bool, err error) {
	unbounded := maxMessages <= 0
	if unbounded {
		maxMessages = len(buf)/5 + 3
	}
	out = make([]modes.Message, 0, maxMessages)

	p := 0
	eod := len(buf)

	for p < eod && len(out)+2 < maxMessages {
		marker := buf[p]

		var hasTS, hasSignal bool
		switch marker {
		case '@', '%':
			hasTS = true
		case '<':
			hasTS = true
			hasSignal = true
		case '*', ':':
			// no timestamp
		default:
			if len(out) > 0 {
				errorPending = true
				goto done
			}
			e := &FrameErr{Offset: p, Reason: fmt.Sprintf("unexpected marker %q", marker)}
			d.logger.WithField("offset", p).Debug(e.Error())
			return p, out, false, e
		}

		lineStart := p
		q := p + 1

		var ts uint64
		if hasTS {
			if q+12 > eod {
				goto incomplete
			}
			for i := 0; i < 12; i++ {
				if !isHex(buf[q+i]) {
					if len(out) > 0 {
						errorPending = true
						goto done
					}
					e := &FrameErr{Offset: q + i, Reason: "invalid timestamp hex digit"}
					return lineStart, out, false, e
				}
				ts = ts<<4 | uint64(hexVal(buf[q+i]))
			}
			q += 12
		}

		if hasSignal {
			if q+2 > eod {
				goto incomplete
			}
			if !isHex(buf[q]) || !isHex(buf[q+1]) {
				if len(out) > 0 {
					errorPending = true
					goto done
				}
				e := &FrameErr{Offset: q, Reason: "invalid signal hex digit"}
				return lineStart, out, false, e
			}
			q += 2
		}

		{
			hexStart := q
			for q < eod && isHex(buf[q]) {
				q++
			}
			hexLen := q - hexStart
			if q >= eod {
				goto incomplete
			}
			if buf[q] != ';' {
				if len(out) > 0 {
					errorPending = true
					goto done
				}
				e := &FrameErr{Offset: q, Reason: "expected ';' terminator"}
				return lineStart, out, false, e
			}

			byteLen := hexLen / 2
			if hexLen%2 != 0 || (byteLen != 2 && byteLen != 7 && byteLen != 14) {
				if len(out) > 0 {
					errorPending = true
					goto done
				}
				e := &FrameErr{Offset: hexStart, Reason: fmt.Sprintf("payload decodes to %d bytes, want 2/7/14", byteLen)}
				return lineStart, out, false, e
			}

			payload := make([]byte, byteLen)
			for i := 0; i < byteLen; i++ {
				payload[i] = hexVal(buf[hexStart+2*i])<<4 | hexVal(buf[hexStart+2*i+1])
			}

			q++ // consume ';'
			for q < eod && (buf[q] == '\r' || buf[q] == '\n') {
				q++
			}

			priorLast := d.ts.LastTimestamp()
			if hasTS {
				ts = d.processTimestamp(byteLen, ts, &out)
			}

			msg := modes.Decode(payload)
			msg.Timestamp = ts

			if d.Filter == nil || d.Filter.Accept(msg, d.ts.Outliers(), priorLast) {
				out = append(out, msg)
			}
		}

		p = q
		continue

	incomplete:
		break
	}

done:
	return p, out, errorPending, nil
}

// processTimestamp runs the timestamp-check/jump-event/update sequence
// shared with internal/beast, skipping the outlier check for Mode A/C
// records (payload length 2) per spec.md §4.5.
func (d *Decoder) processTimestamp(payloadLen int, ts uint64, out *[]modes.Message) uint64 {
	if modes.IsSynthetic(ts) {
		return ts
	}

	isModeAC := payloadLen == 2
	if isModeAC {
		return ts
	}

	if d.ts.Check(ts) == timestamp.Outlier && d.ts.Outliers() > timestamp.OutlierLimit {
		*out = append(*out, modes.Message{
			DF:        modes.DFEventTimestampJump,
			EventData: modes.TimestampJumpEvent{LastTimestamp: d.ts.LastTimestamp()},
		})
	}

	d.ts.Update(ts, false)
	return ts
}
