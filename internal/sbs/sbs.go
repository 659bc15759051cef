// Package sbs parses the SBS/Kinetic framed binary wire format: DLE-STX/DLE
// -ETX delimited records carrying XOR-scrambled Mode S content plus a
// trailing CRC, and a 24-bit timestamp counter that must be widened into a
// monotonically increasing value.
package sbs

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mutability/mlat-client/internal/filter"
	"github.com/mutability/mlat-client/internal/modes"
)

const (
	dle = 0x10
	stx = 0x02
	etx = 0x03
)

// freq is the SBS hardware counter frequency: a 24-bit register ticking at
// 20MHz, wrapping roughly every 839ms.
const freq = 20_000_000

// maxRecordBytes bounds the unescaped record body (type+spare+timestamp+
// data, before the trailing CRC) per spec.md §4.6.
const maxRecordBytes = 19

// Decoder parses one SBS byte stream. It is not safe for concurrent Feed
// calls.
type Decoder struct {
	logger *logrus.Logger

	Filter *filter.Filter

	lastTimestamp uint64 // widened (unwrapped) counter value
}

// NewDecoder returns a Decoder.
func NewDecoder(logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Decoder{logger: logger}
}

// FrameErr reports a malformed SBS record: a DLE not doubled inside the
// escaped region, or a record body that decodes to more than
// maxRecordBytes.
type FrameErr struct {
	Offset int
	Reason string
}

func (e *FrameErr) Error() string {
	return fmt.Sprintf("sbs: framing error at offset %d: %s", e.Offset, e.Reason)
}

// FindFrameStart scans buf for the first byte offset that looks like a
// plausible SBS record start (DLE STX not immediately followed by DLE ETX,
// i.e. not an empty record). It never fails; it returns len(buf) if no
// candidate is found. A caller joining a live stream mid-frame can use this
// once, before its first Feed call, to skip partial garbage without the
// parser itself ever resynchronising (Feed always hard-fails on desync,
// per spec.md's NON-GOALS).
func FindFrameStart(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == dle && buf[i+1] == stx {
			if i+3 < len(buf) && buf[i+2] == dle && buf[i+3] == etx {
				continue
			}
			return i
		}
	}
	return len(buf)
}

// Feed parses as many complete records as fit in buf, up to maxMessages (0
// means unbounded, sized to buf's worst case). Return semantics mirror
// internal/beast.Decoder.Feed.
func (d *Decoder) Feed(buf []byte, maxMessages int) (consumed int, out []modes.Message, errorPending bool, err error) {
	unbounded := maxMessages <= 0
	if unbounded {
		maxMessages = len(buf)/13 + 3
	}
	out = make([]modes.Message, 0, maxMessages)

	p := 0
	eod := len(buf)

	for p+2 <= eod && len(out)+1 < maxMessages {
		if buf[p] != dle || buf[p+1] != stx {
			if len(out) > 0 {
				errorPending = true
				break
			}
			e := &FrameErr{Offset: p, Reason: "expected DLE STX"}
			d.logger.WithField("offset", p).Debug(e.Error())
			return p, out, false, e
		}

		start := p
		q := p + 2

		body := make([]byte, 0, maxRecordBytes)
		terminated := false
		escErr := false
		for q < eod {
			b := buf[q]
			if b == dle {
				if q+1 >= eod {
					goto incomplete
				}
				next := buf[q+1]
				if next == etx {
					q += 2
					terminated = true
					break
				}
				if next != dle {
					escErr = true
					q++
					break
				}
				body = append(body, dle)
				q += 2
				continue
			}
			body = append(body, b)
			q++
			if len(body) > maxRecordBytes {
				escErr = true
				break
			}
		}

		if !terminated && !escErr {
			goto incomplete
		}

		if escErr {
			if len(out) > 0 {
				errorPending = true
				break
			}
			e := &FrameErr{Offset: q, Reason: "DLE not doubled in record body"}
			return start, out, false, e
		}

		// Two CRC bytes follow the terminator, themselves DLE-escaped.
		var crcBytes [2]byte
		for i := 0; i < 2; {
			if q >= eod {
				goto incomplete
			}
			b := buf[q]
			if b == dle {
				if q+1 >= eod {
					goto incomplete
				}
				if buf[q+1] != dle {
					if len(out) > 0 {
						errorPending = true
						goto donerecord
					}
					e := &FrameErr{Offset: q, Reason: "DLE not doubled in CRC trailer"}
					return start, out, false, e
				}
				crcBytes[i] = dle
				q += 2
			} else {
				crcBytes[i] = b
				q++
			}
			i++
		}

		if len(body) < 5 {
			// type+spare+3-byte timestamp is the minimum; anything
			// shorter can't carry even a Mode A/C payload.
			p = q
			continue
		}

		d.decodeRecord(body, &out)

		p = q
		continue

	donerecord:
		break
	}

incomplete:
	return p, out, errorPending, nil
}

// decodeRecord decodes one unescaped SBS record body (type, spare, 3-byte
// little-endian timestamp, data) and appends a Message to out if the
// record carries a recognised Mode S/Mode A-C payload.
func (d *Decoder) decodeRecord(body []byte, out *[]modes.Message) {
	typ := body[0]
	raw24 := uint64(body[2]) | uint64(body[3])<<8 | uint64(body[4])<<16
	data := body[5:]

	var n int
	switch typ {
	case 0x01, 0x05:
		n = 14
	case 0x07:
		n = 7
	case 0x09:
		n = 2
	default:
		return
	}
	if len(data) != n {
		return
	}

	payload := unscramble(data)

	priorLast := d.lastTimestamp
	ts := d.widenTimestamp(raw24)
	// Anchor the reported timestamp to start_of_frame + 112us regardless
	// of payload length, per spec.md §4.6.
	ts += uint64(14-n) * 160

	msg := modes.Decode(payload)
	msg.Timestamp = ts

	if d.Filter == nil || d.Filter.Accept(msg, 0, priorLast) {
		*out = append(*out, msg)
	}
}

// unscramble recovers the canonical Mode S frame from SBS's XOR-scrambled
// encoding: the trailing three bytes carry (original XOR crc-of-prefix).
func unscramble(data []byte) []byte {
	out := append([]byte(nil), data...)
	if len(out) < 3 {
		return out
	}
	crc := modes.CRC(out[:len(out)-3])
	out[len(out)-3] ^= byte(crc >> 16)
	out[len(out)-2] ^= byte(crc >> 8)
	out[len(out)-1] ^= byte(crc)
	return out
}

// widenTimestamp composes the 24-bit counter in raw24 against
// d.lastTimestamp, assuming forward progress with at most one wrap between
// consecutive messages (spec.md §4.6: "assume at least one message per
// wrap"). No outlier check is performed; a backward jump larger than one
// wrap produces a visible mlat sync jump, which the spec explicitly
// accepts rather than guards against.
func (d *Decoder) widenTimestamp(raw24 uint64) uint64 {
	full := (d.lastTimestamp &^ 0xFFFFFF) | raw24
	if full < d.lastTimestamp {
		full += 1 << 24
	}
	d.lastTimestamp = full
	return full
}
