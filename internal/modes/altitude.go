package modes

// Gillham-code bit masks within a packed 13-bit altitude/ID field, MSB to
// LSB: C1 A1 C2 A2 C4 A4 M B1 Q B2 D2 B4 D4. M and Q occupy the same slots
// a plain squawk ID field uses for M and D1.
const (
	ac13MBit = 0x0040
	ac13QBit = 0x0010

	gillhamC1 = 0x1000
	gillhamA1 = 0x0800
	gillhamC2 = 0x0400
	gillhamA2 = 0x0200
	gillhamC4 = 0x0100
	gillhamA4 = 0x0080
	gillhamB1 = 0x0020
	gillhamD1 = 0x0010 // aliases the Q-bit slot; always 0 on this path
	gillhamB2 = 0x0008
	gillhamD2 = 0x0004
	gillhamB4 = 0x0002
	gillhamD4 = 0x0001

	gillhamCoarseMask = gillhamC1 | gillhamC2 | gillhamC4
)

// DecodeAC13 converts a 13-bit Mode S altitude field into feet. The second
// return value is false if the field has no valid decoding (M bit set,
// coarse Gillham bits all zero, or an out-of-range Gray-code combination).
func DecodeAC13(code uint16) (int32, bool) {
	if code == 0 {
		return 0, false
	}
	if code&ac13MBit != 0 {
		return 0, false
	}
	if code&ac13QBit != 0 {
		n := ((code & 0x1F80) >> 2) | ((code & 0x0020) >> 1) | (code & 0x000F)
		return int32(n)*25 - 1000, true
	}
	return decodeGillham(code)
}

// decodeGillham decodes the non-Q-bit Gillham-coded path of DecodeAC13: a
// 3-bit "hundreds" digit folded from C1/C2/C4, and a 9-bit Gray-coded
// "five-hundreds" value folded from D1/D2/D4/A1/A2/A4/B1/B2/B4, with the
// hundreds digit mirrored when the five-hundreds value is odd.
func decodeGillham(code uint16) (int32, bool) {
	if code&gillhamCoarseMask == 0 {
		return 0, false
	}

	h := 0
	if code&gillhamC1 != 0 {
		h ^= 7
	}
	if code&gillhamC2 != 0 {
		h ^= 3
	}
	if code&gillhamC4 != 0 {
		h ^= 1
	}
	if h&5 != 0 {
		h ^= 5
	}
	if h > 5 {
		return 0, false
	}

	f := 0
	if code&gillhamD1 != 0 {
		f ^= 0x1FF
	}
	if code&gillhamD2 != 0 {
		f ^= 0x0FF
	}
	if code&gillhamA1 != 0 {
		f ^= 0x07F
	}
	if code&gillhamA2 != 0 {
		f ^= 0x03F
	}
	if code&gillhamA4 != 0 {
		f ^= 0x01F
	}
	if code&gillhamB1 != 0 {
		f ^= 0x00F
	}
	if code&gillhamB2 != 0 {
		f ^= 0x007
	}
	if code&gillhamB4 != 0 {
		f ^= 0x003
	}
	if code&gillhamD4 != 0 {
		f ^= 0x001
	}

	if f&1 != 0 {
		h = 6 - h
	}

	alt := int32(500*f+100*h) - 1300
	if alt < -1200 {
		return 0, false
	}
	return alt, true
}

// DecodeAC12 converts a 12-bit AC field (as carried in DF17/18 airborne
// position messages) into feet by inserting the M-bit slot AC13 expects,
// then delegating to DecodeAC13.
func DecodeAC12(code uint16) (int32, bool) {
	n := ((code & 0x0FC0) << 1) | (code & 0x003F)
	return DecodeAC13(n)
}
