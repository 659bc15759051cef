package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// encodeAC13Q is the exact inverse of DecodeAC13's Q-bit branch: it spreads
// an 11-bit value n back into the gapped AC13 bit layout with Q set and M
// clear, so the round-trip test below isn't tautological.
func encodeAC13Q(n uint16) uint16 {
	high := (n & 0x07E0) << 2
	mid := (n & 0x0010) << 1
	low := n & 0x000F
	return high | mid | low | ac13QBit
}

// TestDecodeAC13_QBitLaw checks spec.md §8's quantified invariant: for any
// 11-bit n with 25n >= 1000 and no M bit, encoding with Q=1 and decoding
// returns 25n - 1000.
func TestDecodeAC13_QBitLaw(t *testing.T) {
	for n := uint16(40); n < 2048; n += 37 {
		code := encodeAC13Q(n)
		alt, ok := DecodeAC13(code)
		assert.True(t, ok, "n=%d code=%#04x", n, code)
		assert.Equal(t, int32(n)*25-1000, alt, "n=%d code=%#04x", n, code)
	}
}

// TestDecodeAC13_MBitLaw checks spec.md §8's invariant: any AC13 code with
// the M bit set decodes to absent.
func TestDecodeAC13_MBitLaw(t *testing.T) {
	for code := uint16(0); code < 4096; code += 257 {
		withM := code | ac13MBit
		_, ok := DecodeAC13(withM)
		assert.False(t, ok, "code=%#04x", withM)
	}
}

func TestDecodeAC13_ZeroIsAbsent(t *testing.T) {
	_, ok := DecodeAC13(0)
	assert.False(t, ok)
}

func TestDecodeAC13_GillhamCoarseZeroIsAbsent(t *testing.T) {
	// Q clear, M clear, and C1/C2/C4 all clear: no coarse altitude info.
	_, ok := DecodeAC13(0x0020) // B1 set but no C-bits
	assert.False(t, ok)
}

func TestDecodeAC13_Gillham_KnownVector(t *testing.T) {
	// C1 set alone: hundreds digit h = 7, folded to 2 (h&5==5 != 0 -> h^=5
	// gives 2), which is within range; five-hundreds f = 0 (even, no
	// mirroring). altitude = 500*0 + 100*2 - 1300 = -1100.
	code := uint16(gillhamC1)
	alt, ok := DecodeAC13(code)
	assert.True(t, ok)
	assert.Equal(t, int32(-1100), alt)
}

func TestDecodeAC12_RemapsIntoAC13(t *testing.T) {
	// A 12-bit code with Q set should decode identically whether passed
	// through DecodeAC12's remap or hand-remapped into AC13 directly.
	code12 := uint16(0x0010 | (12 << 4)) // Q set plus bits 6-7, which the remap moves up past the M slot
	remapped := ((code12 & 0x0FC0) << 1) | (code12 & 0x003F)
	want, wantOK := DecodeAC13(remapped)
	got, gotOK := DecodeAC12(code12)
	assert.Equal(t, wantOK, gotOK)
	assert.Equal(t, want, got)
}
