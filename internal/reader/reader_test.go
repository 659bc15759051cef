package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutability/mlat-client/internal/filter"
	"github.com/mutability/mlat-client/internal/modes"
)

func TestNew_DefaultsToModeNone(t *testing.T) {
	r := New()
	assert.Equal(t, modes.ModeNone, r.Mode())
	assert.Equal(t, uint64(0), r.Frequency())
}

func TestFeed_ModeNoneReportsErrorPending(t *testing.T) {
	r := New()
	consumed, out, pending := r.Feed([]byte{0x1A, 0x32}, 0)
	assert.Equal(t, 0, consumed)
	assert.Empty(t, out)
	assert.True(t, pending)

	var modeErr *ModeErr
	require.ErrorAs(t, r.LastError(), &modeErr)
}

// TestFeed_HardFramingErrorSurfacesViaLastError exercises spec.md §7's
// two-phase contract at the reader façade: a byte stream that never
// begins with 0x1A is a hard framing error, not something Feed silently
// skips past to resynchronise (spec.md's NON-GOALS).
func TestFeed_HardFramingErrorSurfacesViaLastError(t *testing.T) {
	r := New(WithMode(modes.ModeBeast))
	consumed, out, pending := r.Feed([]byte{0x00, 0x01, 0x02}, 0)
	assert.Empty(t, out)
	assert.True(t, pending)

	var frameErr *FrameErr
	require.ErrorAs(t, r.LastError(), &frameErr)
	assert.Equal(t, modes.ModeBeast, frameErr.Mode)
	// The decoder never resynchronises by skipping bytes; consumed stops
	// exactly where it found the bad byte, not one byte further.
	assert.Equal(t, 0, consumed)
}

// TestFeed_DeferredErrorSurfacesOnNextCall exercises the drain-then-raise
// half of the two-phase contract: a call that parses good messages before
// hitting a bad byte reports errorPending with no LastError yet; feeding
// the same unconsumed remainder again is what raises the fault.
func TestFeed_DeferredErrorSurfacesOnNextCall(t *testing.T) {
	r := New(WithMode(modes.ModeBeast))
	good := []byte{
		0x1A, 0x31,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x00,
		0x02, 0x34,
	}
	input := append(append([]byte(nil), good...), 0x00, 0x01)

	consumed, out, pending := r.Feed(input, 0)
	require.Len(t, out, 1)
	assert.True(t, pending)
	assert.Nil(t, r.LastError())
	assert.Equal(t, len(good), consumed)

	_, out, pending = r.Feed(input[consumed:], 0)
	assert.Empty(t, out)
	assert.True(t, pending)
	require.Error(t, r.LastError())
}

// TestFeed_LastErrorClearsOnSuccess confirms LastError doesn't leak a
// stale fault from an earlier call into a later, successful one.
func TestFeed_LastErrorClearsOnSuccess(t *testing.T) {
	// The fixture's timestamp becomes 0 after the Beast frame-start
	// adjustment and its DF11 parity does not check out, so the filter must
	// want both for the message to come through.
	r := New(WithMode(modes.ModeBeast), WithFilterConfig(filter.Config{WantZeroTimestamps: true, WantInvalidMessages: true}))
	r.Feed([]byte{0x00, 0x01}, 0)
	require.Error(t, r.LastError())

	input := []byte{
		0x1A, 0x32,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
		0xFF,
		0x5D, 0x48, 0x40, 0xD6, 0x12, 0x34, 0x56,
	}
	_, out, pending := r.Feed(input, 0)
	assert.False(t, pending)
	require.Len(t, out, 1)
	assert.NoError(t, r.LastError())
}

func TestSetMode_UpdatesFrequencyAndEpoch(t *testing.T) {
	r := New()

	r.SetMode(modes.ModeBeast)
	assert.Equal(t, uint64(12_000_000), r.Frequency())
	assert.Equal(t, "", r.Epoch())

	r.SetMode(modes.ModeRadarcape)
	assert.Equal(t, uint64(1_000_000_000), r.Frequency())
	assert.Equal(t, "utc_midnight", r.Epoch())

	r.SetMode(modes.ModeRadarcapeEmulated)
	assert.Equal(t, uint64(1_000_000_000), r.Frequency())
	assert.Equal(t, "", r.Epoch())

	r.SetMode(modes.ModeSBS)
	assert.Equal(t, uint64(20_000_000), r.Frequency())

	r.SetMode(modes.ModeAVR)
	assert.Equal(t, uint64(0), r.Frequency())

	r.SetMode(modes.ModeAVRMlat)
	assert.Equal(t, uint64(12_000_000), r.Frequency())
}

func TestFeed_DispatchesToBeastDecoder(t *testing.T) {
	r := New(WithMode(modes.ModeBeast), WithFilterConfig(filter.Config{WantZeroTimestamps: true, WantInvalidMessages: true}))
	input := []byte{
		0x1A, 0x32,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
		0xFF,
		0x5D, 0x48, 0x40, 0xD6, 0x12, 0x34, 0x56,
	}
	consumed, out, pending := r.Feed(input, 0)
	assert.False(t, pending)
	assert.Equal(t, len(input), consumed)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(11), out[0].DF)

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Received)
	assert.Equal(t, uint64(1), stats.ByDF[11])
}

func TestFeed_DispatchesToAVRDecoder(t *testing.T) {
	r := New(WithMode(modes.ModeAVR), WithFilterConfig(filter.Config{WantZeroTimestamps: true, WantInvalidMessages: true}))
	input := []byte("*8D4840D6202CC371C32CE0576098;\n")
	consumed, out, pending := r.Feed(input, 0)
	assert.False(t, pending)
	assert.Equal(t, len(input), consumed)
	require.Len(t, out, 1)
	assert.Equal(t, uint8(17), out[0].DF)
}

func TestSetMode_SwitchingModesPreservesFilter(t *testing.T) {
	r := New(WithMode(modes.ModeBeast))
	r.SetMode(modes.ModeAVR)
	assert.NotNil(t, r.Filter())
}
