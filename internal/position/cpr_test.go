package position

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/mutability/mlat-client/internal/modes"
)

func TestNewResolver(t *testing.T) {
	r := NewResolver(logrus.New(), false)
	assert.NotNil(t, r)
	assert.NotNil(t, r.aircrafts)
}

func TestCPRNFunction(t *testing.T) {
	tests := []struct {
		name     string
		latitude float64
		fflag    int
	}{
		{"equator, even frame", 0.0, 0},
		{"equator, odd frame", 0.0, 1},
		{"latitude 30, even frame", 30.0, 0},
		{"latitude 30, odd frame", 30.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cprN(tt.latitude, tt.fflag)
			assert.Greater(t, result, 0)
			assert.LessOrEqual(t, result, 59)
		})
	}
}

func TestCPRDlonFunction(t *testing.T) {
	tests := []struct {
		name     string
		latitude float64
		fflag    int
	}{
		{"equator, even frame", 0.0, 0},
		{"equator, odd frame", 0.0, 1},
		{"latitude 30, even frame", 30.0, 0},
		{"latitude 30, odd frame", 30.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cprDlon(tt.latitude, tt.fflag)
			assert.Greater(t, result, 0.0)
			assert.LessOrEqual(t, result, 360.0)
		})
	}
}

func TestResolvePosition(t *testing.T) {
	r := NewResolver(logrus.New(), true)

	tests := []struct {
		name   string
		icao   uint32
		fflag  uint8
		latCPR uint32
		lonCPR uint32
	}{
		{"even frame", 0x484412, 0, 0x5D4A4, 0x2F8B4},
		{"odd frame same aircraft", 0x484412, 1, 0x5D4A5, 0x2F8B5},
		{"different aircraft", 0x123456, 0, 0x3D4A4, 0x1F8B4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, ok := r.Resolve(tt.icao, tt.fflag, tt.latCPR, tt.lonCPR)
			if ok {
				assert.True(t, lat >= -90.0 && lat <= 90.0)
				assert.True(t, lon >= -180.0 && lon <= 180.0)
			}
		})
	}
}

func TestResolveConcurrentAccess(t *testing.T) {
	r := NewResolver(logrus.New(), false)

	const numGoroutines = 5
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(icao uint32) {
			defer func() { done <- true }()
			r.Resolve(icao, 0, 0x5D4A4, 0x2F8B4)
			r.Resolve(icao, 1, 0x5D4A5, 0x2F8B5)
		}(uint32(0x484410 + i))
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	assert.Len(t, r.aircrafts, numGoroutines)
}

func TestExtractCPR(t *testing.T) {
	// DF17 airborne position, odd frame: df=17 (0x8D...), a synthetic
	// payload with the ME position fields set; exact lat/lon values don't
	// matter here, only that extraction agrees with the F flag and doesn't
	// panic on a minimal 14-byte frame.
	payload := make([]byte, 14)
	payload[0] = 0x8D
	payload[6] = 0x04 // F bit set -> odd

	msg := modes.Message{
		DF:      17,
		Valid:   true,
		OddCPR:  true,
		Payload: payload,
	}

	_, _, fflag, ok := ExtractCPR(msg)
	assert.True(t, ok)
	assert.Equal(t, uint8(1), fflag)
}

func TestExtractCPRRejectsNonPosition(t *testing.T) {
	msg := modes.Message{DF: 11, Valid: true, Payload: make([]byte, 7)}
	_, _, _, ok := ExtractCPR(msg)
	assert.False(t, ok)
}
