package beast

import "github.com/mutability/mlat-client/internal/modes"

// decodeSettings turns a Radarcape DIP-switch settings byte into the
// label list a status event carries.
func decodeSettings(b byte) []string {
	modeLabel := "avr"
	if b&0x01 != 0 {
		modeLabel = "beast"
	} else if b&0x04 != 0 {
		modeLabel = "avrmlat"
	}

	frames := "all_frames"
	if b&0x02 != 0 {
		frames = "filtered_frames"
	}
	crc := "check_crc"
	if b&0x08 != 0 {
		crc = "no_crc"
	}
	ts := "legacy_timestamps"
	if b&0x10 != 0 {
		ts = "gps_timestamps"
	}
	flow := "no_rtscts"
	if b&0x20 != 0 {
		flow = "rtscts"
	}
	fec := "fec"
	if b&0x40 != 0 {
		fec = "no_fec"
	}
	modeac := "no_modeac"
	if b&0x80 != 0 {
		modeac = "modeac"
	}

	return []string{modeLabel, frames, crc, ts, flow, fec, modeac}
}

// decodeGPSStatus turns a Radarcape GPS status byte into its structured
// form. Firmware without the UTC-offset bugfix applied never sets the
// detail bits, so only UTCBugfix and TimestampOK are meaningful then.
func decodeGPSStatus(b byte) modes.RadarcapeGPSStatus {
	if b&0x80 == 0 {
		return modes.RadarcapeGPSStatus{UTCBugfix: false, TimestampOK: true}
	}
	return modes.RadarcapeGPSStatus{
		UTCBugfix:   true,
		TimestampOK: b&0x20 == 0,
		SyncOK:      b&0x10 != 0,
		UTCOffsetOK: b&0x08 != 0,
		SatsOK:      b&0x04 != 0,
		TrackingOK:  b&0x02 != 0,
		AntennaOK:   b&0x01 != 0,
	}
}
