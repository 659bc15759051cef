// Package modes decodes Mode S and Mode A/C frames: CRC, altitude, and the
// per-downlink-format field layouts used by ADS-B multilateration clients.
package modes

// Downlink format sentinels. 0..31 are real Mode S DF values; the rest are
// reserved for metadata events the reader façade synthesizes.
const (
	DFModeAC                 = 32
	DFEventTimestampJump     = 33
	DFEventModeChange        = 34
	DFEventEpochRollover     = 35
	DFEventRadarcapeStatus   = 36
	DFEventRadarcapePosition = 37
)

// Mode names as exposed to callers (matches spec.md §6).
const (
	ModeNone              = "NONE"
	ModeBeast             = "BEAST"
	ModeRadarcape         = "RADARCAPE"
	ModeRadarcapeEmulated = "RADARCAPE_EMULATED"
	ModeAVR               = "AVR"
	ModeAVRMlat           = "AVRMLAT"
	ModeSBS               = "SBS"
)

// MagicMLAT identifies synthetic frames produced by a multilateration
// result rather than received over the air. MagicUAT is reserved for UAT
// and never produced by this decoder, but recognised as synthetic.
const (
	MagicMLAT = 0xFF004D4C4154
	MagicUAT  = 0xFF004D4C4155
)

// IsSynthetic reports whether ts is a magic timestamp: exactly zero, or in
// the closed range [MagicMLAT, MagicMLAT+10]. Synthetic timestamps bypass
// clock tracking entirely.
func IsSynthetic(ts uint64) bool {
	return ts == 0 || (ts >= MagicMLAT && ts <= MagicMLAT+10)
}

// ADSBCharset is the 6-bit character set used to encode aircraft callsigns
// in DF17/18 identification messages.
const ADSBCharset = "@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_ !\"#$%&'()*+,-./0123456789:;<=>?"
