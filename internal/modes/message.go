package modes

// Message represents one decoded Mode S/Mode A-C frame or one metadata
// event synthesized by a frame parser (mode change, timestamp jump,
// epoch rollover, Radarcape status/position). Value type: immutable after
// construction except Timestamp, which an upstream frame parser may
// rewrite to point at the start of the frame rather than its end.
type Message struct {
	Timestamp uint64 // units vary by decoder mode, see the timestamp package
	Signal    uint8  // 0 for formats lacking a signal level
	DF        uint8  // 0..31 real Mode S DFs, 32 is Mode A/C, 33..37 are event sentinels
	NUC       uint8  // navigation uncertainty category, 0 unless DF17 with a position metype

	EvenCPR bool
	OddCPR  bool
	Valid   bool

	CRCResidual *uint32
	Address     *uint32 // 24-bit ICAO address
	Altitude    *int32  // feet

	EventData any    // set only for event sentinels (DF above DFModeAC)
	Payload   []byte // 2, 7, or 14 bytes for frames; nil for events
}

// GetICAO returns the message's address, or 0 if absent.
func (m Message) GetICAO() uint32 {
	if m.Address == nil {
		return 0
	}
	return *m.Address
}

// GetAltitude returns the message's decoded altitude in feet and whether
// one was present.
func (m Message) GetAltitude() (int32, bool) {
	if m.Altitude == nil {
		return 0, false
	}
	return *m.Altitude, true
}

// IsEvent reports whether this message is a synthesized metadata event
// rather than a decoded frame.
func (m Message) IsEvent() bool {
	return m.DF > DFModeAC
}

// Event payload shapes, matching spec.md §6.

// ModeChangeEvent is emitted when the Beast/Radarcape parser observes a
// status record that changes the active decoder mode.
type ModeChangeEvent struct {
	Mode      string
	Frequency uint64
	Epoch     string
}

// TimestampJumpEvent is emitted when the timestamp state machine flags an
// incoming timestamp as an outlier beyond the outlier limit.
type TimestampJumpEvent struct {
	LastTimestamp uint64
}

// EpochRolloverEvent is emitted once per GPS end-of-day rollover in
// Radarcape modes.
type EpochRolloverEvent struct{}

// RadarcapeStatusEvent carries a decoded Radarcape status record.
type RadarcapeStatusEvent struct {
	Settings          []string
	TimestampPPSDelta int32
	GPSStatus         *RadarcapeGPSStatus
}

// RadarcapeGPSStatus decodes the GPS status byte of a Radarcape status
// record. UTCBugfix reports whether the receiver firmware already
// applies the UTC-offset-by-one-second correction; the remaining fields
// are only meaningful when UTCBugfix is true, since older firmware
// without the fix never reports them.
type RadarcapeGPSStatus struct {
	UTCBugfix bool

	TimestampOK bool
	SyncOK      bool
	UTCOffsetOK bool
	SatsOK      bool
	TrackingOK  bool
	AntennaOK   bool
}

// RadarcapePositionEvent carries the decoded lat/lon/alt of a Radarcape
// position record (type '5').
type RadarcapePositionEvent struct {
	Lat, Lon, Alt float64
}
