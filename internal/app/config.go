package app

// Default configuration constants.
const (
	DefaultInputType = "stdin"
	DefaultMode      = "BEAST"
	DefaultLogDir    = "./logs"
)

// Config holds application configuration: where to read wire bytes from,
// which wire format they're in, where decoded output goes, and the
// filter/verbosity knobs the reader façade and BaseStation writer consult.
type Config struct {
	// InputType selects the byte source: "stdin", "tcp", or "file".
	InputType string
	// InputAddr is a "host:port" when InputType is "tcp", or a file path
	// when InputType is "file". Ignored for "stdin".
	InputAddr string

	// Mode is one of the modes.Mode* wire-format names (BEAST, RADARCAPE,
	// AVR, AVRMLAT, SBS). RADARCAPE/RADARCAPE_EMULATED are also reachable
	// at runtime via the Beast status record even when Mode starts as
	// BEAST, per spec.md §4.9.
	Mode string

	LogDir       string
	LogRotateUTC bool
	Verbose      bool
	ShowVersion  bool

	WantZeroTimestamps  bool
	WantMLATMessages    bool
	WantInvalidMessages bool
}
