package app

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShowVersion(t *testing.T) {
	assert.NotPanics(t, func() {
		ShowVersion()
	})
}

func TestNewApplication(t *testing.T) {
	config := Config{
		InputType: "stdin",
		Mode:      DefaultMode,
		LogDir:    "./test_logs",
	}

	app := NewApplication(config)

	assert.NotNil(t, app)
	assert.NotNil(t, app.logger)
	assert.NotNil(t, app.ctx)
	assert.NotNil(t, app.cancel)
}

func TestNewApplication_VerboseSetsDebugLevel(t *testing.T) {
	app := NewApplication(Config{Verbose: true})
	assert.Equal(t, app.logger.GetLevel().String(), "debug")
}

func TestNewApplication_QuietSetsInfoLevel(t *testing.T) {
	app := NewApplication(Config{Verbose: false})
	assert.Equal(t, app.logger.GetLevel().String(), "info")
}

func TestOpenSource_DefaultsToStdin(t *testing.T) {
	app := NewApplication(Config{})
	src, err := app.openSource()
	assert.NoError(t, err)
	assert.NotNil(t, src)
}

func TestOpenSource_UnknownTypeErrors(t *testing.T) {
	app := NewApplication(Config{InputType: "carrier-pigeon"})
	_, err := app.openSource()
	assert.Error(t, err)
}

func TestOpenSource_MissingFileErrors(t *testing.T) {
	app := NewApplication(Config{InputType: "file", InputAddr: "/nonexistent/path/for/mlat-client-test"})
	_, err := app.openSource()
	assert.Error(t, err)
}

func TestInitializeComponents_WiresReaderAndWriter(t *testing.T) {
	app := NewApplication(Config{
		Mode:   "BEAST",
		LogDir: "./test_logs",
	})

	err := app.initializeComponents()
	assert.NoError(t, err)
	assert.NotNil(t, app.reader)
	assert.NotNil(t, app.baseStation)
	assert.Equal(t, "BEAST", app.reader.Mode())

	app.logRotator.Close()
}

func TestInitializeComponents_DefaultsModeWhenEmpty(t *testing.T) {
	app := NewApplication(Config{LogDir: "./test_logs"})

	err := app.initializeComponents()
	assert.NoError(t, err)
	assert.Equal(t, DefaultMode, app.reader.Mode())

	app.logRotator.Close()
}

func TestFeedAndDrain_ConsumesCompleteBeastFrames(t *testing.T) {
	app := NewApplication(Config{Mode: "BEAST", LogDir: "./test_logs"})
	require_ := assert.New(t)
	require_.NoError(app.initializeComponents())
	defer app.logRotator.Close()

	// One complete Beast mode-A/C frame: esc '1', 6-byte timestamp, 1-byte
	// signal, 2-byte Mode A/C payload, nothing left dangling.
	frame := []byte{0x1A, 0x31, 0, 0, 0, 0, 0, 0, 0, 0x02, 0x34}
	remainder, err := app.feedAndDrain(frame)
	assert.NoError(t, err)
	assert.Empty(t, remainder)
}

func TestFeedAndDrain_LeavesIncompleteFramePending(t *testing.T) {
	app := NewApplication(Config{Mode: "BEAST", LogDir: "./test_logs"})
	require_ := assert.New(t)
	require_.NoError(app.initializeComponents())
	defer app.logRotator.Close()

	// Esc + type byte only: nowhere near a complete frame yet.
	partial := []byte{0x1A, '2'}
	remainder, err := app.feedAndDrain(partial)
	assert.NoError(t, err)
	assert.Equal(t, partial, remainder)
}

func TestFeedAndDrain_HardFramingErrorReturnsErrorInsteadOfLooping(t *testing.T) {
	app := NewApplication(Config{Mode: "BEAST", LogDir: "./test_logs"})
	require_ := assert.New(t)
	require_.NoError(app.initializeComponents())
	defer app.logRotator.Close()

	garbage := []byte{0x00, 0x01, 0x02}
	remainder, err := app.feedAndDrain(garbage)
	assert.Error(t, err)
	// The bad byte is not skipped; the whole unconsumed remainder is
	// handed back for the caller to stop on, not silently discarded.
	assert.Equal(t, garbage, remainder)
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.RemoveAll("./test_logs")
	os.Exit(code)
}
