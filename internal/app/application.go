package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mutability/mlat-client/internal/basestation"
	"github.com/mutability/mlat-client/internal/filter"
	"github.com/mutability/mlat-client/internal/logging"
	"github.com/mutability/mlat-client/internal/position"
	"github.com/mutability/mlat-client/internal/reader"
)

// readBufSize bounds a single read from the byte source; Feed is called
// on whatever accumulates in the pending buffer after each read.
const readBufSize = 65536

// Application wires a byte source to a reader.Reader and a BaseStation
// writer: read bytes, Feed them to the decoder, write whatever messages
// come out, repeat until the source closes or a shutdown signal arrives.
type Application struct {
	config     Config
	logger     *logrus.Logger
	reader     *reader.Reader
	baseStation *basestation.Writer
	logRotator *logging.LogRotator
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	verbose    bool
}

// NewApplication creates a new application instance.
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config:  config,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		verbose: config.Verbose,
	}
}

// Start initializes components, runs the read/decode/write loop until a
// shutdown signal arrives, then shuts down gracefully.
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("starting mlat-client decoder")

	source, err := app.openSource()
	if err != nil {
		return fmt.Errorf("failed to open input source: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		source.Close()
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	app.run(source)

	select {
	case <-sigChan:
		app.logger.Info("received shutdown signal")
	case <-app.ctx.Done():
		app.logger.Info("input source closed")
	}
	app.shutdown(source)

	return nil
}

// initializeComponents initializes all application components.
func (app *Application) initializeComponents() error {
	var err error

	app.logRotator, err = logging.NewLogRotator(app.config.LogDir, app.config.LogRotateUTC, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize log rotator: %w", err)
	}

	positions := position.NewResolver(app.logger, app.verbose)
	app.baseStation = basestation.NewWriter(app.logRotator, app.logger, positions)

	mode := app.config.Mode
	if mode == "" {
		mode = DefaultMode
	}
	app.reader = reader.New(
		reader.WithLogger(app.logger),
		reader.WithMode(mode),
		reader.WithFilterConfig(app.filterConfig()),
	)

	return nil
}

func (app *Application) filterConfig() filter.Config {
	return filter.Config{
		WantZeroTimestamps:  app.config.WantZeroTimestamps,
		WantMLATMessages:    app.config.WantMLATMessages,
		WantInvalidMessages: app.config.WantInvalidMessages,
	}
}

// openSource opens the configured byte source. "stdin" reads os.Stdin;
// "tcp" dials InputAddr; "file" opens InputAddr for reading.
func (app *Application) openSource() (io.ReadCloser, error) {
	switch app.config.InputType {
	case "", "stdin":
		return io.NopCloser(os.Stdin), nil
	case "tcp":
		conn, err := net.Dial("tcp", app.config.InputAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", app.config.InputAddr, err)
		}
		return conn, nil
	case "file":
		f, err := os.Open(app.config.InputAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", app.config.InputAddr, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown input type %q", app.config.InputType)
	}
}

// run starts the log rotator scheduler, the read/decode/write pump, and
// periodic statistics reporting as background goroutines.
func (app *Application) run(source io.Reader) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.logRotator.Start(app.ctx)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.pump(source)
		app.cancel()
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.reportStatistics()
	}()

	app.logger.Info("all components started successfully")
}

// pump reads from source, feeds whatever has accumulated to the reader,
// and writes every decoded message through the BaseStation writer, until
// source returns io.EOF, a read error, or the context is cancelled.
func (app *Application) pump(source io.Reader) {
	br := bufio.NewReaderSize(source, readBufSize)
	pending := make([]byte, 0, readBufSize*2)
	chunk := make([]byte, readBufSize)

	for {
		select {
		case <-app.ctx.Done():
			return
		default:
		}

		n, err := br.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			var frameErr error
			pending, frameErr = app.feedAndDrain(pending)
			if frameErr != nil {
				app.logger.WithError(frameErr).Error("decoder lost sync with input stream, stopping")
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				app.logger.WithError(err).Error("input read error")
			}
			return
		}
	}
}

// feedAndDrain calls Feed repeatedly against pending (advancing past
// consumed bytes each time) until Feed stops making progress — consumed
// reaching 0 then means the remaining bytes are an incomplete frame, left
// for the next read to extend — and returns the unconsumed remainder. A
// hard framing error (reader.Reader.LastError non-nil) is never
// resynchronised past by skipping bytes, matching spec.md's NON-GOALS; it
// is returned to the caller instead, which stops the pump rather than
// silently discarding input one byte at a time.
func (app *Application) feedAndDrain(pending []byte) ([]byte, error) {
	for len(pending) > 0 {
		consumed, msgs, _ := app.reader.Feed(pending, 0)

		for _, msg := range msgs {
			if err := app.baseStation.WriteMessage(msg); err != nil {
				app.logger.WithError(err).Debug("failed to write message")
			}
		}

		if err := app.reader.LastError(); err != nil {
			return pending[consumed:], err
		}

		if consumed == 0 {
			break
		}
		pending = pending[consumed:]
	}
	return pending, nil
}

// reportStatistics reports processing statistics periodically.
func (app *Application) reportStatistics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			stats := app.reader.Stats()
			app.logger.WithFields(logrus.Fields{
				"received":   stats.Received,
				"suppressed": stats.Suppressed,
				"mlat":       stats.MLAT,
				"mode":       app.reader.Mode(),
			}).Info("decoder statistics")
		}
	}
}

// shutdown gracefully shuts down the application.
func (app *Application) shutdown(source io.Closer) {
	app.logger.Info("shutting down application")
	app.cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("all goroutines finished")
	case <-time.After(5 * time.Second):
		app.logger.Warn("shutdown timeout, forcing exit")
	}

	if source != nil {
		source.Close()
	}
	if app.logRotator != nil {
		app.logRotator.Close()
	}

	app.logger.Info("shutdown completed")
}
