package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mutability/mlat-client/internal/app"
)

func main() {
	var config app.Config

	rootCmd := &cobra.Command{
		Use:   "mlat-client",
		Short: "Mode S/ADS-B wire-format decoder",
		Long: `Decodes Beast, Radarcape, AVR, and SBS wire-format Mode S/ADS-B
streams from stdin, a TCP receiver, or a captured file, validates CRC and
position, and writes decoded traffic out in BaseStation (SBS) CSV format.

Example usage:
  mlat-client --input tcp --addr localhost:30005 --mode BEAST
  mlat-client --input file --addr capture.bin --mode AVR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}

			application := app.NewApplication(config)
			return application.Start()
		},
	}

	rootCmd.Flags().StringVarP(&config.InputType, "input", "i", app.DefaultInputType, "Input source: stdin, tcp, or file")
	rootCmd.Flags().StringVarP(&config.InputAddr, "addr", "a", "", "host:port for --input tcp, or file path for --input file")
	rootCmd.Flags().StringVarP(&config.Mode, "mode", "m", app.DefaultMode, "Wire format: BEAST, RADARCAPE, RADARCAPE_EMULATED, AVR, AVRMLAT, or SBS")
	rootCmd.Flags().StringVarP(&config.LogDir, "log-dir", "l", app.DefaultLogDir, "Log directory")
	rootCmd.Flags().BoolVarP(&config.LogRotateUTC, "utc", "u", true, "Use UTC for log rotation")
	rootCmd.Flags().BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")
	rootCmd.Flags().BoolVar(&config.WantZeroTimestamps, "zero-timestamps", false, "Accept messages with an all-zero timestamp")
	rootCmd.Flags().BoolVar(&config.WantMLATMessages, "mlat-messages", false, "Accept already-MLAT-tagged messages")
	rootCmd.Flags().BoolVar(&config.WantInvalidMessages, "invalid-messages", false, "Accept messages that fail CRC/position validation")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
