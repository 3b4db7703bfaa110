// cmd/scale-reader/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
	"github.com/pietrospam/serial-weight-reader/internal/utils"
)

var (
	cfgFile string

	// Serial overrides, applied on top of the config file.
	flagPort      string
	flagBaudRate  int
	flagFraming   string
	flagPattern   string
	flagTimeoutMs int
)

var rootCmd = &cobra.Command{
	Use:   "scale-reader",
	Short: "Serial weighbridge scale reader",
	Long: `scale-reader takes stabilized weight readings from serial weighbridge
indicators without resetting them.

The reader opens the configured port, drives DTR and RTS to the configured
levels only after the open succeeds (reset-sensitive indicators watch the
open call itself), decodes the continuous output stream with either a
marker-framed or line-terminated discipline, and reports the first weight
that matches the configured pattern, or a timeout.

Configuration comes from config.yaml (current directory or
/etc/scale-reader), SCALE_READER_* environment variables, and flags,
in increasing priority.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "", "Serial port device (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&flagBaudRate, "baud", "b", 0, "Baud rate (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagFraming, "framing", "", `Framing discipline: "frame" or "line" (overrides config)`)
	rootCmd.PersistentFlags().StringVar(&flagPattern, "pattern", "", "Weight extraction pattern (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagTimeoutMs, "timeout-ms", 0, "Read deadline in milliseconds (overrides config)")
}

// loadConfig loads the configuration with flag overrides applied.
func loadConfig() (*config.Config, error) {
	return config.LoadWithOverrides(cfgFile, func(cfg *config.Config) {
		if flagPort != "" {
			cfg.Serial.Port = flagPort
		}
		if flagBaudRate > 0 {
			cfg.Serial.BaudRate = flagBaudRate
		}
		if flagFraming != "" {
			cfg.Protocol.Framing = flagFraming
		}
		if flagPattern != "" {
			cfg.Protocol.Pattern = flagPattern
		}
		if flagTimeoutMs > 0 {
			cfg.Protocol.ReadTimeoutMs = flagTimeoutMs
		}
	})
}

// newLogger builds the configured logger; diagnostics go to the logging
// output, never stdout, so command output stays machine-readable.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return utils.NewLogger(&cfg.Logging)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
