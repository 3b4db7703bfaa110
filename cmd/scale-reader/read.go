// cmd/scale-reader/read.go
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pietrospam/serial-weight-reader/internal/session"
	"github.com/pietrospam/serial-weight-reader/internal/utils"
)

var readJSON bool

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Take one weight reading from the scale",
	Long: `Run one complete reading session: open the port with the anti-reset
signal sequence, decode the stream until a weight matches the configured
pattern, close the port, and print the result.

Exit codes:
  0 - Reading succeeded
  1 - Reading failed (timeout, port unavailable, transport error)

Examples:
  # Read with the configured port and protocol
  scale-reader read

  # Override port and pattern for a one-off reading
  scale-reader read --port /dev/ttyUSB0 --pattern '[D@F](\d+)' --json`,
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().BoolVar(&readJSON, "json", false, "Print the full result as JSON")
}

func runRead(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer utils.CloseLogger(logger)

	result := session.New(cfg, logger).Run()

	if readJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else if result.Success {
		fmt.Printf("%s %s\n", result.Weight.String(), result.Unit)
	} else {
		fmt.Fprintf(os.Stderr, "reading failed: %s", result.Reason)
		if result.Error != "" {
			fmt.Fprintf(os.Stderr, " (%s)", result.Error)
		}
		fmt.Fprintln(os.Stderr)
	}

	if !result.Success {
		utils.CloseLogger(logger)
		os.Exit(1)
	}
	return nil
}
