// cmd/scale-reader/ports.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pietrospam/serial-weight-reader/internal/serialport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports available on this machine",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serialport.List()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}

	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}
