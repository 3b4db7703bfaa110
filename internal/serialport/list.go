// internal/serialport/list.go
package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

var listPorts = serial.GetPortsList

// List returns the serial ports available on this machine.
func List() ([]string, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
