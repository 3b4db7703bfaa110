// cmd/scale-reader/version.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridable at build time with
// -ldflags "-X main.version=...".
var version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the scale-reader version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scale-reader %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
