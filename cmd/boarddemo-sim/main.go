//go:build !baremetal

// boarddemo-sim runs the board demo against in-process fakes, with stdin
// and stdout standing in for the UART.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "boarddemo-sim",
		Short: "Run the board demo on the host",
		Long:  "Run the LED/button/PWM/UART demo against simulated hardware. Lines typed on stdin are echoed to stdout.",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: embedded host config)")
	rootCmd.AddCommand(runCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
