//go:build !baremetal

package main

import (
	"os"

	"github.com/spf13/cobra"

	"boarddemo-go/services/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(b)
		return err
	},
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.ForBoard("host")
}
